// Package docx lays assembled FRA sections out as a WordprocessingML package.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/fra/assembler"
	"fra-engine/internal/models"
)

const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Meta carries the document properties.
type Meta struct {
	Title   string
	Subject string
	Creator string
	Stamp   assembler.BuildStamp
}

type part struct {
	name string
	data []byte
}

// Render builds the complete package in memory. Either every part is written
// or an error wrapping ErrRender is returned with no bytes.
func Render(sections []assembler.Section, photos models.PhotoSet, meta Meta) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no sections to render", apperrors.ErrRender)
	}
	if meta.Title == "" {
		meta.Title = "Fire Risk Assessment"
	}
	if meta.Creator == "" {
		meta.Creator = "fra-engine"
	}

	bw := newBodyWriter(photos)
	document := bw.document(sections)

	parts := []part{
		{"[Content_Types].xml", contentTypes(bw.media)},
		{"_rels/.rels", []byte(packageRels)},
		{"docProps/core.xml", coreProps(meta)},
		{"docProps/app.xml", appProps(meta, len(sections))},
		{"word/document.xml", document},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/settings.xml", []byte(settingsXML)},
		{"word/footer1.xml", footerXML(meta.Stamp)},
		{"word/_rels/document.xml.rels", documentRels(bw.media)},
	}
	for _, m := range bw.media {
		parts = append(parts, part{"word/" + m.target(), m.data})
	}

	modified := meta.Stamp.GeneratedAt
	if modified.IsZero() {
		modified = time.Now()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Store, Modified: modified.UTC()})
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", apperrors.ErrRender, p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", apperrors.ErrRender, p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close package: %v", apperrors.ErrRender, err)
	}
	return buf.Bytes(), nil
}
