package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/fra/assembler"
	"fra-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestStamp() assembler.BuildStamp {
	return assembler.BuildStamp{
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Version:     "1.4.0",
		BuildID:     "abc123",
		InstanceID:  "test-instance-123",
	}
}

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func render(t *testing.T, assets models.AssetMap, photos models.PhotoSet) ([]byte, map[string][]byte) {
	t.Helper()
	d := models.NewCanonicalFRAData()
	stamp := createTestStamp()
	out, err := Render(assembler.Build(d, models.ResolvedAssets{Assets: assets}, stamp), photos, Meta{Subject: "High Street Store", Stamp: stamp})
	require.NoError(t, err)
	return out, unzip(t, out)
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	parts := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		parts[f.Name] = b
	}
	return parts
}

func assertWellFormed(t *testing.T, name string, data []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		require.NoError(t, err, name)
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestRender_PackageStructure(t *testing.T) {
	out, parts := render(t, nil, nil)

	assert.Equal(t, []byte("PK\x03\x04"), out[:4])
	for _, name := range []string{
		"[Content_Types].xml", "_rels/.rels", "docProps/core.xml", "docProps/app.xml",
		"word/document.xml", "word/styles.xml", "word/settings.xml", "word/_rels/document.xml.rels",
	} {
		require.Contains(t, parts, name)
		assertWellFormed(t, name, parts[name])
	}
	assertWellFormed(t, "word/footer1.xml", parts["word/footer1.xml"])
	assert.Greater(t, len(out), 10*1024)
}

func TestRender_Body(t *testing.T) {
	_, parts := render(t, nil, nil)
	body := string(parts["word/document.xml"])

	assert.GreaterOrEqual(t, strings.Count(body, "<w:tbl>"), 2)
	assert.GreaterOrEqual(t, strings.Count(body, "<w:sectPr>"), 2)
	assert.Contains(t, body, "test-instance-123")
	assert.Contains(t, body, "Generated: 2026-03-01T09:30:00Z")
	assert.Contains(t, body, `w:name="sec_means_of_escape"`)
	assert.NotContains(t, body, `w:name="sec_sprinklers"`)

	// Photos is the last section and the body-level properties close the document.
	assert.True(t, strings.HasSuffix(body, "</w:sectPr></w:body></w:document>"))
}

func TestRender_SectionBoundaries(t *testing.T) {
	sections := []assembler.Section{
		{ID: "a", Title: "A", PageBreakAfter: false},
		{ID: "b", Title: "B", PageBreakAfter: true},
		{ID: "c", Title: "C"},
	}
	out, err := Render(sections, nil, Meta{Stamp: createTestStamp()})
	require.NoError(t, err)
	body := string(unzip(t, out)["word/document.xml"])

	assert.Equal(t, 3, strings.Count(body, "<w:sectPr>"))
	types := []string{}
	for _, chunk := range strings.Split(body, `<w:type w:val="`)[1:] {
		types = append(types, chunk[:strings.Index(chunk, `"`)])
	}
	assert.Equal(t, []string{"nextPage", "continuous", "nextPage"}, types)
}

func TestRender_EscapesText(t *testing.T) {
	sections := []assembler.Section{{ID: "cover", Title: `Smith & Sons <"Ltd">`}}
	out, err := Render(sections, nil, Meta{Stamp: createTestStamp()})
	require.NoError(t, err)
	parts := unzip(t, out)
	assertWellFormed(t, "word/document.xml", parts["word/document.xml"])
	assert.Contains(t, string(parts["word/document.xml"]), "Smith &amp; Sons")
}

func TestRender_EmbedsPhotos(t *testing.T) {
	assets := models.AssetMap{"exits": {
		{Path: "fra/inst/photos/exits/a.png", Filename: "a.png"},
		{Path: "fra/inst/photos/exits/b.png", Filename: "b.png"},
	}}
	photos := models.PhotoSet{"exits": {
		{Asset: assets["exits"][0], ContentType: "image/png", Data: createTestPNG(t, 2000, 1000)},
		{Asset: assets["exits"][1], ContentType: "image/png", Data: []byte("not an image")},
	}}

	_, parts := render(t, assets, photos)

	require.Contains(t, parts, "word/media/image1.png")
	assert.NotContains(t, parts, "word/media/image2.png")
	assert.Contains(t, string(parts["[Content_Types].xml"]), `Extension="png"`)
	assert.Contains(t, string(parts["word/_rels/document.xml.rels"]), `Target="media/image1.png"`)

	body := string(parts["word/document.xml"])
	assert.Contains(t, body, `r:embed="rIdImage1"`)
	assert.Contains(t, body, `cx="5486400" cy="2743200"`)
	assert.Contains(t, body, "Photograph not embedded: b.png")
}

func TestRender_NoSections(t *testing.T) {
	out, err := Render(nil, nil, Meta{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperrors.ErrRender)
}

func TestImageExtent(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		cx, cy int64
	}{
		{"small", 100, 50, 952500, 476250},
		{"wide", 2000, 1000, 5486400, 2743200},
		{"tall", 100, 2000, 365760, 7315200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx, cy := imageExtent(tt.w, tt.h)
			assert.Equal(t, tt.cx, cx)
			assert.Equal(t, tt.cy, cy)
		})
	}
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(&assembler.Table{Header: []string{"a", "b", "c"}, Widths: []int{1, 2}})
	require.Len(t, widths, 3)
	sum := 0
	for _, w := range widths {
		sum += w
	}
	assert.Equal(t, textWidth, sum)
	assert.Greater(t, widths[1], widths[0])
}
