package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"fra-engine/internal/fra/assembler"
	"fra-engine/internal/models"
)

const (
	// A4 portrait in twips with 2cm side margins.
	pageWidth   = 11906
	pageHeight  = 16838
	marginSide  = 1134
	marginTopBt = 1440
	textWidth   = pageWidth - 2*marginSide

	emuPerPixel    = 9525
	maxImageWidth  = 5486400
	maxImageHeight = 7315200

	footerRelID = "rIdFooter1"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
)

type mediaPart struct {
	relID       string
	name        string
	ext         string
	contentType string
	data        []byte
}

func (m mediaPart) target() string { return "media/" + m.name }

type bodyWriter struct {
	buf      bytes.Buffer
	photos   models.PhotoSet
	media    []mediaPart
	drawings int
}

func newBodyWriter(photos models.PhotoSet) *bodyWriter {
	return &bodyWriter{photos: photos}
}

func (w *bodyWriter) document(sections []assembler.Section) []byte {
	w.buf.Reset()
	w.buf.WriteString(xml.Header)
	fmt.Fprintf(&w.buf, `<w:document xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s"><w:body>`,
		nsW, nsR, nsWP, nsA, nsPic)

	for i, s := range sections {
		w.section(i, s)
		props := sectPr(sectionStart(sections, i))
		if i < len(sections)-1 {
			w.buf.WriteString(`<w:p><w:pPr>` + props + `</w:pPr></w:p>`)
		} else {
			w.buf.WriteString(props)
		}
	}

	w.buf.WriteString(`</w:body></w:document>`)
	return append([]byte(nil), w.buf.Bytes()...)
}

// sectionStart is how section i begins: on a new page when the previous
// section asked for a break after itself.
func sectionStart(sections []assembler.Section, i int) string {
	if i == 0 || sections[i-1].PageBreakAfter {
		return "nextPage"
	}
	return "continuous"
}

func sectPr(start string) string {
	return fmt.Sprintf(`<w:sectPr><w:footerReference w:type="default" r:id="%s"/><w:type w:val="%s"/>`+
		`<w:pgSz w:w="%d" w:h="%d"/>`+
		`<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="708" w:footer="708" w:gutter="0"/>`+
		`<w:cols w:space="708"/><w:docGrid w:linePitch="360"/></w:sectPr>`,
		footerRelID, start, pageWidth, pageHeight, marginTopBt, marginSide, marginTopBt, marginSide)
}

func bookmarkName(id string) string {
	return "sec_" + strings.NewReplacer("-", "_", " ", "_").Replace(id)
}

func (w *bodyWriter) section(index int, s assembler.Section) {
	style := "Heading1"
	if index == 0 {
		style = "Title"
	}
	fmt.Fprintf(&w.buf, `<w:p><w:pPr><w:pStyle w:val="%s"/></w:pPr><w:bookmarkStart w:id="%d" w:name="%s"/>`,
		style, index, bookmarkName(s.ID))
	w.run(s.Title, "")
	fmt.Fprintf(&w.buf, `<w:bookmarkEnd w:id="%d"/></w:p>`, index)

	for _, b := range s.Blocks {
		w.block(b)
	}
}

func (w *bodyWriter) block(b assembler.Block) {
	switch b.Kind {
	case assembler.BlockField:
		w.buf.WriteString(`<w:p><w:pPr><w:pStyle w:val="FieldLine"/></w:pPr>`)
		w.run(b.Label+": ", `<w:b/>`)
		w.run(b.Text, "")
		w.buf.WriteString(`</w:p>`)
	case assembler.BlockList:
		w.paragraph("ListHeading", b.Label, "")
		for _, item := range b.Items {
			w.paragraph("ListBullet", "• "+item, "")
		}
		if len(b.Items) == 0 && b.Text != "" {
			w.paragraph("BodyText", b.Text, `<w:i/>`)
		}
	case assembler.BlockTable:
		if b.Table != nil {
			w.table(b.Table)
		}
	case assembler.BlockPhotos:
		for _, g := range b.Photos {
			w.photoGroup(g)
		}
	case assembler.BlockStamp:
		w.paragraph("BuildStamp", b.Text, "")
	default:
		w.paragraph("BodyText", b.Text, "")
	}
}

func (w *bodyWriter) paragraph(style, text, runProps string) {
	fmt.Fprintf(&w.buf, `<w:p><w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	w.run(text, runProps)
	w.buf.WriteString(`</w:p>`)
}

func (w *bodyWriter) run(text, runProps string) {
	w.buf.WriteString(`<w:r>`)
	if runProps != "" {
		w.buf.WriteString(`<w:rPr>` + runProps + `</w:rPr>`)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			w.buf.WriteString(`<w:br/>`)
		}
		w.buf.WriteString(`<w:t xml:space="preserve">`)
		escape(&w.buf, line)
		w.buf.WriteString(`</w:t>`)
	}
	w.buf.WriteString(`</w:r>`)
}

func escape(buf *bytes.Buffer, s string) {
	// EscapeText only fails on writer errors; bytes.Buffer never returns one.
	_ = xml.EscapeText(buf, []byte(s))
}

func columnWidths(t *assembler.Table) []int {
	cols := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return nil
	}
	weights := make([]int, cols)
	total := 0
	for i := range weights {
		weights[i] = 1
		if i < len(t.Widths) && t.Widths[i] > 0 {
			weights[i] = t.Widths[i]
		}
		total += weights[i]
	}
	widths := make([]int, cols)
	used := 0
	for i, wt := range weights {
		widths[i] = textWidth * wt / total
		used += widths[i]
	}
	widths[cols-1] += textWidth - used
	return widths
}

func (w *bodyWriter) table(t *assembler.Table) {
	widths := columnWidths(t)
	if widths == nil {
		return
	}
	if t.Caption != "" {
		w.paragraph("Caption", t.Caption, "")
	}
	w.buf.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="5000" w:type="pct"/>` +
		`<w:tblLayout w:type="fixed"/><w:tblLook w:val="04A0" w:firstRow="1" w:lastRow="0" w:firstColumn="1" w:lastColumn="0" w:noHBand="0" w:noVBand="1"/></w:tblPr><w:tblGrid>`)
	for _, cw := range widths {
		fmt.Fprintf(&w.buf, `<w:gridCol w:w="%d"/>`, cw)
	}
	w.buf.WriteString(`</w:tblGrid>`)

	if len(t.Header) > 0 {
		w.row(t.Header, widths, true)
	}
	for _, r := range t.Rows {
		w.row(r, widths, false)
	}
	w.buf.WriteString(`</w:tbl>`)
	// Word merges adjacent tables without a paragraph between them.
	w.buf.WriteString(`<w:p/>`)
}

func (w *bodyWriter) row(cells []string, widths []int, header bool) {
	w.buf.WriteString(`<w:tr>`)
	if header {
		w.buf.WriteString(`<w:trPr><w:tblHeader/></w:trPr>`)
	}
	for i, cw := range widths {
		text := ""
		if i < len(cells) {
			text = cells[i]
		}
		fmt.Fprintf(&w.buf, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/>`, cw)
		if header {
			w.buf.WriteString(`<w:shd w:val="clear" w:color="auto" w:fill="C00000"/>`)
		}
		w.buf.WriteString(`</w:tcPr><w:p><w:pPr><w:pStyle w:val="TableText"/></w:pPr>`)
		if header {
			w.run(text, `<w:b/><w:color w:val="FFFFFF"/>`)
		} else {
			w.run(text, "")
		}
		w.buf.WriteString(`</w:p></w:tc>`)
	}
	w.buf.WriteString(`</w:tr>`)
}

func (w *bodyWriter) photoGroup(g assembler.PhotoGroup) {
	w.paragraph("Heading2", assembler.PlaceholderTitle(g.Placeholder), "")
	fetched := map[string]models.Photo{}
	for _, p := range w.photos[g.Placeholder] {
		fetched[p.Path] = p
	}
	for _, a := range g.Assets {
		p, ok := fetched[a.Path]
		if !ok || !w.image(p) {
			w.paragraph("BodyText", "Photograph not embedded: "+a.Filename, `<w:i/>`)
			continue
		}
		w.paragraph("Caption", a.Filename, "")
	}
}

var imageTypes = map[string]struct{ ext, contentType string }{
	"jpeg": {"jpeg", "image/jpeg"},
	"png":  {"png", "image/png"},
	"gif":  {"gif", "image/gif"},
}

// image writes an inline drawing for p. It reports false when the bytes are
// not a decodable image.
func (w *bodyWriter) image(p models.Photo) bool {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return false
	}
	kind, ok := imageTypes[format]
	if !ok {
		return false
	}

	w.drawings++
	id := w.drawings
	m := mediaPart{
		relID:       fmt.Sprintf("rIdImage%d", id),
		name:        fmt.Sprintf("image%d.%s", id, kind.ext),
		ext:         kind.ext,
		contentType: kind.contentType,
		data:        p.Data,
	}
	w.media = append(w.media, m)

	cx, cy := imageExtent(cfg.Width, cfg.Height)
	w.buf.WriteString(`<w:p><w:pPr><w:pStyle w:val="Photo"/></w:pPr><w:r><w:drawing>`)
	fmt.Fprintf(&w.buf, `<wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="%d" cy="%d"/>`, cx, cy)
	fmt.Fprintf(&w.buf, `<wp:docPr id="%d" name="Picture %d" descr="`, id, id)
	escape(&w.buf, p.Filename)
	w.buf.WriteString(`"/><wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>`)
	w.buf.WriteString(`<a:graphic><a:graphicData uri="` + nsPic + `"><pic:pic>`)
	fmt.Fprintf(&w.buf, `<pic:nvPicPr><pic:cNvPr id="%d" name="`, id)
	escape(&w.buf, p.Filename)
	w.buf.WriteString(`"/><pic:cNvPicPr/></pic:nvPicPr>`)
	fmt.Fprintf(&w.buf, `<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`, m.relID)
	fmt.Fprintf(&w.buf, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`, cx, cy)
	w.buf.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`)
	return true
}

func imageExtent(width, height int) (int64, int64) {
	cx := int64(width) * emuPerPixel
	cy := int64(height) * emuPerPixel
	if cx > maxImageWidth {
		cy = cy * maxImageWidth / cx
		cx = maxImageWidth
	}
	if cy > maxImageHeight {
		cx = cx * maxImageHeight / cy
		cy = maxImageHeight
	}
	return cx, cy
}
