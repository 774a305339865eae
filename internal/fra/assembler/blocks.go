// Package assembler builds the section content shared by the JSON view and
// the OOXML document. Renderers only lay blocks out; every value they print
// is decided here.
package assembler

import (
	"fmt"
	"time"

	"fra-engine/internal/models"
)

type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockField     BlockKind = "field"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
	BlockPhotos    BlockKind = "photos"
	BlockStamp     BlockKind = "stamp"
)

// Block is one unit of section content.
type Block struct {
	Kind   BlockKind    `json:"kind"`
	Label  string       `json:"label,omitempty"`
	Text   string       `json:"text,omitempty"`
	Items  []string     `json:"items,omitempty"`
	Table  *Table       `json:"table,omitempty"`
	Photos []PhotoGroup `json:"photos,omitempty"`
}

type Table struct {
	Caption string     `json:"caption"`
	Header  []string   `json:"header"`
	Rows    [][]string `json:"rows"`
	// Widths are relative column weights.
	Widths []int `json:"widths,omitempty"`
}

type PhotoGroup struct {
	Placeholder string         `json:"placeholder"`
	Assets      []models.Asset `json:"assets"`
}

// Section is an emitted section with its content.
type Section struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	PageBreakAfter bool    `json:"pageBreakAfter"`
	Blocks         []Block `json:"blocks"`
}

// BuildStamp identifies the run that produced a rendition.
type BuildStamp struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Version     string    `json:"version"`
	BuildID     string    `json:"buildId"`
	InstanceID  string    `json:"instanceId"`
}

func (s BuildStamp) String() string {
	return fmt.Sprintf("Generated: %s | Build: %s+%s | Instance: %s",
		s.GeneratedAt.UTC().Format(time.RFC3339), s.Version, s.BuildID, s.InstanceID)
}

const (
	notRecorded  = "Not recorded"
	noneRecorded = "None recorded"
)

func field(label string, value *string) Block {
	v := notRecorded
	if value != nil && *value != "" {
		v = *value
	}
	return Block{Kind: BlockField, Label: label, Text: v}
}

func fieldText(label, value string) Block {
	if value == "" {
		value = notRecorded
	}
	return Block{Kind: BlockField, Label: label, Text: value}
}

func paragraph(text string) Block {
	return Block{Kind: BlockParagraph, Text: text}
}

func list(label string, items []string) Block {
	b := Block{Kind: BlockList, Label: label, Items: append([]string{}, items...)}
	if len(items) == 0 {
		b.Text = noneRecorded
	}
	return b
}

func table(caption string, header []string, widths []int, rows [][]string) Block {
	return Block{Kind: BlockTable, Table: &Table{Caption: caption, Header: header, Widths: widths, Rows: rows}}
}
