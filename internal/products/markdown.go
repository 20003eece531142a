package products

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Raw HTML in descriptions is escaped; only markdown is rendered.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// RenderMarkdown converts markdown to an HTML fragment.
func RenderMarkdown(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// Render fills the HTML fields of p and its firmware.
func (p *Product) Render() error {
	var err error
	if p.DescriptionHTML, err = RenderMarkdown(p.Description); err != nil {
		return err
	}
	for i := range p.Firmware {
		if err := p.Firmware[i].Render(); err != nil {
			return err
		}
	}
	return nil
}

// Render fills f.NotesHTML.
func (f *Firmware) Render() error {
	var err error
	f.NotesHTML, err = RenderMarkdown(f.ReleaseNotes)
	return err
}
