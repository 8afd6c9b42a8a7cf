// Package markup renders highlight Markdown into the HTML stored in Anki fields.
package markup

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to Anki field HTML.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with tables, footnotes, definition lists,
// strikethrough and hard line breaks enabled. Void elements are written in
// XHTML form (<br />) as existing decks store them. Raw HTML passes through.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Footnote,
				extension.DefinitionList,
				extension.Strikethrough,
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
				html.WithUnsafe(),
			),
		),
	}
}

// Render converts src. Empty or blank input renders to "".
func (r *Renderer) Render(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	// Stored values never carry the trailing newline.
	return strings.TrimRight(buf.String(), "\n"), nil
}
