// Package report renders analysis results as terminal tables, JSON, Markdown or HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"abfunnel/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects the output encoding
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name in any case; md is an alias of markdown
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatMarkdown, FormatHTML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", errors.ConfigInvalid(fmt.Sprintf("unknown output format %q", s))
}

// Section is one titled table of a document, with optional notes printed under it
type Section struct {
	Title  string
	Header table.Row
	Rows   []table.Row
	Notes  []string
}

// Document is what every renderer consumes. Payload is encoded as-is for JSON.
type Document struct {
	Title    string
	Sections []Section
	Payload  any
}

// Write renders doc to w in the requested format
func Write(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatText:
		return writeText(w, doc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc.Payload)
	case FormatMarkdown:
		_, err := io.WriteString(w, toMarkdown(doc))
		return err
	case FormatHTML:
		p := parser.NewWithExtensions(parser.CommonExtensions)
		r := html.NewRenderer(html.RendererOptions{
			Flags: html.CommonFlags | html.CompletePage,
			Title: doc.Title,
		})
		_, err := w.Write(markdown.ToHTML([]byte(toMarkdown(doc)), p, r))
		return err
	}
	return errors.ConfigInvalid(fmt.Sprintf("unknown output format %q", format))
}

func newTable(s Section) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	if len(s.Header) > 0 {
		t.AppendHeader(s.Header)
	}
	t.AppendRows(s.Rows)
	return t
}

func writeText(w io.Writer, doc Document) error {
	var b strings.Builder
	b.WriteString(doc.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len([]rune(doc.Title))))
	b.WriteString("\n")
	for _, s := range doc.Sections {
		b.WriteString("\n")
		b.WriteString(s.Title)
		b.WriteString("\n")
		if len(s.Rows) > 0 {
			b.WriteString(newTable(s).Render())
			b.WriteString("\n")
		}
		for _, n := range s.Notes {
			b.WriteString("  ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func toMarkdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", doc.Title)
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Title)
		if len(s.Rows) > 0 {
			b.WriteString(newTable(s).RenderMarkdown())
			b.WriteString("\n")
		}
		if len(s.Notes) > 0 {
			b.WriteString("\n")
			for _, n := range s.Notes {
				fmt.Fprintf(&b, "- %s\n", n)
			}
		}
	}
	return b.String()
}
