// Package pdfextract defines the shared PDF-text-extraction contract for
// ingestion (spec.md §6): `pdfextract/native` (in-process, on
// github.com/ledongthuc/pdf) and `pdfextract/docling` (subprocess over
// line-delimited JSON, for layout-aware extraction of tables/figures).
// Grounded on `llmclient.Client`'s "one small interface, multiple
// backends" shape.
package pdfextract

import "context"

// Page is one extracted page of a source PDF.
type Page struct {
	Number int
	Text   string
}

// Document is the full extraction result for one PDF.
type Document struct {
	Pages      []Page
	PageCount  int
	SourcePath string
}

// PlainText concatenates every page's text, separated by blank lines.
func (d Document) PlainText() string {
	out := ""
	for i, p := range d.Pages {
		if i > 0 {
			out += "\n\n"
		}
		out += p.Text
	}
	return out
}

// Extractor extracts text (and, for layout-aware backends, structure) from
// a PDF file.
type Extractor interface {
	Extract(ctx context.Context, path string) (Document, error)
}
