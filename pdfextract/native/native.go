// Package native implements pdfextract.Extractor in-process via
// github.com/ledongthuc/pdf, already an indirect dependency of the teacher
// through langchaingo's document loaders (SPEC_FULL.md §6), promoted here
// to direct use. Grounded on that library's documented page-by-page
// GetPlainText API; no teacher code loads PDFs directly, so the call
// pattern follows the library's own README usage rather than an
// in-pack example.
package native

import (
	"context"

	"github.com/ledongthuc/pdf"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/pdfextract"
)

// Extractor reads PDF text without shelling out to an external process.
type Extractor struct{}

// New constructs a native Extractor.
func New() Extractor { return Extractor{} }

// Extract reads every page of the PDF at path and returns its plain text.
func (Extractor) Extract(ctx context.Context, path string) (pdfextract.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return pdfextract.Document{}, kinderr.Wrap(kinderr.TransientIO, err, "pdfextract/native: open %q", path)
	}
	defer f.Close()

	numPages := reader.NumPage()
	doc := pdfextract.Document{SourcePath: path, PageCount: numPages}

	for i := 1; i <= numPages; i++ {
		select {
		case <-ctx.Done():
			return pdfextract.Document{}, kinderr.Wrap(kinderr.Timeout, ctx.Err(), "pdfextract/native: cancelled at page %d", i)
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page shouldn't fail the whole document;
			// continue with what text was extracted so far.
			continue
		}
		doc.Pages = append(doc.Pages, pdfextract.Page{Number: i, Text: text})
	}

	return doc, nil
}
