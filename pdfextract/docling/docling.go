// Package docling implements pdfextract.Extractor by shelling out to a
// `docling` subprocess and streaming its output as line-delimited JSON
// (spec.md §6), for layout-aware extraction (tables, figures, reading
// order) that pdfextract/native cannot do in-process. Grounded on
// `rag/store/falkordb_internal.go`'s subprocess/stream-decode pattern
// generalized from a Redis RESP connection to an `os/exec` pipe, and on
// `ingestion.Pipeline`'s context-cancellation-aware stage shape.
package docling

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/pdfextract"
)

// Extractor invokes an external `docling` CLI and decodes its
// line-delimited JSON page stream.
type Extractor struct {
	// BinaryPath is the docling executable; defaults to "docling" on PATH.
	BinaryPath string
	// ExtraArgs are appended after the fixed "--to json <path>" arguments.
	ExtraArgs []string
}

// New constructs a docling Extractor using the given binary path, or
// "docling" from PATH if path is empty.
func New(binaryPath string) Extractor {
	if binaryPath == "" {
		binaryPath = "docling"
	}
	return Extractor{BinaryPath: binaryPath}
}

type doclinePage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Extract runs `docling --to json <path>` and decodes each line of its
// stdout as one doclinePage.
func (e Extractor) Extract(ctx context.Context, path string) (pdfextract.Document, error) {
	args := append([]string{"--to", "json", path}, e.ExtraArgs...)
	cmd := exec.CommandContext(ctx, e.BinaryPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return pdfextract.Document{}, kinderr.Wrap(kinderr.Fatal, err, "pdfextract/docling: attach stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return pdfextract.Document{}, kinderr.Wrap(kinderr.TransientIO, err, "pdfextract/docling: start subprocess")
	}

	doc := pdfextract.Document{SourcePath: path}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var page doclinePage
		if err := json.Unmarshal(line, &page); err != nil {
			continue // a single malformed line doesn't fail the whole document
		}
		doc.Pages = append(doc.Pages, pdfextract.Page{Number: page.PageNumber, Text: page.Text})
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return pdfextract.Document{}, kinderr.Wrap(kinderr.TransientIO, err, "pdfextract/docling: read subprocess output")
	}

	if err := cmd.Wait(); err != nil {
		return pdfextract.Document{}, kinderr.Wrap(kinderr.TransientIO, err, "pdfextract/docling: subprocess exited with error")
	}

	doc.PageCount = len(doc.Pages)
	return doc, nil
}
