// Package pdf turns raw manual PDFs into cleaned, metadata-tagged text chunks.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	dslipak "github.com/dslipak/pdf"
	ledongthuc "github.com/ledongthuc/pdf"
)

// ErrExtractionFailed indicates that both PDF parsers failed on a document.
// This is fatal for the upload and is not retried.
var ErrExtractionFailed = errors.New("pdf text extraction failed")

// ExtractPages extracts per-page text from a PDF byte stream.
//
// The primary parser (ledongthuc/pdf) handles most well-formed files; on
// failure the dslipak fork is tried, which tolerates some xref and stream
// damage the primary rejects. Pages that yield no text (image-only scans)
// are returned with empty text so page numbering stays aligned with the
// source document. If both parsers fail, the error wraps ErrExtractionFailed
// with both underlying causes.
func ExtractPages(data []byte) ([]Page, error) {
	pages, primaryErr := extractPrimary(data)
	if primaryErr == nil {
		return pages, nil
	}

	pages, fallbackErr := extractFallback(data)
	if fallbackErr == nil {
		return pages, nil
	}

	return nil, fmt.Errorf("%w: primary: %v; fallback: %v", ErrExtractionFailed, primaryErr, fallbackErr)
}

// extractPrimary parses with ledongthuc/pdf. The rsc.io/pdf lineage panics on
// some malformed files, so parsing runs under recover and converts the panic
// into a regular error for the fallback path.
func extractPrimary(data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		text, err := page.GetPlainText(nil)
		if err != nil {
			text = "" // image-only or damaged page, keep numbering aligned
		}
		pages = append(pages, Page{Text: strings.TrimSpace(text), PageNumber: i})
	}

	if len(pages) == 0 {
		return nil, errors.New("document has no pages")
	}
	return pages, nil
}

func extractFallback(data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	reader, err := dslipak.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, Page{Text: strings.TrimSpace(text), PageNumber: i})
	}

	if len(pages) == 0 {
		return nil, errors.New("document has no pages")
	}
	return pages, nil
}

// FullText joins all page text with single spaces, in page order. Used as the
// input for manual-level metadata inference.
func FullText(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, " ")
}
