package pdf

import (
	"errors"
	"testing"
)

// TestExtractPages_BothParsersFail verifies that garbage input fails with
// ErrExtractionFailed after both parsers have been tried.
func TestExtractPages_BothParsersFail(t *testing.T) {
	_, err := ExtractPages([]byte("not a pdf at all"))

	if err == nil {
		t.Fatal("Expected error for non-PDF input")
	}
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Expected ErrExtractionFailed, got %v", err)
	}
}

// TestExtractPages_Empty verifies empty input is rejected, not parsed.
func TestExtractPages_Empty(t *testing.T) {
	_, err := ExtractPages(nil)

	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Expected ErrExtractionFailed for empty input, got %v", err)
	}
}

// TestFullText verifies page text joining skips empty pages.
func TestFullText(t *testing.T) {
	pages := []Page{
		{Text: "first page", PageNumber: 1},
		{Text: "", PageNumber: 2},
		{Text: "third page", PageNumber: 3},
	}

	got := FullText(pages)
	want := "first page third page"
	if got != want {
		t.Errorf("FullText: expected %q, got %q", want, got)
	}
}
