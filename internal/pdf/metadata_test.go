package pdf

import (
	"strings"
	"testing"
)

// TestInferMetadata_ManufacturerFromFilename verifies manufacturer detection
// when the signal only exists in the filename.
func TestInferMetadata_ManufacturerFromFilename(t *testing.T) {
	meta := InferMetadata("Moog-Minimoog-Manual.pdf", "")

	if meta.Manufacturer != "Moog" {
		t.Errorf("Expected manufacturer 'Moog', got %q", meta.Manufacturer)
	}
}

// TestInferMetadata_FromText verifies manufacturer and instrument type
// detection from leading document text.
func TestInferMetadata_FromText(t *testing.T) {
	meta := InferMetadata("manual.pdf", "This is a Roland Jupiter-8 synthesizer manual")

	if meta.Manufacturer != "Roland" {
		t.Errorf("Expected manufacturer 'Roland', got %q", meta.Manufacturer)
	}
	if meta.InstrumentType != "synthesizer" {
		t.Errorf("Expected instrument type 'synthesizer', got %q", meta.InstrumentType)
	}
}

// TestInferMetadata_Model verifies model extraction from a filename.
func TestInferMetadata_Model(t *testing.T) {
	meta := InferMetadata("JP-8000-manual.pdf", "")

	if !strings.Contains(meta.Model, "8000") {
		t.Errorf("Expected model containing '8000', got %q", meta.Model)
	}
}

// TestInferMetadata_NoSignal verifies that absent signals yield empty fields
// and "unknown" type rather than errors.
func TestInferMetadata_NoSignal(t *testing.T) {
	meta := InferMetadata("scan.pdf", "no recognizable vendor here")

	if meta.Manufacturer != "" {
		t.Errorf("Expected empty manufacturer, got %q", meta.Manufacturer)
	}
	if meta.InstrumentType != "unknown" {
		t.Errorf("Expected instrument type 'unknown', got %q", meta.InstrumentType)
	}
}

// TestInferMetadata_DisplayName verifies the default display name strips the
// PDF suffix in either case.
func TestInferMetadata_DisplayName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"Minimoog-Manual.pdf", "Minimoog-Manual"},
		{"OLD-SCAN.PDF", "OLD-SCAN"},
		{"notes.txt", "notes.txt"},
	}

	for _, tt := range tests {
		meta := InferMetadata(tt.filename, "")
		if meta.DisplayName != tt.want {
			t.Errorf("%s: expected display name %q, got %q", tt.filename, tt.want, meta.DisplayName)
		}
	}
}

// TestInferMetadata_TextBeyondWindow verifies that signals past the scan
// windows are ignored.
func TestInferMetadata_TextBeyondWindow(t *testing.T) {
	text := strings.Repeat("x", 1200) + " roland synthesizer"
	meta := InferMetadata("manual.pdf", text)

	if meta.Manufacturer != "" {
		t.Errorf("Expected empty manufacturer for signal past 1000 chars, got %q", meta.Manufacturer)
	}
}

// TestInferMetadata_MultiWordManufacturer verifies title casing of multi-word
// manufacturer names.
func TestInferMetadata_MultiWordManufacturer(t *testing.T) {
	meta := InferMetadata("rings.pdf", "Thanks for purchasing this mutable instruments module")

	if meta.Manufacturer != "Mutable Instruments" {
		t.Errorf("Expected 'Mutable Instruments', got %q", meta.Manufacturer)
	}
}
