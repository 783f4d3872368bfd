package capability

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/gearbook/internal/pdf"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)
	det, err := NewDetector(tax)
	require.NoError(t, err)
	return det
}

func chunkOn(page int, content string) pdf.Chunk {
	return pdf.Chunk{Content: content, PageNumber: page}
}

func TestDefaultTaxonomy(t *testing.T) {
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)

	assert.Contains(t, tax.ModuleTypes, "oscillator")
	assert.Contains(t, tax.ModuleTypes, "filter")
	assert.Contains(t, tax.ModuleTypes, "envelope")

	osc := tax.ModuleTypes["oscillator"]
	assert.NotEmpty(t, osc.DetectionPatterns)
	assert.NotEmpty(t, osc.Specifications)
}

func TestDetect_OscillatorEvidence(t *testing.T) {
	det := newTestDetector(t)
	meta := pdf.ManualMetadata{Filename: "osc.pdf", DisplayName: "Test Osc", TotalPages: 12}

	chunks := []pdf.Chunk{
		chunkOn(3, "The VCO produces sawtooth and triangle waveforms."),
		chunkOn(4, "Tune the oscillator with the coarse knob. Hard sync is available."),
		chunkOn(7, "Each oscillator tracks volts per octave."),
	}

	item := det.Detect(chunks, meta)

	require.NotEmpty(t, item.Capabilities)
	top := item.Capabilities[0]
	assert.Equal(t, "oscillator", top.ModuleType)
	assert.Equal(t, []int{3, 4, 7}, top.PageNumbers)
	assert.Contains(t, top.DetectedFeatures, "waveforms")
	assert.Contains(t, top.DetectedFeatures, "sync")
	assert.NotEmpty(t, top.TextEvidence)
	assert.LessOrEqual(t, len(top.TextEvidence), 3)
	assert.Greater(t, top.Confidence, 0.2)
	assert.LessOrEqual(t, top.Confidence, 1.0)
}

// TestDetect_FeatureHitsAloneExcluded verifies that specification keyword
// hits without a single pattern match never produce a capability.
func TestDetect_FeatureHitsAloneExcluded(t *testing.T) {
	det := newTestDetector(t)

	// "attack, decay, sustain, release" are envelope spec options, but no
	// envelope detection pattern appears.
	chunks := []pdf.Chunk{
		chunkOn(1, "attack decay sustain release settings shape the contour"),
	}

	item := det.Detect(chunks, pdf.ManualMetadata{Filename: "x.pdf"})

	for _, cap := range item.Capabilities {
		assert.NotEqual(t, "envelope", cap.ModuleType)
	}
}

func TestDetect_NoEvidence(t *testing.T) {
	det := newTestDetector(t)

	item := det.Detect([]pdf.Chunk{
		chunkOn(1, "warranty and safety information for your appliance"),
	}, pdf.ManualMetadata{Filename: "x.pdf", DisplayName: "X"})

	assert.Empty(t, item.Capabilities)
	assert.Equal(t, "Unknown", item.Manufacturer)
	assert.Equal(t, "unknown", item.InstrumentType)
}

func TestDetect_SortedByConfidence(t *testing.T) {
	det := newTestDetector(t)

	// Heavy oscillator evidence across pages, light filter evidence.
	chunks := []pdf.Chunk{
		chunkOn(1, "the vco oscillator generates sawtooth waveforms with hard sync"),
		chunkOn(2, "oscillator tuning and octave range selection"),
		chunkOn(3, "vco linear fm input and pulse output"),
		chunkOn(9, "a low-pass filter section"),
	}

	item := det.Detect(chunks, pdf.ManualMetadata{Filename: "x.pdf"})

	require.GreaterOrEqual(t, len(item.Capabilities), 2)
	for i := 1; i < len(item.Capabilities); i++ {
		assert.GreaterOrEqual(t,
			item.Capabilities[i-1].Confidence,
			item.Capabilities[i].Confidence,
			"capabilities must be sorted descending by confidence")
	}
	assert.Equal(t, "oscillator", item.Capabilities[0].ModuleType)
}

// TestScoreEvidence_Monotonic verifies confidence grows in each evidence
// dimension independently and stays in [0,1].
func TestScoreEvidence_Monotonic(t *testing.T) {
	base := func() *evidence {
		return &evidence{
			matches:  2,
			pages:    map[int]struct{}{1: {}},
			features: map[string]struct{}{},
		}
	}
	score := func(ev *evidence) float64 {
		cap, ok := scoreEvidence("oscillator", ev)
		require.True(t, ok)
		return cap.Confidence
	}

	prev := score(base())
	for matches := 3; matches <= 8; matches++ {
		ev := base()
		ev.matches = matches
		got := score(ev)
		assert.GreaterOrEqual(t, got, prev, "confidence must not decrease with matches")
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}

	prev = score(base())
	for pages := 2; pages <= 6; pages++ {
		ev := base()
		for p := 1; p <= pages; p++ {
			ev.pages[p] = struct{}{}
		}
		got := score(ev)
		assert.GreaterOrEqual(t, got, prev, "confidence must not decrease with pages")
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}

	prev = score(base())
	for features := 1; features <= 5; features++ {
		ev := base()
		for f := 0; f < features; f++ {
			ev.features[strings.Repeat("f", f+1)] = struct{}{}
		}
		got := score(ev)
		assert.GreaterOrEqual(t, got, prev, "confidence must not decrease with features")
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

// TestScoreEvidence_Threshold verifies evidence clearly above the threshold
// is included and zero-match evidence never is.
func TestScoreEvidence_Threshold(t *testing.T) {
	ev := &evidence{
		matches:  2,
		pages:    map[int]struct{}{5: {}},
		features: map[string]struct{}{},
	}

	cap, ok := scoreEvidence("filter", ev)
	require.True(t, ok)
	assert.InDelta(t, 0.3, cap.Confidence, 1e-9)

	_, ok = scoreEvidence("filter", &evidence{
		matches:  0,
		pages:    map[int]struct{}{},
		features: map[string]struct{}{"cutoff": {}, "resonance": {}},
	})
	assert.False(t, ok, "zero matches must never produce a capability")
}

// TestScoreEvidence_Saturation verifies the caps: evidence beyond 5 matches,
// 3 pages and 3 features cannot push confidence above 1.0.
func TestScoreEvidence_Saturation(t *testing.T) {
	ev := &evidence{
		matches: 50,
		pages:   map[int]struct{}{},
		features: map[string]struct{}{
			"a": {}, "b": {}, "c": {}, "d": {}, "e": {},
		},
	}
	for p := 1; p <= 20; p++ {
		ev.pages[p] = struct{}{}
	}

	cap, ok := scoreEvidence("oscillator", ev)
	require.True(t, ok)
	assert.InDelta(t, 1.0, cap.Confidence, 1e-9)
}

func TestEvidence_SnippetDedupAndCap(t *testing.T) {
	ev := &evidence{}
	ev.addSnippet("same snippet")
	ev.addSnippet("same snippet")
	ev.addSnippet("second")
	ev.addSnippet("third")
	ev.addSnippet("fourth")

	assert.Equal(t, []string{"same snippet", "second", "third"}, ev.snippets)
}

func TestEmbeddingTextAndSummary(t *testing.T) {
	det := newTestDetector(t)
	meta := pdf.ManualMetadata{
		Filename:     "mother32.pdf",
		DisplayName:  "Mother-32",
		Manufacturer: "Moog",
		Model:        "MOTHER-32",
	}
	chunks := []pdf.Chunk{
		chunkOn(2, "the vco oscillator outputs sawtooth and pulse waveforms"),
		chunkOn(5, "a classic ladder filter with resonance control"),
	}

	item := det.Detect(chunks, meta)
	require.NotEmpty(t, item.Capabilities)

	text := det.EmbeddingText(item)
	assert.Contains(t, text, "Manual: Mother-32")
	assert.Contains(t, text, "Manufacturer: Moog")
	assert.Contains(t, text, "Voltage Controlled Oscillator")

	summary := det.Summary(item)
	assert.Contains(t, summary, "Mother-32 modules:")
	assert.Contains(t, summary, "% confidence")
}

func TestContextSnippet_RuneBoundaries(t *testing.T) {
	// 3-byte runes around the match put the ±50 byte window edges inside
	// runes; the snippet must still be valid UTF-8.
	text := strings.Repeat("音", 40) + "vco" + strings.Repeat("音", 40)
	idx := strings.Index(text, "vco")

	snippet := contextSnippet(text, []int{idx, idx + len("vco")})

	assert.True(t, utf8.ValidString(snippet))
	assert.Contains(t, snippet, "vco")
}

func TestDetect_MultibyteTextEvidence(t *testing.T) {
	det := newTestDetector(t)
	meta := pdf.ManualMetadata{Filename: "jp.pdf", DisplayName: "JP", TotalPages: 4}

	pad := strings.Repeat("発振器", 20)
	chunks := []pdf.Chunk{
		chunkOn(1, pad+" the vco waveform section "+pad),
		chunkOn(2, pad+" oscillator tuning "+pad),
	}

	item := det.Detect(chunks, meta)
	require.NotEmpty(t, item.Capabilities)

	for _, cap := range item.Capabilities {
		for _, snippet := range cap.TextEvidence {
			assert.True(t, utf8.ValidString(snippet), "snippet %q", snippet)
		}
	}
}
