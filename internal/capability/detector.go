package capability

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bull/gearbook/internal/pdf"
)

const (
	// confidenceThreshold is the minimum score for a module type to appear in
	// detector output.
	confidenceThreshold = 0.2
	// maxSnippets bounds the stored text evidence per module type.
	maxSnippets = 3
	// snippetContext is the number of characters kept on each side of a
	// pattern match.
	snippetContext = 50
)

// ModuleCapability is the detected presence of one module type in a manual.
type ModuleCapability struct {
	ModuleType       string
	Confidence       float64 // in [0,1]
	DetectedFeatures []string
	PageNumbers      []int // sorted, distinct
	TextEvidence     []string
}

// ModuleInventoryItem aggregates everything detected for one manual. It is
// persisted as a single searchable record, not per chunk.
type ModuleInventoryItem struct {
	Filename       string
	DisplayName    string
	Manufacturer   string
	Model          string
	InstrumentType string
	TotalPages     int
	Capabilities   []ModuleCapability
}

// Detector scans chunks for module-type evidence. All detection patterns are
// compiled once at construction.
type Detector struct {
	taxonomy  *Taxonomy
	typeNames []string
	patterns  map[string][]*regexp.Regexp
}

// NewDetector compiles the taxonomy's detection patterns and returns a
// ready-to-use detector.
func NewDetector(taxonomy *Taxonomy) (*Detector, error) {
	patterns := make(map[string][]*regexp.Regexp, len(taxonomy.ModuleTypes))
	for name, moduleType := range taxonomy.ModuleTypes {
		compiled := make([]*regexp.Regexp, 0, len(moduleType.DetectionPatterns))
		for _, pattern := range moduleType.DetectionPatterns {
			re, err := regexp.Compile(strings.ToLower(pattern))
			if err != nil {
				return nil, fmt.Errorf("module type %s: pattern %q: %w", name, pattern, err)
			}
			compiled = append(compiled, re)
		}
		patterns[name] = compiled
	}
	return &Detector{
		taxonomy:  taxonomy,
		typeNames: taxonomy.TypeNames(),
		patterns:  patterns,
	}, nil
}

type evidence struct {
	matches  int
	pages    map[int]struct{}
	features map[string]struct{}
	snippets []string
}

// Detect scans all chunks and aggregates per-module-type evidence into
// confidence-scored capabilities. A module type with zero pattern matches is
// never reported, regardless of specification hits.
func (d *Detector) Detect(chunks []pdf.Chunk, meta pdf.ManualMetadata) ModuleInventoryItem {
	acc := make(map[string]*evidence, len(d.typeNames))
	for _, name := range d.typeNames {
		acc[name] = &evidence{
			pages:    make(map[int]struct{}),
			features: make(map[string]struct{}),
		}
	}

	for _, chunk := range chunks {
		d.scanChunk(chunk, acc)
	}

	item := ModuleInventoryItem{
		Filename:       meta.Filename,
		DisplayName:    meta.DisplayName,
		Manufacturer:   orUnknown(meta.Manufacturer),
		Model:          orUnknown(meta.Model),
		InstrumentType: meta.InstrumentType,
		TotalPages:     meta.TotalPages,
	}
	if item.InstrumentType == "" {
		item.InstrumentType = "unknown"
	}

	for _, name := range d.typeNames {
		if cap, ok := scoreEvidence(name, acc[name]); ok {
			item.Capabilities = append(item.Capabilities, cap)
		}
	}

	sort.SliceStable(item.Capabilities, func(i, j int) bool {
		if item.Capabilities[i].Confidence != item.Capabilities[j].Confidence {
			return item.Capabilities[i].Confidence > item.Capabilities[j].Confidence
		}
		return item.Capabilities[i].ModuleType < item.Capabilities[j].ModuleType
	})

	return item
}

func (d *Detector) scanChunk(chunk pdf.Chunk, acc map[string]*evidence) {
	text := strings.ToLower(chunk.Content)

	for _, name := range d.typeNames {
		ev := acc[name]

		for _, re := range d.patterns[name] {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			ev.matches++
			ev.pages[chunk.PageNumber] = struct{}{}
			ev.addSnippet(contextSnippet(text, loc))
		}

		for _, spec := range d.taxonomy.ModuleTypes[name].Specifications {
			if strings.Contains(text, strings.ToLower(spec.Name)) {
				ev.features[spec.Name] = struct{}{}
				continue
			}
			for _, option := range spec.Options {
				if strings.Contains(text, strings.ToLower(option)) {
					ev.features[spec.Name] = struct{}{}
					break
				}
			}
		}
	}
}

func (ev *evidence) addSnippet(snippet string) {
	if snippet == "" || len(ev.snippets) >= maxSnippets {
		return
	}
	for _, existing := range ev.snippets {
		if existing == snippet {
			return
		}
	}
	ev.snippets = append(ev.snippets, snippet)
}

// contextSnippet returns the match with snippetContext bytes of surrounding
// text, widened to rune boundaries so multi-byte text stays valid UTF-8.
func contextSnippet(text string, loc []int) string {
	start := loc[0] - snippetContext
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := loc[1] + snippetContext
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}

// scoreEvidence turns accumulated evidence into a capability. Each dimension
// is capped so breadth across pages beats raw repetition.
func scoreEvidence(moduleType string, ev *evidence) (ModuleCapability, bool) {
	if ev.matches == 0 {
		return ModuleCapability{}, false
	}

	matchScore := capAt(float64(ev.matches)/5.0, 1.0)
	pageScore := capAt(float64(len(ev.pages))/3.0, 1.0)
	featureScore := capAt(float64(len(ev.features))/3.0, 1.0)
	confidence := 0.5*matchScore + 0.3*pageScore + 0.2*featureScore

	if confidence < confidenceThreshold {
		return ModuleCapability{}, false
	}

	return ModuleCapability{
		ModuleType:       moduleType,
		Confidence:       confidence,
		DetectedFeatures: sortedKeys(ev.features),
		PageNumbers:      sortedPages(ev.pages),
		TextEvidence:     ev.snippets,
	}, true
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedPages(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// EmbeddingText renders an inventory item as text optimized for semantic
// capability search.
func (d *Detector) EmbeddingText(item ModuleInventoryItem) string {
	parts := []string{
		"Manual: " + item.DisplayName,
		"Manufacturer: " + item.Manufacturer,
		"Model: " + item.Model,
		"Capabilities:",
	}

	for _, cap := range item.Capabilities {
		info := d.taxonomy.ModuleTypes[cap.ModuleType]
		name := info.FullName
		if name == "" {
			name = cap.ModuleType
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, info.Description))
		if len(cap.DetectedFeatures) > 0 {
			parts = append(parts, "  Features: "+strings.Join(cap.DetectedFeatures, ", "))
		}
		if len(cap.TextEvidence) > 0 {
			parts = append(parts, "  Context: "+cap.TextEvidence[0])
		}
	}

	return strings.Join(parts, "\n")
}

// Summary renders a short human-readable report of detected modules.
func (d *Detector) Summary(item ModuleInventoryItem) string {
	if len(item.Capabilities) == 0 {
		return item.DisplayName + ": no specific module types detected"
	}

	lines := []string{item.DisplayName + " modules:"}
	for _, cap := range item.Capabilities {
		info := d.taxonomy.ModuleTypes[cap.ModuleType]
		name := info.FullName
		if name == "" {
			name = strings.ToUpper(cap.ModuleType)
		}
		features := "basic"
		if len(cap.DetectedFeatures) > 0 {
			features = strings.Join(cap.DetectedFeatures, ", ")
		}
		lines = append(lines, fmt.Sprintf("  - %s (%d%% confidence) - %s", name, int(cap.Confidence*100), features))
	}
	return strings.Join(lines, "\n")
}
