package pdf

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkSize bounds chunk content length in characters.
	DefaultMaxChunkSize = 1000
	// DefaultOverlap is the trailing context re-included between consecutive
	// chunks of the same page.
	DefaultOverlap = 200

	// minPageChars is the cleaned-text threshold below which a page is treated
	// as a blank or cover page and skipped.
	minPageChars = 50
)

// sectionKeywords maps a section type to its indicator keywords. Iteration
// follows sectionTypeOrder; the first type with any keyword hit wins.
var sectionKeywords = map[string][]string{
	"specifications":  {"specifications", "specs", "technical data", "dimensions"},
	"connections":     {"connections", "inputs", "outputs", "midi", "cv", "audio"},
	"setup":           {"setup", "installation", "getting started", "quick start"},
	"operation":       {"operation", "using", "controls", "interface", "display"},
	"programming":     {"programming", "editing", "presets", "patches", "sounds"},
	"troubleshooting": {"troubleshooting", "problems", "issues", "faq"},
}

var sectionTypeOrder = []string{
	"specifications", "connections", "setup",
	"operation", "programming", "troubleshooting",
}

// ChunkPages splits cleaned page text into bounded, overlapping chunks and
// classifies each chunk's section type. Chunk indexes increase monotonically
// across the whole manual.
func ChunkPages(pages []Page, meta ManualMetadata, maxChunkSize, overlap int) []Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = DefaultOverlap
		if overlap >= maxChunkSize {
			overlap = maxChunkSize / 5
		}
	}

	var chunks []Chunk
	chunkIndex := 0

	for _, page := range pages {
		text := CleanText(page.Text)
		if len(text) < minPageChars {
			continue
		}

		for _, content := range splitWithOverlap(text, maxChunkSize, overlap) {
			chunks = append(chunks, Chunk{
				Content:     content,
				PageNumber:  page.PageNumber,
				ChunkIndex:  chunkIndex,
				SectionType: ClassifySection(content),
				Metadata:    meta,
			})
			chunkIndex++
		}
	}

	return chunks
}

// CleanText drops page-number artifact lines (length <= 3 or all digits) and
// collapses remaining whitespace to single spaces. It is a de-noising pass
// for printed-manual text, not general OCR cleanup.
func CleanText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || isAllDigits(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitWithOverlap cuts text into windows of at most maxSize bytes with
// overlap bytes of re-included trailing context. The cut prefers, inside
// the last 20% of the window, the last sentence terminator, then the last
// word boundary, and falls back to a hard cut backed off to a rune boundary
// so multi-byte text never splits mid-rune. The next start is always
// strictly after the previous one.
func splitWithOverlap(text string, maxSize, overlap int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var out []string
	start := 0

	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}

		window := text[start:end]
		boundary := len(window) * 4 / 5

		if i := strings.LastIndexAny(window, ".!?"); i > boundary {
			end = start + i + 1
		} else if i := strings.LastIndexByte(window, ' '); i > boundary {
			end = start + i
		} else {
			end = prevRuneStart(text, end)
		}
		if end <= start {
			// a single rune wider than the window, take it whole
			_, size := utf8.DecodeRuneInString(text[start:])
			end = start + size
		}

		out = append(out, text[start:end])

		next := prevRuneStart(text, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return out
}

// prevRuneStart backs i off to the nearest rune boundary in s.
func prevRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// ClassifySection assigns a coarse section label to chunk text by keyword
// lookup. Returns the empty string when nothing matches.
func ClassifySection(text string) string {
	lower := strings.ToLower(text)
	for _, sectionType := range sectionTypeOrder {
		for _, keyword := range sectionKeywords[sectionType] {
			if strings.Contains(lower, keyword) {
				return sectionType
			}
		}
	}
	return ""
}
