package pdf

import (
	"regexp"
	"strings"
)

// knownManufacturers is scanned in order against filename + leading text.
// First substring hit wins.
var knownManufacturers = []string{
	"moog", "roland", "korg", "yamaha", "nord", "dave smith", "sequential",
	"arturia", "novation", "akai", "elektron", "teenage engineering",
	"behringer", "doepfer", "make noise", "mutable instruments",
	"intellijel", "expert sleepers", "focusrite", "presonus",
}

// instrumentKeywords maps an instrument type to the keywords that indicate it.
// Iteration follows instrumentTypeOrder so classification is deterministic.
var instrumentKeywords = map[string][]string{
	"synthesizer":  {"synthesizer", "synth", "moog", "prophet", "juno", "jupiter", "matrix"},
	"keyboard":     {"keyboard", "piano", "electric piano", "stage piano", "workstation"},
	"drum_machine": {"drum machine", "rhythm", "beats", "tr-", "sp-", "mpc"},
	"mixer":        {"mixer", "mixing", "console", "channels", "eq", "effects"},
	"interface":    {"audio interface", "usb interface", "firewire", "thunderbolt"},
	"controller":   {"midi controller", "control surface", "launchpad", "push"},
	"modular":      {"modular", "eurorack", "cv", "gate", "patch", "module"},
	"sampler":      {"sampler", "sampling", "samples", "multisampling"},
}

var instrumentTypeOrder = []string{
	"synthesizer", "keyboard", "drum_machine", "mixer",
	"interface", "controller", "modular", "sampler",
}

// modelPatterns is an ordered ladder; earlier patterns are more specific.
var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\w+[-_]?\d+[a-zA-Z]*)`), // TR-808, JP-8000, SH101
	regexp.MustCompile(`(model \w+)`),
	regexp.MustCompile(`(\w+ \d+)`),
	regexp.MustCompile(`(mk\s*\d+)`),
}

// InferMetadata derives manual-level metadata from the filename and full text.
// It is heuristic and total: absent signals yield empty fields (or "unknown"
// for the instrument type), never an error.
func InferMetadata(filename, fullText string) ManualMetadata {
	return ManualMetadata{
		Filename:       filename,
		DisplayName:    defaultDisplayName(filename),
		Manufacturer:   inferManufacturer(filename, fullText),
		Model:          inferModel(filename, fullText),
		InstrumentType: inferInstrumentType(filename, fullText),
		Language:       "english",
	}
}

func defaultDisplayName(filename string) string {
	name := strings.TrimSuffix(filename, ".pdf")
	return strings.TrimSuffix(name, ".PDF")
}

func inferManufacturer(filename, text string) string {
	combined := strings.ToLower(filename + " " + head(text, 1000))
	for _, m := range knownManufacturers {
		if strings.Contains(combined, m) {
			return titleCase(m)
		}
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func inferModel(filename, text string) string {
	cleaned := strings.ToLower(filename)
	cleaned = strings.TrimSuffix(cleaned, ".pdf")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	cleaned = strings.ReplaceAll(cleaned, "-", " ")

	for _, pattern := range modelPatterns {
		if m := pattern.FindStringSubmatch(cleaned); m != nil {
			return strings.ToUpper(m[1])
		}
	}

	start := strings.ToLower(head(text, 500))
	for _, pattern := range modelPatterns {
		if m := pattern.FindStringSubmatch(start); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

func inferInstrumentType(filename, text string) string {
	combined := strings.ToLower(filename + " " + head(text, 1000))
	for _, instrumentType := range instrumentTypeOrder {
		for _, keyword := range instrumentKeywords[instrumentType] {
			if strings.Contains(combined, keyword) {
				return instrumentType
			}
		}
	}
	return "unknown"
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
