// Package capability infers equipment-module facts from manual text.
package capability

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var embeddedTaxonomy []byte

// SpecField is a named specification with the literal option values that
// count as feature evidence when seen in chunk text.
type SpecField struct {
	Name    string   `yaml:"name"`
	Options []string `yaml:"options"`
}

// ModuleType describes one detectable equipment-module type.
type ModuleType struct {
	FullName          string      `yaml:"full_name"`
	Description       string      `yaml:"description"`
	DetectionPatterns []string    `yaml:"detection_patterns"`
	Specifications    []SpecField `yaml:"specifications"`
}

// Taxonomy is the full set of known module types.
type Taxonomy struct {
	ModuleTypes map[string]ModuleType `yaml:"module_types"`
}

// DefaultTaxonomy parses the taxonomy compiled into the binary.
func DefaultTaxonomy() (*Taxonomy, error) {
	return parseTaxonomy(embeddedTaxonomy)
}

// LoadTaxonomy reads a taxonomy from a YAML file, for deployments that extend
// or replace the built-in module set.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return parseTaxonomy(data)
}

func parseTaxonomy(data []byte) (*Taxonomy, error) {
	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(tax.ModuleTypes) == 0 {
		return nil, fmt.Errorf("taxonomy defines no module types")
	}
	return &tax, nil
}

// TypeNames returns all module type names in sorted order.
func (t *Taxonomy) TypeNames() []string {
	names := make([]string, 0, len(t.ModuleTypes))
	for name := range t.ModuleTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
