package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Taxonomy maps the raw method and competency tags accreted on sparks to
// human-readable labels. It is loaded once at startup and passed by reference
// to every component that needs it; unknown tags fall through unchanged.
type Taxonomy struct {
	Methods      map[string]string `yaml:"methods"`
	Competencies map[string]string `yaml:"competencies"`
}

// LoadTaxonomy reads the taxonomy YAML file. An empty path yields an empty
// taxonomy, which leaves all tags unlabelled.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return &Taxonomy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}
	return &t, nil
}

// MethodLabel returns the display label for a method tag.
func (t *Taxonomy) MethodLabel(tag string) string {
	if t != nil {
		if label, ok := t.Methods[tag]; ok {
			return label
		}
	}
	return tag
}

// CompetencyLabel returns the display label for a competency tag.
func (t *Taxonomy) CompetencyLabel(tag string) string {
	if t != nil {
		if label, ok := t.Competencies[tag]; ok {
			return label
		}
	}
	return tag
}
