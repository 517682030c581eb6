// Package terminology enriches generation prompts with a token-budgeted
// glossary excerpt.
//
// A term catalog is loaded once at startup into an immutable Index: keyword
// lookups are O(1) and category lists preserve catalog order so injection is
// deterministic. At request time the Injector matches query tokens against
// the index, picks the dominant category (an intent-derived hint takes
// precedence), ranks candidate terms by keyword overlap and greedily fills
// the block without exceeding the budget.
//
// A missing or empty index degrades to an empty block; terminology never
// fails a request.
package terminology

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed terms.yaml
var defaultCatalog []byte

// Term is one glossary entry. Loaded at startup, never mutated afterwards.
type Term struct {
	Term       string   `yaml:"term"`
	Definition string   `yaml:"definition"`
	Category   string   `yaml:"category"`
	Keywords   []string `yaml:"keywords"`
	Language   string   `yaml:"language,omitempty"` // variant tag, e.g. "en-US"
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Terms []Term `yaml:"terms"`
}

// LoadFile parses and validates a YAML term catalog. Malformed entries are
// rejected here, at startup, not at request time.
func LoadFile(path string) ([]Term, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading term catalog: %w", err)
	}
	return parseCatalog(data)
}

// LoadDefault returns the embedded broiler glossary.
func LoadDefault() ([]Term, error) {
	return parseCatalog(defaultCatalog)
}

// parseCatalog unmarshals and validates catalog bytes.
func parseCatalog(data []byte) ([]Term, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing term catalog: %w", err)
	}
	if len(file.Terms) == 0 {
		return nil, fmt.Errorf("term catalog has no terms")
	}

	seen := make(map[string]bool, len(file.Terms))
	for i, term := range file.Terms {
		if term.Term == "" {
			return nil, fmt.Errorf("term %d: empty term name", i)
		}
		if term.Definition == "" {
			return nil, fmt.Errorf("term %q: empty definition", term.Term)
		}
		if term.Category == "" {
			return nil, fmt.Errorf("term %q: empty category", term.Term)
		}
		if len(term.Keywords) == 0 {
			return nil, fmt.Errorf("term %q: no keywords", term.Term)
		}
		key := strings.ToLower(term.Term)
		if seen[key] {
			return nil, fmt.Errorf("duplicate term %q", term.Term)
		}
		seen[key] = true
	}

	return file.Terms, nil
}
