// Package intent classifies queries into a closed intent taxonomy.
//
// Classification is a two-layer cascade. Layer 1 scores an ordered table of
// intent specs by signal matching; it is synchronous and never fails. Layer 2
// asks a generative classifier to pick from the same closed taxonomy, and is
// only consulted when Layer 1 confidence is low. Classifier failures degrade
// to the Layer-1 label — a request is never failed by classification.
package intent

import (
	"fmt"
	"sort"
)

// Intent is a closed-taxonomy label describing what kind of answer a query
// requires. The set is fixed at compile time; free-form labels from the
// Layer-2 classifier are rejected and mapped to General.
type Intent string

const (
	// PerformanceTargets covers breed-standard lookups (weight, FCR, EPEF
	// at a given age).
	PerformanceTargets Intent = "performance_targets"

	// Nutrition covers diet formulation and feed optimization questions.
	Nutrition Intent = "nutrition_optimization"

	// Health covers disease signs, diagnosis and treatment questions.
	Health Intent = "health_diagnosis"

	// Environment covers housing climate: temperature, ventilation,
	// litter, lighting.
	Environment Intent = "environment_management"

	// Economics covers cost, margin and market questions.
	Economics Intent = "economics"

	// General is the catch-all; its spec matches every query so exactly
	// one label is always produced.
	General Intent = "general"
)

// Valid reports whether the label belongs to the taxonomy.
func (i Intent) Valid() bool {
	switch i {
	case PerformanceTargets, Nutrition, Health, Environment, Economics, General:
		return true
	}
	return false
}

// AnswerMode shapes the downstream generation prompt.
type AnswerMode string

const (
	ModeTable      AnswerMode = "table"      // tabular target values
	ModeAdvisory   AnswerMode = "advisory"   // recommendations with rationale
	ModeDiagnostic AnswerMode = "diagnostic" // differential-style reasoning
	ModeNarrative  AnswerMode = "narrative"  // free-form explanation
)

// Spec declares how one intent is recognized and answered.
type Spec struct {
	Intent           Intent
	Priority         int      // lower evaluates first
	Signals          []string // lowercase phrases matched against the query
	RequiredSlots    []string // entity slots the answer needs
	PreferredSources []string // knowledge sources to favor downstream
	Mode             AnswerMode
	Universal        bool // matches every query; only the catch-all sets this
}

// ClassifiedQuery is the immutable classification result.
type ClassifiedQuery struct {
	ExpandedText     string
	Intent           Intent
	Confidence       float64 // in [0,1]
	MatchedSignals   []string
	RequiredSlots    []string
	PreferredSources []string
	Mode             AnswerMode
	FromClassifier   bool // true when the Layer-2 model produced the label
}

// Table is the validated, ordered intent spec table. Built once at startup
// and read-only afterwards; safe for concurrent use.
type Table struct {
	specs []Spec
}

// NewTable validates and orders the specs. Requirements: at least one spec,
// every intent valid, exactly one universal catch-all, and the catch-all
// sorted last. Malformed tables are rejected at startup, not at request time.
func NewTable(specs []Spec) (*Table, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("intent table is empty")
	}

	ordered := make([]Spec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	universal := 0
	for _, s := range ordered {
		if !s.Intent.Valid() {
			return nil, fmt.Errorf("unknown intent %q in spec table", s.Intent)
		}
		if s.Universal {
			universal++
		} else if len(s.Signals) == 0 {
			return nil, fmt.Errorf("spec %q has no signals and is not universal", s.Intent)
		}
	}
	if universal != 1 {
		return nil, fmt.Errorf("intent table needs exactly one universal catch-all, got %d", universal)
	}
	if !ordered[len(ordered)-1].Universal {
		return nil, fmt.Errorf("universal catch-all must have the lowest priority")
	}

	return &Table{specs: ordered}, nil
}

// Specs returns the ordered spec list. Callers must not mutate it.
func (t *Table) Specs() []Spec {
	return t.specs
}

// Labels returns every label in table order; used as the Layer-2 closed
// output space.
func (t *Table) Labels() []Intent {
	out := make([]Intent, len(t.specs))
	for i, s := range t.specs {
		out[i] = s.Intent
	}
	return out
}

// Lookup returns the spec for the given intent, falling back to the
// universal catch-all for labels not in the table.
func (t *Table) Lookup(label Intent) Spec {
	for _, s := range t.specs {
		if s.Intent == label {
			return s
		}
	}
	return t.specs[len(t.specs)-1]
}

// DefaultSpecs is the built-in broiler intent table.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Intent:   PerformanceTargets,
			Priority: 10,
			Signals: []string{
				"fcr", "feed conversion", "body weight", "target weight",
				"daily gain", "adg", "epef", "performance objective",
				"standard", "target", "livability", "uniformity",
			},
			RequiredSlots:    []string{"breed", "age_days"},
			PreferredSources: []string{"primary"},
			Mode:             ModeTable,
		},
		{
			Intent:   Nutrition,
			Priority: 20,
			Signals: []string{
				"feed", "diet", "ration", "nutrition", "lysine", "methionine",
				"protein", "energy", "amino acid", "premix", "pellet",
				"starter", "grower", "finisher",
			},
			RequiredSlots:    []string{"phase"},
			PreferredSources: []string{"primary", "europepmc"},
			Mode:             ModeAdvisory,
		},
		{
			Intent:   Health,
			Priority: 30,
			Signals: []string{
				"disease", "sick", "symptom", "lesion", "vaccine", "vaccination",
				"coccidiosis", "necrotic enteritis", "ascites", "lameness",
				"mortality", "treatment", "antibiotic", "diagnosis",
			},
			RequiredSlots:    nil,
			PreferredSources: []string{"primary", "europepmc", "crossref"},
			Mode:             ModeDiagnostic,
		},
		{
			Intent:   Environment,
			Priority: 40,
			Signals: []string{
				"temperature", "ventilation", "humidity", "litter", "lighting",
				"heat stress", "brooding", "air quality", "ammonia", "stocking density",
			},
			RequiredSlots:    []string{"age_days"},
			PreferredSources: []string{"primary"},
			Mode:             ModeAdvisory,
		},
		{
			Intent:   Economics,
			Priority: 50,
			Signals: []string{
				"cost", "price", "margin", "profit", "economics", "market",
				"feed cost", "return on investment",
			},
			RequiredSlots:    nil,
			PreferredSources: []string{"primary"},
			Mode:             ModeNarrative,
		},
		{
			Intent:           General,
			Priority:         100,
			Signals:          nil,
			RequiredSlots:    nil,
			PreferredSources: []string{"primary"},
			Mode:             ModeNarrative,
			Universal:        true,
		},
	}
}
