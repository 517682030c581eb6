package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pluma0/pluma/internal/convo"
)

// Classifier is the Layer-2 fallback: a generative model constrained to the
// closed label space. Implementations must return one of the given labels;
// the router maps anything else to General. The reported confidence may be
// zero when the model does not provide one.
type Classifier interface {
	Classify(ctx context.Context, query string, labels []Intent) (label Intent, confidence float64, err error)
}

// Confidence model for Layer 1: a monotonic ramp over matched signal count,
// capped at 1.0. Zero matches only happens for the catch-all.
const (
	baseConfidence = 0.3
	perSignalBoost = 0.2

	// defaultClassifierConfidence applies when Layer 2 succeeds but the
	// model reports no confidence of its own.
	defaultClassifierConfidence = 0.6
)

// Router classifies queries with the Layer-1 signal table and an optional
// Layer-2 fallback classifier. Safe for concurrent use; the table is
// read-only after construction.
type Router struct {
	table      *Table
	classifier Classifier // nil disables Layer 2
	minSignals int
	threshold  float64 // Layer-1 confidence below this triggers Layer 2
	logger     *slog.Logger
}

// NewRouter creates a Router. classifier may be nil, in which case Layer 1
// is authoritative. minSignals is the signal-count floor for a spec to win.
func NewRouter(table *Table, classifier Classifier, minSignals int, threshold float64, logger *slog.Logger) *Router {
	if minSignals < 1 {
		minSignals = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		table:      table,
		classifier: classifier,
		minSignals: minSignals,
		threshold:  threshold,
		logger:     logger,
	}
}

// Classify produces exactly one ClassifiedQuery for the expanded query.
// It never returns an error: classifier unavailability degrades to the best
// Layer-1 result.
func (r *Router) Classify(ctx context.Context, query string, entities convo.Entities) ClassifiedQuery {
	label, matched := r.matchSignals(query, entities)
	confidence := layer1Confidence(len(matched))

	spec := r.table.Lookup(label)
	result := ClassifiedQuery{
		ExpandedText:     query,
		Intent:           label,
		Confidence:       confidence,
		MatchedSignals:   matched,
		RequiredSlots:    spec.RequiredSlots,
		PreferredSources: spec.PreferredSources,
		Mode:             spec.Mode,
	}

	if confidence >= r.threshold || r.classifier == nil {
		return result
	}

	// Layer 2: closed-taxonomy model call. Any failure keeps the Layer-1
	// label; the lower confidence already communicates the uncertainty.
	fallbackLabel, fallbackConf, err := r.classifier.Classify(ctx, query, r.table.Labels())
	if err != nil {
		r.logger.Warn("fallback classifier unavailable, keeping layer-1 label",
			"intent", label, "error", err)
		return result
	}
	if !fallbackLabel.Valid() {
		r.logger.Warn("fallback classifier returned unknown label",
			"label", fallbackLabel)
		fallbackLabel = General
	}
	if fallbackConf <= 0 || fallbackConf > 1 {
		fallbackConf = defaultClassifierConfidence
	}

	fallbackSpec := r.table.Lookup(fallbackLabel)
	result.Intent = fallbackLabel
	result.Confidence = fallbackConf
	result.RequiredSlots = fallbackSpec.RequiredSlots
	result.PreferredSources = fallbackSpec.PreferredSources
	result.Mode = fallbackSpec.Mode
	result.FromClassifier = true
	return result
}

// matchSignals evaluates specs in priority order and returns the first spec
// whose signal count reaches the minimum, with the matched signals. Entity
// slots count toward the specs that require them, so "Ross 308 at 35 days"
// strengthens performance_targets even without metric keywords. Falls back
// to the universal catch-all.
func (r *Router) matchSignals(query string, entities convo.Entities) (Intent, []string) {
	lower := strings.ToLower(query)

	for _, spec := range r.table.Specs() {
		if spec.Universal {
			return spec.Intent, nil
		}

		var matched []string
		for _, sig := range spec.Signals {
			if strings.Contains(lower, sig) {
				matched = append(matched, sig)
			}
		}
		for _, slot := range spec.RequiredSlots {
			if slotPresent(slot, entities) {
				matched = append(matched, "slot:"+slot)
			}
		}

		if len(matched) >= r.minSignals {
			return spec.Intent, matched
		}
	}

	// Unreachable with a valid table (catch-all is always last), but keep
	// the guarantee explicit.
	return General, nil
}

// slotPresent reports whether the named slot is filled.
func slotPresent(slot string, e convo.Entities) bool {
	switch slot {
	case "breed":
		return e.Breed != ""
	case "age_days":
		return e.AgeDays != 0
	case "sex":
		return e.Sex != ""
	case "metric":
		return e.Metric != ""
	case "phase":
		return e.Phase != ""
	}
	return false
}

// layer1Confidence maps matched-signal count to [0,1]. Monotonic: more
// signals, higher confidence.
func layer1Confidence(matches int) float64 {
	c := baseConfidence + perSignalBoost*float64(matches)
	if c > 1.0 {
		return 1.0
	}
	return c
}
