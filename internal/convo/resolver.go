package convo

import (
	"log/slog"
	"regexp"
	"strings"
)

// DefaultWindow is the number of trailing turns consulted when the caller
// does not configure one.
const DefaultWindow = 5

// followUpRes are the ellipsis/coreference triggers. A query matching any of
// them is treated as a follow-up that inherits context from the last turn.
var followUpRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(?:and|also|what about|how about|ok and)\b`),
	regexp.MustCompile(`(?i)\bsame\s+(?:as|for|thing|question)\b`),
	regexp.MustCompile(`(?i)^\s*(?:for|at|in)\s+\S+\??\s*$`),
	regexp.MustCompile(`(?i)\b(?:that|those|it|them)\b.*\?\s*$`),
}

// Resolver expands follow-up queries using recent conversation turns.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	window int
	logger *slog.Logger
}

// NewResolver creates a Resolver reading at most window trailing turns.
// window <= 0 falls back to DefaultWindow.
func NewResolver(window int, logger *slog.Logger) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{window: window, logger: logger}
}

// Resolve produces the expanded query and merged entity slots.
//
// If the query is a follow-up and history is non-empty, the most recent
// turn's entities are inherited, with slots mentioned in the current query
// overriding inherited values. Otherwise the query passes through with only
// its own entities. Resolve never fails; the worst case is the original
// query with a zero entity map.
func (r *Resolver) Resolve(query string, history History) Resolved {
	own := ExtractEntities(query)

	recent := history.Tail(r.window)
	if len(recent) == 0 || !isFollowUp(query) {
		return Resolved{Query: query, Entities: own}
	}

	last := recent[len(recent)-1]
	merged := last.Entities.Merge(own)
	if merged == own {
		// Nothing inherited; treat as a standalone query.
		return Resolved{Query: query, Entities: own}
	}

	// Render only the inherited slots into the expanded text; the current
	// query already states its own.
	inherited := diffEntities(merged, own)
	expanded := expandQuery(query, inherited)

	r.logger.Debug("expanded follow-up query",
		"query", query,
		"expanded", expanded)

	return Resolved{Query: expanded, Entities: merged, Expanded: true}
}

// isFollowUp reports whether the query matches any ellipsis trigger.
func isFollowUp(query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}
	for _, re := range followUpRes {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// diffEntities returns the slots present in merged but not claimed by own.
func diffEntities(merged, own Entities) Entities {
	var d Entities
	if own.Breed == "" {
		d.Breed = merged.Breed
	}
	if own.AgeDays == 0 {
		d.AgeDays = merged.AgeDays
	}
	if own.Sex == "" {
		d.Sex = merged.Sex
	}
	if own.Metric == "" {
		d.Metric = merged.Metric
	}
	if own.Phase == "" {
		d.Phase = merged.Phase
	}
	return d
}
