// Package convo resolves conversational context for follow-up queries.
//
// A follow-up like "and for females?" carries no subject of its own; the
// resolver detects the ellipsis, inherits entity slots (breed, age, sex,
// metric, phase) from the most recent turn, and produces an expanded query
// that downstream retrieval can embed on its own.
//
// The resolver is pure: it never fails and never mutates the caller's
// history. Entity extraction is keyword/pattern based — the slot vocabulary
// is closed and small, so no model call is needed here.
package convo

import (
	"strconv"
	"strings"
)

// Entities holds the structured slots extracted from a query or inherited
// from prior turns. Zero values mean "not mentioned".
type Entities struct {
	Breed   string // e.g. "Ross 308", "Cobb 500"
	AgeDays int    // age in days; weeks are normalized to days
	Sex     string // "male", "female" or "mixed"
	Metric  string // e.g. "fcr", "body weight", "mortality"
	Phase   string // feeding phase: "starter", "grower", "finisher", "withdrawal"
}

// IsZero reports whether no slot is set.
func (e Entities) IsZero() bool {
	return e == Entities{}
}

// Merge returns base overlaid with override: slots set in override win,
// slots only in base persist. Neither input is mutated.
func (e Entities) Merge(override Entities) Entities {
	out := e
	if override.Breed != "" {
		out.Breed = override.Breed
	}
	if override.AgeDays != 0 {
		out.AgeDays = override.AgeDays
	}
	if override.Sex != "" {
		out.Sex = override.Sex
	}
	if override.Metric != "" {
		out.Metric = override.Metric
	}
	if override.Phase != "" {
		out.Phase = override.Phase
	}
	return out
}

// Turn is one prior conversation exchange: the raw query text and the
// entities extracted when it was processed.
type Turn struct {
	Query    string
	Entities Entities
}

// History is an ordered list of prior turns, oldest first. The resolver
// only reads the trailing window; the caller owns the full history.
type History []Turn

// Tail returns the last n turns (or all of them if fewer).
func (h History) Tail(n int) History {
	if n <= 0 || len(h) == 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Resolved is the output of Resolve: the possibly-expanded query text and
// the merged entity slots.
type Resolved struct {
	Query    string
	Entities Entities
	Expanded bool // true when context from a prior turn was inherited
}

// contextFragments renders inherited slots as a human-readable context
// suffix, e.g. "breed Ross 308, age 35 days".
func contextFragments(e Entities) []string {
	var parts []string
	if e.Breed != "" {
		parts = append(parts, "breed "+e.Breed)
	}
	if e.AgeDays != 0 {
		parts = append(parts, "age "+strconv.Itoa(e.AgeDays)+" days")
	}
	if e.Sex != "" {
		parts = append(parts, "sex "+e.Sex)
	}
	if e.Metric != "" {
		parts = append(parts, "metric "+e.Metric)
	}
	if e.Phase != "" {
		parts = append(parts, "phase "+e.Phase)
	}
	return parts
}

// expandQuery appends the inherited context to the raw query.
func expandQuery(query string, inherited Entities) string {
	parts := contextFragments(inherited)
	if len(parts) == 0 {
		return query
	}
	return query + " (context: " + strings.Join(parts, ", ") + ")"
}
