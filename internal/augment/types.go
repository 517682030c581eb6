// Package augment fills retrieval gaps from external academic sources.
//
// When primary knowledge-base confidence is below the configured threshold,
// the Orchestrator fans out one search per enabled source, each bounded by
// its own timeout, isolates per-source failures, scores the merged
// candidates, and promotes the single best one into the knowledge base
// through an idempotent ingest. Callers always get a usable RetrievalResult
// back; degraded augmentation is reported in-band, never as an error.
package augment

import "context"

// Filter carries the search constraints every source honors.
type Filter struct {
	MaxResults int
	MinYear    int
}

// Candidate is a transient document returned by an external source, before
// scoring and promotion.
type Candidate struct {
	Title      string
	Abstract   string
	Year       int
	SourceName string
	Relevance  float64 // source-reported, clamped to [0,1] during scoring
	Metadata   map[string]string
}

// Source is one external academic provider. Implementations live in the
// sources subpackage and must honor context cancellation.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, filter Filter) ([]Candidate, error)
}
