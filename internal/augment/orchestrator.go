package augment

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pluma0/pluma/internal/knowledge"
)

// NoteUnavailable annotates a result when augmentation was attempted but no
// source produced a usable candidate.
const NoteUnavailable = "augmentation attempted, unavailable"

// Relevance and recency weights for candidate scoring. Source-reported
// relevance dominates; recency breaks near-ties toward newer work.
const (
	relevanceWeight = 0.8
	recencyWeight   = 0.2
)

// Ingestor persists a discovered document at most once per identifier.
// Satisfied by *knowledge.Store.
type Ingestor interface {
	IngestExternal(ctx context.Context, doc knowledge.Document) (bool, error)
}

// Outcome is an augmentation decision plus its diagnostics.
type Outcome struct {
	Result knowledge.RetrievalResult

	// SourcesCalled lists the sources actually queried, in configuration
	// order. Empty when the confidence gate short-circuited.
	SourcesCalled []string
}

// Orchestrator decides whether to augment and runs the source fan-out.
//
// Safe for concurrent use; all fields are set at construction.
type Orchestrator struct {
	sources    []Source
	store      Ingestor
	threshold  float64
	minYear    int
	maxResults int
	timeout    time.Duration // per-source bound
	logger     *slog.Logger

	// now is stubbed in tests to pin recency scoring.
	now func() time.Time
}

// Config carries the orchestration knobs, all required.
type Config struct {
	Threshold  float64       // primary confidence at or above this skips augmentation
	MinYear    int           // candidates published earlier are excluded
	MaxResults int           // per-source result cap
	Timeout    time.Duration // per-source search bound
}

// NewOrchestrator creates an Orchestrator. A nil store disables ingestion
// but still allows augmentation with unpersisted documents.
func NewOrchestrator(sources []Source, store Ingestor, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sources:    sources,
		store:      store,
		threshold:  cfg.Threshold,
		minYear:    cfg.MinYear,
		maxResults: cfg.MaxResults,
		timeout:    cfg.Timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Augment returns the primary result untouched when its confidence clears
// the threshold, issuing zero network calls. Otherwise it fans out to every
// source, selects the best candidate and promotes it into the knowledge
// base. Recoverable failures degrade; Augment never returns an error.
func (o *Orchestrator) Augment(ctx context.Context, query string, primary knowledge.RetrievalResult) Outcome {
	if primary.Confidence >= o.threshold {
		return Outcome{Result: primary}
	}
	if len(o.sources) == 0 {
		primary.Note = NoteUnavailable
		return Outcome{Result: primary}
	}

	candidates, called := o.fanOut(ctx, query)

	best, score, ok := o.selectBest(candidates)
	if !ok {
		o.logger.Info("augmentation produced no candidates", "sources_called", len(called))
		primary.Note = NoteUnavailable
		return Outcome{Result: primary, SourcesCalled: called}
	}

	doc := o.promote(ctx, best)

	return Outcome{
		Result: knowledge.RetrievalResult{
			SourceKind: knowledge.SourceExternal,
			Documents:  []knowledge.Document{doc},
			Confidence: max(primary.Confidence, score),
			Augmented:  true,
		},
		SourcesCalled: called,
	}
}

// fanOut queries every source concurrently. Each call gets its own timeout
// and failures are isolated: a slow or broken source is logged and dropped
// without aborting its siblings.
func (o *Orchestrator) fanOut(ctx context.Context, query string) ([]Candidate, []string) {
	filter := Filter{MaxResults: o.maxResults, MinYear: o.minYear}
	perSource := make([][]Candidate, len(o.sources))
	called := make([]string, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.sources {
		called[i] = src.Name()
		g.Go(func() error {
			srcCtx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			docs, err := src.Search(srcCtx, query, filter)
			if err != nil {
				o.logger.Warn("external source failed",
					"source", src.Name(), "error", err)
				return nil
			}
			perSource[i] = docs
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; Wait only joins

	var merged []Candidate
	for _, docs := range perSource {
		merged = append(merged, docs...)
	}
	return merged, called
}

// selectBest scores the merged candidates and returns the single winner.
// Candidates older than the minimum year are excluded here as well, so a
// source that ignores the filter cannot smuggle stale work through.
func (o *Orchestrator) selectBest(candidates []Candidate) (Candidate, float64, bool) {
	var (
		best      Candidate
		bestScore = -1.0
	)
	for _, c := range candidates {
		if c.Year < o.minYear || c.Title == "" || c.Abstract == "" {
			continue
		}
		if score := o.score(c); score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < 0 {
		return Candidate{}, 0, false
	}
	return best, bestScore, true
}

// score combines source-reported relevance with a recency bonus, both in
// [0,1], so the result can serve directly as retrieval confidence.
func (o *Orchestrator) score(c Candidate) float64 {
	relevance := clamp01(c.Relevance)

	span := o.now().Year() - o.minYear
	recency := 1.0
	if span > 0 {
		recency = clamp01(float64(c.Year-o.minYear) / float64(span))
	}

	return relevanceWeight*relevance + recencyWeight*recency
}

// promote converts the winning candidate into a knowledge-base document and
// ingests it. An ingestion failure is recoverable: the document is still
// used for this response, just not persisted.
func (o *Orchestrator) promote(ctx context.Context, c Candidate) knowledge.Document {
	doc := knowledge.Document{
		Identifier: knowledge.DocumentID(c.Title, c.Year),
		Title:      c.Title,
		Abstract:   c.Abstract,
		Year:       c.Year,
		SourceName: c.SourceName,
		Content:    c.Title + "\n\n" + c.Abstract,
		Metadata:   c.Metadata,
	}
	if o.store == nil {
		return doc
	}

	inserted, err := o.store.IngestExternal(ctx, doc)
	switch {
	case err != nil:
		o.logger.Warn("ingestion failed, using unpersisted document",
			"identifier", doc.Identifier, "error", err)
	case inserted:
		o.logger.Info("promoted external document",
			"identifier", doc.Identifier, "source", doc.SourceName)
	}
	return doc
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
