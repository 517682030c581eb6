// Package pipeline wires the retrieval stages into one request flow:
// conversation resolution, intent routing, primary search, confidence-gated
// external augmentation and terminology injection.
//
// Process always returns a complete Response for a well-formed request.
// Recoverable stage failures (classifier down, sources unreachable, store
// errors, missing catalog) degrade the response and surface only through
// confidence and diagnostics, never as errors.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pluma0/pluma/internal/augment"
	"github.com/pluma0/pluma/internal/convo"
	"github.com/pluma0/pluma/internal/intent"
	"github.com/pluma0/pluma/internal/knowledge"
	"github.com/pluma0/pluma/internal/terminology"
)

var ErrEmptyQuery = errors.New("pipeline: query is empty")

// Router produces exactly one intent label per query.
type Router interface {
	Classify(ctx context.Context, query string, entities convo.Entities) intent.ClassifiedQuery
}

// Searcher is the primary knowledge-base search surface. Satisfied by
// *knowledge.Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Augmenter decides whether external sources are consulted. Satisfied by
// *augment.Orchestrator.
type Augmenter interface {
	Augment(ctx context.Context, query string, primary knowledge.RetrievalResult) augment.Outcome
}

// Injector assembles the token-budgeted terminology block. Satisfied by
// *terminology.Injector.
type Injector interface {
	Inject(query, hint string) terminology.Block
}

// Request is one caller query with its conversation history.
type Request struct {
	Query      string
	History    convo.History
	DomainHint string // optional terminology category override
}

// EnrichedPrompt is the generation-ready prompt assembly. TokenCount
// estimates the terminology block, the budget-governed portion.
type EnrichedPrompt struct {
	BasePrompt       string
	TerminologyBlock string
	TokenCount       int
}

// Diagnostics reports degraded or skipped stages in-band.
type Diagnostics struct {
	ExternalSourcesCalled []string
	TermsInjected         int
}

// Response is the complete retrieval outcome handed to generation.
type Response struct {
	RequestID     string
	ExpandedQuery string
	Intent        intent.Intent
	Mode          intent.AnswerMode
	Confidence    float64
	Retrieval     knowledge.RetrievalResult
	Prompt        EnrichedPrompt
	Diagnostics   Diagnostics
}

// Pipeline executes the stages in order. Stages sharing state (intent
// table, terminology index) are read-only, so concurrent requests are safe.
type Pipeline struct {
	resolver  *convo.Resolver
	router    Router
	searcher  Searcher
	augmenter Augmenter
	injector  Injector
	topK      int
	logger    *slog.Logger
}

// New creates a Pipeline. All stages are required.
func New(resolver *convo.Resolver, router Router, searcher Searcher, augmenter Augmenter, injector Injector, topK int, logger *slog.Logger) (*Pipeline, error) {
	if resolver == nil || router == nil || searcher == nil || augmenter == nil || injector == nil {
		return nil, errors.New("pipeline: all stages are required")
	}
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		resolver:  resolver,
		router:    router,
		searcher:  searcher,
		augmenter: augmenter,
		injector:  injector,
		topK:      topK,
		logger:    logger,
	}, nil
}

// Process runs one query through every stage. The only error condition is a
// malformed request; degraded stages are reported through the response.
func (p *Pipeline) Process(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Response{}, ErrEmptyQuery
	}

	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID)

	resolved := p.resolver.Resolve(req.Query, req.History)
	classified := p.router.Classify(ctx, resolved.Query, resolved.Entities)

	primary := p.searchPrimary(ctx, resolved.Query, logger)
	outcome := p.augmenter.Augment(ctx, resolved.Query, primary)

	block := p.injector.Inject(resolved.Query, p.terminologyHint(req.DomainHint, classified.Intent))

	logger.Info("query processed",
		"intent", classified.Intent,
		"intent_confidence", classified.Confidence,
		"retrieval_confidence", outcome.Result.Confidence,
		"augmented", outcome.Result.Augmented,
		"terms_injected", len(block.Terms))

	return Response{
		RequestID:     requestID,
		ExpandedQuery: resolved.Query,
		Intent:        classified.Intent,
		Mode:          classified.Mode,
		Confidence:    classified.Confidence,
		Retrieval:     outcome.Result,
		Prompt: EnrichedPrompt{
			BasePrompt:       buildBasePrompt(resolved.Query, classified, outcome.Result),
			TerminologyBlock: block.Text,
			TokenCount:       block.Tokens,
		},
		Diagnostics: Diagnostics{
			ExternalSourcesCalled: outcome.SourcesCalled,
			TermsInjected:         len(block.Terms),
		},
	}, nil
}

// searchPrimary runs the knowledge-base search. A failure here is
// recoverable: it degrades to a zero-confidence primary result, which makes
// the orchestrator attempt augmentation.
func (p *Pipeline) searchPrimary(ctx context.Context, query string, logger *slog.Logger) knowledge.RetrievalResult {
	results, err := p.searcher.Search(ctx, query, knowledge.WithTopK(p.topK))
	if err != nil {
		logger.Warn("primary search failed, degrading to empty result", "error", err)
		return knowledge.RetrievalResult{SourceKind: knowledge.SourcePrimary}
	}

	docs := make([]knowledge.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return knowledge.RetrievalResult{
		SourceKind: knowledge.SourcePrimary,
		Documents:  docs,
		Confidence: knowledge.TopConfidence(results),
	}
}

// terminologyHint maps the classified intent onto a catalog category. An
// explicit domain hint from the caller wins.
func (p *Pipeline) terminologyHint(domainHint string, label intent.Intent) string {
	if domainHint != "" {
		return domainHint
	}
	switch label {
	case intent.PerformanceTargets:
		return "performance"
	case intent.Nutrition:
		return "nutrition"
	case intent.Health:
		return "health"
	case intent.Environment:
		return "environment"
	default:
		return ""
	}
}
