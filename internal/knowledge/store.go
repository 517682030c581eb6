package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

const (
	// DefaultTopK is the number of neighbours returned when no option
	// overrides it.
	DefaultTopK = 5

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 15 * time.Second
)

var (
	ErrEmptyQuery      = errors.New("knowledge: query is empty")
	ErrMissingTitle    = errors.New("knowledge: document title is required")
	ErrMissingAbstract = errors.New("knowledge: document abstract is required")
)

// Store is the primary knowledge base. It embeds queries and documents with
// the configured embedder and persists through a Querier.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(querier Querier, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// SearchOption customizes a Search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK int32
}

// WithTopK overrides the number of neighbours returned.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = int32(k)
		}
	}
}

// Search embeds the query and returns the nearest documents, most similar
// first. Similarities are clamped to [0,1] so callers can use the top hit
// directly as retrieval confidence.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	cfg := searchConfig{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&cfg)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.querier.SearchDocuments(ctx, vec, cfg.topK)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Similarity = clamp01(results[i].Similarity)
	}

	s.logger.Debug("knowledge search",
		"results", len(results),
		"confidence", TopConfidence(results))
	return results, nil
}

// IngestExternal persists an externally discovered document. The insert is
// keyed on the identifier with a conflict no-op, so concurrent ingestion of
// the same document is at-most-once: exactly one caller writes a row and
// every other caller observes inserted=false without an error.
func (s *Store) IngestExternal(ctx context.Context, doc Document) (bool, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return false, ErrMissingTitle
	}
	if strings.TrimSpace(doc.Abstract) == "" {
		return false, ErrMissingAbstract
	}
	if doc.Identifier == "" {
		doc.Identifier = DocumentID(doc.Title, doc.Year)
	}
	if doc.Content == "" {
		doc.Content = doc.Title + "\n\n" + doc.Abstract
	}

	// Skip the embedding call when the row already exists. The insert below
	// still guards the race where another writer lands between the check and
	// the write.
	exists, err := s.querier.HasDocument(ctx, doc.Identifier)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, doc.Content)
	if err != nil {
		return false, err
	}

	inserted, err := s.querier.InsertDocument(ctx, doc, vec)
	if err != nil {
		return false, err
	}
	if inserted {
		s.logger.Info("ingested external document",
			"identifier", doc.Identifier,
			"source", doc.SourceName,
			"year", doc.Year)
	}
	return inserted, nil
}

// Has reports whether a document with the identifier is already stored.
func (s *Store) Has(ctx context.Context, identifier string) (bool, error) {
	return s.querier.HasDocument(ctx, identifier)
}

// Ping verifies the knowledge base is reachable. Called at startup so a
// misconfigured database fails fast instead of at first query.
func (s *Store) Ping(ctx context.Context) error {
	return s.querier.Ping(ctx)
}

// TopConfidence returns the similarity of the best result, or 0 for an
// empty result set.
func TopConfidence(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Similarity
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
