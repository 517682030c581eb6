package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/pluma0/pluma/internal/augment"
)

const semanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1"

// SemanticScholar queries the Semantic Scholar Graph API. An API key is
// optional; without one the service enforces a much tighter shared rate
// limit, which the limiter below respects.
type SemanticScholar struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewSemanticScholar creates the provider. apiKey may be empty.
func NewSemanticScholar(client *http.Client, apiKey string, logger *slog.Logger) *SemanticScholar {
	if client == nil {
		client = defaultHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Limit(1)
	if apiKey != "" {
		limit = rate.Limit(5)
	}
	return &SemanticScholar{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		baseURL: semanticScholarBaseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (s *SemanticScholar) Name() string { return "semanticscholar" }

type semanticScholarResponse struct {
	Data []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Year     int    `json:"year"`
	} `json:"data"`
}

// Search queries paper search with a year range filter applied server-side.
func (s *SemanticScholar) Search(ctx context.Context, query string, filter augment.Filter) ([]augment.Candidate, error) {
	u := fmt.Sprintf("%s/paper/search?query=%s&limit=%d&year=%d-&fields=title,abstract,year",
		s.baseURL, url.QueryEscape(query), filter.MaxResults, filter.MinYear)

	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"x-api-key": s.apiKey}
	}

	var resp semanticScholarResponse
	if err := getJSON(ctx, s.client, s.limiter, u, headers, &resp); err != nil {
		return nil, fmt.Errorf("semanticscholar: %w", err)
	}

	candidates := make([]augment.Candidate, 0, len(resp.Data))
	for i, p := range resp.Data {
		if p.Title == "" || p.Abstract == "" || p.Year < filter.MinYear {
			continue
		}
		candidates = append(candidates, augment.Candidate{
			Title:      p.Title,
			Abstract:   p.Abstract,
			Year:       p.Year,
			SourceName: s.Name(),
			Relevance:  rankRelevance(i),
			Metadata:   map[string]string{"source_id": p.PaperID},
		})
	}

	s.logger.Debug("semanticscholar search", "results", len(candidates))
	return candidates, nil
}
