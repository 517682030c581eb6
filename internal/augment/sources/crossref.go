package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/pluma0/pluma/internal/augment"
)

const crossrefBaseURL = "https://api.crossref.org"

// Crossref queries the Crossref works API. Abstracts arrive as JATS XML
// fragments and are flattened to plain text before use.
type Crossref struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	logger  *slog.Logger
}

// NewCrossref creates the provider. The limiter stays within the polite
// pool guidance for the works endpoint.
func NewCrossref(client *http.Client, logger *slog.Logger) *Crossref {
	if client == nil {
		client = defaultHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crossref{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		baseURL: crossrefBaseURL,
		logger:  logger,
	}
}

func (s *Crossref) Name() string { return "crossref" }

type crossrefResponse struct {
	Message struct {
		Items []struct {
			Title    []string `json:"title"`
			Abstract string   `json:"abstract"`
			DOI      string   `json:"DOI"`
			Score    float64  `json:"score"`
			Issued   struct {
				DateParts [][]int `json:"date-parts"`
			} `json:"issued"`
		} `json:"items"`
	} `json:"message"`
}

// Search queries Crossref journal articles from the minimum year onward.
// Crossref scores are unbounded, so they are normalized against the top hit.
func (s *Crossref) Search(ctx context.Context, query string, filter augment.Filter) ([]augment.Candidate, error) {
	u := fmt.Sprintf("%s/works?query=%s&filter=from-pub-date:%d-01-01,type:journal-article,has-abstract:true&rows=%d&select=title,abstract,DOI,score,issued",
		s.baseURL, url.QueryEscape(query), filter.MinYear, filter.MaxResults)

	var resp crossrefResponse
	if err := getJSON(ctx, s.client, s.limiter, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("crossref: %w", err)
	}

	topScore := 0.0
	for _, item := range resp.Message.Items {
		if item.Score > topScore {
			topScore = item.Score
		}
	}

	candidates := make([]augment.Candidate, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		if len(item.Title) == 0 || item.Abstract == "" {
			continue
		}
		year := issuedYear(item.Issued.DateParts)
		if year < filter.MinYear {
			continue
		}
		abstract := flattenJATS(item.Abstract)
		if abstract == "" {
			continue
		}

		relevance := 0.5
		if topScore > 0 {
			relevance = item.Score / topScore
		}

		candidates = append(candidates, augment.Candidate{
			Title:      item.Title[0],
			Abstract:   abstract,
			Year:       year,
			SourceName: s.Name(),
			Relevance:  relevance,
			Metadata:   docMetadata(item.DOI, ""),
		})
	}

	s.logger.Debug("crossref search", "results", len(candidates))
	return candidates, nil
}

func issuedYear(dateParts [][]int) int {
	if len(dateParts) == 0 || len(dateParts[0]) == 0 {
		return 0
	}
	return dateParts[0][0]
}

// flattenJATS strips JATS markup (<jats:p>, <jats:italic>, section titles)
// from a Crossref abstract, returning plain text.
func flattenJATS(abstract string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(abstract))
	if err != nil {
		return strings.TrimSpace(abstract)
	}
	// Section labels like "Abstract" add noise ahead of the body text.
	doc.Find(`title, jats\:title`).Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
