package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/pluma0/pluma/internal/augment"
)

const europePMCBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMC queries the Europe PMC REST search API. No credential required.
type EuropePMC struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	logger  *slog.Logger
}

// NewEuropePMC creates the provider. A nil client falls back to a default
// with a request timeout.
func NewEuropePMC(client *http.Client, logger *slog.Logger) *EuropePMC {
	if client == nil {
		client = defaultHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EuropePMC{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		baseURL: europePMCBaseURL,
		logger:  logger,
	}
}

func (s *EuropePMC) Name() string { return "europepmc" }

type europePMCResponse struct {
	ResultList struct {
		Result []struct {
			Title        string `json:"title"`
			AbstractText string `json:"abstractText"`
			PubYear      string `json:"pubYear"`
			DOI          string `json:"doi"`
			ID           string `json:"id"`
		} `json:"result"`
	} `json:"resultList"`
}

// Search queries Europe PMC, constraining publication year and requiring an
// abstract server-side.
func (s *EuropePMC) Search(ctx context.Context, query string, filter augment.Filter) ([]augment.Candidate, error) {
	q := fmt.Sprintf("%s AND PUB_YEAR:>=%d AND HAS_ABSTRACT:Y", query, filter.MinYear)
	u := fmt.Sprintf("%s/search?query=%s&format=json&resultType=core&pageSize=%d",
		s.baseURL, url.QueryEscape(q), filter.MaxResults)

	var resp europePMCResponse
	if err := getJSON(ctx, s.client, s.limiter, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("europepmc: %w", err)
	}

	candidates := make([]augment.Candidate, 0, len(resp.ResultList.Result))
	for i, r := range resp.ResultList.Result {
		if r.Title == "" || r.AbstractText == "" {
			continue
		}
		year, err := strconv.Atoi(r.PubYear)
		if err != nil || year < filter.MinYear {
			continue
		}
		candidates = append(candidates, augment.Candidate{
			Title:      r.Title,
			Abstract:   r.AbstractText,
			Year:       year,
			SourceName: s.Name(),
			Relevance:  rankRelevance(i),
			Metadata:   docMetadata(r.DOI, r.ID),
		})
	}

	s.logger.Debug("europepmc search", "results", len(candidates))
	return candidates, nil
}

func docMetadata(doi, id string) map[string]string {
	m := make(map[string]string, 2)
	if doi != "" {
		m["doi"] = doi
	}
	if id != "" {
		m["source_id"] = id
	}
	return m
}
