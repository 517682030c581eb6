// Package sources implements the external academic providers queried during
// augmentation: Europe PMC, Crossref and Semantic Scholar.
//
// Each provider carries its own rate limiter and an injectable HTTP client,
// honors context cancellation, caps response sizes and maps its wire format
// onto augment.Candidate. Providers that report no relevance score derive
// one from result rank, since all three APIs return relevance-ordered hits.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxResponseBytes caps a provider response body.
	maxResponseBytes = 2 << 20

	// userAgent identifies pluma to provider APIs; Crossref's polite pool
	// requires a contact address.
	userAgent = "pluma/1.0 (mailto:ops@pluma.dev)"
)

// defaultHTTPClient is used when the caller injects none.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
// The response body is size-capped; non-200 statuses are errors.
func getJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, headers map[string]string, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// rankRelevance derives a relevance score from position in a
// relevance-ordered result list: the top hit scores 0.9, decaying by rank.
func rankRelevance(rank int) float64 {
	score := 0.9 - 0.1*float64(rank)
	if score < 0.1 {
		return 0.1
	}
	return score
}
