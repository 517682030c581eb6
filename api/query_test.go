package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pluma0/pluma/internal/intent"
	"github.com/pluma0/pluma/internal/knowledge"
	"github.com/pluma0/pluma/internal/log"
	"github.com/pluma0/pluma/internal/pipeline"
)

// stubProcessor records the request and returns a canned response.
type stubProcessor struct {
	got  pipeline.Request
	resp pipeline.Response
	err  error
}

func (s *stubProcessor) Process(_ context.Context, req pipeline.Request) (pipeline.Response, error) {
	s.got = req
	if s.err != nil {
		return pipeline.Response{}, s.err
	}
	return s.resp, nil
}

func sampleResponse() pipeline.Response {
	return pipeline.Response{
		RequestID:     "req-1",
		ExpandedQuery: "target fcr for Ross 308 at 35 days",
		Intent:        intent.PerformanceTargets,
		Mode:          intent.ModeTable,
		Confidence:    0.7,
		Retrieval: knowledge.RetrievalResult{
			SourceKind: knowledge.SourceExternal,
			Documents:  []knowledge.Document{{Identifier: "d1", Title: "FCR benchmarks", Year: 2021, SourceName: "europepmc"}},
			Confidence: 0.74,
			Augmented:  true,
		},
		Prompt: pipeline.EnrichedPrompt{BasePrompt: "Question: ...", TerminologyBlock: "Relevant terminology:\n", TokenCount: 42},
		Diagnostics: pipeline.Diagnostics{
			ExternalSourcesCalled: []string{"europepmc", "crossref"},
			TermsInjected:         2,
		},
	}
}

func postQuery(t *testing.T, h *QueryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery_OK(t *testing.T) {
	proc := &stubProcessor{resp: sampleResponse()}
	h := NewQueryHandler(proc, log.NewNop())

	rec := postQuery(t, h, `{
		"query": "and for females?",
		"history": [{"query": "Ross 308 at 35 days", "entities": {"breed": "Ross 308", "age_days": 35}}],
		"domain_hint": "performance"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}

	if proc.got.Query != "and for females?" {
		t.Errorf("forwarded query = %q", proc.got.Query)
	}
	if len(proc.got.History) != 1 || proc.got.History[0].Entities.Breed != "Ross 308" || proc.got.History[0].Entities.AgeDays != 35 {
		t.Errorf("forwarded history = %+v", proc.got.History)
	}
	if proc.got.DomainHint != "performance" {
		t.Errorf("forwarded hint = %q", proc.got.DomainHint)
	}

	var got queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if got.IntentLabel != "performance_targets" {
		t.Errorf("intent_label = %q", got.IntentLabel)
	}
	if got.Retrieval.SourceKind != "external" || !got.Retrieval.Augmented {
		t.Errorf("retrieval = %+v", got.Retrieval)
	}
	if got.Diagnostics.TermsInjectedCount != 2 || len(got.Diagnostics.ExternalSourcesCalled) != 2 {
		t.Errorf("diagnostics = %+v", got.Diagnostics)
	}
}

func TestHandleQuery_MalformedJSON(t *testing.T) {
	h := NewQueryHandler(&stubProcessor{}, log.NewNop())

	rec := postQuery(t, h, `{"query": `)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleQuery_EmptyQuery(t *testing.T) {
	h := NewQueryHandler(&stubProcessor{err: pipeline.ErrEmptyQuery}, log.NewNop())

	rec := postQuery(t, h, `{"query": ""}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body decode: %v", err)
	}
	if resp.Error != "invalid_request" {
		t.Errorf("error = %q, want invalid_request", resp.Error)
	}
}

func TestHandleQuery_ProcessorError(t *testing.T) {
	h := NewQueryHandler(&stubProcessor{err: errors.New("boom")}, log.NewNop())

	rec := postQuery(t, h, `{"query": "q"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleQuery_EmptySourcesSerializeAsArray(t *testing.T) {
	resp := sampleResponse()
	resp.Diagnostics.ExternalSourcesCalled = nil
	h := NewQueryHandler(&stubProcessor{resp: resp}, log.NewNop())

	rec := postQuery(t, h, `{"query": "q"}`)

	if !strings.Contains(rec.Body.String(), `"external_sources_called":[]`) {
		t.Errorf("body = %s, want empty array not null", rec.Body)
	}
}
