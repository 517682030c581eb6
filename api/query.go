package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pluma0/pluma/internal/convo"
	"github.com/pluma0/pluma/internal/pipeline"
)

// maxQueryBodyBytes caps the request body for POST /api/query.
const maxQueryBodyBytes = 1 << 20

// Processor runs one query through the retrieval pipeline. Satisfied by
// *pipeline.Pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// QueryHandler handles the query endpoint.
type QueryHandler struct {
	processor Processor
	logger    *slog.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(processor Processor, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{processor: processor, logger: logger}
}

// RegisterRoutes registers the query route on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.handleQuery)
}

// Wire types. Internal structs stay free of JSON concerns; the API layer
// owns the external shape.

type entityPayload struct {
	Breed   string `json:"breed,omitempty"`
	AgeDays int    `json:"age_days,omitempty"`
	Sex     string `json:"sex,omitempty"`
	Metric  string `json:"metric,omitempty"`
	Phase   string `json:"phase,omitempty"`
}

type turnPayload struct {
	Query    string        `json:"query"`
	Entities entityPayload `json:"entities"`
}

type queryRequest struct {
	Query      string        `json:"query"`
	History    []turnPayload `json:"history,omitempty"`
	DomainHint string        `json:"domain_hint,omitempty"`
}

type documentPayload struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Abstract   string `json:"abstract"`
	Year       int    `json:"year"`
	SourceName string `json:"source_name"`
}

type retrievalPayload struct {
	SourceKind string            `json:"source_kind"`
	Documents  []documentPayload `json:"documents"`
	Confidence float64           `json:"confidence"`
	Augmented  bool              `json:"augmented"`
	Note       string            `json:"note,omitempty"`
}

type enrichedPromptPayload struct {
	BasePrompt       string `json:"base_prompt"`
	TerminologyBlock string `json:"terminology_block"`
	TokenCount       int    `json:"token_count"`
}

type diagnosticsPayload struct {
	ExternalSourcesCalled []string `json:"external_sources_called"`
	TermsInjectedCount    int      `json:"terms_injected_count"`
}

type queryResponse struct {
	RequestID      string                `json:"request_id"`
	ExpandedQuery  string                `json:"expanded_query"`
	IntentLabel    string                `json:"intent_label"`
	AnswerMode     string                `json:"answer_mode"`
	Confidence     float64               `json:"confidence"`
	Retrieval      retrievalPayload      `json:"retrieval"`
	EnrichedPrompt enrichedPromptPayload `json:"enriched_prompt"`
	Diagnostics    diagnosticsPayload    `json:"diagnostics"`
}

func (h *QueryHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	resp, err := h.processor.Process(r.Context(), pipeline.Request{
		Query:      req.Query,
		History:    toHistory(req.History),
		DomainHint: req.DomainHint,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
			return
		}
		h.logger.Error("query processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "query processing failed")
		return
	}

	writeJSON(w, http.StatusOK, toQueryResponse(resp))
}

func toHistory(turns []turnPayload) convo.History {
	if len(turns) == 0 {
		return nil
	}
	history := make(convo.History, len(turns))
	for i, t := range turns {
		history[i] = convo.Turn{
			Query: t.Query,
			Entities: convo.Entities{
				Breed:   t.Entities.Breed,
				AgeDays: t.Entities.AgeDays,
				Sex:     t.Entities.Sex,
				Metric:  t.Entities.Metric,
				Phase:   t.Entities.Phase,
			},
		}
	}
	return history
}

func toQueryResponse(resp pipeline.Response) queryResponse {
	docs := make([]documentPayload, len(resp.Retrieval.Documents))
	for i, d := range resp.Retrieval.Documents {
		docs[i] = documentPayload{
			Identifier: d.Identifier,
			Title:      d.Title,
			Abstract:   d.Abstract,
			Year:       d.Year,
			SourceName: d.SourceName,
		}
	}

	sources := resp.Diagnostics.ExternalSourcesCalled
	if sources == nil {
		sources = []string{}
	}

	return queryResponse{
		RequestID:     resp.RequestID,
		ExpandedQuery: resp.ExpandedQuery,
		IntentLabel:   string(resp.Intent),
		AnswerMode:    string(resp.Mode),
		Confidence:    resp.Confidence,
		Retrieval: retrievalPayload{
			SourceKind: string(resp.Retrieval.SourceKind),
			Documents:  docs,
			Confidence: resp.Retrieval.Confidence,
			Augmented:  resp.Retrieval.Augmented,
			Note:       resp.Retrieval.Note,
		},
		EnrichedPrompt: enrichedPromptPayload{
			BasePrompt:       resp.Prompt.BasePrompt,
			TerminologyBlock: resp.Prompt.TerminologyBlock,
			TokenCount:       resp.Prompt.TokenCount,
		},
		Diagnostics: diagnosticsPayload{
			ExternalSourcesCalled: sources,
			TermsInjectedCount:    resp.Diagnostics.TermsInjected,
		},
	}
}
