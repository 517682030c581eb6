package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pluma0/pluma/internal/augment"
	"github.com/pluma0/pluma/internal/convo"
	"github.com/pluma0/pluma/internal/intent"
	"github.com/pluma0/pluma/internal/knowledge"
	"github.com/pluma0/pluma/internal/log"
	"github.com/pluma0/pluma/internal/terminology"
)

type stubSearcher struct {
	results []knowledge.Result
	err     error
}

func (s *stubSearcher) Search(context.Context, string, ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return s.results, s.err
}

type stubAugmenter struct {
	gotPrimary knowledge.RetrievalResult
	outcome    *augment.Outcome // nil passes the primary through
}

func (a *stubAugmenter) Augment(_ context.Context, _ string, primary knowledge.RetrievalResult) augment.Outcome {
	a.gotPrimary = primary
	if a.outcome != nil {
		return *a.outcome
	}
	return augment.Outcome{Result: primary}
}

type stubInjector struct {
	gotHint string
	block   terminology.Block
}

func (i *stubInjector) Inject(_, hint string) terminology.Block {
	i.gotHint = hint
	return i.block
}

type fakeSource struct {
	name       string
	candidates []augment.Candidate
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Search(context.Context, string, augment.Filter) ([]augment.Candidate, error) {
	return s.candidates, nil
}

func testRouter(t *testing.T) Router {
	t.Helper()
	table, err := intent.NewTable(intent.DefaultSpecs())
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	return intent.NewRouter(table, nil, 2, 0.55, log.NewNop())
}

func newTestPipeline(t *testing.T, searcher Searcher, augmenter Augmenter, injector Injector) *Pipeline {
	t.Helper()
	p, err := New(convo.NewResolver(convo.DefaultWindow, log.NewNop()), testRouter(t), searcher, augmenter, injector, 5, log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p
}

func primaryResults(similarity float64) []knowledge.Result {
	return []knowledge.Result{{
		Document:   knowledge.Document{Identifier: "doc-1", Title: "Ross 308 performance objectives", Year: 2022, SourceName: "primary"},
		Similarity: similarity,
	}}
}

func TestProcess_EmptyQuery(t *testing.T) {
	p := newTestPipeline(t, &stubSearcher{}, &stubAugmenter{}, &stubInjector{})

	if _, err := p.Process(context.Background(), Request{Query: "  "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Process() error = %v, want ErrEmptyQuery", err)
	}
}

func TestProcess_CompleteResponseShape(t *testing.T) {
	inj := &stubInjector{block: terminology.Block{Text: "Relevant terminology:\n- FCR: ...\n", Tokens: 12, Terms: []string{"FCR"}}}
	p := newTestPipeline(t, &stubSearcher{results: primaryResults(0.9)}, &stubAugmenter{}, inj)

	got, err := p.Process(context.Background(), Request{Query: "What is the target FCR for Ross 308 at 35 days?"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if got.RequestID == "" {
		t.Error("RequestID is empty")
	}
	if got.ExpandedQuery == "" {
		t.Error("ExpandedQuery is empty")
	}
	if !got.Intent.Valid() {
		t.Errorf("Intent = %q, want valid label", got.Intent)
	}
	if got.Confidence < 0 || got.Confidence > 1 {
		t.Errorf("Confidence = %v, want [0,1]", got.Confidence)
	}
	if got.Retrieval.Confidence < 0 || got.Retrieval.Confidence > 1 {
		t.Errorf("Retrieval.Confidence = %v, want [0,1]", got.Retrieval.Confidence)
	}
	if got.Prompt.BasePrompt == "" {
		t.Error("BasePrompt is empty")
	}
	if got.Prompt.TerminologyBlock != inj.block.Text {
		t.Errorf("TerminologyBlock = %q", got.Prompt.TerminologyBlock)
	}
	if got.Diagnostics.TermsInjected != 1 {
		t.Errorf("TermsInjected = %d, want 1", got.Diagnostics.TermsInjected)
	}
}

func TestProcess_PrimarySearchFailureDegrades(t *testing.T) {
	aug := &stubAugmenter{}
	p := newTestPipeline(t, &stubSearcher{err: errors.New("pool exhausted")}, aug, &stubInjector{})

	got, err := p.Process(context.Background(), Request{Query: "necrotic enteritis signs"})
	if err != nil {
		t.Fatalf("Process() error: %v, want recoverable degradation", err)
	}
	if aug.gotPrimary.Confidence != 0 {
		t.Errorf("augmenter saw confidence %v, want 0 after search failure", aug.gotPrimary.Confidence)
	}
	if got.RequestID == "" {
		t.Error("degraded response missing RequestID")
	}
}

func TestProcess_FollowUpExpansion(t *testing.T) {
	p := newTestPipeline(t, &stubSearcher{results: primaryResults(0.8)}, &stubAugmenter{}, &stubInjector{})

	history := convo.History{{
		Query:    "Ross 308 at 35 days",
		Entities: convo.Entities{Breed: "Ross 308", AgeDays: 35},
	}}
	got, err := p.Process(context.Background(), Request{Query: "and for females?", History: history})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	for _, want := range []string{"Ross 308", "35", "female"} {
		if !strings.Contains(got.ExpandedQuery, want) {
			t.Errorf("ExpandedQuery = %q, missing %q", got.ExpandedQuery, want)
		}
	}
}

func TestProcess_LowConfidenceTriggersAugmentation(t *testing.T) {
	src := &fakeSource{name: "europepmc", candidates: []augment.Candidate{{
		Title:      "FCR benchmarks for Ross 308",
		Abstract:   "Field data at 35 days.",
		Year:       2021,
		SourceName: "europepmc",
		Relevance:  0.9,
	}}}
	orch := augment.NewOrchestrator([]augment.Source{src}, nil, augment.Config{
		Threshold:  0.7,
		MinYear:    2000,
		MaxResults: 5,
		Timeout:    time.Second,
	}, log.NewNop())

	p := newTestPipeline(t, &stubSearcher{results: primaryResults(0.45)}, orch, &stubInjector{})

	got, err := p.Process(context.Background(), Request{Query: "What is the FCR for Ross 308 at 35 days?"})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if got.Retrieval.SourceKind != knowledge.SourceExternal {
		t.Errorf("SourceKind = %s, want external", got.Retrieval.SourceKind)
	}
	if len(got.Diagnostics.ExternalSourcesCalled) == 0 {
		t.Error("diagnostics list no external sources called")
	}
}

func TestProcess_DomainHintOverridesIntentMapping(t *testing.T) {
	inj := &stubInjector{}
	p := newTestPipeline(t, &stubSearcher{results: primaryResults(0.8)}, &stubAugmenter{}, inj)

	// The query classifies as performance, but the caller pins health.
	_, err := p.Process(context.Background(), Request{
		Query:      "target fcr and body weight at day 35",
		DomainHint: "health",
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if inj.gotHint != "health" {
		t.Errorf("injector hint = %q, want caller override", inj.gotHint)
	}
}

func TestTerminologyHintMapping(t *testing.T) {
	p := newTestPipeline(t, &stubSearcher{}, &stubAugmenter{}, &stubInjector{})

	tests := []struct {
		label intent.Intent
		want  string
	}{
		{intent.PerformanceTargets, "performance"},
		{intent.Nutrition, "nutrition"},
		{intent.Health, "health"},
		{intent.Environment, "environment"},
		{intent.Economics, ""},
		{intent.General, ""},
	}
	for _, tt := range tests {
		if got := p.terminologyHint("", tt.label); got != tt.want {
			t.Errorf("terminologyHint(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestBuildBasePrompt(t *testing.T) {
	classified := intent.ClassifiedQuery{Intent: intent.Health, Mode: intent.ModeDiagnostic}
	retrieval := knowledge.RetrievalResult{
		Documents: []knowledge.Document{{
			Title: "Wet litter causes", Year: 2020, SourceName: "primary", Abstract: "Survey of 40 farms.",
		}},
		Note: augment.NoteUnavailable,
	}

	got := buildBasePrompt("why is my litter wet?", classified, retrieval)

	for _, want := range []string{"why is my litter wet?", "Wet litter causes", "Survey of 40 farms.", augment.NoteUnavailable} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}
