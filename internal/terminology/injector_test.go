package terminology

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pluma0/pluma/internal/log"
)

// testTerms is a small fixed catalog for unit tests.
func testTerms() []Term {
	return []Term{
		{Term: "FCR", Definition: "feed conversion ratio, kg feed per kg gain", Category: "nutrition", Keywords: []string{"fcr", "feed conversion"}},
		{Term: "Lysine", Definition: "first limiting amino acid in broiler diets", Category: "nutrition", Keywords: []string{"lysine", "amino acid"}},
		{Term: "EPEF", Definition: "european production efficiency factor", Category: "performance", Keywords: []string{"epef", "efficiency"}},
		{Term: "Coccidiosis", Definition: "intestinal disease caused by eimeria", Category: "health", Keywords: []string{"coccidiosis", "eimeria"}},
	}
}

func newTestInjector(t *testing.T, budget int) *Injector {
	t.Helper()
	return NewInjector(NewIndex(testTerms()), budget, log.NewNop())
}

func TestInject_KeywordSelectsCategoryAndTerm(t *testing.T) {
	inj := newTestInjector(t, 600)

	got := inj.Inject("what is a good fcr at 35 days", "")

	if !strings.Contains(got.Text, "FCR") {
		t.Errorf("block missing FCR term: %q", got.Text)
	}
	if len(got.Terms) == 0 || got.Terms[0] != "FCR" {
		t.Errorf("Terms = %v, want FCR ranked first", got.Terms)
	}
	if got.Tokens <= 0 {
		t.Errorf("Tokens = %d, want > 0", got.Tokens)
	}
}

func TestInject_NeverExceedsBudget(t *testing.T) {
	queries := []string{
		"fcr lysine amino acid epef coccidiosis eimeria feed conversion",
		"what is a good fcr",
		"lysine",
		"nothing matching at all",
		"",
	}
	budgets := []int{1, 5, 10, 25, 50, 600}

	for _, budget := range budgets {
		inj := newTestInjector(t, budget)
		for _, q := range queries {
			got := inj.Inject(q, "")
			if got.Tokens > budget {
				t.Errorf("Inject(%q) with budget %d produced %d tokens", q, budget, got.Tokens)
			}
		}
	}
}

func TestInject_TinyBudgetYieldsEmptyBlock(t *testing.T) {
	inj := newTestInjector(t, 2)

	got := inj.Inject("fcr", "")

	if got.Text != "" || got.Tokens != 0 || len(got.Terms) != 0 {
		t.Errorf("Inject() with tiny budget = %+v, want empty block", got)
	}
}

func TestInject_Deterministic(t *testing.T) {
	inj := newTestInjector(t, 600)
	query := "fcr and lysine in the grower diet"

	first := inj.Inject(query, "")
	for i := 0; i < 5; i++ {
		again := inj.Inject(query, "")
		if again.Text != first.Text || !reflect.DeepEqual(again.Terms, first.Terms) {
			t.Fatalf("Inject() not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestInject_HintTakesPrecedence(t *testing.T) {
	inj := newTestInjector(t, 600)

	// Tally says nutrition (fcr), hint says health.
	got := inj.Inject("fcr question", "health")

	if !strings.Contains(got.Text, "Coccidiosis") {
		t.Errorf("hinted category terms missing: %q", got.Text)
	}
	// The tally winner is kept as a secondary category.
	if !strings.Contains(got.Text, "FCR") {
		t.Errorf("tally category terms missing: %q", got.Text)
	}
}

func TestInject_UnknownHintFallsBackToTally(t *testing.T) {
	inj := newTestInjector(t, 600)

	got := inj.Inject("fcr question", "astrology")

	if !strings.Contains(got.Text, "FCR") {
		t.Errorf("block missing tally-selected term: %q", got.Text)
	}
}

func TestInject_NoMatchesEmptyBlock(t *testing.T) {
	inj := newTestInjector(t, 600)

	got := inj.Inject("completely unrelated words here", "")

	if got.Text != "" {
		t.Errorf("Inject() = %q, want empty block", got.Text)
	}
}

func TestInject_NilIndexDegradesToEmpty(t *testing.T) {
	inj := NewInjector(nil, 600, log.NewNop())

	got := inj.Inject("fcr", "")

	if got.Text != "" || got.Tokens != 0 {
		t.Errorf("Inject() with nil index = %+v, want empty block", got)
	}
}

func TestInject_BigramKeywordMatches(t *testing.T) {
	inj := newTestInjector(t, 600)

	got := inj.Inject("how do I improve feed conversion this cycle", "")

	if !strings.Contains(got.Text, "FCR") {
		t.Errorf("bigram keyword did not match: %q", got.Text)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q-len %d) = %d, want %d", tt.in[:min(3, len(tt.in))], len(tt.in), got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Feed Conversion at 35 days?")

	wantContains := []string{"feed", "conversion", "35", "days", "feed conversion", "at 35"}
	for _, w := range wantContains {
		found := false
		for _, tok := range got {
			if tok == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("tokenize() missing %q in %v", w, got)
		}
	}
}
