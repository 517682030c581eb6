package terminology

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// charsPerToken is the token estimation heuristic: roughly four characters
// per token for English text.
const charsPerToken = 4

// EstimateTokens returns the estimated token count for s, rounding up.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// Block is the assembled terminology enrichment.
type Block struct {
	Text   string   // ready to append to the generation prompt; may be empty
	Tokens int      // estimated token count of Text; always <= budget
	Terms  []string // names of injected terms, in injection order
}

// blockHeader opens every non-empty enrichment block.
const blockHeader = "Relevant terminology:\n"

// Injector matches query keywords against the index and assembles the
// budgeted block. Safe for concurrent use; the index is read-only.
type Injector struct {
	index  *Index
	budget int // token budget per block
	logger *slog.Logger
}

// NewInjector creates an Injector. A nil index is allowed and produces empty
// blocks — the unenriched-prompt degradation of a missing catalog.
func NewInjector(index *Index, budget int, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{index: index, budget: budget, logger: logger}
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases the query and returns word tokens plus adjacent-word
// bigrams, so multi-word keywords like "feed conversion" match.
func tokenize(query string) []string {
	words := tokenRe.FindAllString(strings.ToLower(query), -1)
	tokens := make([]string, 0, len(words)*2)
	tokens = append(tokens, words...)
	for i := 0; i+1 < len(words); i++ {
		tokens = append(tokens, words[i]+" "+words[i+1])
	}
	return tokens
}

// candidate pairs a term position with its relevance score.
type candidate struct {
	pos     int
	overlap int // matched keyword count against the query
}

// Inject assembles the terminology block for the query.
//
// hint, when non-empty and present in the catalog, takes precedence over the
// keyword tally for category selection; if the tally's top category differs
// it is included as a secondary category. Identical inputs always produce
// identical blocks: scoring is integral and ties break by catalog order.
func (inj *Injector) Inject(query, hint string) Block {
	if inj.index.Len() == 0 {
		return Block{}
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return Block{}
	}

	// Tally per-category keyword hits and remember term overlap counts.
	overlap := make(map[int]int)
	catHits := make(map[string]int)
	for _, tok := range tokens {
		for _, pos := range inj.index.lookupKeyword(tok) {
			overlap[pos]++
			catHits[strings.ToLower(inj.index.terms[pos].Category)]++
		}
	}

	categories := inj.selectCategories(hint, catHits)
	if len(categories) == 0 {
		return Block{}
	}

	// Collect candidates from the selected categories, catalog order.
	var candidates []candidate
	seen := make(map[int]bool)
	for _, cat := range categories {
		for _, pos := range inj.index.categoryTerms(cat) {
			if seen[pos] {
				continue
			}
			seen[pos] = true
			candidates = append(candidates, candidate{pos: pos, overlap: overlap[pos]})
		}
	}

	// Rank by overlap descending; catalog order is the stable tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overlap > candidates[j].overlap
	})

	return inj.assemble(candidates)
}

// selectCategories resolves the category set: the hint when valid, plus the
// tally winner when it disagrees, otherwise just the tally winner.
func (inj *Injector) selectCategories(hint string, catHits map[string]int) []string {
	top := topCategory(catHits, inj.index)

	if hint != "" {
		h := strings.ToLower(hint)
		if inj.index.HasCategory(h) {
			if top != "" && top != h {
				return []string{h, top}
			}
			return []string{h}
		}
		inj.logger.Debug("terminology hint not in catalog", "hint", hint)
	}

	if top == "" {
		return nil
	}
	return []string{top}
}

// topCategory returns the category with the most keyword hits; ties break by
// first appearance in the catalog so the result is deterministic.
func topCategory(catHits map[string]int, idx *Index) string {
	best := ""
	bestHits := 0
	visited := make(map[string]bool)
	for _, term := range idx.terms {
		cat := strings.ToLower(term.Category)
		if visited[cat] {
			continue
		}
		visited[cat] = true
		if hits := catHits[cat]; hits > bestHits {
			best = cat
			bestHits = hits
		}
	}
	return best
}

// assemble greedily adds ranked terms until the next entry would exceed the
// token budget.
func (inj *Injector) assemble(candidates []candidate) Block {
	var (
		b      strings.Builder
		names  []string
		tokens = EstimateTokens(blockHeader)
	)

	for _, c := range candidates {
		term := inj.index.terms[c.pos]
		entry := fmt.Sprintf("- %s: %s\n", term.Term, term.Definition)
		cost := EstimateTokens(entry)
		if tokens+cost > inj.budget {
			break
		}
		b.WriteString(entry)
		tokens += cost
		names = append(names, term.Term)
	}

	if len(names) == 0 {
		return Block{}
	}

	text := blockHeader + b.String()
	return Block{Text: text, Tokens: EstimateTokens(text), Terms: names}
}
