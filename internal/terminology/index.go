package terminology

import "strings"

// Index is the read-only keyword index over a term catalog. Built once at
// startup; safe for concurrent reads without locking.
type Index struct {
	terms []Term // catalog order, the deterministic tie-break

	// keyword (lowercase) → positions in terms
	byKeyword map[string][]int

	// category → positions in terms, catalog order
	byCategory map[string][]int
}

// NewIndex builds the index from a validated catalog.
func NewIndex(terms []Term) *Index {
	idx := &Index{
		terms:      terms,
		byKeyword:  make(map[string][]int),
		byCategory: make(map[string][]int),
	}
	for i, term := range terms {
		for _, kw := range term.Keywords {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" {
				continue
			}
			idx.byKeyword[key] = append(idx.byKeyword[key], i)
		}
		cat := strings.ToLower(term.Category)
		idx.byCategory[cat] = append(idx.byCategory[cat], i)
	}
	return idx
}

// Len returns the number of indexed terms.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.terms)
}

// HasCategory reports whether the category exists in the catalog.
func (idx *Index) HasCategory(category string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.byCategory[strings.ToLower(category)]
	return ok
}

// categoryTerms returns the catalog-ordered term positions for a category.
func (idx *Index) categoryTerms(category string) []int {
	return idx.byCategory[strings.ToLower(category)]
}

// lookupKeyword returns term positions whose keyword list contains token.
func (idx *Index) lookupKeyword(token string) []int {
	return idx.byKeyword[token]
}
