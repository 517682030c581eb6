package knowledge

import "time"

// VectorDimension is the embedding dimension stored in pgvector. The
// embedder output is truncated to this via OutputDimensionality, so store
// and model stay in agreement.
const VectorDimension int32 = 768

// SourceKind tags where a retrieval result came from.
type SourceKind string

const (
	SourcePrimary  SourceKind = "primary"
	SourceExternal SourceKind = "external"
)

// Document is a knowledge-base entry. Identifier is the stable dedup key,
// derived from the normalized title and year (see DocumentID).
type Document struct {
	Identifier string
	Title      string
	Abstract   string
	Year       int
	SourceName string            // originating source, e.g. "europepmc"
	Content    string            // text that was embedded
	Metadata   map[string]string // optional filterable metadata
	CreatedAt  time.Time
}

// Result is a single search hit with its cosine similarity in [0,1].
type Result struct {
	Document   Document
	Similarity float64
}

// RetrievalResult is what the pipeline hands to generation: the selected
// documents, where they came from, and how confident retrieval is.
type RetrievalResult struct {
	SourceKind SourceKind
	Documents  []Document
	Confidence float64 // always in [0,1]
	Augmented  bool    // external augmentation contributed documents
	Note       string  // optional caveat, e.g. when all external sources failed
}
