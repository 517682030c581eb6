// Package knowledge manages the primary knowledge base: a PostgreSQL +
// pgvector document store with semantic search and idempotent ingestion.
//
// Search embeds the query, runs a cosine nearest-neighbour scan over the
// documents table and reports the top similarity as retrieval confidence.
// Documents discovered by external augmentation are promoted into the store
// through IngestExternal, an upsert keyed on the document identifier, so two
// concurrent requests discovering the same paper degrade to one insert and
// one no-op rather than two rows.
//
// The Store speaks to the database through the Querier interface; the pgx
// implementation lives in querier.go and tests substitute an in-memory one.
package knowledge
