package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Querier is the database surface the Store depends on. Production uses the
// pgx implementation below; unit tests substitute an in-memory fake.
type Querier interface {
	// SearchDocuments returns the limit nearest documents by cosine
	// distance, most similar first.
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Result, error)

	// InsertDocument stores the document unless its identifier already
	// exists. Returns true when a row was written.
	InsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) (bool, error)

	// HasDocument reports whether the identifier is already stored.
	HasDocument(ctx context.Context, identifier string) (bool, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error
}

// PGQuerier implements Querier over a pgx connection pool.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier wraps a connection pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

const searchDocumentsSQL = `
SELECT identifier, title, abstract, year, source_name, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM documents
ORDER BY embedding <=> $1
LIMIT $2`

func (q *PGQuerier) SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Result, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.Document.Identifier,
			&r.Document.Title,
			&r.Document.Abstract,
			&r.Document.Year,
			&r.Document.SourceName,
			&r.Document.Content,
			&r.Document.Metadata,
			&r.Document.CreatedAt,
			&r.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return results, nil
}

const insertDocumentSQL = `
INSERT INTO documents (identifier, title, abstract, year, source_name, content, embedding, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (identifier) DO NOTHING`

func (q *PGQuerier) InsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) (bool, error) {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	tag, err := q.pool.Exec(ctx, insertDocumentSQL,
		doc.Identifier, doc.Title, doc.Abstract, doc.Year,
		doc.SourceName, doc.Content, embedding, metadata,
	)
	if err != nil {
		return false, fmt.Errorf("insert document %s: %w", doc.Identifier, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *PGQuerier) HasDocument(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE identifier = $1)`, identifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has document %s: %w", identifier, err)
	}
	return exists, nil
}

func (q *PGQuerier) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}
