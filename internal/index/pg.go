package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

// PgIndex is a pgvector-backed index, a drop-in replacement for MemoryIndex
// behind the same contract. Upsert runs in a transaction so a failure leaves
// no partial batch visible.
type PgIndex struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPgIndex creates a Postgres-backed index over an existing pool
func NewPgIndex(pool *pgxpool.Pool, dimensions int) *PgIndex {
	return &PgIndex{pool: pool, dimensions: dimensions}
}

// Dimensions returns the configured vector dimension
func (p *PgIndex) Dimensions() int {
	return p.dimensions
}

// Upsert inserts or replaces entries as one atomic batch
func (p *PgIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	for i := range entries {
		if err := domain.ValidateIndexEntry(&entries[i], p.dimensions); err != nil {
			return err
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks
				(chunk_id, document_id, filename, ordinal, start_offset, end_offset, content, embedding)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (chunk_id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				filename = EXCLUDED.filename,
				ordinal = EXCLUDED.ordinal,
				start_offset = EXCLUDED.start_offset,
				end_offset = EXCLUDED.end_offset,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding`,
			e.ChunkID,
			e.DocumentID,
			e.Filename,
			e.Ordinal,
			e.Start,
			e.End,
			e.Content,
			pgvector.NewVector(e.Embedding),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Search returns the top-k entries by cosine similarity. pgvector's <=>
// operator yields cosine distance, converted to similarity as 1 - distance.
// Ties break on insertion order via the seq column.
func (p *PgIndex) Search(ctx context.Context, vector []float32, topK int, filter *SearchFilter) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	if len(vector) != p.dimensions {
		return nil, domain.ErrDimensionMismatch
	}

	query := `
		SELECT chunk_id, document_id, filename, ordinal, start_offset, end_offset, content,
		       1 - (embedding <=> $1) AS score
		FROM chunks`
	args := []interface{}{pgvector.NewVector(vector)}

	if filter != nil && len(filter.DocumentIDs) > 0 {
		query += ` WHERE document_id = ANY($2)`
		args = append(args, filter.DocumentIDs)
	}

	query += fmt.Sprintf(` ORDER BY score DESC, seq ASC LIMIT $%d`, len(args)+1)
	args = append(args, topK)

	return p.scan(ctx, query, args)
}

// SearchLexical ranks entries with Postgres full-text search
func (p *PgIndex) SearchLexical(ctx context.Context, queryText string, limit int, filter *SearchFilter) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	query := `
		SELECT chunk_id, document_id, filename, ordinal, start_offset, end_offset, content,
		       ts_rank(to_tsvector('english', content), websearch_to_tsquery('english', $1)) AS score
		FROM chunks
		WHERE to_tsvector('english', content) @@ websearch_to_tsquery('english', $1)`
	args := []interface{}{queryText}

	if filter != nil && len(filter.DocumentIDs) > 0 {
		query += ` AND document_id = ANY($2)`
		args = append(args, filter.DocumentIDs)
	}

	query += fmt.Sprintf(` ORDER BY score DESC, seq ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	return p.scan(ctx, query, args)
}

// Delete removes all entries belonging to a document
func (p *PgIndex) Delete(ctx context.Context, documentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

func (p *PgIndex) scan(ctx context.Context, query string, args []interface{}) ([]domain.ScoredChunk, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0)
	for rows.Next() {
		var c domain.ScoredChunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Filename, &c.Ordinal,
			&c.Start, &c.End, &c.Content, &c.Score); err != nil {
			return nil, err
		}
		results = append(results, c)
	}

	return results, rows.Err()
}
