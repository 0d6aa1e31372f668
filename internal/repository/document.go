package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/pagination"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
)

// dbtx is the subset of pgxpool.Pool and pgx.Tx the repositories use.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentRepository handles persistence of document metadata. Its
// UpdateStatus method doubles as the pipeline's status reporter.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	var storageKey *string
	if d.StorageKey != "" {
		storageKey = &d.StorageKey
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, filename, storage_key, status, fail_reason, chunk_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Filename, storageKey, d.Status, d.FailReason, d.ChunkCount, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var storageKey, failReason pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, filename, storage_key, status, fail_reason, chunk_count, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Filename, &storageKey, &d.Status, &failReason, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if storageKey.Valid {
		d.StorageKey = storageKey.String
	}
	if failReason.Valid {
		d.FailReason = failReason.String
	}
	return &d, nil
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, filename, storage_key, status, fail_reason, chunk_count, created_at, updated_at
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, filename, storage_key, status, fail_reason, chunk_count, created_at, updated_at
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	return &service.DocumentPageResult{
		Items:   items,
		HasMore: hasMore,
	}, nil
}

// UpdateStatus persists the document's current status fields. Implements
// service.StatusReporter.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, d *domain.Document) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, fail_reason = $2, chunk_count = $3, updated_at = $4 WHERE id = $5`,
		d.Status, d.FailReason, d.ChunkCount, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		var storageKey, failReason pgtype.Text
		if err := rows.Scan(&d.ID, &d.Filename, &storageKey, &d.Status, &failReason, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if storageKey.Valid {
			d.StorageKey = storageKey.String
		}
		if failReason.Valid {
			d.FailReason = failReason.String
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
