package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/pagination"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
)

// MemoryDocumentRepository keeps document metadata in process memory. It
// backs the server when no database is configured and mirrors the keyset
// pagination semantics of the Postgres repository.
type MemoryDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{docs: make(map[string]*domain.Document)}
}

func (r *MemoryDocumentRepository) Create(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	r.docs[d.ID] = &clone
	return nil
}

func (r *MemoryDocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	clone := *d
	return &clone, nil
}

// ListWithCursor returns documents newest first, ordered by (created_at, id)
// descending so ties on created_at still page deterministically.
func (r *MemoryDocumentRepository) ListWithCursor(_ context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	r.mu.RLock()
	items := make([]*domain.Document, 0, len(r.docs))
	for _, d := range r.docs {
		clone := *d
		items = append(items, &clone)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})

	if cursor != nil {
		filtered := items[:0]
		for _, d := range items {
			if d.CreatedAt.Before(cursor.Timestamp) ||
				(d.CreatedAt.Equal(cursor.Timestamp) && d.ID < cursor.LastID) {
				filtered = append(filtered, d)
			}
		}
		items = filtered
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return &service.DocumentPageResult{Items: items, HasMore: hasMore}, nil
}

func (r *MemoryDocumentRepository) UpdateStatus(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[d.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	clone := *d
	r.docs[d.ID] = &clone
	return nil
}

func (r *MemoryDocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}
