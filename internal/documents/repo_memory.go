package documents

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory DocumentsRepo used in dev and by redactctl.
// Storage keys are unique across owners, as in Postgres.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Document
	byKey   map[string]string   // storage key -> id
	byOwner map[string][]string // owner -> ids in insertion order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Document),
		byKey:   make(map[string]string),
		byOwner: make(map[string][]string),
	}
}

// Create records doc. A repeated id or storage key returns ErrConflict.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[doc.ID]; ok {
		return ErrConflict
	}
	if _, ok := r.byKey[doc.StorageKey]; ok {
		return ErrConflict
	}
	r.byID[doc.ID] = doc
	r.byKey[doc.StorageKey] = doc.ID
	r.byOwner[doc.OwnerID] = append(r.byOwner[doc.OwnerID], doc.ID)
	return nil
}

// GetByID returns the owner's document. Another owner's id is ErrNotFound.
func (r *MemoryRepo) GetByID(ctx context.Context, ownerID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[documentID]
	if !ok || doc.OwnerID != ownerID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetByStorageKey returns the document stored at storageKey.
func (r *MemoryRepo) GetByStorageKey(ctx context.Context, storageKey string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[storageKey]
	if !ok {
		return Document{}, ErrNotFound
	}
	return r.byID[id], nil
}

// ListByOwner returns documents for an owner, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset = max(offset, 0)
	limit = max(limit, 0)

	r.mu.RLock()
	docs := make([]Document, 0, len(r.byOwner[ownerID]))
	for _, id := range r.byOwner[ownerID] {
		docs = append(docs, r.byID[id])
	}
	r.mu.RUnlock()

	if offset >= len(docs) {
		return []Document{}, nil
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})

	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

var _ DocumentsRepo = (*MemoryRepo)(nil)
