package results

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]ProcessingResult
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]ProcessingResult)}
}

// Create stores r unless the document already has a result.
func (m *MemoryRepo) Create(ctx context.Context, r ProcessingResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[r.DocumentID]; ok {
		return ErrAlreadyExists
	}
	m.data[r.DocumentID] = r
	return nil
}

// Get returns the result for a document.
func (m *MemoryRepo) Get(ctx context.Context, documentID string) (ProcessingResult, error) {
	if err := ctx.Err(); err != nil {
		return ProcessingResult{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data[documentID]
	if !ok {
		return ProcessingResult{}, ErrNotFound
	}
	return r, nil
}

// Len returns the number of stored results.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var _ Repo = (*MemoryRepo)(nil)
