package deadletter

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data []DeadLetter
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

// Create appends dl, or refreshes the record that already has its ID.
func (m *MemoryRepo) Create(ctx context.Context, dl DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data {
		if m.data[i].ID == dl.ID {
			m.data[i].Error = dl.Error
			m.data[i].Attempts = dl.Attempts
			return nil
		}
	}
	m.data = append(m.data, dl)
	return nil
}

// ListByOwner returns the owner's dead letters, newest first.
func (m *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]DeadLetter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []DeadLetter
	for _, dl := range m.data {
		if dl.OwnerID == ownerID {
			out = append(out, dl)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
