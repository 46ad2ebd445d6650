package documents

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoRejectsDuplicateStorageKey(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	doc := Document{ID: "d1", OwnerID: "o1", StorageKey: "uploads/h/d1/a.txt"}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := Document{ID: "d2", OwnerID: "o2", StorageKey: doc.StorageKey}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for storage key, got %v", err)
	}
	if err := repo.Create(ctx, Document{ID: "d1", OwnerID: "o1", StorageKey: "other"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for id, got %v", err)
	}
}

func TestMemoryRepoScopesByOwner(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		doc := Document{ID: id, OwnerID: "o1", StorageKey: "k/" + id, UploadedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, doc); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	if _, err := repo.GetByID(ctx, "o2", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across owners, got %v", err)
	}
	got, err := repo.GetByStorageKey(ctx, "k/b")
	if err != nil || got.ID != "b" {
		t.Fatalf("GetByStorageKey = %+v, %v", got, err)
	}

	page, err := repo.ListByOwner(ctx, "o1", 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "a" {
		t.Fatalf("unexpected page %+v", page)
	}
}
