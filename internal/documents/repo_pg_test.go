package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var docColumns = []string{"id", "owner_id", "original_filename", "size_bytes", "extension", "mime_type", "storage_key", "uploaded_at"}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := Document{ID: "d1", OwnerID: "o", OriginalFilename: "a.pdf", SizeBytes: 10, Extension: ".pdf", StorageKey: "uploads/h/d1/a.pdf", UploadedAt: at}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("d1", "o", "a.pdf", int64(10), ".pdf", nil, "uploads/h/d1/a.pdf", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByStorageKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM documents").
		WithArgs("uploads/h/d1/a.pdf").
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow("d1", "o", "a.pdf", 10, ".pdf", "application/pdf", "uploads/h/d1/a.pdf", at))
	mock.ExpectQuery("FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := &PGRepo{DB: db}
	doc, err := repo.GetByStorageKey(context.Background(), "uploads/h/d1/a.pdf")
	if err != nil {
		t.Fatalf("GetByStorageKey: %v", err)
	}
	if doc.OwnerID != "o" || doc.MimeType != "application/pdf" || !doc.UploadedAt.Equal(at) {
		t.Fatalf("unexpected doc %+v", doc)
	}
	if _, err := repo.GetByStorageKey(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
