package documents

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, owner_id, original_filename, size_bytes, extension, mime_type, storage_key, uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var mimeType sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.OriginalFilename,
		&doc.SizeBytes,
		&doc.Extension,
		&mimeType,
		&doc.StorageKey,
		&doc.UploadedAt,
	)
	if err != nil {
		return Document{}, err
	}
	if mimeType.Valid {
		doc.MimeType = mimeType.String
	}
	return doc, nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    original_filename,
    size_bytes,
    extension,
    mime_type,
    storage_key,
    uploaded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var mimeType sql.NullString
	if doc.MimeType != "" {
		mimeType = sql.NullString{String: doc.MimeType, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.OriginalFilename,
		doc.SizeBytes,
		doc.Extension,
		mimeType,
		doc.StorageKey,
		doc.UploadedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// GetByID fetches a document by ID for an owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerID, documentID string) (Document, error) {
	query := `SELECT ` + selectColumns + `
FROM documents
WHERE owner_id = $1 AND id = $2
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, ownerID, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// GetByStorageKey fetches the document uploaded at storageKey.
func (r *PGRepo) GetByStorageKey(ctx context.Context, storageKey string) (Document, error) {
	query := `SELECT ` + selectColumns + `
FROM documents
WHERE storage_key = $1
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, storageKey))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// ListByOwner lists documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + selectColumns + `
FROM documents
WHERE owner_id = $1
ORDER BY uploaded_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

var _ DocumentsRepo = (*PGRepo)(nil)
