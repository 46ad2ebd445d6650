package results

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PGRepo implements Repo on the processing_results table.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts r. The primary key on document_id enforces one result per document.
func (r *PGRepo) Create(ctx context.Context, res ProcessingResult) error {
	const query = `
INSERT INTO processing_results (
    document_id,
    owner_id,
    status,
    output_key,
    redaction_count,
    reason,
    original_key,
    processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.DB.ExecContext(ctx, query,
		res.DocumentID,
		res.OwnerID,
		string(res.Status),
		res.OutputKey,
		res.RedactionCount,
		nullString(res.Reason),
		nullString(res.OriginalKey),
		res.ProcessedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

// Get fetches the result for a document.
func (r *PGRepo) Get(ctx context.Context, documentID string) (ProcessingResult, error) {
	const query = `
SELECT document_id, owner_id, status, output_key, redaction_count, reason, original_key, processed_at
FROM processing_results
WHERE document_id = $1`
	var res ProcessingResult
	var status string
	var reason, originalKey sql.NullString
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(
		&res.DocumentID,
		&res.OwnerID,
		&status,
		&res.OutputKey,
		&res.RedactionCount,
		&reason,
		&originalKey,
		&res.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProcessingResult{}, ErrNotFound
		}
		return ProcessingResult{}, err
	}
	res.Status = Status(status)
	res.Reason = reason.String
	res.OriginalKey = originalKey.String
	return res, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
