package deadletter

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo on the dead_letters table.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts dl. A repeated ID refreshes error and attempts.
func (r *PGRepo) Create(ctx context.Context, dl DeadLetter) error {
	const query = `
INSERT INTO dead_letters (id, owner_id, object_key, body, error, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET error = EXCLUDED.error, attempts = EXCLUDED.attempts`
	_, err := r.DB.ExecContext(ctx, query,
		dl.ID,
		dl.OwnerID,
		dl.ObjectKey,
		dl.Body,
		dl.Error,
		dl.Attempts,
		dl.CreatedAt,
	)
	return err
}

// ListByOwner returns the owner's dead letters, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT id, owner_id, object_key, body, error, attempts, created_at
FROM dead_letters
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(&dl.ID, &dl.OwnerID, &dl.ObjectKey, &dl.Body, &dl.Error, &dl.Attempts, &dl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
