package rules

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"redact-backend/internal/retry"
)

// PGSource keeps configs in the redaction_configs table.
type PGSource struct {
	DB    *sql.DB
	Retry retry.Policy
}

// Version returns updated_at for the owner's row.
func (s *PGSource) Version(ctx context.Context, ownerID string) (time.Time, error) {
	const query = `SELECT updated_at FROM redaction_configs WHERE owner_id = $1`
	return retry.Value(ctx, s.Retry, "config.version", func(ctx context.Context) (time.Time, error) {
		var updatedAt time.Time
		err := s.DB.QueryRowContext(ctx, query, ownerID).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return updatedAt.UTC(), err
	})
}

// Load returns the stored JSON body and updated_at.
func (s *PGSource) Load(ctx context.Context, ownerID string) (Record, error) {
	const query = `SELECT body, updated_at FROM redaction_configs WHERE owner_id = $1`
	return retry.Value(ctx, s.Retry, "config.load", func(ctx context.Context) (Record, error) {
		var rec Record
		err := s.DB.QueryRowContext(ctx, query, ownerID).Scan(&rec.Body, &rec.LastModified)
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		rec.LastModified = rec.LastModified.UTC()
		return rec, err
	})
}

// Save upserts the owner's config, bumping version and updated_at.
func (s *PGSource) Save(ctx context.Context, ownerID string, cfg Config) (time.Time, error) {
	body, err := MarshalJSON(cfg)
	if err != nil {
		return time.Time{}, err
	}
	const query = `
INSERT INTO redaction_configs (owner_id, body, version, updated_at)
VALUES ($1, $2, 1, clock_timestamp())
ON CONFLICT (owner_id) DO UPDATE
SET body = EXCLUDED.body,
    version = redaction_configs.version + 1,
    updated_at = GREATEST(clock_timestamp(), redaction_configs.updated_at + interval '1 microsecond')
RETURNING updated_at`
	return retry.Value(ctx, s.Retry, "config.save", func(ctx context.Context) (time.Time, error) {
		var updatedAt time.Time
		err := s.DB.QueryRowContext(ctx, query, ownerID, body).Scan(&updatedAt)
		return updatedAt.UTC(), err
	})
}

var (
	_ Source = (*PGSource)(nil)
	_ Writer = (*PGSource)(nil)
)
