package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redact-backend/internal/shared/telemetry"
)

// ErrNotFound is returned by a Source when the owner has no stored config.
var ErrNotFound = errors.New("config not found")

// Record is a raw stored config and its modification time.
type Record struct {
	Body         []byte
	LastModified time.Time
}

// Source loads raw config records for an owner.
type Source interface {
	// Version returns the record's last-modified time without reading the body.
	Version(ctx context.Context, ownerID string) (time.Time, error)
	Load(ctx context.Context, ownerID string) (Record, error)
}

// Writer persists an owner's config.
type Writer interface {
	Save(ctx context.Context, ownerID string, cfg Config) (time.Time, error)
}

// Resolver loads owner configs through a Cache.
type Resolver struct {
	source Source
	cache  *Cache
}

// NewResolver builds a Resolver. A nil cache gets a fresh one.
func NewResolver(source Source, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{source: source, cache: cache}
}

// GetConfig returns the owner's config. A missing or malformed record yields
// the owner's empty default; only storage failures are returned as errors.
func (r *Resolver) GetConfig(ctx context.Context, ownerID string) (Config, error) {
	if r == nil || r.source == nil {
		return Default(ownerID), nil
	}

	lastModified, err := r.source.Version(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return Default(ownerID), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config version owner=%s: %w", ownerID, err)
	}

	if cfg, ok := r.cache.Lookup(ownerID, lastModified); ok {
		return cfg, nil
	}

	rec, err := r.source.Load(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return Default(ownerID), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config load owner=%s: %w", ownerID, err)
	}

	cfg, err := ParseJSON(rec.Body)
	if err != nil {
		telemetry.Error("rules.config.malformed", map[string]any{
			"owner_id":      ownerID,
			"last_modified": rec.LastModified,
			"error":         err.Error(),
		})
		cfg = Default(ownerID)
	}
	cfg.OwnerID = ownerID
	cfg.LastModified = rec.LastModified
	r.cache.Store(ownerID, rec.LastModified, cfg)
	return cfg.Clone(), nil
}
