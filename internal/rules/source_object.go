package rules

import (
	"bytes"
	"context"
	"errors"
	"time"

	"redact-backend/internal/retry"
	"redact-backend/internal/shared/storage/object"
	"redact-backend/internal/shared/util"
)

const configFileName = "redaction.json"

// maxConfigBytes bounds how much of a stored config record is read.
const maxConfigBytes = 1 << 20

// ObjectSource keeps configs as JSON objects under configs/<owner>/redaction.json.
type ObjectSource struct {
	Store object.ObjectStore
	Retry retry.Policy
}

// ConfigKey returns the storage key of an owner's config record.
func ConfigKey(ownerID string) string {
	return util.OwnerKey(util.NamespaceConfigs, ownerID, configFileName)
}

// Version stats the config object.
func (s *ObjectSource) Version(ctx context.Context, ownerID string) (time.Time, error) {
	info, err := retry.Value(ctx, s.Retry, "config.stat", func(ctx context.Context) (object.Info, error) {
		return s.Store.Stat(ctx, ConfigKey(ownerID))
	})
	if errors.Is(err, object.ErrNotFound) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.LastModified, nil
}

// Load reads the config object and its modification time.
func (s *ObjectSource) Load(ctx context.Context, ownerID string) (Record, error) {
	key := ConfigKey(ownerID)
	rec, err := retry.Value(ctx, s.Retry, "config.load", func(ctx context.Context) (Record, error) {
		info, err := s.Store.Stat(ctx, key)
		if err != nil {
			return Record{}, err
		}
		body, err := object.ReadAll(ctx, s.Store, key, maxConfigBytes)
		if err != nil {
			return Record{}, err
		}
		return Record{Body: body, LastModified: info.LastModified}, nil
	})
	if errors.Is(err, object.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if errors.Is(err, object.ErrTooLarge) {
		// Treated like any other malformed record by the resolver.
		return Record{Body: nil, LastModified: rec.LastModified}, nil
	}
	return rec, err
}

// Save writes cfg as the owner's config record.
func (s *ObjectSource) Save(ctx context.Context, ownerID string, cfg Config) (time.Time, error) {
	body, err := MarshalJSON(cfg)
	if err != nil {
		return time.Time{}, err
	}
	key := ConfigKey(ownerID)
	err = s.Retry.Do(ctx, "config.save", func(ctx context.Context) error {
		_, err := s.Store.Put(ctx, key, "application/json", bytes.NewReader(body))
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return s.Version(ctx, ownerID)
}

var (
	_ Source = (*ObjectSource)(nil)
	_ Writer = (*ObjectSource)(nil)
)
