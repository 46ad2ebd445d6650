package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"redact-backend/internal/shared/storage/object"
)

type entry struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Store is an in-memory ObjectStore used by the CLI and tests.
type Store struct {
	mu   sync.RWMutex
	objs map[string]entry
	now  func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{objs: make(map[string]entry), now: time.Now}
}

// Put stores the reader contents under key.
func (s *Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[key] = entry{data: data, contentType: contentType, modified: s.now().UTC()}
	return int64(len(data)), nil
}

// Open returns a reader over a copy of the stored bytes.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.objs[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", key, object.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(e.data))), nil
}

// Stat describes key.
func (s *Store) Stat(ctx context.Context, key string) (object.Info, error) {
	if err := ctx.Err(); err != nil {
		return object.Info{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.objs[key]
	if !ok {
		return object.Info{}, fmt.Errorf("stat %s: %w", key, object.ErrNotFound)
	}
	return object.Info{Key: key, Size: int64(len(e.data)), LastModified: e.modified, ContentType: e.contentType}, nil
}

// List returns objects under prefix sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]object.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []object.Info
	for key, e := range s.objs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, object.Info{Key: key, Size: int64(len(e.data)), LastModified: e.modified, ContentType: e.contentType})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SetModified overrides the modification time of key. It reports whether key exists.
func (s *Store) SetModified(key string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objs[key]
	if !ok {
		return false
	}
	e.modified = at.UTC()
	s.objs[key] = e
	return true
}

// Keys returns all stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objs))
	for k := range s.objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ object.ObjectStore = (*Store)(nil)
