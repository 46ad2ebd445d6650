package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// ObjectStore defines the contract for saving and retrieving binary objects.
// Keys are slash-separated and relative to the store's root.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}

// ReadAll opens key and reads it fully, refusing payloads above limit when limit > 0.
func ReadAll(ctx context.Context, store ObjectStore, key string, limit int64) ([]byte, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var r io.Reader = body
	if limit > 0 {
		r = io.LimitReader(body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// ErrTooLarge is returned by ReadAll when the object exceeds the read limit.
var ErrTooLarge = errors.New("object exceeds read limit")
