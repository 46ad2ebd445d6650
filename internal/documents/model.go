package documents

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict means the id or storage key is already recorded.
	ErrConflict = errors.New("document already exists")
)

// Document is an uploaded file awaiting or past redaction.
type Document struct {
	ID               string
	OwnerID          string
	OriginalFilename string
	SizeBytes        int64
	Extension        string
	MimeType         string
	StorageKey       string
	UploadedAt       time.Time
}
