package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"redact-backend/internal/classify"
	"redact-backend/internal/queue"
	"redact-backend/internal/results"
	"redact-backend/internal/shared/storage/object"
	"redact-backend/internal/shared/telemetry"
	"redact-backend/internal/shared/util"
)

const sniffLen = 3072

// Service contains business logic for documents.
type Service struct {
	Store   object.ObjectStore
	Repo    DocumentsRepo
	Results results.Repo
	// Queue is optional; without it processing relies on storage notifications.
	Queue queue.Client
	Now   func() time.Time
}

// Upload stores the file under the owner's uploads prefix, records the
// document and enqueues it for redaction. Size and type policy is left to
// the classifier so rejected uploads still end in quarantine.
func (s *Service) Upload(ctx context.Context, ownerID, fileName, requestID string, r io.Reader) (Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, fmt.Errorf("%w: owner id required", ErrInvalidInput)
	}
	clean, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mimeType := mimetype.Detect(head).String()

	docID := uuid.NewString()
	key := util.OwnerKey(util.NamespaceUploads, ownerID, docID, clean)
	size, err := s.Store.Put(ctx, key, mimeType, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}

	doc := Document{
		ID:               docID,
		OwnerID:          ownerID,
		OriginalFilename: clean,
		SizeBytes:        size,
		Extension:        classify.Extension(clean),
		MimeType:         mimeType,
		StorageKey:       key,
		UploadedAt:       s.now(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("record document: %w", err)
	}

	telemetry.Info("documents.uploaded", map[string]any{
		"document_id": doc.ID,
		"owner_id":    ownerID,
		"size_bytes":  size,
		"mime_type":   mimeType,
		"request_id":  requestID,
	})

	if s.Queue != nil {
		msg := queue.Message{
			DocumentID: doc.ID,
			OwnerID:    ownerID,
			ObjectKey:  key,
			Filename:   clean,
			Size:       size,
			RequestID:  requestID,
			EnqueuedAt: doc.UploadedAt.Format(time.RFC3339),
			Version:    queue.MessageVersion,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			return Document{}, fmt.Errorf("enqueue document: %w", err)
		}
	}
	return doc, nil
}

// Get returns an owner's document and its processing result, if any.
func (s *Service) Get(ctx context.Context, ownerID, documentID string) (Document, *results.ProcessingResult, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, nil, ErrInvalidInput
	}
	doc, err := s.Repo.GetByID(ctx, ownerID, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	res, err := s.result(ctx, doc.ID)
	if err != nil {
		return Document{}, nil, err
	}
	return doc, res, nil
}

// List returns an owner's documents with their results.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]DocumentResponse, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidInput
	}
	docs, err := s.Repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		res, err := s.result(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, toResponse(doc, res))
	}
	return out, nil
}

func (s *Service) result(ctx context.Context, documentID string) (*results.ProcessingResult, error) {
	if s.Results == nil {
		return nil, nil
	}
	res, err := s.Results.Get(ctx, documentID)
	if errors.Is(err, results.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
