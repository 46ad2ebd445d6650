package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"redact-backend/internal/documents"
	"redact-backend/internal/filename"
	"redact-backend/internal/results"
	"redact-backend/internal/retry"
	"redact-backend/internal/shared/metrics"
	"redact-backend/internal/shared/storage/object"
	"redact-backend/internal/shared/telemetry"
	"redact-backend/internal/shared/util"
)

const (
	textContentType = "text/plain; charset=utf-8"
	sidecarSuffix   = ".reason.json"
)

// Artifact is the redacted output of a successful run.
type Artifact struct {
	// Name is the redacted output filename before collision resolution.
	Name           string
	Text           string
	RedactionCount int
}

// Router writes the terminal object and result for a document.
type Router struct {
	Store   object.ObjectStore
	Results results.Repo
	Retry   retry.Policy
	Now     func() time.Time
}

// Route decides the outcome from signals, writes the processed text or the
// quarantined original, then records the ProcessingResult. Storage failures
// that outlast the retry policy are returned and nothing is recorded.
func (r *Router) Route(ctx context.Context, doc documents.Document, signals Signals, artifact Artifact) (results.ProcessingResult, error) {
	decision := Decide(signals)
	res := results.ProcessingResult{
		DocumentID:  doc.ID,
		OwnerID:     doc.OwnerID,
		Status:      decision.Status,
		Reason:      decision.Reason,
		ProcessedAt: r.now(),
	}

	var err error
	if decision.Quarantine() {
		res.OriginalKey = doc.StorageKey
		res.OutputKey, err = r.quarantine(ctx, doc, res)
	} else {
		res.RedactionCount = artifact.RedactionCount
		res.OutputKey, err = r.publish(ctx, doc, artifact)
	}
	if err != nil {
		return results.ProcessingResult{}, err
	}

	err = r.Retry.Do(ctx, "results.create", func(ctx context.Context) error {
		return r.Results.Create(ctx, res)
	})
	if errors.Is(err, results.ErrAlreadyExists) {
		existing, getErr := r.Results.Get(ctx, doc.ID)
		if getErr != nil {
			return results.ProcessingResult{}, getErr
		}
		telemetry.Warn("routing.duplicate_result", map[string]any{
			"document_id": doc.ID,
			"owner_id":    doc.OwnerID,
			"status":      string(existing.Status),
			"orphan_key":  res.OutputKey,
		})
		return existing, nil
	}
	if err != nil {
		return results.ProcessingResult{}, fmt.Errorf("record result: %w", err)
	}

	if res.Quarantined() {
		metrics.IncDocumentsQuarantined(res.Reason)
	} else {
		metrics.IncDocumentsProcessed()
		metrics.AddRedactions(res.RedactionCount)
	}
	telemetry.Info("pipeline.document.routed", map[string]any{
		"document_id":     doc.ID,
		"owner_id":        doc.OwnerID,
		"status":          string(res.Status),
		"reason":          res.Reason,
		"output_key":      res.OutputKey,
		"redaction_count": res.RedactionCount,
	})
	return res, nil
}

func (r *Router) publish(ctx context.Context, doc documents.Document, artifact Artifact) (string, error) {
	prefix := util.OwnerPrefix(util.NamespaceProcessed, doc.OwnerID)
	name, err := retry.Value(ctx, r.Retry, "processed.list", func(ctx context.Context) (string, error) {
		return filename.Next(ctx, r.Store, prefix, artifact.Name)
	})
	if err != nil {
		return "", fmt.Errorf("resolve output name: %w", err)
	}

	key := prefix + name
	err = r.Retry.Do(ctx, "processed.put", func(ctx context.Context) error {
		_, err := r.Store.Put(ctx, key, textContentType, strings.NewReader(artifact.Text))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write processed output: %w", err)
	}
	return key, nil
}

func (r *Router) quarantine(ctx context.Context, doc documents.Document, res results.ProcessingResult) (string, error) {
	original := doc.OriginalFilename
	if original == "" {
		original = "document"
	}
	key := util.OwnerKey(util.NamespaceQuarantine, doc.OwnerID, doc.ID, original)
	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err := r.Retry.Do(ctx, "quarantine.copy", func(ctx context.Context) error {
		body, err := r.Store.Open(ctx, doc.StorageKey)
		if err != nil {
			return err
		}
		defer body.Close()
		_, err = r.Store.Put(ctx, key, contentType, body)
		return err
	})
	switch {
	case errors.Is(err, object.ErrNotFound):
		telemetry.Warn("routing.quarantine.original_missing", map[string]any{
			"document_id":  doc.ID,
			"original_key": doc.StorageKey,
		})
	case err != nil:
		return "", fmt.Errorf("write quarantine copy: %w", err)
	}

	record, _ := res.QuarantineRecord()
	sidecar, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	err = r.Retry.Do(ctx, "quarantine.sidecar", func(ctx context.Context) error {
		_, err := r.Store.Put(ctx, key+sidecarSuffix, "application/json", bytes.NewReader(sidecar))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write quarantine reason: %w", err)
	}
	return key, nil
}

// ReadQuarantineRecord loads the reason sidecar written next to a quarantined object.
func ReadQuarantineRecord(ctx context.Context, store object.ObjectStore, quarantineKey string) (results.QuarantineRecord, error) {
	body, err := store.Open(ctx, quarantineKey+sidecarSuffix)
	if err != nil {
		return results.QuarantineRecord{}, err
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return results.QuarantineRecord{}, err
	}
	var rec results.QuarantineRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return results.QuarantineRecord{}, err
	}
	return rec, nil
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
