// Package pipeline runs one uploaded document from trigger to terminal
// outcome: fetch, classify, extract, resolve rules, redact, route.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"redact-backend/internal/classify"
	"redact-backend/internal/documents"
	"redact-backend/internal/extract"
	"redact-backend/internal/filename"
	"redact-backend/internal/queue"
	"redact-backend/internal/redaction"
	"redact-backend/internal/results"
	"redact-backend/internal/retry"
	"redact-backend/internal/routing"
	"redact-backend/internal/rules"
	"redact-backend/internal/shared/metrics"
	"redact-backend/internal/shared/storage/object"
	"redact-backend/internal/shared/telemetry"
)

const sniffLen = 3072

// ErrUnknownDocument is returned when a trigger names an object that no
// recorded document owns. Redelivery cannot fix it.
var ErrUnknownDocument = errors.New("unknown document")

// Summarizer is an optional post-processing collaborator.
type Summarizer interface {
	Summarize(ctx context.Context, documentID, text string) (string, error)
}

// Processor wires the pipeline stages together.
type Processor struct {
	Store      object.ObjectStore
	Documents  documents.DocumentsRepo
	Results    results.Repo
	Rules      rules.Source
	Classifier *classify.Classifier
	Extract    extract.Options
	Engine     *redaction.Engine
	Filenames  *filename.Redactor
	Router     *routing.Router
	Retry      retry.Policy
	Summarizer Summarizer
	Now        func() time.Time
}

// Process handles one trigger. It returns an error only when the failure is
// transient and redelivery may succeed; every other failure is routed to
// quarantine and reported through the returned result.
func (p *Processor) Process(ctx context.Context, msg queue.Message) (results.ProcessingResult, error) {
	start := p.now()
	metrics.IncDocumentsReceived()

	doc, err := p.document(ctx, msg)
	if err != nil {
		return results.ProcessingResult{}, p.failed(msg, err)
	}

	existing, err := p.Results.Get(ctx, doc.ID)
	switch {
	case err == nil:
		telemetry.Info("pipeline.document.already_routed", map[string]any{
			"document_id": doc.ID,
			"owner_id":    doc.OwnerID,
			"status":      string(existing.Status),
		})
		return existing, nil
	case !errors.Is(err, results.ErrNotFound):
		return results.ProcessingResult{}, p.failed(msg, retry.Transient(fmt.Errorf("lookup result: %w", err)))
	}

	res, err := p.safeRun(ctx, doc, msg.RequestID)
	if err != nil {
		return results.ProcessingResult{}, p.failed(msg, err)
	}
	metrics.ObserveProcessingDurationMs(float64(p.now().Sub(start).Milliseconds()))
	return res, nil
}

func (p *Processor) safeRun(ctx context.Context, doc documents.Document, requestID string) (res results.ProcessingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("pipeline.panic", map[string]any{
				"document_id": doc.ID,
				"owner_id":    doc.OwnerID,
				"request_id":  requestID,
				"panic":       fmt.Sprint(r),
				"stack":       string(debug.Stack()),
			})
			res, err = p.Router.Route(ctx, doc, routing.Signals{Internal: true}, routing.Artifact{})
		}
	}()
	return p.run(ctx, doc, requestID)
}

func (p *Processor) run(ctx context.Context, doc documents.Document, requestID string) (results.ProcessingResult, error) {
	fields := map[string]any{
		"document_id": doc.ID,
		"owner_id":    doc.OwnerID,
		"request_id":  requestID,
	}

	info, err := retry.Value(ctx, p.Retry, "upload.stat", func(ctx context.Context) (object.Info, error) {
		return p.Store.Stat(ctx, doc.StorageKey)
	})
	if err != nil {
		return p.unexpected(ctx, doc, "upload.stat", err, fields)
	}

	classifier := p.Classifier
	if classifier == nil || classifier.MaxSize <= 0 {
		classifier = classify.New(0)
	}

	// Oversized uploads are rejected from the stat alone and never downloaded.
	if info.Size > classifier.MaxSize {
		verdict := classifier.Classify(doc.OriginalFilename, info.Size, nil)
		return p.reject(ctx, doc, verdict, fields)
	}

	data, err := retry.Value(ctx, p.Retry, "upload.read", func(ctx context.Context) ([]byte, error) {
		return object.ReadAll(ctx, p.Store, doc.StorageKey, classifier.MaxSize)
	})
	if errors.Is(err, object.ErrTooLarge) {
		verdict := classifier.Classify(doc.OriginalFilename, classifier.MaxSize+1, nil)
		return p.reject(ctx, doc, verdict, fields)
	}
	if err != nil {
		return p.unexpected(ctx, doc, "upload.read", err, fields)
	}

	sniff := data
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	verdict := classifier.Classify(doc.OriginalFilename, int64(len(data)), sniff)
	if verdict.Rejected {
		return p.reject(ctx, doc, verdict, fields)
	}
	if verdict.Warning != "" {
		telemetry.Warn("classify.content_mismatch", with(fields, map[string]any{
			"extension": verdict.Extension,
			"detected":  verdict.Detected,
		}))
	}

	extractor, err := extract.For(verdict.Strategy, p.Extract)
	if err != nil {
		return p.extractionFailed(ctx, doc, err, fields)
	}
	extracted, err := extractor.Extract(ctx, data)
	if err != nil {
		if extract.IsExtractionError(err) {
			return p.extractionFailed(ctx, doc, err, fields)
		}
		return p.unexpected(ctx, doc, "extract", err, fields)
	}
	telemetry.Info("pipeline.document.extracted", with(fields, extracted.Metadata()))

	cfg, err := rules.NewResolver(p.Rules, rules.NewCache()).GetConfig(ctx, doc.OwnerID)
	if err != nil {
		// A missing config must never produce unredacted output.
		return results.ProcessingResult{}, retry.Transient(fmt.Errorf("resolve config: %w", err))
	}

	engine := p.Engine
	if engine == nil {
		engine = redaction.New()
	}
	outcome, err := engine.Apply(extracted.Text, cfg)
	if err != nil {
		return p.unexpected(ctx, doc, "redact", err, fields)
	}

	res, err := p.Router.Route(ctx, doc, routing.Signals{Redacted: true}, routing.Artifact{
		Name:           p.Filenames.RedactFilename(doc.OriginalFilename, cfg),
		Text:           outcome.Text,
		RedactionCount: outcome.Count,
	})
	if err != nil {
		return results.ProcessingResult{}, err
	}
	if res.Status == results.StatusProcessed {
		p.summarize(ctx, doc, outcome.Text, fields)
	}
	return res, nil
}

func (p *Processor) reject(ctx context.Context, doc documents.Document, verdict classify.Result, fields map[string]any) (results.ProcessingResult, error) {
	telemetry.Warn("classify.rejected", with(fields, map[string]any{
		"reason":    verdict.Reason,
		"extension": verdict.Extension,
	}))
	return p.Router.Route(ctx, doc, routing.Signals{Rejected: true, RejectReason: verdict.Reason}, routing.Artifact{})
}

func (p *Processor) extractionFailed(ctx context.Context, doc documents.Document, err error, fields map[string]any) (results.ProcessingResult, error) {
	extra := map[string]any{"error": err.Error()}
	var exErr *extract.ExtractionError
	if errors.As(err, &exErr) {
		extra["strategy"] = exErr.Strategy.String()
		extra["extract_reason"] = exErr.Reason
	}
	telemetry.Warn("extract.failed", with(fields, extra))
	return p.Router.Route(ctx, doc, routing.Signals{ExtractionFailed: true}, routing.Artifact{})
}

// unexpected returns transient failures for redelivery and quarantines the rest.
func (p *Processor) unexpected(ctx context.Context, doc documents.Document, stage string, err error, fields map[string]any) (results.ProcessingResult, error) {
	if ctx.Err() != nil || retry.IsTransient(err) || retry.IsExhausted(err) {
		return results.ProcessingResult{}, fmt.Errorf("%s: %w", stage, err)
	}
	telemetry.Error("pipeline.internal_error", with(fields, map[string]any{
		"stage": stage,
		"error": err.Error(),
	}))
	return p.Router.Route(ctx, doc, routing.Signals{Internal: true}, routing.Artifact{})
}

func (p *Processor) summarize(ctx context.Context, doc documents.Document, text string, fields map[string]any) {
	if p.Summarizer == nil {
		return
	}
	summary, err := p.Summarizer.Summarize(ctx, doc.ID, text)
	if err != nil {
		telemetry.Warn("pipeline.summary.failed", with(fields, map[string]any{"error": err.Error()}))
		return
	}
	telemetry.Info("pipeline.summary.created", with(fields, map[string]any{"summary_chars": len(summary)}))
}

// document resolves the trigger to a recorded document. Messages from the
// API carry owner and ID; storage notifications carry only the key.
func (p *Processor) document(ctx context.Context, msg queue.Message) (documents.Document, error) {
	lookup := func(ctx context.Context) (documents.Document, error) {
		if msg.OwnerID != "" && msg.DocumentID != "" {
			return p.Documents.GetByID(ctx, msg.OwnerID, msg.DocumentID)
		}
		return p.Documents.GetByStorageKey(ctx, msg.ObjectKey)
	}
	doc, err := retry.Value(ctx, p.Retry, "documents.lookup", lookup)
	if errors.Is(err, documents.ErrNotFound) {
		return documents.Document{}, fmt.Errorf("%w: key=%s", ErrUnknownDocument, msg.ObjectKey)
	}
	if err != nil {
		return documents.Document{}, retry.Transient(fmt.Errorf("lookup document: %w", err))
	}
	return doc, nil
}

func (p *Processor) failed(msg queue.Message, err error) error {
	fields := map[string]any{
		"document_id": msg.DocumentID,
		"owner_id":    msg.OwnerID,
		"object_key":  msg.ObjectKey,
		"request_id":  msg.RequestID,
		"error":       err.Error(),
	}
	if errors.Is(err, ErrUnknownDocument) {
		telemetry.Warn("pipeline.unknown_document", fields)
		return err
	}
	metrics.IncTransientFailures()
	telemetry.Warn("pipeline.transient_failure", fields)
	return err
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func with(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
