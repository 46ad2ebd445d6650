package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
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
	"redact-backend/internal/shared/storage/object/memory"
	"redact-backend/internal/shared/util"
)

type fakeOCR struct {
	calls atomic.Int32
	text  string
	err   error
	panic bool
}

func (f *fakeOCR) Recognize(ctx context.Context, data []byte, contentType string) (string, error) {
	f.calls.Add(1)
	if f.panic {
		panic("ocr exploded")
	}
	return f.text, f.err
}

type fakeSummarizer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, documentID, text string) (string, error) {
	f.calls.Add(1)
	return "summary", f.err
}

type fixture struct {
	store   *memory.Store
	docs    *documents.MemoryRepo
	results *results.MemoryRepo
	ocr     *fakeOCR
	summary *fakeSummarizer
	proc    *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	noSleep := retry.Policy{MaxAttempts: 2, Sleep: func(ctx context.Context, d time.Duration) error { return nil }}
	f := &fixture{
		store:   memory.New(),
		docs:    documents.NewMemoryRepo(),
		results: results.NewMemoryRepo(),
		ocr:     &fakeOCR{text: "scanned"},
		summary: &fakeSummarizer{},
	}
	f.proc = &Processor{
		Store:      f.store,
		Documents:  f.docs,
		Results:    f.results,
		Rules:      &rules.ObjectSource{Store: f.store, Retry: noSleep},
		Classifier: classify.New(0),
		Extract:    extract.Options{OCR: f.ocr},
		Engine:     redaction.New(),
		Filenames:  filename.New(".txt"),
		Router:     &routing.Router{Store: f.store, Results: f.results, Retry: noSleep},
		Retry:      noSleep,
		Summarizer: f.summary,
	}
	return f
}

func (f *fixture) upload(t *testing.T, owner, docID, name string, body []byte) queue.Message {
	t.Helper()
	key := util.OwnerKey(util.NamespaceUploads, owner, docID, name)
	if _, err := f.store.Put(context.Background(), key, "", bytes.NewReader(body)); err != nil {
		t.Fatalf("put upload: %v", err)
	}
	doc := documents.Document{ID: docID, OwnerID: owner, OriginalFilename: name, SizeBytes: int64(len(body)), StorageKey: key, UploadedAt: time.Now().UTC()}
	if err := f.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("create doc: %v", err)
	}
	return queue.Message{DocumentID: docID, OwnerID: owner, ObjectKey: key, Size: int64(len(body))}
}

func (f *fixture) saveConfig(t *testing.T, owner, raw string) {
	t.Helper()
	if _, err := f.store.Put(context.Background(), rules.ConfigKey(owner), "application/json", strings.NewReader(raw)); err != nil {
		t.Fatalf("put config: %v", err)
	}
}

func (f *fixture) read(t *testing.T, key string) string {
	t.Helper()
	data, err := object.ReadAll(context.Background(), f.store, key, 0)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(data)
}

func TestProcessRedactsSSN(t *testing.T) {
	f := newFixture(t)
	f.saveConfig(t, "owner-1", `{"patterns":{"ssn":true}}`)
	msg := f.upload(t, "owner-1", "doc-a", "notes.txt", []byte("SSN: 123-45-6789"))

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != results.StatusProcessed || res.RedactionCount != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.read(t, res.OutputKey); got != "SSN: [SSN]" {
		t.Fatalf("unexpected output %q", got)
	}
	if f.summary.calls.Load() != 1 {
		t.Fatalf("summarizer should run once for processed documents")
	}
}

func TestProcessPDFOutputUsesCanonicalExtension(t *testing.T) {
	f := newFixture(t)
	msg := f.upload(t, "owner-1", "doc-b", "report.pdf", blankPDF())

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := util.OwnerPrefix(util.NamespaceProcessed, "owner-1") + "report.txt"
	if res.OutputKey != want {
		t.Fatalf("output key = %q, want %q", res.OutputKey, want)
	}
	if f.ocr.calls.Load() != 1 || f.read(t, want) != "scanned" {
		t.Fatalf("expected OCR text in output")
	}
}

func TestProcessOversizedNeverExtracted(t *testing.T) {
	f := newFixture(t)
	big := bytes.Repeat([]byte("a"), 60<<20)
	msg := f.upload(t, "owner-1", "doc-c", "scan.pdf", big)

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Quarantined() || res.Reason != classify.ReasonTooLarge {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.ocr.calls.Load() != 0 || f.summary.calls.Load() != 0 {
		t.Fatalf("oversized document must not reach extraction or summary")
	}
	want := util.OwnerKey(util.NamespaceQuarantine, "owner-1", "doc-c", "scan.pdf")
	if res.OutputKey != want {
		t.Fatalf("quarantine key = %q, want %q", res.OutputKey, want)
	}
}

func TestProcessMalformedConfigFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	f.saveConfig(t, "owner-1", `{"replacements": [`)
	msg := f.upload(t, "owner-1", "doc-d", "a.txt", []byte("SSN: 123-45-6789"))

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != results.StatusProcessed || res.RedactionCount != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.read(t, res.OutputKey); got != "SSN: 123-45-6789" {
		t.Fatalf("default config applies no rules, got %q", got)
	}
}

func TestProcessExtractionFailureQuarantinesOnce(t *testing.T) {
	f := newFixture(t)
	msg := f.upload(t, "owner-1", "doc-e", "broken.docx", []byte("PK\x03\x04 not really a zip"))

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Quarantined() || res.Reason != routing.ReasonExtractionFailed {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.results.Len() != 1 {
		t.Fatalf("expected exactly one result, got %d", f.results.Len())
	}
	for _, key := range f.store.Keys() {
		if strings.HasPrefix(key, util.NamespaceProcessed+"/") {
			t.Fatalf("no processed output expected, found %s", key)
		}
	}

	again, err := f.proc.Process(context.Background(), msg)
	if err != nil || again.Status != res.Status {
		t.Fatalf("quarantine is terminal, got %+v err=%v", again, err)
	}
	if f.results.Len() != 1 {
		t.Fatalf("redelivery must not add a result")
	}
}

func TestProcessUnsupportedType(t *testing.T) {
	f := newFixture(t)
	msg := f.upload(t, "owner-1", "doc-f", "photo.png", []byte("\x89PNG\r\n"))

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Reason != classify.ReasonUnsupported {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestProcessTransientOCRFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.ocr.err = errors.New("ocr timeout")
	msg := f.upload(t, "owner-1", "doc-g", "scan.pdf", blankPDF())
	received := counterValue(t, "documents_received_total")
	transient := counterValue(t, "transient_failures_total")

	_, err := f.proc.Process(context.Background(), msg)
	if err == nil || !retry.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if f.results.Len() != 0 {
		t.Fatalf("transient failure must not record a result")
	}
	if got := counterValue(t, "documents_received_total") - received; got != 1 {
		t.Fatalf("documents_received_total moved by %d, want 1", got)
	}
	if got := counterValue(t, "transient_failures_total") - transient; got != 1 {
		t.Fatalf("transient_failures_total moved by %d, want 1", got)
	}
}

func counterValue(t *testing.T, name string) uint64 {
	t.Helper()
	for _, line := range strings.Split(metrics.Render(), "\n") {
		if rest, ok := strings.CutPrefix(line, name+" "); ok {
			v, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				t.Fatalf("parse %s: %v", name, err)
			}
			return v
		}
	}
	t.Fatalf("counter %s not rendered", name)
	return 0
}

func TestProcessPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	f.ocr.panic = true
	msg := f.upload(t, "owner-1", "doc-h", "scan.pdf", blankPDF())

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Quarantined() || res.Reason != routing.ReasonInternal {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestProcessResolvesStorageNotification(t *testing.T) {
	f := newFixture(t)
	msg := f.upload(t, "owner-1", "doc-i", "a.txt", []byte("hello"))
	notification := queue.Message{ObjectKey: msg.ObjectKey, OwnerHash: util.HashOwnerKey("owner-1")}

	res, err := f.proc.Process(context.Background(), notification)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.DocumentID != "doc-i" || res.OwnerID != "owner-1" {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = f.proc.Process(context.Background(), queue.Message{ObjectKey: "uploads/x/y/z.txt"})
	if !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("expected ErrUnknownDocument, got %v", err)
	}
}

func TestProcessSummarizerFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(t)
	f.summary.err = errors.New("summarizer down")
	msg := f.upload(t, "owner-1", "doc-j", "a.txt", []byte("hello"))

	res, err := f.proc.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != results.StatusProcessed {
		t.Fatalf("unexpected result %+v", res)
	}
}

// blankPDF is a one-page PDF without a text layer.
func blankPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents 4 0 R >>",
		"<< /Length 0 >>\nstream\n\nendstream",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
