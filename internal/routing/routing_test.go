package routing

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"redact-backend/internal/documents"
	"redact-backend/internal/results"
	"redact-backend/internal/retry"
	"redact-backend/internal/shared/storage/object"
	"redact-backend/internal/shared/storage/object/memory"
	"redact-backend/internal/shared/util"
)

func TestDecideTable(t *testing.T) {
	tests := []struct {
		name   string
		in     Signals
		status results.Status
		reason string
	}{
		{"rejected", Signals{Rejected: true, RejectReason: "file_too_large"}, results.StatusQuarantined, "file_too_large"},
		{"rejected wins over redacted", Signals{Rejected: true, RejectReason: "empty_file", Redacted: true}, results.StatusQuarantined, "empty_file"},
		{"extraction failed", Signals{ExtractionFailed: true}, results.StatusQuarantined, ReasonExtractionFailed},
		{"internal", Signals{Internal: true, Redacted: true}, results.StatusQuarantined, ReasonInternal},
		{"redacted", Signals{Redacted: true}, results.StatusProcessed, ""},
		{"nothing happened", Signals{}, results.StatusQuarantined, ReasonInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first := Decide(tc.in)
			second := Decide(tc.in)
			if first != second {
				t.Fatalf("Decide not deterministic: %+v vs %+v", first, second)
			}
			if first.Status != tc.status || first.Reason != tc.reason {
				t.Fatalf("Decide(%+v) = %+v", tc.in, first)
			}
		})
	}
}

func newRouter(store object.ObjectStore, repo results.Repo) *Router {
	return &Router{
		Store:   store,
		Results: repo,
		Retry: retry.Policy{
			MaxAttempts: 3,
			Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
		},
		Now: func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func seedUpload(t *testing.T, store *memory.Store, owner, docID, name, body string) documents.Document {
	t.Helper()
	key := util.OwnerKey(util.NamespaceUploads, owner, docID, name)
	if _, err := store.Put(context.Background(), key, "application/pdf", strings.NewReader(body)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return documents.Document{ID: docID, OwnerID: owner, OriginalFilename: name, StorageKey: key, MimeType: "application/pdf"}
}

func TestRouteProcessedResolvesCollisions(t *testing.T) {
	store := memory.New()
	repo := results.NewMemoryRepo()
	router := newRouter(store, repo)
	ctx := context.Background()

	existing := util.OwnerPrefix(util.NamespaceProcessed, "o1") + "report.txt"
	_, _ = store.Put(ctx, existing, textContentType, strings.NewReader("old"))

	doc := seedUpload(t, store, "o1", "doc-1", "report.pdf", "%PDF")
	res, err := router.Route(ctx, doc, Signals{Redacted: true}, Artifact{Name: "report.txt", Text: "SSN: [SSN]", RedactionCount: 1})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	want := util.OwnerPrefix(util.NamespaceProcessed, "o1") + "report (1).txt"
	if res.Status != results.StatusProcessed || res.OutputKey != want || res.RedactionCount != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := object.ReadAll(ctx, store, want, 0)
	if err != nil || string(data) != "SSN: [SSN]" {
		t.Fatalf("unexpected output %q err=%v", data, err)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected one result, got %d", repo.Len())
	}
}

func TestRouteQuarantineCopiesOriginalWithReason(t *testing.T) {
	store := memory.New()
	repo := results.NewMemoryRepo()
	router := newRouter(store, repo)
	ctx := context.Background()

	doc := seedUpload(t, store, "o1", "doc-2", "big.pdf", "raw-bytes")
	res, err := router.Route(ctx, doc, Signals{Rejected: true, RejectReason: "file_too_large"}, Artifact{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	wantKey := util.OwnerKey(util.NamespaceQuarantine, "o1", "doc-2", "big.pdf")
	if !res.Quarantined() || res.Reason != "file_too_large" || res.OutputKey != wantKey || res.OriginalKey != doc.StorageKey {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := object.ReadAll(ctx, store, wantKey, 0)
	if err != nil || string(data) != "raw-bytes" {
		t.Fatalf("quarantine copy %q err=%v", data, err)
	}
	rec, err := ReadQuarantineRecord(ctx, store, wantKey)
	if err != nil || rec.Reason != "file_too_large" || rec.DocumentID != "doc-2" {
		t.Fatalf("sidecar %+v err=%v", rec, err)
	}
	for _, key := range store.Keys() {
		if strings.HasPrefix(key, util.NamespaceProcessed+"/") {
			t.Fatalf("quarantined document must not write processed output: %s", key)
		}
	}
}

func TestRouteDuplicateReturnsExisting(t *testing.T) {
	store := memory.New()
	repo := results.NewMemoryRepo()
	router := newRouter(store, repo)
	ctx := context.Background()

	doc := seedUpload(t, store, "o1", "doc-3", "a.txt", "x")
	first, err := router.Route(ctx, doc, Signals{ExtractionFailed: true}, Artifact{})
	if err != nil {
		t.Fatalf("first Route: %v", err)
	}
	second, err := router.Route(ctx, doc, Signals{Redacted: true}, Artifact{Name: "a.txt", Text: "x"})
	if err != nil {
		t.Fatalf("second Route: %v", err)
	}
	if second.Status != first.Status || second.Reason != ReasonExtractionFailed {
		t.Fatalf("first result must stand, got %+v", second)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected one result, got %d", repo.Len())
	}
}

type flakyStore struct {
	*memory.Store
	failures int
	err      error
}

func (f *flakyStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if f.failures > 0 {
		f.failures--
		return 0, f.err
	}
	return f.Store.Put(ctx, key, contentType, r)
}

func TestRouteRetriesTransientWrites(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failures: 2, err: retry.Transient(errors.New("slow down"))}
	repo := results.NewMemoryRepo()
	router := newRouter(store, repo)

	doc := documents.Document{ID: "doc-4", OwnerID: "o1", OriginalFilename: "a.txt"}
	res, err := router.Route(context.Background(), doc, Signals{Redacted: true}, Artifact{Name: "a.txt", Text: "ok"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Status != results.StatusProcessed {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRouteExhaustedWritesNoResult(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failures: 10, err: retry.Transient(errors.New("unavailable"))}
	repo := results.NewMemoryRepo()
	router := newRouter(store, repo)

	doc := documents.Document{ID: "doc-5", OwnerID: "o1", OriginalFilename: "a.txt"}
	_, err := router.Route(context.Background(), doc, Signals{Redacted: true}, Artifact{Name: "a.txt", Text: "ok"})
	if !retry.IsExhausted(err) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if repo.Len() != 0 {
		t.Fatalf("no result may be recorded when the write failed")
	}
}
