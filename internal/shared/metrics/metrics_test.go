package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesQuarantineReasons(t *testing.T) {
	IncDocumentsQuarantined("file_too_large")
	IncDocumentsQuarantined("extraction_failed")
	AddRedactions(3)
	ObserveProcessingDurationMs(120)

	out := Render()
	for _, want := range []string{
		`documents_quarantined_total{reason="file_too_large"}`,
		`documents_quarantined_total{reason="extraction_failed"}`,
		"# TYPE redactions_total counter",
		`processing_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("count = %d, want 3", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("bucket counts = %v, want [1 1]", snap.counts)
	}
}
