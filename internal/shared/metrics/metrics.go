package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsReceivedTotal   atomic.Uint64
	documentsProcessedTotal  atomic.Uint64
	documentsQuarantined     = newLabeledCounter()
	storageRetriesTotal      atomic.Uint64
	transientFailuresTotal   atomic.Uint64
	deadLetteredTotal        atomic.Uint64
	redactionsTotal          atomic.Uint64
	extractionFallbacksTotal atomic.Uint64
	httpPanics               = newLabeledCounter()

	processingDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncDocumentsReceived counts a trigger event picked up by a worker.
func IncDocumentsReceived() { documentsReceivedTotal.Add(1) }

// IncDocumentsProcessed counts a document routed to the processed namespace.
func IncDocumentsProcessed() { documentsProcessedTotal.Add(1) }

// IncDocumentsQuarantined counts a quarantined document by reason.
func IncDocumentsQuarantined(reason string) { documentsQuarantined.Inc(reason) }

// IncStorageRetries counts a retried storage attempt.
func IncStorageRetries() { storageRetriesTotal.Add(1) }

// IncTransientFailures counts invocations that failed with a transient error.
func IncTransientFailures() { transientFailuresTotal.Add(1) }

// IncDeadLettered counts messages escalated to the dead-letter channel.
func IncDeadLettered() { deadLetteredTotal.Add(1) }

// AddRedactions adds to the audit count of replacements performed.
func AddRedactions(n int) {
	if n > 0 {
		redactionsTotal.Add(uint64(n))
	}
}

// IncExtractionFallbacks counts extractions that needed a secondary strategy.
func IncExtractionFallbacks() { extractionFallbacksTotal.Add(1) }

// IncHTTPPanics counts handler panics by route template.
func IncHTTPPanics(route string) {
	if route == "" {
		route = "unmatched"
	}
	httpPanics.Inc(route)
}

// ObserveProcessingDurationMs records a pipeline duration in milliseconds.
func ObserveProcessingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	processingDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "documents_received_total", "Trigger events received", documentsReceivedTotal.Load())
	writeCounter(&buf, "documents_processed_total", "Documents routed to processed", documentsProcessedTotal.Load())
	writeLabeledCounter(&buf, "documents_quarantined_total", "Documents routed to quarantine", "reason", documentsQuarantined.Snapshot())
	writeCounter(&buf, "storage_retries_total", "Retried storage attempts", storageRetriesTotal.Load())
	writeCounter(&buf, "transient_failures_total", "Invocations failed with a transient error", transientFailuresTotal.Load())
	writeCounter(&buf, "dead_lettered_total", "Messages escalated to the dead-letter channel", deadLetteredTotal.Load())
	writeCounter(&buf, "redactions_total", "Replacements performed", redactionsTotal.Load())
	writeCounter(&buf, "extraction_fallbacks_total", "Extractions served by a fallback strategy", extractionFallbacksTotal.Load())
	writeLabeledCounter(&buf, "http_panics_total", "Recovered handler panics", "route", httpPanics.Snapshot())
	writeHistogram(&buf, "processing_duration_ms", "Pipeline duration in milliseconds", processingDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{counts: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[label]++
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
