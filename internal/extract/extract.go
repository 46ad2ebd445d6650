// Package extract turns raw document bytes into normalized plain text. Each
// classify.Strategy has exactly one Extractor; For picks it once per document.
package extract

import (
	"context"
	"errors"
	"fmt"

	"redact-backend/internal/classify"
)

// Failure reasons carried by ExtractionError. They are logged server-side; the
// document itself is quarantined as "extraction_failed".
const (
	ReasonCorrupt       = "corrupt_container"
	ReasonUndecodable   = "undecodable_bytes"
	ReasonNoTextLayer   = "no_text_layer"
	ReasonMissingPart   = "missing_part"
	ReasonUnsupported   = "unsupported_strategy"
	ReasonLibraryFailed = "library_failed"
)

// ExtractionError reports structurally broken input. It is never retried.
type ExtractionError struct {
	Strategy classify.Strategy
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %s", e.Strategy, e.Reason)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.Strategy, e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError reports whether err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

func failure(strategy classify.Strategy, reason string, err error) error {
	return &ExtractionError{Strategy: strategy, Reason: reason, Err: err}
}

// OCR recognizes text in documents that carry no text layer. Failures are
// presumed temporary.
type OCR interface {
	Recognize(ctx context.Context, data []byte, contentType string) (string, error)
}

// Result is extracted text plus what was learned while producing it.
type Result struct {
	Text         string
	Strategy     classify.Strategy
	Pages        int
	Sheets       int
	Slides       int
	UsedFallback bool
	UsedOCR      bool
	Encoding     string
}

// Metadata flattens the result details for logs and result records.
func (r Result) Metadata() map[string]any {
	m := map[string]any{
		"strategy":      r.Strategy.String(),
		"used_fallback": r.UsedFallback,
		"used_ocr":      r.UsedOCR,
		"chars":         len(r.Text),
	}
	if r.Pages > 0 {
		m["pages"] = r.Pages
	}
	if r.Sheets > 0 {
		m["sheets"] = r.Sheets
	}
	if r.Slides > 0 {
		m["slides"] = r.Slides
	}
	if r.Encoding != "" {
		m["encoding"] = r.Encoding
	}
	return m
}

// Extractor converts one format to text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Result, error)
}

// Options configures the extractors returned by For.
type Options struct {
	OCR        OCR
	LineEnding LineEnding
}

// For returns the extractor for strategy. Its output is already normalized.
func For(strategy classify.Strategy, opts Options) (Extractor, error) {
	var inner Extractor
	switch strategy {
	case classify.StrategyPlainText:
		inner = plainText{}
	case classify.StrategyPDF:
		inner = pdfExtractor{ocr: opts.OCR}
	case classify.StrategyDOCX:
		inner = docxExtractor{}
	case classify.StrategyXLSX:
		inner = xlsxExtractor{}
	case classify.StrategyPPTX:
		inner = pptxExtractor{}
	default:
		return nil, failure(strategy, ReasonUnsupported, nil)
	}
	return normalizing{inner: inner, normalizer: Normalizer{LineEnding: opts.LineEnding}}, nil
}

type normalizing struct {
	inner      Extractor
	normalizer Normalizer
}

func (n normalizing) Extract(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res, err := n.inner.Extract(ctx, data)
	if err != nil {
		return Result{}, err
	}
	res.Text = n.normalizer.Normalize(res.Text)
	return res, nil
}
