package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"redact-backend/internal/classify"
	"redact-backend/internal/retry"
	"redact-backend/internal/shared/metrics"
	"redact-backend/internal/shared/telemetry"
)

// pdfExtractor reads the text layer and escalates to OCR when it is empty.
type pdfExtractor struct {
	ocr OCR
}

func (p pdfExtractor) Extract(ctx context.Context, data []byte) (Result, error) {
	res := Result{Strategy: classify.StrategyPDF}

	text, pages, err := pdfText(data)
	if err != nil {
		return Result{}, failure(classify.StrategyPDF, ReasonCorrupt, err)
	}
	res.Pages = pages
	if strings.TrimSpace(text) != "" {
		res.Text = text
		return res, nil
	}

	if p.ocr == nil {
		return Result{}, failure(classify.StrategyPDF, ReasonNoTextLayer, errors.New("no text layer and no OCR service configured"))
	}
	telemetry.Info("extract.pdf.ocr_escalation", map[string]any{"pages": pages, "bytes": len(data)})
	metrics.IncExtractionFallbacks()

	recognized, err := p.ocr.Recognize(ctx, data, "application/pdf")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		return Result{}, retry.Transient(fmt.Errorf("ocr: %w", err))
	}
	res.Text = recognized
	res.UsedOCR = true
	return res, nil
}

// pdfText concatenates the plain text of every page. The pdf library panics
// on some malformed inputs, so panics are reported as errors.
func pdfText(data []byte) (text string, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, pages = "", 0
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := readPage(page)
		if err != nil {
			// an unreadable page leaves the rest of the document usable
			continue
		}
		if b.Len() > 0 && pageText != "" {
			b.WriteString("\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), pages, nil
}

func readPage(page pdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page panic: %v", rec)
		}
	}()
	return page.GetPlainText(nil)
}
