package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nguyenthenguyen/docx"

	"redact-backend/internal/classify"
	"redact-backend/internal/shared/metrics"
	"redact-backend/internal/shared/telemetry"
)

const docxBodyPart = "word/document.xml"

// docxExtractor runs the docx library first. When it fails, the structural
// fallback reads the body part straight from the archive. The fallback's
// output replaces the primary's entirely.
type docxExtractor struct{}

func (docxExtractor) Extract(_ context.Context, data []byte) (Result, error) {
	res := Result{Strategy: classify.StrategyDOCX}

	text, primaryErr := docxPrimary(data)
	if primaryErr == nil {
		res.Text = text
		return res, nil
	}

	telemetry.Warn("extract.docx.fallback", map[string]any{"error": primaryErr.Error()})
	metrics.IncExtractionFallbacks()

	text, err := docxStructural(data)
	if err != nil {
		reason := ReasonCorrupt
		if errors.Is(err, errPartMissing) {
			reason = ReasonMissingPart
		}
		return Result{}, failure(classify.StrategyDOCX, reason, fmt.Errorf("primary: %v; fallback: %w", primaryErr, err))
	}
	res.Text = text
	res.UsedFallback = true
	return res, nil
}

func docxPrimary(data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("docx library panic: %v", rec)
		}
	}()

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	return paragraphText([]byte(doc.Editable().GetContent()), true)
}

func docxStructural(data []byte) (string, error) {
	c, err := openContainer(data)
	if err != nil {
		return "", err
	}
	raw, err := c.read(docxBodyPart)
	if err != nil {
		return "", err
	}
	return paragraphText(raw, false)
}
