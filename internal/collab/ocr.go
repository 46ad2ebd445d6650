package collab

import (
	"context"
	"fmt"
	"strings"

	"redact-backend/internal/extract"
)

// OCRClient sends scanned documents to an OCR service and returns their text.
type OCRClient struct {
	c *client
}

type ocrResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewOCRClient constructs an OCR client.
func NewOCRClient(ctx context.Context, opts Options) (*OCRClient, error) {
	c, err := newClient(ctx, "OCR", opts)
	if err != nil {
		return nil, err
	}
	return &OCRClient{c: c}, nil
}

// Recognize posts the document bytes and returns the recognized text.
func (o *OCRClient) Recognize(ctx context.Context, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	payload, err := o.c.post(ctx, contentType, data)
	if err != nil {
		return "", err
	}
	var parsed ocrResponse
	if err := decode(payload, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ocr error: %s", parsed.Error)
	}
	return parsed.Text, nil
}

var _ extract.OCR = (*OCRClient)(nil)
