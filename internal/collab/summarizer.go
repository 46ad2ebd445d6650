package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SummarizerClient asks an external service for a summary of redacted text.
type SummarizerClient struct {
	c *client
}

type summarizeRequest struct {
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// NewSummarizerClient constructs a summarizer client.
func NewSummarizerClient(ctx context.Context, opts Options) (*SummarizerClient, error) {
	c, err := newClient(ctx, "summarizer", opts)
	if err != nil {
		return nil, err
	}
	return &SummarizerClient{c: c}, nil
}

// Summarize returns the collaborator's summary of text.
func (s *SummarizerClient) Summarize(ctx context.Context, documentID, text string) (string, error) {
	body, err := json.Marshal(summarizeRequest{DocumentID: documentID, Text: text})
	if err != nil {
		return "", err
	}
	payload, err := s.c.post(ctx, "application/json", body)
	if err != nil {
		return "", err
	}
	var parsed summarizeResponse
	if err := decode(payload, &parsed); err != nil {
		return "", err
	}
	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return "", fmt.Errorf("summarizer response empty summary")
	}
	return summary, nil
}
