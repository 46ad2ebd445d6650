package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"redact-backend/internal/queue"
	"redact-backend/internal/results"
)

type stubProcessor struct {
	failFor map[string]error
}

func (s stubProcessor) Process(ctx context.Context, msg queue.Message) (results.ProcessingResult, error) {
	return results.ProcessingResult{DocumentID: msg.DocumentID}, s.failFor[msg.DocumentID]
}

func record(t *testing.T, id, docID string) events.SQSMessage {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{
		DocumentID: docID,
		OwnerID:    "owner-1",
		ObjectKey:  "uploads/abc/" + docID + "/a.txt",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestHandleBatchReportsOnlyTransientFailures(t *testing.T) {
	proc := stubProcessor{failFor: map[string]error{"doc-2": errors.New("timeout")}}
	event := events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m1", "doc-1"),
		record(t, "m2", "doc-2"),
		{MessageId: "m3", Body: "not json"},
	}}

	resp := handleBatch(context.Background(), proc, nil, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Fatalf("expected only m2 to fail, got %+v", resp.BatchItemFailures)
	}
}
