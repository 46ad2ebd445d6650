package workerproc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"redact-backend/internal/pipeline"
	"redact-backend/internal/queue"
	"redact-backend/internal/results"
)

type fakeProcessor struct {
	errs  map[string]error
	calls []string
}

func (f *fakeProcessor) Process(ctx context.Context, msg queue.Message) (results.ProcessingResult, error) {
	f.calls = append(f.calls, msg.ObjectKey)
	return results.ProcessingResult{DocumentID: msg.DocumentID}, f.errs[msg.ObjectKey]
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if _, meta, err := ParseMessage("{bad"); !errors.As(err, &ErrDecode{}) || meta.BodySHA == "" {
		t.Fatalf("expected ErrDecode with meta, got %v", err)
	}
	if _, _, err := ParseMessage(`{"documentId":"d","requestId":"r"}`); !errors.As(err, &ErrMissingObjectKey{}) {
		t.Fatalf("expected ErrMissingObjectKey, got %v", err)
	}
	msgs, _, err := ParseMessage(`{"Service":"Amazon S3","Event":"s3:TestEvent"}`)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("test event should decode to nothing, got %v %v", msgs, err)
	}
}

func TestUnrecoverable(t *testing.T) {
	for _, err := range []error{ErrEmptyBody{}, ErrDecode{}, ErrMissingObjectKey{}, ErrUnknownDocument{}} {
		if !Unrecoverable(err) {
			t.Fatalf("%T should be unrecoverable", err)
		}
	}
	if Unrecoverable(ErrProcess{Err: errors.New("x")}) {
		t.Fatalf("ErrProcess must be retried")
	}
}

func TestHandleMessageProcessesEveryRecord(t *testing.T) {
	body := `{"Records":[
		{"eventName":"ObjectCreated:Put","s3":{"object":{"key":"uploads/h/d1/a.txt","size":1}}},
		{"eventName":"ObjectCreated:Put","s3":{"object":{"key":"uploads/h/d2/b.txt","size":1}}}
	]}`
	proc := &fakeProcessor{errs: map[string]error{"uploads/h/d1/a.txt": errors.New("slow down")}}

	err := HandleMessage(context.Background(), proc, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.ObjectKey != "uploads/h/d1/a.txt" {
		t.Fatalf("expected ErrProcess for first record, got %v", err)
	}
	if len(proc.calls) != 2 {
		t.Fatalf("every record should be attempted, got %v", proc.calls)
	}
}

func TestHandleMessageUnknownDocument(t *testing.T) {
	msg, _ := queue.EncodeMessage(queue.Message{ObjectKey: "uploads/h/d1/a.txt"})
	proc := &fakeProcessor{errs: map[string]error{"uploads/h/d1/a.txt": fmt.Errorf("%w: key", pipeline.ErrUnknownDocument)}}

	err := HandleMessage(context.Background(), proc, string(msg))
	if !Unrecoverable(err) {
		t.Fatalf("expected unrecoverable error, got %v", err)
	}
}

func TestHandleMessageUsesParsedMessages(t *testing.T) {
	proc := &fakeProcessor{}
	ctx := WithParsedMessages(context.Background(), []queue.Message{{ObjectKey: "k1"}})
	if err := HandleMessage(ctx, proc, "ignored"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.calls) != 1 || proc.calls[0] != "k1" {
		t.Fatalf("unexpected calls %v", proc.calls)
	}
}
