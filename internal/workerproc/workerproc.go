// Package workerproc decodes queue payloads and hands them to the pipeline.
// It is shared by the long-poll worker and the SQS-triggered Lambda.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"redact-backend/internal/pipeline"
	"redact-backend/internal/queue"
	"redact-backend/internal/results"
)

// Processor runs one trigger through the pipeline.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) (results.ProcessingResult, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingObjectKey indicates a message that names no uploaded object.
type ErrMissingObjectKey struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingObjectKey) Error() string { return "missing object key" }

// ErrUnknownDocument indicates a trigger for an object no document owns.
// Redelivery cannot fix it.
type ErrUnknownDocument struct {
	ObjectKey string
	RequestID string
}

func (e ErrUnknownDocument) Error() string { return "unknown document: " + e.ObjectKey }

// ErrProcess indicates processing failed after successful parsing. The
// failure is transient and the message should be redelivered.
type ErrProcess struct {
	DocumentID string
	OwnerID    string
	ObjectKey  string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process document"
	}
	return "process document: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message should be dropped
// rather than redelivered.
func Unrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingObjectKey, ErrUnknownDocument:
		return true
	}
	return false
}

// ParseMessage validates and decodes the queue payload. A storage test
// notification decodes to no messages.
func ParseMessage(body string) ([]queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return nil, meta, ErrEmptyBody{Meta: meta}
	}

	msgs, err := queue.DecodeMessages([]byte(body))
	if errors.Is(err, queue.ErrTestEvent) {
		return nil, meta, nil
	}
	if err != nil {
		return nil, meta, ErrDecode{Meta: meta, Err: err}
	}
	for _, msg := range msgs {
		if strings.TrimSpace(msg.ObjectKey) == "" {
			return nil, meta, ErrMissingObjectKey{Meta: meta, RequestID: msg.RequestID}
		}
	}
	return msgs, meta, nil
}

type parsedMessagesKey struct{}

// WithParsedMessages stores decoded messages in the context for reuse.
func WithParsedMessages(ctx context.Context, msgs []queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessagesKey{}, msgs)
}

func parsedMessagesFromContext(ctx context.Context) ([]queue.Message, bool) {
	if ctx == nil {
		return nil, false
	}
	msgs, ok := ctx.Value(parsedMessagesKey{}).([]queue.Message)
	return msgs, ok
}

// HandleMessage parses, validates, and processes a message payload. Every
// decoded record is attempted; the first transient failure is returned as
// ErrProcess so the whole message is redelivered. Records that already have
// a result short-circuit on redelivery.
func HandleMessage(ctx context.Context, proc Processor, body string) error {
	if proc == nil {
		return errors.New("document processor not configured")
	}

	msgs, ok := parsedMessagesFromContext(ctx)
	if !ok {
		var err error
		msgs, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	var firstErr error
	unknown := 0
	for _, msg := range msgs {
		_, err := proc.Process(ctx, msg)
		if err == nil {
			continue
		}
		if errors.Is(err, pipeline.ErrUnknownDocument) {
			unknown++
			if unknown == len(msgs) {
				return ErrUnknownDocument{ObjectKey: msg.ObjectKey, RequestID: msg.RequestID}
			}
			continue
		}
		if firstErr == nil {
			firstErr = ErrProcess{
				DocumentID: msg.DocumentID,
				OwnerID:    msg.OwnerID,
				ObjectKey:  msg.ObjectKey,
				RequestID:  msg.RequestID,
				Err:        err,
			}
		}
	}
	return firstErr
}
