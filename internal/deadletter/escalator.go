package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"redact-backend/internal/shared/metrics"
	"redact-backend/internal/shared/telemetry"
)

// Forwarder sends a raw body to a queue URL.
type Forwarder interface {
	SendRaw(ctx context.Context, queueURL, body string) error
}

// Escalator moves messages that reached MaxReceives out of the work queue.
type Escalator struct {
	Repo        Repo
	Forwarder   Forwarder
	QueueURL    string
	MaxReceives int
	Now         func() time.Time
}

// ShouldEscalate reports whether a message received receiveCount times has
// used up its budget. A non-positive MaxReceives disables escalation.
func (e *Escalator) ShouldEscalate(receiveCount int) bool {
	if e == nil || e.MaxReceives <= 0 {
		return false
	}
	return receiveCount >= e.MaxReceives
}

// Escalate records dl and forwards its body to the dead-letter queue. The
// caller deletes the source message only when Escalate returns nil.
func (e *Escalator) Escalate(ctx context.Context, dl DeadLetter) (DeadLetter, error) {
	if e == nil {
		return DeadLetter{}, errors.New("dead-letter escalator not configured")
	}
	if dl.ID == "" {
		dl.ID = recordID(dl.MessageID)
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = e.now()
	}

	if e.Repo != nil {
		if err := e.Repo.Create(ctx, dl); err != nil {
			return DeadLetter{}, fmt.Errorf("record dead letter: %w", err)
		}
	}
	if e.Forwarder != nil && e.QueueURL != "" {
		if err := e.Forwarder.SendRaw(ctx, e.QueueURL, dl.Body); err != nil {
			return DeadLetter{}, fmt.Errorf("forward dead letter: %w", err)
		}
	}

	metrics.IncDeadLettered()
	telemetry.Warn("deadletter.escalated", map[string]any{
		"dead_letter_id": dl.ID,
		"owner_id":       dl.OwnerID,
		"object_key":     dl.ObjectKey,
		"attempts":       dl.Attempts,
		"error":          dl.Error,
	})
	return dl, nil
}

// recordID is stable per queue message so a failed forward followed by
// redelivery updates one record instead of adding another.
func recordID(messageID string) string {
	if messageID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sqs-message:"+messageID)).String()
}

func (e *Escalator) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
