// Package deadletter records messages that exhausted their redelivery budget
// and forwards them to the dead-letter queue.
package deadletter

import (
	"context"
	"time"
)

// DeadLetter is a trigger message that could not be processed.
type DeadLetter struct {
	ID string
	// MessageID is the queue's id for the message. Escalations of the same
	// message share a record ID derived from it.
	MessageID string
	OwnerID   string
	ObjectKey string
	Body      string
	Error     string
	Attempts  int
	CreatedAt time.Time
}

// Repo persists dead letters.
type Repo interface {
	// Create stores dl. Storing an ID again updates the error and attempts of
	// the existing record.
	Create(ctx context.Context, dl DeadLetter) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]DeadLetter, error)
}
