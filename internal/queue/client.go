package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a function to Client. The local API uses it to hand uploads
// straight to an in-process worker.
type Func func(ctx context.Context, msg Message) error

// Send calls f.
func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
