package results

import "context"

// Repo persists processing results.
type Repo interface {
	// Create stores r, failing with ErrAlreadyExists if the document has one.
	Create(ctx context.Context, r ProcessingResult) error
	Get(ctx context.Context, documentID string) (ProcessingResult, error)
}
