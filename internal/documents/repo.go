package documents

import "context"

// DocumentsRepo defines persistence operations for documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, ownerID, documentID string) (Document, error)
	// GetByStorageKey resolves a document from its upload key. Storage
	// notifications carry only the key, not the owner.
	GetByStorageKey(ctx context.Context, storageKey string) (Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error)
}
