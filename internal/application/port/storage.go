package port

import (
	"context"
	"time"
)

// FileStorage defines file storage operations for receipts
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// StoredFile describes one stored receipt
type StoredFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ReceiptCatalog enumerates and removes stored receipts
type ReceiptCatalog interface {
	List(ctx context.Context, prefix string) ([]StoredFile, error)
	Delete(ctx context.Context, path string) error
}

// ReceiptIndex reports which receipt refs are still attached to expense items
type ReceiptIndex interface {
	ReceiptRefs(ctx context.Context) (map[string]struct{}, error)
}
