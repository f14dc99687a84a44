package storage

import (
	"context"
	"fmt"
	"time"
)

// DownloadedItem is the immutable record of one successfully downloaded attachment.
type DownloadedItem struct {
	ID              string
	PartitionKey    int64
	SourceMessageID string
	Text            string
	StoragePath     string
	CreatedAt       time.Time
}

// DownloadRepository persists download history. Implementations serialize
// access to their underlying connection and are safe for concurrent use.
type DownloadRepository interface {
	// EnsureOpen connects and creates the schema. Repeated calls are no-ops.
	EnsureOpen(ctx context.Context) error
	// LoadExistingIdentifiers returns the identifiers recorded for a partition.
	LoadExistingIdentifiers(ctx context.Context, partitionKey int64) (map[string]struct{}, error)
	// Write inserts exactly one record atomically.
	Write(ctx context.Context, item *DownloadedItem) error
	// Close releases the connection. It is safe to call when never opened.
	Close() error
}

// PersistenceError represents a failure reading from or writing to the record store.
type PersistenceError struct {
	Operation string // The operation that failed (e.g., "open", "write")
	Err       error  // Underlying error, if any
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
