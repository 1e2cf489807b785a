package studio

import "context"

// KVBackend is the simple key/value backend: one serialized blob per key.
type KVBackend interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the blob stored under key.
	Set(ctx context.Context, key string, blob []byte) error

	// Close releases the backend.
	Close() error
}

// RecordBackend is the structured backend. It manages one table per
// structured collection; within a table each user-scoped key holds a single
// composite value containing that user's whole array.
type RecordBackend interface {
	// Get returns the array blob stored under key in table, or ErrNotFound.
	// Arrays whose records carry numeric time-derived IDs come back newest first.
	Get(ctx context.Context, table, key string) ([]byte, error)

	// Put replaces the array blob stored under key in table in one transaction.
	Put(ctx context.Context, table, key string, blob []byte) error

	// Close releases the backend.
	Close() error
}
