package studio

import (
	"context"
	"io"
)

// MediaVault stores image payloads, addressed by the SHA-256 of their bytes.
// Operations use io.Reader/io.Writer so backends can stream.
type MediaVault interface {
	// PutContent stores content identified by its checksum.
	// Storing the same checksum twice is safe.
	// size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error

	// GetContent writes the content stored under checksum to w.
	GetContent(ctx context.Context, checksum string, w io.Writer) error

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
