package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"genstudio/internal/studio"
)

// testHeader marks payloads sealed by TestEncryptor.
var testHeader = []byte("GSENC\x00\x00\x00")

// TestEncryptor is a deterministic encryptor for tests.
// Sealing prepends testHeader, so sealed bytes (and their checksums) differ
// from the plaintext while staying trivially reversible.
type TestEncryptor struct {
	setupCalled bool
	unlocks     atomic.Int32
}

var _ studio.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(string) (studio.DecryptionContext, error) {
	e.unlocks.Add(1)
	return &TestDecryptionContext{}, nil
}

// Unlocks reports how many times Unlock was called.
func (e *TestEncryptor) Unlocks() int {
	return int(e.unlocks.Load())
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ studio.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
