package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"genstudio/internal/studio"
)

// PassphraseFunc supplies the passphrase that unlocks the private key.
type PassphraseFunc func() (string, error)

// SealedVault encrypts payloads before they reach the inner vault.
// Content stays addressed by the plaintext checksum. The private key is
// unlocked on the first read and kept for the life of the vault.
type SealedVault struct {
	inner      studio.MediaVault
	encryptor  studio.Encryptor
	passphrase PassphraseFunc

	mu       sync.Mutex
	unlocked studio.DecryptionContext
}

// NewSealedVault wraps inner so everything stored in it is encrypted.
func NewSealedVault(inner studio.MediaVault, encryptor studio.Encryptor, passphrase PassphraseFunc) *SealedVault {
	return &SealedVault{
		inner:      inner,
		encryptor:  encryptor,
		passphrase: passphrase,
	}
}

// PutContent encrypts r and stores the ciphertext under checksum.
func (v *SealedVault) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	counted := &countingReader{r: r}
	var sealed bytes.Buffer
	if err := v.encryptor.Encrypt(counted, &sealed); err != nil {
		return fmt.Errorf("sealing %s: %w", checksum, err)
	}
	if counted.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}
	return v.inner.PutContent(ctx, checksum, &sealed, int64(sealed.Len()))
}

// GetContent decrypts the ciphertext stored under checksum into w.
func (v *SealedVault) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	var sealed bytes.Buffer
	if err := v.inner.GetContent(ctx, checksum, &sealed); err != nil {
		return err
	}

	dc, err := v.unlock()
	if err != nil {
		return err
	}
	if err := dc.Decrypt(&sealed, w); err != nil {
		return fmt.Errorf("opening %s: %w", checksum, err)
	}
	return nil
}

func (v *SealedVault) unlock() (studio.DecryptionContext, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.unlocked != nil {
		return v.unlocked, nil
	}
	if v.passphrase == nil {
		return nil, fmt.Errorf("no passphrase source for sealed media")
	}
	pass, err := v.passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := v.encryptor.Unlock(pass)
	if err != nil {
		return nil, fmt.Errorf("unlocking media key: %w", err)
	}
	v.unlocked = dc
	return dc, nil
}

// ValidateSetup checks that keys exist and the inner vault is usable.
func (v *SealedVault) ValidateSetup(ctx context.Context) error {
	if !v.encryptor.IsConfigured() {
		return fmt.Errorf("media encryption is enabled but no key pair exists (run 'genstudio keys init')")
	}
	return v.inner.ValidateSetup(ctx)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ studio.MediaVault = (*SealedVault)(nil)
