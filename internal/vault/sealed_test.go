package vault

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"genstudio/internal/config"
	"genstudio/internal/encryption"
)

func TestSealedVault_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryVault("mem")
	v := NewSealedVault(inner, encryption.NewTestEncryptor(), func() (string, error) { return "pw", nil })

	if err := v.PutContent(ctx, "abc123", strings.NewReader("plain"), 5); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	var raw bytes.Buffer
	if err := inner.GetContent(ctx, "abc123", &raw); err != nil {
		t.Fatalf("inner GetContent() error = %v", err)
	}
	if raw.String() == "plain" {
		t.Error("inner vault holds plaintext")
	}
}

func TestSealedVault_UnlocksOnce(t *testing.T) {
	ctx := context.Background()
	enc := encryption.NewTestEncryptor()
	asked := 0
	v := NewSealedVault(NewMemoryVault("mem"), enc, func() (string, error) {
		asked++
		return "pw", nil
	})

	if err := v.PutContent(ctx, "abc123", strings.NewReader("plain"), 5); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	if asked != 0 {
		t.Errorf("passphrase requested %d times while storing, want 0", asked)
	}

	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		if err := v.GetContent(ctx, "abc123", &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
	}
	if asked != 1 || enc.Unlocks() != 1 {
		t.Errorf("passphrase requested %d times, unlocked %d times, want 1 and 1", asked, enc.Unlocks())
	}
}

func TestSealedVault_PassphraseFailure(t *testing.T) {
	ctx := context.Background()
	errNoTTY := errors.New("no terminal")
	v := NewSealedVault(NewMemoryVault("mem"), encryption.NewTestEncryptor(), func() (string, error) {
		return "", errNoTTY
	})

	if err := v.PutContent(ctx, "abc123", strings.NewReader("plain"), 5); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	var buf bytes.Buffer
	if err := v.GetContent(ctx, "abc123", &buf); !errors.Is(err, errNoTTY) {
		t.Errorf("GetContent() error = %v, want %v", err, errNoTTY)
	}
}

func TestSealedVault_Age(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	enc := encryption.NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "genstudio.pub"),
		PrivateKeyPath: filepath.Join(dir, "genstudio.key"),
	})
	v := NewSealedVault(NewMemoryVault("mem"), enc, func() (string, error) { return "secret", nil })

	if err := v.ValidateSetup(ctx); err == nil {
		t.Fatal("ValidateSetup() expected error before keys exist")
	}
	if err := enc.Setup("secret"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	if err := v.PutContent(ctx, "abc123", strings.NewReader("\x89PNG"), 4); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	var buf bytes.Buffer
	if err := v.GetContent(ctx, "abc123", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != "\x89PNG" {
		t.Errorf("GetContent() = %q", buf.String())
	}
}
