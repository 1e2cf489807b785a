package testutil

import (
	"genstudio/internal/kv"
	"genstudio/internal/studio"
	"genstudio/internal/vault"
)

// NewTestVault creates a new in-memory media vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewTestKV creates a new in-memory key/value backend for testing.
func NewTestKV() studio.KVBackend {
	return kv.NewMemoryKV()
}
