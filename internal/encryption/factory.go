package encryption

import (
	"fmt"

	"genstudio/internal/config"
	"genstudio/internal/studio"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" returns a nil Encryptor: media is stored as plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (studio.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
