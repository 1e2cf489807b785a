package vault

import (
	"context"
	"fmt"

	"genstudio/internal/config"
	"genstudio/internal/studio"
)

// Options carries what the media layers need beyond MediaConfig.
type Options struct {
	Encryptor  studio.Encryptor // nil stores plaintext
	Passphrase PassphraseFunc
}

// NewVaultFromConfig builds the media vault stack: the configured backend,
// wrapped by encryption when an Encryptor is given, wrapped by a read cache
// when cache_mb is positive.
func NewVaultFromConfig(ctx context.Context, cfg config.MediaConfig, opts Options) (studio.MediaVault, error) {
	var base studio.MediaVault
	switch cfg.Type {
	case "memory":
		base = NewMemoryVault(cfg.Name)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem media requires fs_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		base = v
	case "s3":
		v, err := NewS3Vault(ctx, cfg.Name, S3Options{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		base = v
	default:
		return nil, fmt.Errorf("unknown media type: %s", cfg.Type)
	}

	v := base
	if opts.Encryptor != nil {
		v = NewSealedVault(v, opts.Encryptor, opts.Passphrase)
	}
	if cfg.CacheMB > 0 {
		v = NewCachedVault(v, cfg.CacheMB)
	}
	return v, nil
}
