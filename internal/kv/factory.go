package kv

import (
	"fmt"

	"genstudio/internal/config"
	"genstudio/internal/studio"
)

// NewKVFromConfig creates the key/value backend selected by the kv config type.
func NewKVFromConfig(cfg config.KVConfig, logger studio.Logger) (studio.KVBackend, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryKV(), nil
	case "badger":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("dir required for badger store")
		}
		return OpenBadger(BadgerOptions{Dir: cfg.Dir, Compress: cfg.Compress}, logger)
	default:
		return nil, fmt.Errorf("unknown kv type: %s", cfg.Type)
	}
}
