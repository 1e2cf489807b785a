package database

import (
	"fmt"
	"os"
	"path/filepath"

	"genstudio/internal/config"
	"genstudio/internal/studio"
)

// DatabaseFileName is the SQLite file created under data_dir.
const DatabaseFileName = "genstudio.db"

// NewRecordBackendFromConfig creates the record backend selected by the database config type.
func NewRecordBackendFromConfig(cfg config.DatabaseConfig, logger studio.Logger) (*SQLiteRecords, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteRecords(filepath.Join(cfg.DataDir, DatabaseFileName), logger)
	case "memory":
		return NewSQLiteRecords(":memory:", logger)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
