package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"

	json "github.com/goccy/go-json"

	"genstudio/internal/database/migrations"
	"genstudio/internal/studio"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRecords implements studio.RecordBackend using SQLite. Each structured
// collection is a table keyed by user-scoped key; a row holds that key's
// whole array as JSON.
type SQLiteRecords struct {
	db     *sql.DB
	path   string
	tables []string
	clock  studio.Clock
	logger studio.Logger
}

// NewSQLiteRecords opens the database at path and migrates it to the latest
// schema. path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteRecords(path string, logger studio.Logger) (*SQLiteRecords, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	logger.Debug("record backend opened", "path", path)

	return &SQLiteRecords{
		db:     db,
		path:   path,
		tables: slices.Clone(studio.StructuredCollections),
		clock:  studio.RealClock{},
		logger: logger,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" one database and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteRecords) checkTable(table string) error {
	if !slices.Contains(s.tables, table) {
		return fmt.Errorf("%q: %w", table, studio.ErrUnknownTable)
	}
	return nil
}

// Get returns the array stored under key in table, newest record first.
func (s *SQLiteRecords) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}

	// table is one of s.tables, never user input.
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM "+table+" WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, studio.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", table, key, err)
	}

	return sortNewestFirst([]byte(value)), nil
}

// Put upserts the array stored under key in table.
func (s *SQLiteRecords) Put(ctx context.Context, table, key string, blob []byte) error {
	if err := s.checkTable(table); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+table+" (key, value, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, string(blob), s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", table, key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s/%s: %w", table, key, err)
	}
	return nil
}

// sortNewestFirst reorders a JSON array of records by their numeric "id"
// field, descending. Arrays with any record that is not an object with a
// numeric id are returned unchanged.
func sortNewestFirst(blob []byte) []byte {
	var records []json.RawMessage
	if err := json.Unmarshal(blob, &records); err != nil || len(records) < 2 {
		return blob
	}

	type keyed struct {
		id  int64
		raw json.RawMessage
	}
	items := make([]keyed, 0, len(records))
	for _, raw := range records {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return blob
		}
		id, err := strconv.ParseInt(head.ID, 10, 64)
		if err != nil {
			return blob
		}
		items = append(items, keyed{id: id, raw: raw})
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.id > b.id:
			return -1
		case a.id < b.id:
			return 1
		}
		return 0
	})

	sorted := make([]json.RawMessage, len(items))
	for i, item := range items {
		sorted[i] = item.raw
	}
	out, err := json.Marshal(sorted)
	if err != nil {
		return blob
	}
	return out
}

// Path returns the database file path.
func (s *SQLiteRecords) Path() string {
	return s.path
}

// CheckMigrations reports schema version drift.
func (s *SQLiteRecords) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// SchemaVersion returns the schema version of the database and the latest
// version this binary migrates to.
func (s *SQLiteRecords) SchemaVersion() (current, latest uint, err error) {
	current, err = migrations.Version(s.db)
	if err != nil {
		return 0, 0, err
	}
	latest, err = migrations.LatestVersion()
	if err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

// BackupTo writes a consistent snapshot of the database to destPath.
func (s *SQLiteRecords) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteRecords) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ studio.RecordBackend = (*SQLiteRecords)(nil)
