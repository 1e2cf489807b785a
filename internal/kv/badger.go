package kv

import (
	"context"
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"genstudio/internal/studio"
)

// BadgerKV is a key/value backend on an embedded Badger database.
// With compression on, values are zstd-compressed before they are written.
type BadgerKV struct {
	db     *badger.DB
	codec  *zstdCodec
	logger studio.Logger
}

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	// Dir is the database directory. Empty opens an in-memory database.
	Dir      string
	Compress bool
}

// OpenBadger opens or creates a Badger database.
func OpenBadger(opts BadgerOptions, logger studio.Logger) (*BadgerKV, error) {
	var badgerOpts badger.Options
	if opts.Dir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0700); err != nil {
			return nil, fmt.Errorf("creating kv directory: %w", err)
		}
		badgerOpts = badger.DefaultOptions(opts.Dir)
	}
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", opts.Dir, err)
	}

	kv := &BadgerKV{db: db, logger: logger}
	if opts.Compress {
		codec, err := newZstdCodec()
		if err != nil {
			db.Close()
			return nil, err
		}
		kv.codec = codec
	}
	logger.Debug("kv backend opened", "dir", opts.Dir, "compress", opts.Compress)
	return kv, nil
}

func (b *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return studio.ErrNotFound
		}
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, studio.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	if b.codec != nil {
		return b.codec.decompress(result)
	}
	return result, nil
}

func (b *BadgerKV) Set(_ context.Context, key string, blob []byte) error {
	value := blob
	if b.codec != nil {
		value = b.codec.compress(blob)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerKV) Close() error {
	if b.codec != nil {
		b.codec.close()
	}
	return b.db.Close()
}

var _ studio.KVBackend = (*BadgerKV)(nil)
