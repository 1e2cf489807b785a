package studio

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	json "github.com/goccy/go-json"
)

// Store persists collections, routing each one to the simple key/value backend
// or the structured record backend according to its registration.
//
// Every collection value is replaced as a whole on save. Saves for one key are
// numbered when they are issued; a save that reaches the backend after a newer
// save for the same key has been written is dropped, so an out-of-order
// completion never regresses the stored value.
type Store struct {
	kv       KVBackend
	records  RecordBackend
	registry *Registry
	logger   Logger

	mu     sync.Mutex
	keys   map[string]*keyState
	writes sync.WaitGroup
}

// keyState tracks write sequencing for one (collection, user key) pair.
type keyState struct {
	issued uint64 // guarded by Store.mu

	mu      sync.Mutex // serializes backend writes for the key
	written uint64
}

// NewStore creates a Store over the two backends.
func NewStore(kv KVBackend, records RecordBackend, registry *Registry, logger Logger) *Store {
	return &Store{
		kv:       kv,
		records:  records,
		registry: registry,
		logger:   logger,
		keys:     make(map[string]*keyState),
	}
}

// Registry returns the registry the store routes with.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Load decodes the value stored for collection/userKey into out.
// found is false when the backend holds no value for the key.
func (s *Store) Load(ctx context.Context, collection, userKey string, out any) (found bool, err error) {
	reg := s.registry.Resolve(collection)

	var blob []byte
	switch reg.Kind {
	case KindStructured:
		blob, err = s.records.Get(ctx, reg.Table, userKey)
	default:
		blob, err = s.kv.Get(ctx, userKey)
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s/%s from %s backend: %w", collection, userKey, reg.Kind, err)
	}

	if err := json.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", collection, userKey, err)
	}
	return true, nil
}

// Save stores records for collection/userKey and waits for the write.
func (s *Store) Save(ctx context.Context, collection, userKey string, records any) error {
	return <-s.SaveAsync(ctx, collection, userKey, records)
}

// SaveAsync validates and encodes records before returning, then writes them
// in the background. The returned channel receives exactly one value: nil on
// success, ErrStaleWrite if a newer save won, or the failure.
//
// Structured collections only accept slices or arrays; anything else is
// rejected with ErrNotArray before any background work starts.
func (s *Store) SaveAsync(ctx context.Context, collection, userKey string, records any) <-chan error {
	done := make(chan error, 1)
	reg := s.registry.Resolve(collection)

	blob, err := encodeRecords(reg.Kind, records)
	if err != nil {
		done <- fmt.Errorf("saving %s/%s: %w", collection, userKey, err)
		return done
	}

	ks, seq := s.issue(collection, userKey)

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		done <- s.write(ctx, reg, collection, userKey, ks, seq, blob)
	}()
	return done
}

// Flush waits for every background write issued so far.
func (s *Store) Flush() {
	s.writes.Wait()
}

func (s *Store) issue(collection, userKey string) (*keyState, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := collection + "\x00" + userKey
	ks, ok := s.keys[id]
	if !ok {
		ks = &keyState{}
		s.keys[id] = ks
	}
	ks.issued++
	return ks, ks.issued
}

func (s *Store) write(ctx context.Context, reg Registration, collection, userKey string, ks *keyState, seq uint64, blob []byte) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if seq < ks.written {
		s.logger.Debug("dropping stale write", "collection", collection, "key", userKey, "seq", seq, "written", ks.written)
		return ErrStaleWrite
	}

	var err error
	switch reg.Kind {
	case KindStructured:
		err = s.records.Put(ctx, reg.Table, userKey, blob)
	default:
		err = s.kv.Set(ctx, userKey, blob)
	}
	if err != nil {
		return fmt.Errorf("saving %s/%s to %s backend: %w", collection, userKey, reg.Kind, err)
	}

	ks.written = seq
	s.logger.Debug("collection saved", "collection", collection, "key", userKey, "seq", seq, "bytes", len(blob))
	return nil
}

// encodeRecords serializes records as plain JSON. A nil slice is stored as
// an empty array.
func encodeRecords(kind CollectionKind, records any) ([]byte, error) {
	v := reflect.ValueOf(records)
	isArray := v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array)
	if kind == KindStructured && !isArray {
		return nil, ErrNotArray
	}
	if isArray && v.Kind() == reflect.Slice && v.IsNil() {
		return []byte("[]"), nil
	}

	blob, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return blob, nil
}
