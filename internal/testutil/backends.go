package testutil

import (
	"context"
	"fmt"
	"sync"

	"genstudio/internal/studio"
)

// RecordingKV is an in-memory studio.KVBackend that records every key it is
// asked about. GetHook and SetHook, when set, run before the operation and
// can block or fail it.
type RecordingKV struct {
	mu    sync.Mutex
	data  map[string][]byte
	Gets  []string
	Sets  []string
	Fails error

	GetHook func(key string)
	SetHook func(key string, blob []byte)
}

func NewRecordingKV() *RecordingKV {
	return &RecordingKV{data: make(map[string][]byte)}
}

func (r *RecordingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if r.GetHook != nil {
		r.GetHook(key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gets = append(r.Gets, key)
	if r.Fails != nil {
		return nil, r.Fails
	}
	blob, ok := r.data[key]
	if !ok {
		return nil, studio.ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (r *RecordingKV) Set(ctx context.Context, key string, blob []byte) error {
	if r.SetHook != nil {
		r.SetHook(key, blob)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sets = append(r.Sets, key)
	if r.Fails != nil {
		return r.Fails
	}
	r.data[key] = append([]byte(nil), blob...)
	return nil
}

func (r *RecordingKV) Close() error { return nil }

// Value returns the blob stored under key, or nil.
func (r *RecordingKV) Value(key string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[key]
}

// RecordingRecords is an in-memory studio.RecordBackend that records every
// table/key pair it is asked about. Hooks behave as in RecordingKV.
type RecordingRecords struct {
	mu    sync.Mutex
	data  map[string][]byte
	Gets  []string
	Puts  []string
	Fails error

	GetHook func(table, key string)
	PutHook func(table, key string, blob []byte)
}

func NewRecordingRecords() *RecordingRecords {
	return &RecordingRecords{data: make(map[string][]byte)}
}

func recordID(table, key string) string {
	return fmt.Sprintf("%s/%s", table, key)
}

func (r *RecordingRecords) Get(ctx context.Context, table, key string) ([]byte, error) {
	if r.GetHook != nil {
		r.GetHook(table, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gets = append(r.Gets, recordID(table, key))
	if r.Fails != nil {
		return nil, r.Fails
	}
	blob, ok := r.data[recordID(table, key)]
	if !ok {
		return nil, studio.ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (r *RecordingRecords) Put(ctx context.Context, table, key string, blob []byte) error {
	if r.PutHook != nil {
		r.PutHook(table, key, blob)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Puts = append(r.Puts, recordID(table, key))
	if r.Fails != nil {
		return r.Fails
	}
	r.data[recordID(table, key)] = append([]byte(nil), blob...)
	return nil
}

func (r *RecordingRecords) Close() error { return nil }

// Value returns the blob stored for table/key, or nil.
func (r *RecordingRecords) Value(table, key string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[recordID(table, key)]
}
