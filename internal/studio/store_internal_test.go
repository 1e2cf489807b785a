package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type mapKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}

func (m *mapKV) Set(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = blob
	return nil
}

func (m *mapKV) Close() error { return nil }

func TestStore_DropsOutOfOrderWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&mapKV{data: map[string][]byte{}}, nil, NewRegistry(nil), NewNopLogger())
	reg := s.registry.Resolve("settings")

	ks, older := s.issue("settings", "settings_guest")
	_, newer := s.issue("settings", "settings_guest")

	// The newer save completes first.
	if err := s.write(ctx, reg, "settings", "settings_guest", ks, newer, []byte(`"new"`)); err != nil {
		t.Fatalf("write(newer) error = %v", err)
	}
	if err := s.write(ctx, reg, "settings", "settings_guest", ks, older, []byte(`"old"`)); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("write(older) error = %v, want ErrStaleWrite", err)
	}

	var got string
	if _, err := s.Load(ctx, "settings", "settings_guest", &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "new" {
		t.Errorf("stored value = %q, want %q", got, "new")
	}
}

func TestStore_SequencesArePerKey(t *testing.T) {
	s := NewStore(&mapKV{data: map[string][]byte{}}, nil, NewRegistry(nil), NewNopLogger())

	_, a1 := s.issue("settings", "settings_alice")
	_, b1 := s.issue("settings", "settings_bob")
	_, a2 := s.issue("settings", "settings_alice")

	if a1 != 1 || b1 != 1 || a2 != 2 {
		t.Errorf("sequences = %d, %d, %d; want 1, 1, 2", a1, b1, a2)
	}
}
