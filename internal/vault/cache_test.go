package vault

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCachedVault_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryVault("mem")
	v := NewCachedVault(inner, 1)

	if err := v.PutContent(ctx, "abc123", strings.NewReader("png"), 3); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	// Drop the backing copy; the cached one must still be served.
	inner.mu.Lock()
	delete(inner.content, "abc123")
	inner.mu.Unlock()

	var buf bytes.Buffer
	if err := v.GetContent(ctx, "abc123", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != "png" {
		t.Errorf("GetContent() = %q, want %q", buf.String(), "png")
	}
	if v.HitRate() == 0 {
		t.Error("HitRate() = 0 after a cache hit")
	}
}

func TestCachedVault_FillsOnMiss(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryVault("mem")
	if err := inner.PutContent(ctx, "abc123", strings.NewReader("png"), 3); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	v := NewCachedVault(inner, 1)

	var first bytes.Buffer
	if err := v.GetContent(ctx, "abc123", &first); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}

	inner.mu.Lock()
	delete(inner.content, "abc123")
	inner.mu.Unlock()

	var second bytes.Buffer
	if err := v.GetContent(ctx, "abc123", &second); err != nil {
		t.Fatalf("second GetContent() error = %v", err)
	}
	if second.String() != "png" {
		t.Errorf("second GetContent() = %q, want %q", second.String(), "png")
	}
}

func TestCachedVault_ImageSizedPayloads(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		sizeMB int
		size   int
	}{
		{"200KB image in default cache", 32, 200 * 1024},
		{"2MB image in default cache", 32, 2 * 1024 * 1024},
		{"64KB image in 1MB cache", 1, 64 * 1024},
		{"chunk-aligned payload", 1, 4 * (1024 * 1024 / chunkDivisor)},
		{"empty payload", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := NewMemoryVault("mem")
			v := NewCachedVault(inner, tt.sizeMB)

			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i % 251)
			}
			if err := v.PutContent(ctx, "img", bytes.NewReader(payload), int64(len(payload))); err != nil {
				t.Fatalf("PutContent() error = %v", err)
			}

			inner.mu.Lock()
			delete(inner.content, "img")
			inner.mu.Unlock()

			for i := 0; i < 3; i++ {
				var buf bytes.Buffer
				if err := v.GetContent(ctx, "img", &buf); err != nil {
					t.Fatalf("GetContent() #%d error = %v", i, err)
				}
				if !bytes.Equal(buf.Bytes(), payload) {
					t.Fatalf("GetContent() #%d returned %d bytes, want the %d stored", i, buf.Len(), len(payload))
				}
			}
			if got := v.HitRate(); got != 1 {
				t.Errorf("HitRate() = %v, want 1", got)
			}
		})
	}
}

func TestCachedVault_LargePayloadsPassThrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryVault("mem")
	v := NewCachedVault(inner, 1)

	// More than an eighth of a 1MB cache.
	big := strings.Repeat("x", 200*1024)
	if err := v.PutContent(ctx, "abc123", strings.NewReader(big), int64(len(big))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	var buf bytes.Buffer
	if err := v.GetContent(ctx, "abc123", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.Len() != len(big) {
		t.Errorf("GetContent() returned %d bytes, want %d", buf.Len(), len(big))
	}
	if v.HitRate() != 0 {
		t.Errorf("HitRate() = %v, want 0 for an uncached payload", v.HitRate())
	}
}

func TestCachedVault_EvictedChunkIsAMiss(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryVault("mem")
	v := NewCachedVault(inner, 1)

	payload := bytes.Repeat([]byte("ab"), 5000)
	if err := v.PutContent(ctx, "img", bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	v.cache.Del(chunkKey("img", 2))

	var buf bytes.Buffer
	if err := v.GetContent(ctx, "img", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Errorf("GetContent() returned %d bytes, want %d", buf.Len(), len(payload))
	}
	if v.HitRate() != 0 {
		t.Errorf("HitRate() = %v, want 0 after reading through", v.HitRate())
	}
}
