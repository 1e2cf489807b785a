package vault

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/coocood/freecache"

	"genstudio/internal/studio"
)

// freecache refuses entries larger than 1/1024 of the cache, which is far
// smaller than an image. Payloads are split into chunks keyed
// "<checksum>#<n>", behind a header entry under the checksum holding the total
// length. Chunks are a quarter of the entry limit so each of freecache's 256
// segments holds a dozen of them.
const chunkDivisor = 4096

// CachedVault keeps recently used payloads in a fixed-size freecache so
// repeated previews and exports skip the backend.
type CachedVault struct {
	inner      studio.MediaVault
	cache      *freecache.Cache
	chunkSize  int
	maxPayload int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedVault wraps inner with a read cache of sizeMB megabytes.
// Payloads larger than an eighth of the cache are not cached.
func NewCachedVault(inner studio.MediaVault, sizeMB int) *CachedVault {
	size := sizeMB * 1024 * 1024
	return &CachedVault{
		inner:      inner,
		cache:      freecache.NewCache(size),
		chunkSize:  size / chunkDivisor,
		maxPayload: size / 8,
	}
}

// PutContent stores content in the inner vault and primes the cache.
func (v *CachedVault) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if err := v.inner.PutContent(ctx, checksum, bytes.NewReader(data), size); err != nil {
		return err
	}
	v.store(checksum, data)
	return nil
}

// GetContent serves from the cache, falling back to the inner vault.
func (v *CachedVault) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	if data, ok := v.load(checksum); ok {
		v.hits.Add(1)
		_, err := w.Write(data)
		return err
	}
	v.misses.Add(1)

	var buf bytes.Buffer
	if err := v.inner.GetContent(ctx, checksum, &buf); err != nil {
		return err
	}
	v.store(checksum, buf.Bytes())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func chunkKey(checksum string, n int) []byte {
	return []byte(checksum + "#" + strconv.Itoa(n))
}

func (v *CachedVault) store(checksum string, data []byte) {
	if len(data) > v.maxPayload {
		return
	}
	for n, off := 0, 0; off < len(data); n, off = n+1, off+v.chunkSize {
		end := min(off+v.chunkSize, len(data))
		if err := v.cache.Set(chunkKey(checksum, n), data[off:end], 0); err != nil {
			return
		}
	}
	// The header goes last so it is never visible before its chunks.
	var head [8]byte
	binary.BigEndian.PutUint64(head[:], uint64(len(data)))
	_ = v.cache.Set([]byte(checksum), head[:], 0)
}

// load reassembles a cached payload. Any evicted chunk makes it a miss.
func (v *CachedVault) load(checksum string) ([]byte, bool) {
	head, err := v.cache.Get([]byte(checksum))
	if err != nil || len(head) != 8 {
		return nil, false
	}
	total := int(binary.BigEndian.Uint64(head))
	data := make([]byte, 0, total)
	for n := 0; len(data) < total; n++ {
		chunk, err := v.cache.Get(chunkKey(checksum, n))
		if err != nil {
			return nil, false
		}
		data = append(data, chunk...)
	}
	if len(data) != total {
		return nil, false
	}
	return data, true
}

// HitRate reports the fraction of reads served from the cache.
func (v *CachedVault) HitRate() float64 {
	hits, misses := v.hits.Load(), v.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (v *CachedVault) ValidateSetup(ctx context.Context) error {
	return v.inner.ValidateSetup(ctx)
}

var _ studio.MediaVault = (*CachedVault)(nil)
