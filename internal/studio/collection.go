package studio

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Collection is an in-memory list of records kept in sync with a Store.
//
// Mount issues the single initial load. Until it resolves the collection
// reports its default value and rejects changes with ErrNotLoaded, so a save
// can never overwrite data that has not been read yet. After that every change
// is persisted with one asynchronous save of the whole list.
type Collection[E any] struct {
	store   *Store
	name    string
	userKey string
	def     []E
	logger  Logger

	mountOnce sync.Once
	ready     chan struct{}
	saves     sync.WaitGroup

	mu     sync.RWMutex
	ctx    context.Context
	value  []E
	loaded bool
}

// NewCollection creates an unmounted collection stored under userKey.
func NewCollection[E any](store *Store, name, userKey string, def []E, logger Logger) *Collection[E] {
	store.Registry().Register(name)
	return &Collection[E]{
		store:   store,
		name:    name,
		userKey: userKey,
		def:     def,
		logger:  logger,
		ready:   make(chan struct{}),
		value:   slices.Clone(def),
	}
}

// Name returns the collection name.
func (c *Collection[E]) Name() string { return c.name }

// Mount starts the initial load. Calling it again has no effect.
func (c *Collection[E]) Mount(ctx context.Context) {
	c.mountOnce.Do(func() {
		c.mu.Lock()
		c.ctx = context.WithoutCancel(ctx)
		c.mu.Unlock()
		go c.load(ctx)
	})
}

func (c *Collection[E]) load(ctx context.Context) {
	defer close(c.ready)

	var loaded []E
	found, err := c.store.Load(ctx, c.name, c.userKey, &loaded)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		c.logger.Error("loading collection, using default", "collection", c.name, "key", c.userKey, "error", err)
		c.value = slices.Clone(c.def)
	case !found:
		c.logger.Debug("collection not stored yet, using default", "collection", c.name, "key", c.userKey)
		c.value = slices.Clone(c.def)
	default:
		c.value = loaded
	}
	c.loaded = true
}

// Ready is closed once the initial load has resolved.
func (c *Collection[E]) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until the initial load has resolved or ctx is done.
func (c *Collection[E]) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether the initial load has resolved.
func (c *Collection[E]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns a copy of the current records.
func (c *Collection[E]) Get() []E {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.value)
}

// Set replaces the records.
func (c *Collection[E]) Set(records []E) error {
	return c.Update(func([]E) []E { return records })
}

// Update replaces the records with fn applied to a copy of the current ones.
func (c *Collection[E]) Update(fn func([]E) []E) error {
	_, err := c.Change(func(records []E) ([]E, bool) { return fn(records), true })
	return err
}

// Change is Update for changes that may turn out to be no-ops: fn returns the
// new records and whether they differ. When they do not, nothing is stored or
// saved. changed reports what fn returned.
func (c *Collection[E]) Change(fn func([]E) ([]E, bool)) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return false, ErrNotLoaded
	}
	next, changed := fn(slices.Clone(c.value))
	if !changed {
		return false, nil
	}
	c.value = slices.Clone(next)

	// Issued under the lock so write sequence follows change order.
	done := c.store.SaveAsync(c.ctx, c.name, c.userKey, next)
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		err := <-done
		switch {
		case err == nil:
		case errors.Is(err, ErrStaleWrite):
			c.logger.Debug("save superseded", "collection", c.name, "key", c.userKey)
		default:
			c.logger.Error("saving collection", "collection", c.name, "key", c.userKey, "error", err)
		}
	}()
	return true, nil
}

// Flush waits for every save issued by this collection.
func (c *Collection[E]) Flush() {
	c.saves.Wait()
}
