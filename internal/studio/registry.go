package studio

import (
	"strings"
	"sync"
)

// CollectionKind selects the backend a collection is persisted to.
type CollectionKind int

const (
	// KindSimple collections are stored as one blob per key in the key/value backend.
	KindSimple CollectionKind = iota
	// KindStructured collections are stored in a named table of the record backend.
	KindStructured
)

func (k CollectionKind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Collection names used by the studio.
const (
	CollectionHistory = "imageHistory"
	CollectionPrompts = "savedPrompts"
	CollectionModels  = "trainedModels"

	// CollectionSettings is not on the structured allow-list; it lives in the
	// simple key/value backend.
	CollectionSettings = "settings"
)

// StructuredCollections is the allow-list of collections backed by the record
// backend. Each entry is also the table name in that backend.
var StructuredCollections = []string{CollectionHistory, CollectionPrompts, CollectionModels}

// Registration is how a collection name was resolved.
type Registration struct {
	Kind CollectionKind
	// Table is the record backend table; empty for simple collections.
	Table string
}

// Registry resolves collection names to backends. A name is resolved once, by
// prefix match against the structured allow-list, and the result is reused for
// every later call.
type Registry struct {
	structured []string

	mu       sync.RWMutex
	resolved map[string]Registration
}

// NewRegistry creates a Registry whose structured allow-list is structured.
func NewRegistry(structured []string) *Registry {
	return &Registry{
		structured: append([]string(nil), structured...),
		resolved:   make(map[string]Registration),
	}
}

// Register resolves name and records the result.
func (r *Registry) Register(name string) Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.resolved[name]; ok {
		return reg
	}
	reg := Registration{Kind: KindSimple}
	for _, table := range r.structured {
		if strings.HasPrefix(name, table) {
			reg = Registration{Kind: KindStructured, Table: table}
			break
		}
	}
	r.resolved[name] = reg
	return reg
}

// Resolve returns the registration for name, registering it on first use.
func (r *Registry) Resolve(name string) Registration {
	r.mu.RLock()
	reg, ok := r.resolved[name]
	r.mu.RUnlock()
	if ok {
		return reg
	}
	return r.Register(name)
}

// UserKey returns the key a collection instance is stored under for user.
func UserKey(collection, user string) string {
	if user == "" {
		return collection
	}
	return collection + "_" + user
}
