package sources

import (
	"context"
	"sync"

	"github.com/recall-hq/recall/pkg/types"
)

// Fetcher defines the uniform contract for synchronous source integrations.
// Each integration (mail, calendar) implements this interface; out-of-band
// sources never appear here, they go through the agent protocol.
type Fetcher interface {
	// Source returns the source kind this fetcher serves
	Source() types.SourceKind

	// Fetch executes the provider query with the given credential.
	// limit caps the number of returned items.
	Fetch(ctx context.Context, cred *types.Credential, params types.QueryParams, limit int) ([]types.RawItem, error)
}

// Registry manages registered source fetchers
type Registry struct {
	mu       sync.RWMutex
	fetchers map[types.SourceKind]Fetcher
}

// NewRegistry creates a new fetcher registry
func NewRegistry() *Registry {
	return &Registry{
		fetchers: make(map[types.SourceKind]Fetcher),
	}
}

// Register adds a fetcher to the registry
func (r *Registry) Register(f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[f.Source()] = f
}

// Get returns a fetcher by source kind, or nil
func (r *Registry) Get(source types.SourceKind) Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchers[source]
}

// Has returns true if a fetcher is registered for the source
func (r *Registry) Has(source types.SourceKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fetchers[source]
	return ok
}

// List returns all registered source kinds
func (r *Registry) List() []types.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]types.SourceKind, 0, len(r.fetchers))
	for kind := range r.fetchers {
		kinds = append(kinds, kind)
	}
	return kinds
}
