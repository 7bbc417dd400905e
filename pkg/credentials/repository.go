package credentials

import (
	"context"
	"sync"
)

// Repository persists encrypted credential blobs keyed by user and provider
type Repository interface {
	// Save upserts the encrypted credential blob for a user/provider pair
	Save(ctx context.Context, userID, provider string, blob []byte) error

	// Load returns the stored blob, or nil when the user never connected
	Load(ctx context.Context, userID, provider string) ([]byte, error)

	// Delete removes the stored credential
	Delete(ctx context.Context, userID, provider string) error
}

// MemoryRepository is the local-mode repository
type MemoryRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{blobs: make(map[string][]byte)}
}

func (r *MemoryRepository) key(userID, provider string) string {
	return userID + ":" + provider
}

func (r *MemoryRepository) Save(ctx context.Context, userID, provider string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]byte, len(blob))
	copy(stored, blob)
	r.blobs[r.key(userID, provider)] = stored
	return nil
}

func (r *MemoryRepository) Load(ctx context.Context, userID, provider string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[r.key(userID, provider)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, r.key(userID, provider))
	return nil
}
