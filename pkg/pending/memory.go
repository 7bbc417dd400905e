package pending

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recall-hq/recall/pkg/types"
)

const sweepInterval = time.Minute

// MemoryStore holds pending searches in process memory. A single coarse
// lock guards the key space: the submission handler and the sweep race
// from concurrent requests and both mutate entries.
type MemoryStore struct {
	mu       sync.RWMutex
	searches map[string]*types.PendingSearch
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store with a background compaction goroutine
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		searches: make(map[string]*types.PendingSearch),
		stopCh:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) Create(ctx context.Context, search *types.PendingSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches[search.RequestID] = cloneSearch(search)
	return nil
}

// lookup returns the live entry after expiry and ownership checks.
// Caller must hold at least a read lock; expired entries are reported as
// not found and deleted by the next sweep or write-path access.
func (s *MemoryStore) lookup(requestID, userID string) (*types.PendingSearch, error) {
	search, ok := s.searches[requestID]
	if !ok || search.Expired(now()) {
		return nil, types.ErrNotFound
	}
	if search.UserID != userID {
		return nil, types.ErrForbidden
	}
	return search, nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID, userID string) (*types.PendingSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search, err := s.lookup(requestID, userID)
	if err != nil {
		return nil, err
	}
	return cloneSearch(search), nil
}

func (s *MemoryStore) SubmitResults(ctx context.Context, requestID, userID string, source types.SourceKind, hits []types.Hit) (*types.PendingSearch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search, err := s.lookup(requestID, userID)
	if err != nil {
		return nil, false, err
	}

	if search.Status.Terminal() || search.Status == types.SearchStatusProcessing {
		return nil, false, &ErrAlreadyTerminal{Status: search.Status}
	}

	if !search.NeedsSource(source) {
		return nil, false, &ErrSourceNotNeeded{Source: source}
	}

	if search.Results == nil {
		search.Results = make(map[types.SourceKind][]types.Hit)
	}

	// Last write wins: duplicate or out-of-order submissions for the same
	// source replace, never append
	search.Results[source] = append([]types.Hit(nil), hits...)

	completed := search.ResultsComplete()
	if completed {
		search.Status = types.SearchStatusProcessing
	} else {
		search.Status = types.SearchStatusPartial
	}

	return cloneSearch(search), completed, nil
}

func (s *MemoryStore) SetComplete(ctx context.Context, requestID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	search, ok := s.searches[requestID]
	if !ok {
		return types.ErrNotFound
	}
	if search.Status.Terminal() {
		return &ErrAlreadyTerminal{Status: search.Status}
	}

	t := now()
	search.Status = types.SearchStatusComplete
	search.Answer = answer
	search.CompletedAt = &t
	return nil
}

func (s *MemoryStore) SetFailed(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	search, ok := s.searches[requestID]
	if !ok {
		return types.ErrNotFound
	}

	// Failed is reachable only from processing and is absorbing
	if search.Status != types.SearchStatusProcessing {
		return &ErrAlreadyTerminal{Status: search.Status}
	}

	t := now()
	search.Status = types.SearchStatusFailed
	search.CompletedAt = &t
	return nil
}

func (s *MemoryStore) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := now()
	removed := 0
	for id, search := range s.searches {
		if search.Expired(t) {
			delete(s.searches, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n := s.Sweep(context.Background()); n > 0 {
				log.Debug().Int("removed", n).Msg("swept expired pending searches")
			}
		}
	}
}
