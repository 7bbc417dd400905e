package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recall-hq/recall/pkg/types"
)

// Store keeps short-lived multi-turn conversation history. A session older
// than the TTL is equivalent to a missing one: callers get a fresh session
// either way, and the stale entry is deleted on access.
type Store interface {
	// Load returns the session when it exists and is fresh, or nil
	Load(ctx context.Context, sessionID string) (*types.ConversationSession, error)

	// Create makes a new empty session for the user
	Create(ctx context.Context, userID string) (*types.ConversationSession, error)

	// Append adds turns to a session and bumps its freshness window
	Append(ctx context.Context, sessionID string, turns ...types.Message) error
}

// LoadOrCreate resolves the session to use for a request: the supplied one
// when fresh and owned by the user, otherwise a transparently created one.
func LoadOrCreate(ctx context.Context, store Store, sessionID, userID string) (*types.ConversationSession, error) {
	if sessionID != "" {
		session, err := store.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session != nil && session.UserID == userID {
			return session, nil
		}
	}
	return store.Create(ctx, userID)
}

// MemoryStore is the in-process session store
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*types.ConversationSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.ConversationSession),
	}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*types.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if session.Expired(now()) {
		delete(s.sessions, sessionID)
		return nil, nil
	}

	out := *session
	out.Messages = append([]types.Message(nil), session.Messages...)
	return &out, nil
}

func (s *MemoryStore) Create(ctx context.Context, userID string) (*types.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &types.ConversationSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		UpdatedAt: now(),
	}
	s.sessions[session.ID] = session

	out := *session
	return &out, nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, turns ...types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Expired(now()) {
		delete(s.sessions, sessionID)
		return types.ErrNotFound
	}

	session.Messages = append(session.Messages, turns...)
	session.UpdatedAt = now()
	return nil
}

// now is overridable for expiry tests
var now = time.Now
