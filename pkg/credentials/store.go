package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/recall-hq/recall/pkg/oauth"
	"github.com/recall-hq/recall/pkg/types"
)

// GoogleProvider is the provider key for mail and calendar credentials
const GoogleProvider = "google"

// Store owns credential access for the gateway. Tokens live encrypted in
// the repository; refreshes go through the OAuth provider and are persisted
// before the new token is handed to the caller.
type Store struct {
	repo      Repository
	cipher    *Cipher
	refresher oauth.Refresher
	group     singleflight.Group
}

func NewStore(repo Repository, cipher *Cipher, refresher oauth.Refresher) *Store {
	return &Store{
		repo:      repo,
		cipher:    cipher,
		refresher: refresher,
	}
}

// Get returns the user's stored credential.
// Returns types.ErrNotConnected when no credential exists and
// types.ErrDecryptionFailed when the stored blob is unreadable.
func (s *Store) Get(ctx context.Context, userID string) (*types.Credential, error) {
	blob, err := s.repo.Load(ctx, userID, GoogleProvider)
	if err != nil {
		return nil, fmt.Errorf("load credential for %s: %w", userID, err)
	}
	if blob == nil {
		return nil, types.ErrNotConnected
	}

	plaintext, err := s.cipher.Decrypt(blob)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}

	var cred types.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return &cred, nil
}

// Refresh exchanges the user's refresh token for a new credential and
// persists it before returning. Concurrent refreshes for the same user are
// collapsed into one provider call: a second in-flight refresh could
// invalidate the token just issued to a sibling fetch.
//
// A persist failure does not hide a usable token from the current call;
// it is logged and the fresh credential is still returned.
func (s *Store) Refresh(ctx context.Context, userID string) (*types.Credential, error) {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.refresh(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Credential), nil
}

func (s *Store) refresh(ctx context.Context, userID string) (*types.Credential, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fresh, err := s.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}

	if persistErr := s.Persist(ctx, userID, fresh); persistErr != nil {
		log.Error().
			Err(persistErr).
			Str("user_id", userID).
			Msg("failed to persist refreshed credential")
	}

	return fresh, nil
}

// Persist encrypts and stores a credential
func (s *Store) Persist(ctx context.Context, userID string, cred *types.Credential) error {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	blob, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	return s.repo.Save(ctx, userID, GoogleProvider, blob)
}

// Fresh returns a credential usable right now: the stored one when still
// valid, otherwise the result of one proactive refresh. Expired and
// absent-expiry are treated identically.
func (s *Store) Fresh(ctx context.Context, userID string) (*types.Credential, error) {
	cred, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !cred.IsExpired(time.Now()) {
		return cred, nil
	}
	return s.Refresh(ctx, userID)
}
