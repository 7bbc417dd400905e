package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/recall-hq/recall/pkg/common"
	"github.com/recall-hq/recall/pkg/types"
)

// RedisStore shares sessions between gateway replicas. The TTL is enforced
// twice: the key expires server-side, and Load still applies the freshness
// check so a clock-skewed replica never serves a stale session.
type RedisStore struct {
	rdb *common.RedisClient
}

func NewRedisStore(rdb *common.RedisClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*types.ConversationSession, error) {
	key := common.Keys.ConversationState(sessionID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session types.ConversationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if session.Expired(now()) {
		s.rdb.Del(ctx, key)
		return nil, nil
	}
	return &session, nil
}

func (s *RedisStore) Create(ctx context.Context, userID string) (*types.ConversationSession, error) {
	session := &types.ConversationSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		UpdatedAt: now(),
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...types.Message) error {
	session, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return types.ErrNotFound
	}

	session.Messages = append(session.Messages, turns...)
	session.UpdatedAt = now()
	return s.save(ctx, session)
}

func (s *RedisStore) save(ctx context.Context, session *types.ConversationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := common.Keys.ConversationState(session.ID)
	return s.rdb.Set(ctx, key, data, types.ConversationTTL).Err()
}
