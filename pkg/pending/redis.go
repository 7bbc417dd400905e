package pending

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/recall-hq/recall/pkg/common"
	"github.com/recall-hq/recall/pkg/types"
)

// RedisStore backs the pending registry with Redis so gateway replicas can
// share it. Entry expiry rides on key TTLs; a per-request lock serializes
// the read-modify-write of submissions.
type RedisStore struct {
	rdb  *common.RedisClient
	lock *common.RedisLock
}

func NewRedisStore(rdb *common.RedisClient) *RedisStore {
	return &RedisStore{
		rdb:  rdb,
		lock: common.NewRedisLock(rdb),
	}
}

func (s *RedisStore) Create(ctx context.Context, search *types.PendingSearch) error {
	stateKey := common.Keys.SearchState(search.RequestID)

	data, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("marshal search: %w", err)
	}

	if err := s.rdb.Set(ctx, stateKey, data, types.PendingSearchTTL).Err(); err != nil {
		return fmt.Errorf("store search: %w", err)
	}
	return s.rdb.SAdd(ctx, common.Keys.SearchIndex(), stateKey).Err()
}

func (s *RedisStore) load(ctx context.Context, requestID string) (*types.PendingSearch, error) {
	data, err := s.rdb.Get(ctx, common.Keys.SearchState(requestID)).Bytes()
	if err == redis.Nil {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load search: %w", err)
	}

	var search types.PendingSearch
	if err := json.Unmarshal(data, &search); err != nil {
		return nil, fmt.Errorf("unmarshal search: %w", err)
	}

	if search.Expired(now()) {
		return nil, types.ErrNotFound
	}
	return &search, nil
}

func (s *RedisStore) save(ctx context.Context, search *types.PendingSearch) error {
	data, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("marshal search: %w", err)
	}

	ttl := types.PendingSearchTTL - now().Sub(search.CreatedAt)
	if search.Status.Terminal() {
		ttl = types.TerminalGracePeriod
	}
	if ttl <= 0 {
		return s.rdb.Del(ctx, common.Keys.SearchState(search.RequestID)).Err()
	}

	return s.rdb.Set(ctx, common.Keys.SearchState(search.RequestID), data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, requestID, userID string) (*types.PendingSearch, error) {
	search, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if search.UserID != userID {
		return nil, types.ErrForbidden
	}
	return search, nil
}

func (s *RedisStore) SubmitResults(ctx context.Context, requestID, userID string, source types.SourceKind, hits []types.Hit) (*types.PendingSearch, bool, error) {
	lockKey := common.Keys.SearchLock(requestID)
	if err := s.lock.Acquire(ctx, lockKey, common.RedisLockOptions{TtlS: 10, Retries: 3}); err != nil {
		return nil, false, fmt.Errorf("lock: %w", err)
	}
	defer s.lock.Release(lockKey)

	search, err := s.load(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if search.UserID != userID {
		return nil, false, types.ErrForbidden
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
	search.Results[source] = hits

	completed := search.ResultsComplete()
	if completed {
		search.Status = types.SearchStatusProcessing
	} else {
		search.Status = types.SearchStatusPartial
	}

	if err := s.save(ctx, search); err != nil {
		return nil, false, err
	}
	return search, completed, nil
}

func (s *RedisStore) SetComplete(ctx context.Context, requestID, answer string) error {
	return s.setTerminal(ctx, requestID, types.SearchStatusComplete, answer)
}

func (s *RedisStore) SetFailed(ctx context.Context, requestID string) error {
	return s.setTerminal(ctx, requestID, types.SearchStatusFailed, "")
}

func (s *RedisStore) setTerminal(ctx context.Context, requestID string, status types.SearchStatus, answer string) error {
	lockKey := common.Keys.SearchLock(requestID)
	if err := s.lock.Acquire(ctx, lockKey, common.RedisLockOptions{TtlS: 10, Retries: 3}); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer s.lock.Release(lockKey)

	search, err := s.load(ctx, requestID)
	if err != nil {
		return err
	}
	if search.Status.Terminal() {
		return &ErrAlreadyTerminal{Status: search.Status}
	}
	if status == types.SearchStatusFailed && search.Status != types.SearchStatusProcessing {
		return &ErrAlreadyTerminal{Status: search.Status}
	}

	t := now()
	search.Status = status
	search.Answer = answer
	search.CompletedAt = &t
	return s.save(ctx, search)
}

// Sweep prunes index members whose state keys have expired. The state
// entries themselves expire via TTL; this keeps the index from growing.
func (s *RedisStore) Sweep(ctx context.Context) int {
	indexKey := common.Keys.SearchIndex()
	keys, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0
	}

	removed := 0
	for _, key := range keys {
		exists, err := s.rdb.Exists(ctx, key).Result()
		if err == nil && exists == 0 {
			s.rdb.SRem(ctx, indexKey, key)
			removed++
		}
	}
	return removed
}

func (s *RedisStore) Stop() {}
