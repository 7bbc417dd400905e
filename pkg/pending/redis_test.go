package pending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-hq/recall/pkg/common"
	"github.com/recall-hq/recall/pkg/types"
)

func newRedisStoreForTest(t *testing.T) *RedisStore {
	rdb, mr, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newRedisStoreForTest(t)

	require.NoError(t, store.Create(ctx, newTestSearch("req-1", "user-1", types.SourceSocial, types.SourceMessaging)))

	search, err := store.Get(ctx, "req-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.SearchStatusPending, search.Status)
	assert.Equal(t, []types.SourceKind{types.SourceSocial, types.SourceMessaging}, search.SourcesNeeded)
}

func TestRedisStoreSubmitLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newRedisStoreForTest(t)

	require.NoError(t, store.Create(ctx, newTestSearch("req-1", "user-1", types.SourceSocial, types.SourceMessaging)))

	search, completed, err := store.SubmitResults(ctx, "req-1", "user-1", types.SourceSocial, []types.Hit{{ID: "s1"}})
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, types.SearchStatusPartial, search.Status)

	search, completed, err = store.SubmitResults(ctx, "req-1", "user-1", types.SourceMessaging, nil)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, types.SearchStatusProcessing, search.Status)

	require.NoError(t, store.SetComplete(ctx, "req-1", "the answer"))

	search, err = store.Get(ctx, "req-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.SearchStatusComplete, search.Status)
	assert.Equal(t, "the answer", search.Answer)
}

func TestRedisStoreOwnership(t *testing.T) {
	ctx := context.Background()
	store := newRedisStoreForTest(t)

	require.NoError(t, store.Create(ctx, newTestSearch("req-1", "user-1", types.SourceSocial)))

	_, err := store.Get(ctx, "req-1", "user-2")
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = store.Get(ctx, "req-unknown", "user-1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRedisStoreSweepPrunesIndex(t *testing.T) {
	ctx := context.Background()
	rdb, mr, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	store := NewRedisStore(rdb)

	require.NoError(t, store.Create(ctx, newTestSearch("req-1", "user-1", types.SourceSocial)))
	require.NoError(t, store.Create(ctx, newTestSearch("req-2", "user-1", types.SourceSocial)))

	// Expire one state key out from under the index
	mr.Del(common.Keys.SearchState("req-1"))

	removed := store.Sweep(ctx)
	assert.Equal(t, 1, removed)

	// Sweep is idempotent once the index is clean
	assert.Equal(t, 0, store.Sweep(ctx))
}
