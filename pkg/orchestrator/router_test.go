package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-hq/recall/pkg/conversation"
	"github.com/recall-hq/recall/pkg/credentials"
	"github.com/recall-hq/recall/pkg/pending"
	"github.com/recall-hq/recall/pkg/sources"
	"github.com/recall-hq/recall/pkg/types"
)

type fakeClassifier struct {
	plan *types.SourcePlan
	err  error
}

func (f *fakeClassifier) Classify(ctx context.Context, query string) (*types.SourcePlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	answer string
	err    error
	hits   []types.Hit
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, query string, hits []types.Hit, history []types.Message) (string, error) {
	f.mu.Lock()
	f.hits = hits
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeSynthesizer) seenHits() []types.Hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

type fakeFetcher struct {
	source types.SourceKind
	items  []types.RawItem
	err    error
}

func (f *fakeFetcher) Source() types.SourceKind { return f.source }

func (f *fakeFetcher) Fetch(ctx context.Context, cred *types.Credential, params types.QueryParams, limit int) ([]types.RawItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type staticRefresher struct{}

func (staticRefresher) Name() string       { return "google" }
func (staticRefresher) IsConfigured() bool { return true }
func (staticRefresher) Refresh(ctx context.Context, refreshToken string) (*types.Credential, error) {
	expiry := time.Now().Add(time.Hour)
	return &types.Credential{AccessToken: "refreshed", RefreshToken: refreshToken, ExpiresAt: &expiry}, nil
}

type routerFixture struct {
	router      *Router
	pending     *pending.MemoryStore
	sessions    *conversation.MemoryStore
	synthesizer *fakeSynthesizer
}

func newRouterForTest(t *testing.T, plan *types.SourcePlan, fetchers []sources.Fetcher, agentSources bool) *routerFixture {
	t.Helper()

	cipher, err := credentials.NewCipher(credentials.GenerateKey())
	require.NoError(t, err)
	creds := credentials.NewStore(credentials.NewMemoryRepository(), cipher, staticRefresher{})

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, creds.Persist(context.Background(), "user-1", &types.Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    &expiry,
	}))

	registry := sources.NewRegistry()
	for _, f := range fetchers {
		registry.Register(f)
	}

	pendingStore := pending.NewMemoryStore()
	t.Cleanup(pendingStore.Stop)
	sessions := conversation.NewMemoryStore()
	synthesizer := &fakeSynthesizer{answer: "the answer"}

	router := NewRouter(
		types.SourcesConfig{EnableAgentSources: agentSources},
		&fakeClassifier{plan: plan},
		synthesizer,
		creds,
		registry,
		pendingStore,
		sessions,
	)

	return &routerFixture{
		router:      router,
		pending:     pendingStore,
		sessions:    sessions,
		synthesizer: synthesizer,
	}
}

func TestAskSyncOnlyAnswersInline(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceMail},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMail: {Query: "from:alice"},
		},
		Intent: types.IntentLookup,
	}
	fx := newRouterForTest(t, plan, []sources.Fetcher{
		&fakeFetcher{source: types.SourceMail, items: []types.RawItem{{ID: "m1", Content: "lunch friday?"}}},
	}, true)

	result, err := fx.router.Ask(context.Background(), "user-1", "when is lunch with alice", "")
	require.NoError(t, err)

	assert.Equal(t, types.SearchStatusComplete, result.Status)
	assert.Equal(t, "the answer", result.Answer)
	assert.Equal(t, []types.SourceKind{types.SourceMail}, result.SourcesSearched)
	assert.NotEmpty(t, result.RequestID)
	assert.Empty(t, result.Instructions)

	// A fully synchronous query never registers a pending search
	_, err = fx.pending.Get(context.Background(), result.RequestID, "user-1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	// The exchange was recorded on the conversation
	session, err := fx.sessions.Load(context.Background(), result.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.Messages, 2)
}

func TestAskOutOfBandRegistersPending(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceMail, types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMail:   {Query: "dinner"},
			types.SourceSocial: {Keywords: []string{"dinner", "saturday"}},
		},
		Intent: types.IntentLookup,
	}
	fx := newRouterForTest(t, plan, []sources.Fetcher{
		&fakeFetcher{source: types.SourceMail, items: []types.RawItem{{ID: "m1", Content: "dinner sat 7pm"}}},
	}, true)

	result, err := fx.router.Ask(context.Background(), "user-1", "who confirmed dinner", "")
	require.NoError(t, err)

	assert.Equal(t, types.SearchStatusPending, result.Status)
	assert.Equal(t, []types.SourceKind{types.SourceSocial}, result.SourcesNeeded)
	require.Len(t, result.Instructions, 1)
	assert.Equal(t, types.SourceSocial, result.Instructions[0].Source)
	assert.Equal(t, []string{"dinner", "saturday"}, result.Instructions[0].Keywords)
	assert.Equal(t, result.RequestID, result.Instructions[0].RequestID)

	// Sync hits are pre-seeded before the entry becomes visible
	search, err := fx.pending.Get(context.Background(), result.RequestID, "user-1")
	require.NoError(t, err)
	assert.Len(t, search.SyncResults[types.SourceMail], 1)
	assert.Equal(t, types.SearchStatusPending, search.Status)
}

func TestSubmitCompletesAndSynthesizes(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceMail, types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMail:   {Query: "dinner"},
			types.SourceSocial: {Keywords: []string{"dinner"}},
		},
	}
	fx := newRouterForTest(t, plan, []sources.Fetcher{
		&fakeFetcher{source: types.SourceMail, items: []types.RawItem{{ID: "m1", Content: "dinner sat"}}},
	}, true)

	ctx := context.Background()
	result, err := fx.router.Ask(ctx, "user-1", "who confirmed dinner", "")
	require.NoError(t, err)

	status, err := fx.router.SubmitSnippets(ctx, "user-1", result.RequestID, "social", []string{"bob: count me in"})
	require.NoError(t, err)
	assert.Equal(t, types.SearchStatusProcessing, status.Status)

	// Synthesis runs detached; the terminal state shows up via polling
	assert.Eventually(t, func() bool {
		poll, err := fx.router.Poll(ctx, "user-1", result.RequestID)
		return err == nil && poll.Status == types.SearchStatusComplete
	}, 2*time.Second, 10*time.Millisecond)

	poll, err := fx.router.Poll(ctx, "user-1", result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "the answer", poll.Answer)

	// Synthesis saw both the sync evidence and the agent evidence
	seen := fx.synthesizer.seenHits()
	foundSync, foundAgent := false, false
	for _, h := range seen {
		if h.Source == types.SourceMail {
			foundSync = true
		}
		if h.Source == types.SourceSocial {
			foundAgent = true
		}
	}
	assert.True(t, foundSync)
	assert.True(t, foundAgent)
}

func TestSubmitSynthesisFailureMarksFailed(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources:  []types.SourceKind{types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{types.SourceSocial: {Keywords: []string{"x"}}},
	}
	fx := newRouterForTest(t, plan, nil, true)
	fx.synthesizer.err = errors.New("model unavailable")

	ctx := context.Background()
	result, err := fx.router.Ask(ctx, "user-1", "anything", "")
	require.NoError(t, err)

	_, err = fx.router.SubmitSnippets(ctx, "user-1", result.RequestID, "social", []string{"snippet"})
	require.NoError(t, err)

	// The submitting call never sees the synthesis error; it lands as state
	assert.Eventually(t, func() bool {
		poll, err := fx.router.Poll(ctx, "user-1", result.RequestID)
		return err == nil && poll.Status == types.SearchStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAskSourceFetchFailureIsSoft(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceMail, types.SourceCalendar},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMail:     {Query: "q"},
			types.SourceCalendar: {Query: "q"},
		},
	}
	fx := newRouterForTest(t, plan, []sources.Fetcher{
		&fakeFetcher{source: types.SourceMail, items: []types.RawItem{{ID: "m1", Content: "hit"}}},
		&fakeFetcher{source: types.SourceCalendar, err: errors.New("503 backend unavailable")},
	}, true)

	result, err := fx.router.Ask(context.Background(), "user-1", "query", "")
	require.NoError(t, err)

	// The failed source is simply absent from the evidence
	assert.Equal(t, types.SearchStatusComplete, result.Status)
	assert.Equal(t, []types.SourceKind{types.SourceMail}, result.SourcesSearched)
}

func TestAskNotConnectedFailsWholeCall(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources:  []types.SourceKind{types.SourceMail},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{types.SourceMail: {Query: "q"}},
	}
	fx := newRouterForTest(t, plan, []sources.Fetcher{
		&fakeFetcher{source: types.SourceMail},
	}, true)

	_, err := fx.router.Ask(context.Background(), "user-without-creds", "query", "")
	assert.ErrorIs(t, err, types.ErrNotConnected)
}

func TestAskAgentSourcesDisabledSkipsInstructions(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceMail, types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMail:   {Query: "q"},
			types.SourceSocial: {Keywords: []string{"k"}},
		},
	}
	fx := newRouterForTest(t, plan, []sources.Fetcher{
		&fakeFetcher{source: types.SourceMail, items: []types.RawItem{{ID: "m1", Content: "hit"}}},
	}, false)

	result, err := fx.router.Ask(context.Background(), "user-1", "query", "")
	require.NoError(t, err)

	// Without the capability the query degrades to synchronous-only
	assert.Equal(t, types.SearchStatusComplete, result.Status)
	assert.Empty(t, result.Instructions)
}

func TestAskEmptyKeywordsDropsSource(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceSocial, types.SourceMessaging},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMessaging: {Keywords: []string{"k"}},
			// social has no keyword extraction, so no instruction can be issued
		},
	}
	fx := newRouterForTest(t, plan, nil, true)

	result, err := fx.router.Ask(context.Background(), "user-1", "query", "")
	require.NoError(t, err)

	// A source with nothing to search for is not tracked for completion,
	// otherwise the request could never complete
	assert.Equal(t, []types.SourceKind{types.SourceMessaging}, result.SourcesNeeded)
	require.Len(t, result.Instructions, 1)
	assert.Equal(t, types.SourceMessaging, result.Instructions[0].Source)
}

func TestSubmitUnknownSourceRejected(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources:  []types.SourceKind{types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{types.SourceSocial: {Keywords: []string{"k"}}},
	}
	fx := newRouterForTest(t, plan, nil, true)

	result, err := fx.router.Ask(context.Background(), "user-1", "query", "")
	require.NoError(t, err)

	_, err = fx.router.SubmitSnippets(context.Background(), "user-1", result.RequestID, "pigeon", nil)

	var validationErr *types.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestPerUserCapabilityOverride(t *testing.T) {
	plan := &types.SourcePlan{
		NeededSources:  []types.SourceKind{types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{types.SourceSocial: {Keywords: []string{"k"}}},
	}
	fx := newRouterForTest(t, plan, nil, false)
	fx.router.config.AgentSourceUsers = map[string]bool{"user-1": true}

	result, err := fx.router.Ask(context.Background(), "user-1", "query", "")
	require.NoError(t, err)

	// The per-user override wins over the global default
	assert.Equal(t, types.SearchStatusPending, result.Status)
}
