package orchestrator

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/recall-hq/recall/pkg/common"
	"github.com/recall-hq/recall/pkg/conversation"
	"github.com/recall-hq/recall/pkg/credentials"
	"github.com/recall-hq/recall/pkg/llm"
	"github.com/recall-hq/recall/pkg/pending"
	"github.com/recall-hq/recall/pkg/sources"
	"github.com/recall-hq/recall/pkg/sources/clients"
	"github.com/recall-hq/recall/pkg/types"
)

// syncSourceOrder fixes the fetch order for synchronous sources so merge
// tie-breaking stays deterministic
var syncSourceOrder = []types.SourceKind{types.SourceMail, types.SourceCalendar}

const capabilityCacheSize = 1024

// Router owns the query path: it consumes the classifier's source plan,
// fetches synchronous sources with the retry policy, and either answers
// inline or registers a pending search and hands instructions to the agent.
type Router struct {
	config        types.SourcesConfig
	classifier    llm.Classifier
	synthesizer   llm.Synthesizer
	creds         *credentials.Store
	fetchers      *sources.Registry
	pending       pending.Store
	conversations conversation.Store
	capabilities  *lru.Cache[string, bool]
}

func NewRouter(
	config types.SourcesConfig,
	classifier llm.Classifier,
	synthesizer llm.Synthesizer,
	creds *credentials.Store,
	fetchers *sources.Registry,
	pendingStore pending.Store,
	conversations conversation.Store,
) *Router {
	capabilities, _ := lru.New[string, bool](capabilityCacheSize)
	return &Router{
		config:        config,
		classifier:    classifier,
		synthesizer:   synthesizer,
		creds:         creds,
		fetchers:      fetchers,
		pending:       pendingStore,
		conversations: conversations,
		capabilities:  capabilities,
	}
}

// AskResult is the outcome of one query intake
type AskResult struct {
	Status          types.SearchStatus
	RequestID       string
	Answer          string
	SourcesSearched []types.SourceKind
	SourcesNeeded   []types.SourceKind
	Instructions    []types.Instruction
	ConversationID  string
}

// Ask runs query intake: classify, fetch synchronous sources, then either
// synthesize inline or register a pending search for the agent.
func (r *Router) Ask(ctx context.Context, userID, query, conversationID string) (*AskResult, error) {
	session, err := conversation.LoadOrCreate(ctx, r.conversations, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	plan, err := r.classifier.Classify(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	// Both synchronous fetches must finish before the fan-out decision:
	// pre-seeded hits are final once the pending entry becomes visible
	syncHits, searched, err := r.fetchSyncSources(ctx, userID, plan)
	if err != nil {
		return nil, err
	}

	instructions, sourcesNeeded := r.buildInstructions(userID, plan)

	// Fully synchronous path: no pending entry is ever created
	if len(sourcesNeeded) == 0 {
		return r.answerInline(ctx, userID, query, session, plan, syncHits, searched)
	}

	requestID := common.GenerateRequestID()
	for i := range instructions {
		instructions[i].RequestID = requestID
	}

	search := &types.PendingSearch{
		RequestID:      requestID,
		UserID:         userID,
		Query:          query,
		Intent:         plan.Intent,
		SourcesNeeded:  sourcesNeeded,
		Instructions:   instructions,
		Results:        make(map[types.SourceKind][]types.Hit),
		SyncResults:    syncHits,
		Status:         types.SearchStatusPending,
		CreatedAt:      nowFunc(),
		ConversationID: session.ID,
	}

	if err := r.pending.Create(ctx, search); err != nil {
		return nil, fmt.Errorf("register pending search: %w", err)
	}

	// Housekeeping side effect of registration
	go r.pending.Sweep(context.Background())

	log.Info().
		Str("request_id", requestID).
		Str("user_id", userID).
		Int("instructions", len(instructions)).
		Msg("registered pending search")

	return &AskResult{
		Status:          types.SearchStatusPending,
		RequestID:       requestID,
		SourcesSearched: searched,
		SourcesNeeded:   sourcesNeeded,
		Instructions:    instructions,
		ConversationID:  session.ID,
	}, nil
}

// fetchSyncSources runs mail and calendar fetches concurrently. They touch
// independent credential and result slots, so they may overlap each other,
// but the call returns only when both have finished or failed. Per-source
// failures are soft: logged, omitted from evidence, never fatal.
func (r *Router) fetchSyncSources(ctx context.Context, userID string, plan *types.SourcePlan) (map[types.SourceKind][]types.Hit, []types.SourceKind, error) {
	var wanted []types.SourceKind
	for _, kind := range syncSourceOrder {
		if plan.Needs(kind) && r.fetchers.Has(kind) {
			wanted = append(wanted, kind)
		}
	}

	hits := make(map[types.SourceKind][]types.Hit)
	if len(wanted) == 0 {
		return hits, nil, nil
	}

	// Connectivity problems fail the whole call before any fetch starts
	cred, err := r.creds.Fresh(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	limit := r.config.LimitForIntent(plan.Intent)
	policy := &sources.RetryPolicy{
		IsUnauthorized: clients.IsUnauthorized,
		Refresh: func(ctx context.Context) (*types.Credential, error) {
			return r.creds.Refresh(ctx, userID)
		},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, kind := range wanted {
		fetcher := r.fetchers.Get(kind)
		params := plan.PerSourceQuery[kind]

		g.Go(func() error {
			items, fetchErr := policy.Do(gctx, kind, cred, func(ctx context.Context, c *types.Credential) ([]types.RawItem, error) {
				return fetcher.Fetch(ctx, c, params, limit)
			})
			if fetchErr != nil {
				// Absent evidence, not a fatal error
				softErr := &types.SourceFetchError{Source: kind, Err: fetchErr}
				log.Warn().Err(softErr).Str("user_id", userID).Msg("source fetch failed, omitting from evidence")
				return nil
			}

			mu.Lock()
			hits[kind] = sources.Normalize(kind, items)
			mu.Unlock()
			return nil
		})
	}

	g.Wait()

	// Searched order follows fetch order, not map iteration
	var searched []types.SourceKind
	for _, kind := range syncSourceOrder {
		if _, ok := hits[kind]; ok {
			searched = append(searched, kind)
		}
	}
	return hits, searched, nil
}

// buildInstructions resolves the out-of-band subset: capability-gated, and
// only sources the classifier extracted keywords for get an instruction.
func (r *Router) buildInstructions(userID string, plan *types.SourcePlan) ([]types.Instruction, []types.SourceKind) {
	if !r.agentSourcesEnabled(userID) {
		return nil, nil
	}

	var instructions []types.Instruction
	var needed []types.SourceKind
	for _, kind := range plan.OutOfBandSources() {
		keywords := plan.PerSourceQuery[kind].Keywords
		if len(keywords) == 0 {
			continue
		}
		instructions = append(instructions, types.Instruction{
			Source:   kind,
			Keywords: keywords,
		})
		needed = append(needed, kind)
	}
	return instructions, needed
}

// agentSourcesEnabled resolves the caller's capability set once per request
func (r *Router) agentSourcesEnabled(userID string) bool {
	if enabled, ok := r.capabilities.Get(userID); ok {
		return enabled
	}

	enabled := r.config.EnableAgentSources
	if override, ok := r.config.AgentSourceUsers[userID]; ok {
		enabled = override
	}
	r.capabilities.Add(userID, enabled)
	return enabled
}

// answerInline synthesizes immediately from synchronous hits
func (r *Router) answerInline(ctx context.Context, userID, query string, session *types.ConversationSession, plan *types.SourcePlan, syncHits map[types.SourceKind][]types.Hit, searched []types.SourceKind) (*AskResult, error) {
	var hitSets [][]types.Hit
	for _, kind := range syncSourceOrder {
		if hits, ok := syncHits[kind]; ok {
			hitSets = append(hitSets, hits)
		}
	}
	merged := sources.Merge(hitSets)

	answer, err := r.synthesizer.Synthesize(ctx, query, merged, session.Messages)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	r.appendTurns(ctx, session.ID, query, answer)

	return &AskResult{
		Status:          types.SearchStatusComplete,
		RequestID:       common.GenerateRequestID(),
		Answer:          answer,
		SourcesSearched: searched,
		ConversationID:  session.ID,
	}, nil
}

// appendTurns records a completed exchange; history loss is tolerable
func (r *Router) appendTurns(ctx context.Context, sessionID, query, answer string) {
	err := r.conversations.Append(ctx, sessionID,
		types.Message{Role: types.RoleUser, Content: query, CreatedAt: nowFunc()},
		types.Message{Role: types.RoleAssistant, Content: answer, CreatedAt: nowFunc()},
	)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to append conversation turns")
	}
}
