package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recall-hq/recall/pkg/sources"
	"github.com/recall-hq/recall/pkg/types"
)

// nowFunc is overridable for expiry tests
var nowFunc = time.Now

const synthesisTimeout = 2 * time.Minute

// PollResult is the state of a pending search as seen by its owner
type PollResult struct {
	Status        types.SearchStatus
	RequestID     string
	SourcesNeeded []types.SourceKind
	Answer        string
}

// Poll reports progress on a pending search. Ownership and expiry are the
// store's business: a foreign request id comes back as ErrForbidden, an
// expired or unknown one as ErrNotFound.
func (r *Router) Poll(ctx context.Context, userID, requestID string) (*PollResult, error) {
	search, err := r.pending.Get(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	return &PollResult{
		Status:        search.Status,
		RequestID:     search.RequestID,
		SourcesNeeded: search.SourcesNeeded,
		Answer:        search.Answer,
	}, nil
}

// SubmitSnippets accepts one source's out-of-band results. When the
// submission completes the result set, synthesis runs as a detached task
// and the caller sees PROCESSING immediately.
func (r *Router) SubmitSnippets(ctx context.Context, userID, requestID, source string, snippets []string) (*PollResult, error) {
	kind := types.SourceKind(source)
	if !types.ValidSources[kind] {
		return nil, &types.ValidationError{Field: "source", Reason: "unknown source kind"}
	}

	hits := sources.NormalizeSnippets(kind, snippets)

	search, becameComplete, err := r.pending.SubmitResults(ctx, requestID, userID, kind, hits)
	if err != nil {
		return nil, err
	}

	if becameComplete {
		log.Info().
			Str("request_id", requestID).
			Str("source", source).
			Msg("result set complete, starting synthesis")
		go r.runSynthesis(search)
	}

	return &PollResult{
		Status:        search.Status,
		RequestID:     search.RequestID,
		SourcesNeeded: search.SourcesNeeded,
	}, nil
}

// runSynthesis is the detached completion task. It owns a snapshot of the
// search taken at spawn time and touches the store only through SetComplete
// and SetFailed, so a concurrent sweep or late submission cannot disturb it.
// Every failure is caught here; nothing propagates to the submitting request.
func (r *Router) runSynthesis(search *types.PendingSearch) {
	ctx, cancel := context.WithTimeout(context.Background(), synthesisTimeout)
	defer cancel()

	merged := sources.Merge(search.AllHits())

	var history []types.Message
	if search.ConversationID != "" {
		session, err := r.conversations.Load(ctx, search.ConversationID)
		if err != nil {
			log.Warn().Err(err).Str("request_id", search.RequestID).Msg("failed to load conversation history")
		} else if session != nil {
			history = session.Messages
		}
	}

	answer, err := r.synthesizer.Synthesize(ctx, search.Query, merged, history)
	if err != nil {
		sErr := &types.SynthesisFailed{RequestID: search.RequestID, Err: err}
		log.Error().Err(sErr).Msg("synthesis failed")
		if failErr := r.pending.SetFailed(ctx, search.RequestID); failErr != nil {
			log.Error().Err(failErr).Str("request_id", search.RequestID).Msg("failed to mark search failed")
		}
		return
	}

	if search.ConversationID != "" {
		r.appendTurns(ctx, search.ConversationID, search.Query, answer)
	}

	if err := r.pending.SetComplete(ctx, search.RequestID, answer); err != nil {
		log.Error().Err(err).Str("request_id", search.RequestID).Msg("failed to store answer")
		return
	}

	log.Info().
		Str("request_id", search.RequestID).
		Int("evidence", len(merged)).
		Msg("search complete")
}
