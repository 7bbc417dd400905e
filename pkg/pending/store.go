package pending

import (
	"context"
	"fmt"
	"time"

	"github.com/recall-hq/recall/pkg/types"
)

// Store is the registry of in-flight searches waiting on agent submissions.
// Implementations guarantee ownership isolation: every read or write
// verifies the caller's user ID and returns types.ErrForbidden on mismatch,
// never the entry's contents. Expired entries read as types.ErrNotFound.
type Store interface {
	// Create registers a new pending search
	Create(ctx context.Context, search *types.PendingSearch) error

	// Get returns a snapshot of the search for its owner
	Get(ctx context.Context, requestID, userID string) (*types.PendingSearch, error)

	// SubmitResults writes agent hits for one source, last write wins, and
	// recomputes completion. Returns the updated snapshot and true when the
	// submission completed the set and moved the search to processing.
	SubmitResults(ctx context.Context, requestID, userID string, source types.SourceKind, hits []types.Hit) (*types.PendingSearch, bool, error)

	// SetComplete atomically records the answer and the complete status.
	// Called by the background synthesis task, which already owns the entry.
	SetComplete(ctx context.Context, requestID, answer string) error

	// SetFailed marks a processing search as failed
	SetFailed(ctx context.Context, requestID string) error

	// Sweep removes expired entries and returns how many were dropped
	Sweep(ctx context.Context) int

	// Stop halts background maintenance
	Stop()
}

// ErrSourceNotNeeded rejects a submission for a source the search never asked for
type ErrSourceNotNeeded struct {
	Source types.SourceKind
}

func (e *ErrSourceNotNeeded) Error() string {
	return fmt.Sprintf("source %s is not needed by this request", e.Source)
}

// ErrAlreadyTerminal rejects writes to a search that already finished
type ErrAlreadyTerminal struct {
	Status types.SearchStatus
}

func (e *ErrAlreadyTerminal) Error() string {
	return fmt.Sprintf("request already %s", e.Status)
}

func cloneSearch(p *types.PendingSearch) *types.PendingSearch {
	out := *p
	out.SourcesNeeded = append([]types.SourceKind(nil), p.SourcesNeeded...)
	out.Instructions = append([]types.Instruction(nil), p.Instructions...)
	out.Results = cloneHitMap(p.Results)
	out.SyncResults = cloneHitMap(p.SyncResults)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func cloneHitMap(m map[types.SourceKind][]types.Hit) map[types.SourceKind][]types.Hit {
	if m == nil {
		return nil
	}
	out := make(map[types.SourceKind][]types.Hit, len(m))
	for k, v := range m {
		out[k] = append([]types.Hit(nil), v...)
	}
	return out
}

// now is overridable for expiry tests
var now = time.Now
