package types

import "time"

// SearchStatus is the lifecycle state of a pending search
type SearchStatus string

const (
	SearchStatusPending    SearchStatus = "pending"    // registered, no agent result yet
	SearchStatusPartial    SearchStatus = "partial"    // some but not all sources reported
	SearchStatusProcessing SearchStatus = "processing" // all sources reported, synthesis running
	SearchStatusComplete   SearchStatus = "complete"
	SearchStatusFailed     SearchStatus = "failed"
)

// Terminal returns true for states that can no longer change
func (s SearchStatus) Terminal() bool {
	return s == SearchStatusComplete || s == SearchStatusFailed
}

const (
	// PendingSearchTTL is how long a search may wait for agent submissions
	// before the sweep removes it.
	PendingSearchTTL = 5 * time.Minute

	// TerminalGracePeriod keeps a completed or failed search readable long
	// enough for polling clients to observe the terminal state.
	TerminalGracePeriod = 30 * time.Second
)

// PendingSearch tracks a query whose evidence gathering spans an unbounded
// delay while the external agent scrapes out-of-band sources.
type PendingSearch struct {
	RequestID      string               `json:"request_id"`
	UserID         string               `json:"user_id"`
	Query          string               `json:"query"`
	Intent         QueryIntent          `json:"intent"`
	SourcesNeeded  []SourceKind         `json:"sources_needed"` // out-of-band subset tracked for completion
	Instructions   []Instruction        `json:"instructions"`
	Results        map[SourceKind][]Hit `json:"results"` // agent submissions, keys always ⊆ SourcesNeeded
	SyncResults    map[SourceKind][]Hit `json:"sync_results"`
	Status         SearchStatus         `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	ConversationID string               `json:"conversation_id,omitempty"`
	Answer         string               `json:"answer,omitempty"` // set only when Status == complete
}

// NeedsSource returns true if the search is waiting on the given source
func (p *PendingSearch) NeedsSource(source SourceKind) bool {
	for _, s := range p.SourcesNeeded {
		if s == source {
			return true
		}
	}
	return false
}

// ResultsComplete reports whether every needed source has reported.
// An empty hit list counts as reported: the agent may truthfully say
// "no matches". Set equality, not superset: Results never holds a key
// outside SourcesNeeded.
func (p *PendingSearch) ResultsComplete() bool {
	for _, s := range p.SourcesNeeded {
		if _, ok := p.Results[s]; !ok {
			return false
		}
	}
	return true
}

// Expired returns true once the search should be unreachable: five minutes
// after creation without reaching a terminal state, or thirty seconds after
// the terminal transition.
func (p *PendingSearch) Expired(now time.Time) bool {
	if p.Status.Terminal() && p.CompletedAt != nil {
		return now.Sub(*p.CompletedAt) > TerminalGracePeriod
	}
	return now.Sub(p.CreatedAt) > PendingSearchTTL
}

// AllHits returns sync hits followed by agent hits in stable source order.
// Fetch order is preserved so the merger's tie-breaking stays deterministic.
func (p *PendingSearch) AllHits() [][]Hit {
	var sets [][]Hit
	for _, s := range []SourceKind{SourceMail, SourceCalendar} {
		if hits, ok := p.SyncResults[s]; ok {
			sets = append(sets, hits)
		}
	}
	for _, s := range p.SourcesNeeded {
		if hits, ok := p.Results[s]; ok {
			sets = append(sets, hits)
		}
	}
	return sets
}
