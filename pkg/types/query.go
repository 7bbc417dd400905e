package types

import "time"

// SourceKind identifies one origin of evidence
type SourceKind string

const (
	SourceMail      SourceKind = "mail"
	SourceCalendar  SourceKind = "calendar"
	SourceSocial    SourceKind = "social"
	SourceMessaging SourceKind = "messaging"
)

// ValidSources is the canonical set of source kinds
var ValidSources = map[SourceKind]bool{
	SourceMail:      true,
	SourceCalendar:  true,
	SourceSocial:    true,
	SourceMessaging: true,
}

// OutOfBand returns true if the source can only be reached through the
// external agent driving a live user session, not a direct API call.
func (s SourceKind) OutOfBand() bool {
	return s == SourceSocial || s == SourceMessaging
}

// QueryIntent describes what the user wants done with the evidence
type QueryIntent string

const (
	IntentLookup    QueryIntent = "lookup"
	IntentSummarize QueryIntent = "summarize"
	IntentCount     QueryIntent = "count"
)

// QueryParams is the per-source query produced by the classifier
type QueryParams struct {
	Query    string   `json:"query"`    // provider-specific query string (e.g. Gmail search syntax)
	Keywords []string `json:"keywords"` // extracted keywords, ordered by relevance
}

// SourcePlan is the classifier's decision for a single query.
// Produced once per query, consumed read-only.
type SourcePlan struct {
	NeededSources  []SourceKind               `json:"needed_sources"`
	PerSourceQuery map[SourceKind]QueryParams `json:"per_source_query"`
	Intent         QueryIntent                `json:"intent"`
}

// Needs returns true if the plan includes the given source
func (p *SourcePlan) Needs(source SourceKind) bool {
	for _, s := range p.NeededSources {
		if s == source {
			return true
		}
	}
	return false
}

// OutOfBandSources returns the subset of needed sources that require the agent
func (p *SourcePlan) OutOfBandSources() []SourceKind {
	var out []SourceKind
	for _, s := range p.NeededSources {
		if s.OutOfBand() {
			out = append(out, s)
		}
	}
	return out
}

// Hit is one normalized unit of evidence from a source.
// Immutable once created; the normalizer is the only producer.
type Hit struct {
	ID        string         `json:"id"`
	Source    SourceKind     `json:"source"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Relevance float64        `json:"relevance"` // in [0,1]
}

// RawItem is a provider payload before normalization
type RawItem struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Instruction tells the external agent what to scrape for one source.
// Never mutated after issuance.
type Instruction struct {
	RequestID string     `json:"request_id"`
	Source    SourceKind `json:"source"`
	Keywords  []string   `json:"keywords"`
}

// Credential is a user's token pair for a synchronous provider.
// Owned by the credential store; mutated only by a successful refresh.
type Credential struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// IsExpired returns true when the credential must not be used as-is.
// An absent expiry is treated the same as a past one: fail open toward
// refreshing, never toward silently using a possibly-stale token.
func (c *Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !c.ExpiresAt.After(now)
}
