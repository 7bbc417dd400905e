package types

import "time"

// ConversationTTL is how long a session stays usable after its last turn
const ConversationTTL = 10 * time.Minute

// MessageRole identifies who produced a conversation turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn in a conversation
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ConversationSession holds short-lived multi-turn history for a user
type ConversationSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired returns true when the session is older than the TTL, measured
// from the last append.
func (s *ConversationSession) Expired(now time.Time) bool {
	return now.Sub(s.UpdatedAt) > ConversationTTL
}
