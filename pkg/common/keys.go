package common

import "fmt"

var (
	// Pending search keys
	searchState string = "search:state:%s" // requestId
	searchLock  string = "search:lock:%s"  // requestId
	searchIndex string = "search:index"

	// Conversation keys
	conversationState string = "conversation:state:%s" // conversationId

	// Credential keys
	credentialState string = "credential:state:%s:%s" // userId, provider
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Pending search keys

func (rk *redisKeys) SearchState(requestID string) string {
	return fmt.Sprintf(searchState, requestID)
}

func (rk *redisKeys) SearchLock(requestID string) string {
	return fmt.Sprintf(searchLock, requestID)
}

func (rk *redisKeys) SearchIndex() string {
	return searchIndex
}

// Conversation keys

func (rk *redisKeys) ConversationState(conversationID string) string {
	return fmt.Sprintf(conversationState, conversationID)
}

// Credential keys

func (rk *redisKeys) CredentialState(userID, provider string) string {
	return fmt.Sprintf(credentialState, userID, provider)
}
