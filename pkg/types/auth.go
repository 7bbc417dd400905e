package types

// AuthInfo describes the authenticated caller of a request
type AuthInfo struct {
	UserID string
	Email  string
}
