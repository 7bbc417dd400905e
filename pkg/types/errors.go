package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for request handling
var (
	// ErrNotFound is returned when a request ID is unknown or expired
	ErrNotFound = errors.New("request not found")

	// ErrForbidden is returned when a request exists but belongs to a
	// different user. Distinct from ErrNotFound: authorization and
	// existence are different failure kinds.
	ErrForbidden = errors.New("access denied")

	// ErrNotConnected is returned when a user has no stored credential
	// for a required provider
	ErrNotConnected = errors.New("provider not connected")

	// ErrDecryptionFailed is returned when a stored credential is
	// unreadable; the user must reconnect
	ErrDecryptionFailed = errors.New("credential decryption failed")
)

// ValidationError rejects a malformed request body before any side effect
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RefreshFailed is returned when the OAuth provider rejected a token refresh
type RefreshFailed struct {
	Provider string
	Err      error
}

func (e *RefreshFailed) Error() string {
	return fmt.Sprintf("token refresh failed for %s: %v", e.Provider, e.Err)
}

func (e *RefreshFailed) Unwrap() error { return e.Err }

// SourceFetchError is a soft failure: one source's fetch failed even after
// retry. It degrades evidence quality, never availability. The router
// treats the source as absent evidence.
type SourceFetchError struct {
	Source SourceKind
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// SynthesisFailed marks a background synthesis failure. It becomes
// PendingSearch state, never a synchronous error to the submitting call.
type SynthesisFailed struct {
	RequestID string
	Err       error
}

func (e *SynthesisFailed) Error() string {
	return fmt.Sprintf("synthesis failed for %s: %v", e.RequestID, e.Err)
}

func (e *SynthesisFailed) Unwrap() error { return e.Err }
