package oauth

import (
	"context"

	"github.com/recall-hq/recall/pkg/types"
)

// Refresher exchanges a refresh token for fresh credentials.
// Failures are opaque to callers and mapped to types.RefreshFailed.
type Refresher interface {
	// Name returns the provider name (e.g., "google")
	Name() string

	// IsConfigured returns true if the provider has valid client credentials
	IsConfigured() bool

	// Refresh refreshes an access token using a refresh token
	Refresh(ctx context.Context, refreshToken string) (*types.Credential, error)
}
