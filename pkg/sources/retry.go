package sources

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/recall-hq/recall/pkg/types"
)

// FetchFunc runs one fetch attempt with the given credential
type FetchFunc func(ctx context.Context, cred *types.Credential) ([]types.RawItem, error)

// RefreshFunc performs one reactive credential refresh
type RefreshFunc func(ctx context.Context) (*types.Credential, error)

// RetryPolicy is the shared retry-on-unauthorized policy for every
// synchronous source. One attempt with the current credential; on an
// unauthorized error, exactly one refresh and one retry with the new
// credential. A second unauthorized, or any other error, propagates.
type RetryPolicy struct {
	IsUnauthorized func(error) bool
	Refresh        RefreshFunc
}

// Do applies the policy to a fetch closure
func (p *RetryPolicy) Do(ctx context.Context, source types.SourceKind, cred *types.Credential, fetch FetchFunc) ([]types.RawItem, error) {
	items, err := fetch(ctx, cred)
	if err == nil {
		return items, nil
	}

	if p.IsUnauthorized == nil || !p.IsUnauthorized(err) {
		return nil, err
	}

	log.Debug().
		Str("source", string(source)).
		Msg("unauthorized response, refreshing credential and retrying once")

	fresh, refreshErr := p.Refresh(ctx)
	if refreshErr != nil {
		return nil, fmt.Errorf("reactive refresh: %w", refreshErr)
	}

	return fetch(ctx, fresh)
}
