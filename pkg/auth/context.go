package auth

import (
	"context"
	"errors"

	"github.com/recall-hq/recall/pkg/types"
)

type ctxKey int

const authInfoKey ctxKey = iota

var ErrAuthRequired = errors.New("authentication required")

func WithAuthInfo(ctx context.Context, info *types.AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

func AuthInfoFromContext(ctx context.Context) *types.AuthInfo {
	info, _ := ctx.Value(authInfoKey).(*types.AuthInfo)
	return info
}

// UserID returns the authenticated user's ID, or empty when unauthenticated
func UserID(ctx context.Context) string {
	if i := AuthInfoFromContext(ctx); i != nil {
		return i.UserID
	}
	return ""
}

func RequireAuth(ctx context.Context) error {
	if AuthInfoFromContext(ctx) == nil {
		return ErrAuthRequired
	}
	return nil
}
