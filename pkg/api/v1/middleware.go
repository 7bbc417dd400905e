package apiv1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/recall-hq/recall/pkg/auth"
)

// NewAuthMiddleware validates the bearer token on every request and stores
// the resulting identity in the request context. Handlers never see an
// unauthenticated request.
func NewAuthMiddleware(validator auth.TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return ErrorResponse(c, http.StatusUnauthorized, "authorization required")
			}

			info, err := validator.Validate(token)
			if err != nil {
				return ErrorResponse(c, http.StatusUnauthorized, "invalid token")
			}

			ctx := auth.WithAuthInfo(c.Request().Context(), info)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
