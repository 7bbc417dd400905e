package apiv1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/recall-hq/recall/pkg/auth"
	"github.com/recall-hq/recall/pkg/orchestrator"
	"github.com/recall-hq/recall/pkg/pending"
	"github.com/recall-hq/recall/pkg/types"
)

const maxQueryLength = 1000

type AskGroup struct {
	routerGroup *echo.Group
	router      *orchestrator.Router
}

type AskRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId"`
}

type AskResponse struct {
	Status             string              `json:"status"`
	RequestID          string              `json:"requestId"`
	Answer             string              `json:"answer,omitempty"`
	SourcesSearched    []types.SourceKind  `json:"sourcesSearched,omitempty"`
	ConversationID     string              `json:"conversationId,omitempty"`
	RequiresExtension  bool                `json:"requiresExtension,omitempty"`
	SourcesNeeded      []types.SourceKind  `json:"sourcesNeeded,omitempty"`
	Instructions       []types.Instruction `json:"instructions,omitempty"`
}

type SubmitResultsRequest struct {
	Source   string   `json:"source"`
	Snippets []string `json:"snippets"`
}

type StatusResponse struct {
	Status        string             `json:"status"`
	RequestID     string             `json:"requestId"`
	SourcesNeeded []types.SourceKind `json:"sourcesNeeded,omitempty"`
	Answer        string             `json:"answer,omitempty"`
}

func NewAskGroup(routerGroup *echo.Group, router *orchestrator.Router) *AskGroup {
	g := &AskGroup{
		routerGroup: routerGroup,
		router:      router,
	}
	g.registerRoutes()
	return g
}

func (g *AskGroup) registerRoutes() {
	g.routerGroup.POST("", g.Ask)
	g.routerGroup.GET("/:id", g.GetStatus)
	// Legacy alias kept for older extension builds
	g.routerGroup.GET("/:id/status", g.GetStatus)
	g.routerGroup.POST("/:id/dom-results", g.SubmitResults)
}

// Ask runs a natural-language query against the user's connected sources
func (g *AskGroup) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if len(req.Query) == 0 || len(req.Query) > maxQueryLength {
		return ErrorResponse(c, http.StatusBadRequest, "query must be between 1 and 1000 characters")
	}

	ctx := c.Request().Context()
	result, err := g.router.Ask(ctx, auth.UserID(ctx), req.Query, req.ConversationID)
	if err != nil {
		return askError(c, err)
	}

	if result.Status == types.SearchStatusComplete {
		return c.JSON(http.StatusOK, AskResponse{
			Status:          string(result.Status),
			RequestID:       result.RequestID,
			Answer:          result.Answer,
			SourcesSearched: result.SourcesSearched,
			ConversationID:  result.ConversationID,
		})
	}

	return c.JSON(http.StatusOK, AskResponse{
		Status:            string(result.Status),
		RequestID:         result.RequestID,
		RequiresExtension: true,
		SourcesSearched:   result.SourcesSearched,
		SourcesNeeded:     result.SourcesNeeded,
		Instructions:      result.Instructions,
		ConversationID:    result.ConversationID,
	})
}

// GetStatus reports progress on a pending request
func (g *AskGroup) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	result, err := g.router.Poll(ctx, auth.UserID(ctx), c.Param("id"))
	if err != nil {
		return askError(c, err)
	}
	return c.JSON(http.StatusOK, statusBody(result))
}

// SubmitResults accepts agent-scraped snippets for one source
func (g *AskGroup) SubmitResults(c echo.Context) error {
	var req SubmitResultsRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Source == "" {
		return ErrorResponse(c, http.StatusBadRequest, "source is required")
	}

	ctx := c.Request().Context()
	result, err := g.router.SubmitSnippets(ctx, auth.UserID(ctx), c.Param("id"), req.Source, req.Snippets)
	if err != nil {
		return askError(c, err)
	}
	return c.JSON(http.StatusOK, statusBody(result))
}

func statusBody(result *orchestrator.PollResult) StatusResponse {
	return StatusResponse{
		Status:        string(result.Status),
		RequestID:     result.RequestID,
		SourcesNeeded: result.SourcesNeeded,
		Answer:        result.Answer,
	}
}

// askError maps domain errors onto HTTP codes. Existence and authorization
// stay distinct: a foreign request ID is 403, an unknown or expired one 404.
func askError(c echo.Context, err error) error {
	var validationErr *types.ValidationError
	var refreshErr *types.RefreshFailed
	var notNeeded *pending.ErrSourceNotNeeded
	var terminal *pending.ErrAlreadyTerminal

	switch {
	case errors.As(err, &validationErr):
		return ErrorResponse(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notNeeded):
		return ErrorResponse(c, http.StatusBadRequest, notNeeded.Error())
	case errors.As(err, &terminal):
		return ErrorResponse(c, http.StatusBadRequest, terminal.Error())
	case errors.Is(err, types.ErrNotConnected):
		return ErrorResponse(c, http.StatusBadRequest, "google account not connected")
	case errors.As(err, &refreshErr):
		return ErrorResponse(c, http.StatusBadRequest, "token refresh failed, please reconnect your account")
	case errors.Is(err, types.ErrForbidden):
		return ErrorResponse(c, http.StatusForbidden, "access denied")
	case errors.Is(err, types.ErrNotFound):
		return ErrorResponse(c, http.StatusNotFound, "request not found")
	case errors.Is(err, types.ErrDecryptionFailed):
		return ErrorResponse(c, http.StatusInternalServerError, "stored credential unreadable, please reconnect your account")
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "processing failed")
	}
}
