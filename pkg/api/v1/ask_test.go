package apiv1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-hq/recall/pkg/auth"
	"github.com/recall-hq/recall/pkg/conversation"
	"github.com/recall-hq/recall/pkg/credentials"
	"github.com/recall-hq/recall/pkg/orchestrator"
	"github.com/recall-hq/recall/pkg/pending"
	"github.com/recall-hq/recall/pkg/sources"
	"github.com/recall-hq/recall/pkg/types"
)

const testJWTSecret = "test-secret"

type stubClassifier struct {
	plan *types.SourcePlan
}

func (s *stubClassifier) Classify(ctx context.Context, query string) (*types.SourcePlan, error) {
	return s.plan, nil
}

type stubSynthesizer struct {
	answer string
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, query string, hits []types.Hit, history []types.Message) (string, error) {
	return s.answer, nil
}

type stubFetcher struct {
	source types.SourceKind
	items  []types.RawItem
}

func (s *stubFetcher) Source() types.SourceKind { return s.source }
func (s *stubFetcher) Fetch(ctx context.Context, cred *types.Credential, params types.QueryParams, limit int) ([]types.RawItem, error) {
	return s.items, nil
}

type noRefresh struct{}

func (noRefresh) Name() string       { return "google" }
func (noRefresh) IsConfigured() bool { return true }
func (noRefresh) Refresh(ctx context.Context, refreshToken string) (*types.Credential, error) {
	return nil, &types.RefreshFailed{Provider: "google"}
}

func newServerForTest(t *testing.T, plan *types.SourcePlan) *echo.Echo {
	t.Helper()

	cipher, err := credentials.NewCipher(credentials.GenerateKey())
	require.NoError(t, err)
	creds := credentials.NewStore(credentials.NewMemoryRepository(), cipher, noRefresh{})

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, creds.Persist(context.Background(), "user-1", &types.Credential{
		AccessToken: "access",
		ExpiresAt:   &expiry,
	}))

	registry := sources.NewRegistry()
	registry.Register(&stubFetcher{source: types.SourceMail, items: []types.RawItem{{ID: "m1", Content: "hello"}}})

	pendingStore := pending.NewMemoryStore()
	t.Cleanup(pendingStore.Stop)

	router := orchestrator.NewRouter(
		types.SourcesConfig{EnableAgentSources: true},
		&stubClassifier{plan: plan},
		&stubSynthesizer{answer: "synthesized answer"},
		creds,
		registry,
		pendingStore,
		conversation.NewMemoryStore(),
	)

	e := echo.New()
	group := e.Group("/api/v1/ask")
	group.Use(NewAuthMiddleware(auth.NewJWTValidator(testJWTSecret)))
	NewAskGroup(group, router)
	return e
}

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.NewJWTValidator(testJWTSecret).IssueToken(userID, "", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(e *echo.Echo, method, path, authHeader, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func syncOnlyPlan() *types.SourcePlan {
	return &types.SourcePlan{
		NeededSources:  []types.SourceKind{types.SourceMail},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{types.SourceMail: {Query: "q"}},
	}
}

func outOfBandPlan() *types.SourcePlan {
	return &types.SourcePlan{
		NeededSources: []types.SourceKind{types.SourceMail, types.SourceSocial},
		PerSourceQuery: map[types.SourceKind]types.QueryParams{
			types.SourceMail:   {Query: "q"},
			types.SourceSocial: {Keywords: []string{"k1", "k2"}},
		},
	}
}

func TestAskRequiresAuth(t *testing.T) {
	e := newServerForTest(t, syncOnlyPlan())

	rec := doRequest(e, http.MethodPost, "/api/v1/ask", "", `{"query":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/ask", "Bearer not-a-jwt", `{"query":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAskValidatesQueryLength(t *testing.T) {
	e := newServerForTest(t, syncOnlyPlan())
	token := bearerFor(t, "user-1")

	rec := doRequest(e, http.MethodPost, "/api/v1/ask", token, `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := strings.Repeat("x", 1001)
	rec = doRequest(e, http.MethodPost, "/api/v1/ask", token, `{"query":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskSyncComplete(t *testing.T) {
	e := newServerForTest(t, syncOnlyPlan())

	rec := doRequest(e, http.MethodPost, "/api/v1/ask", bearerFor(t, "user-1"), `{"query":"what did alice say"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "complete", resp.Status)
	assert.Equal(t, "synthesized answer", resp.Answer)
	assert.False(t, resp.RequiresExtension)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestAskPendingFlow(t *testing.T) {
	e := newServerForTest(t, outOfBandPlan())
	token := bearerFor(t, "user-1")

	rec := doRequest(e, http.MethodPost, "/api/v1/ask", token, `{"query":"who confirmed dinner"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pending", resp.Status)
	assert.True(t, resp.RequiresExtension)
	require.Len(t, resp.Instructions, 1)
	assert.Equal(t, types.SourceSocial, resp.Instructions[0].Source)

	// Poll while pending
	rec = doRequest(e, http.MethodGet, "/api/v1/ask/"+resp.RequestID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "pending", status.Status)

	// Legacy alias serves the same payload
	rec = doRequest(e, http.MethodGet, "/api/v1/ask/"+resp.RequestID+"/status", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Submit the missing source
	rec = doRequest(e, http.MethodPost, "/api/v1/ask/"+resp.RequestID+"/dom-results", token,
		`{"source":"social","snippets":["bob: count me in"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "processing", status.Status)

	// Background synthesis lands the answer
	assert.Eventually(t, func() bool {
		rec := doRequest(e, http.MethodGet, "/api/v1/ask/"+resp.RequestID, token, "")
		var status StatusResponse
		if json.Unmarshal(rec.Body.Bytes(), &status) != nil {
			return false
		}
		return status.Status == "complete" && status.Answer == "synthesized answer"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusOwnershipCodes(t *testing.T) {
	e := newServerForTest(t, outOfBandPlan())
	owner := bearerFor(t, "user-1")

	rec := doRequest(e, http.MethodPost, "/api/v1/ask", owner, `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Foreign caller sees 403, not the entry
	rec = doRequest(e, http.MethodGet, "/api/v1/ask/"+resp.RequestID, bearerFor(t, "user-2"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown request is 404
	rec = doRequest(e, http.MethodGet, "/api/v1/ask/req-unknown", owner, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAskNotConnectedIs400(t *testing.T) {
	e := newServerForTest(t, syncOnlyPlan())

	// user-2 has no stored credential
	rec := doRequest(e, http.MethodPost, "/api/v1/ask", bearerFor(t, "user-2"), `{"query":"q"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not connected")
}

func TestSubmitUnneededSourceIs400(t *testing.T) {
	e := newServerForTest(t, outOfBandPlan())
	token := bearerFor(t, "user-1")

	rec := doRequest(e, http.MethodPost, "/api/v1/ask", token, `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = doRequest(e, http.MethodPost, "/api/v1/ask/"+resp.RequestID+"/dom-results", token,
		`{"source":"messaging","snippets":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
