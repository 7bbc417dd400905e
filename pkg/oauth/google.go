package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/recall-hq/recall/pkg/types"
)

// GoogleClient handles Google OAuth token refresh for mail and calendar
type GoogleClient struct {
	clientID     string
	clientSecret string
	redirectURL  string
	tokenURL     string
	httpClient   *http.Client
}

// NewGoogleClient creates a new Google OAuth client from config
func NewGoogleClient(cfg types.GoogleOAuthConfig) *GoogleClient {
	return &GoogleClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURL:  cfg.RedirectURL,
		tokenURL:     google.Endpoint.TokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name
func (g *GoogleClient) Name() string {
	return "google"
}

// IsConfigured returns true if Google OAuth is configured
func (g *GoogleClient) IsConfigured() bool {
	return g.clientID != "" && g.clientSecret != ""
}

// Refresh refreshes an access token using a refresh token.
// Not idempotent at the provider level: a second refresh may invalidate
// the first, so callers must not race refreshes for the same user.
func (g *GoogleClient) Refresh(ctx context.Context, refreshToken string) (*types.Credential, error) {
	if refreshToken == "" {
		return nil, &types.RefreshFailed{Provider: g.Name(), Err: fmt.Errorf("no refresh token")}
	}

	data := url.Values{
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &types.RefreshFailed{Provider: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &types.RefreshFailed{Provider: g.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.RefreshFailed{
			Provider: g.Name(),
			Err:      fmt.Errorf("refresh failed: status %d", resp.StatusCode),
		}
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &types.RefreshFailed{Provider: g.Name(), Err: fmt.Errorf("parse response: %w", err)}
	}

	expiry := time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)

	// Google may rotate the refresh token; keep the old one when it doesn't
	newRefresh := result.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	return &types.Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    &expiry,
	}, nil
}

// SetTokenURL overrides the token endpoint. Used by tests.
func (g *GoogleClient) SetTokenURL(u string) {
	g.tokenURL = u
}
