package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const gmailAPIBase = "https://gmail.googleapis.com/gmail/v1"

// GmailMessage is a parsed Gmail message
type GmailMessage struct {
	ID       string
	ThreadID string
	From     string
	To       string
	Subject  string
	Date     string
	Snippet  string
}

// GmailClient provides Gmail API access
type GmailClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewGmailClient creates a new Gmail API client
func NewGmailClient() *GmailClient {
	return &GmailClient{
		BaseURL:    gmailAPIBase,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Request makes a GET request to the Gmail API
func (c *GmailClient) Request(ctx context.Context, token, path string, result any) error {
	log.Debug().Str("path", path).Msg("gmail API call")

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Service: "gmail", StatusCode: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// ListMessages lists message IDs matching a Gmail search query
func (c *GmailClient) ListMessages(ctx context.Context, token, query string, maxResults int) ([]string, error) {
	path := fmt.Sprintf("/users/me/messages?maxResults=%d", maxResults)
	if query != "" {
		path += "&q=" + url.QueryEscape(query)
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.Request(ctx, token, path, &result); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetMessage fetches message metadata and snippet
func (c *GmailClient) GetMessage(ctx context.Context, token, id string) (*GmailMessage, error) {
	path := fmt.Sprintf("/users/me/messages/%s?format=metadata&metadataHeaders=From&metadataHeaders=To&metadataHeaders=Subject&metadataHeaders=Date", id)

	var result struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
		Snippet  string `json:"snippet"`
		Payload  struct {
			Headers []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"headers"`
		} `json:"payload"`
	}
	if err := c.Request(ctx, token, path, &result); err != nil {
		return nil, err
	}

	msg := &GmailMessage{
		ID:       result.ID,
		ThreadID: result.ThreadID,
		Snippet:  result.Snippet,
	}
	for _, h := range result.Payload.Headers {
		switch h.Name {
		case "From":
			msg.From = h.Value
		case "To":
			msg.To = h.Value
		case "Subject":
			msg.Subject = h.Value
		case "Date":
			msg.Date = h.Value
		}
	}
	return msg, nil
}
