package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/recall-hq/recall/pkg/sources/clients"
	"github.com/recall-hq/recall/pkg/types"
)

// GmailFetcher fetches mail evidence through the Gmail API
type GmailFetcher struct {
	client *clients.GmailClient
}

func NewGmailFetcher(client *clients.GmailClient) *GmailFetcher {
	if client == nil {
		client = clients.NewGmailClient()
	}
	return &GmailFetcher{client: client}
}

func (f *GmailFetcher) Source() types.SourceKind {
	return types.SourceMail
}

// Fetch lists matching messages and resolves their metadata.
// The classifier supplies either a ready Gmail search query or keywords.
func (f *GmailFetcher) Fetch(ctx context.Context, cred *types.Credential, params types.QueryParams, limit int) ([]types.RawItem, error) {
	query := params.Query
	if query == "" {
		query = strings.Join(params.Keywords, " ")
	}

	ids, err := f.client.ListMessages(ctx, cred.AccessToken, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]types.RawItem, 0, len(ids))
	for _, id := range ids {
		msg, err := f.client.GetMessage(ctx, cred.AccessToken, id)
		if err != nil {
			// A single unreadable message should not sink the whole fetch
			continue
		}

		items = append(items, types.RawItem{
			ID:      msg.ID,
			Content: fmt.Sprintf("From: %s\nSubject: %s\n%s", msg.From, msg.Subject, msg.Snippet),
			Metadata: map[string]any{
				"from":      msg.From,
				"to":        msg.To,
				"subject":   msg.Subject,
				"date":      msg.Date,
				"thread_id": msg.ThreadID,
			},
		})
	}
	return items, nil
}
