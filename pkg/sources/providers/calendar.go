package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/recall-hq/recall/pkg/sources/clients"
	"github.com/recall-hq/recall/pkg/types"
)

// CalendarFetcher fetches calendar evidence through the Google Calendar API
type CalendarFetcher struct {
	client *clients.CalendarClient
}

func NewCalendarFetcher(client *clients.CalendarClient) *CalendarFetcher {
	if client == nil {
		client = clients.NewCalendarClient()
	}
	return &CalendarFetcher{client: client}
}

func (f *CalendarFetcher) Source() types.SourceKind {
	return types.SourceCalendar
}

func (f *CalendarFetcher) Fetch(ctx context.Context, cred *types.Credential, params types.QueryParams, limit int) ([]types.RawItem, error) {
	query := params.Query
	if query == "" {
		query = strings.Join(params.Keywords, " ")
	}

	events, err := f.client.SearchEvents(ctx, cred.AccessToken, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]types.RawItem, 0, len(events))
	for _, event := range events {
		content := fmt.Sprintf("%s (%s to %s)", event.Summary, event.Start, event.End)
		if event.Location != "" {
			content += " at " + event.Location
		}

		items = append(items, types.RawItem{
			ID:      event.ID,
			Content: content,
			Metadata: map[string]any{
				"summary":   event.Summary,
				"location":  event.Location,
				"start":     event.Start,
				"end":       event.End,
				"attendees": event.Attendees,
			},
		})
	}
	return items, nil
}
