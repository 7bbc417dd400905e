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

const calendarAPIBase = "https://www.googleapis.com/calendar/v3"

// CalendarEvent is a parsed Google Calendar event
type CalendarEvent struct {
	ID        string
	Summary   string
	Location  string
	Start     string
	End       string
	Attendees []string
}

// CalendarClient provides Google Calendar API access
type CalendarClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewCalendarClient creates a new Calendar API client
func NewCalendarClient() *CalendarClient {
	return &CalendarClient{
		BaseURL:    calendarAPIBase,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Request makes a GET request to the Calendar API
func (c *CalendarClient) Request(ctx context.Context, token, path string, result any) error {
	log.Debug().Str("path", path).Msg("calendar API call")

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
		return &APIError{Service: "calendar", StatusCode: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// SearchEvents searches the primary calendar by free-text query.
// Events from the past week onward are considered; providers order
// results by start time.
func (c *CalendarClient) SearchEvents(ctx context.Context, token, query string, maxResults int) ([]CalendarEvent, error) {
	timeMin := time.Now().AddDate(0, 0, -7).Format(time.RFC3339)
	path := fmt.Sprintf("/calendars/primary/events?maxResults=%d&singleEvents=true&orderBy=startTime&timeMin=%s",
		maxResults, url.QueryEscape(timeMin))
	if query != "" {
		path += "&q=" + url.QueryEscape(query)
	}

	var result struct {
		Items []struct {
			ID       string `json:"id"`
			Summary  string `json:"summary"`
			Location string `json:"location"`
			Start    struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"end"`
			Attendees []struct {
				Email string `json:"email"`
			} `json:"attendees"`
		} `json:"items"`
	}
	if err := c.Request(ctx, token, path, &result); err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, 0, len(result.Items))
	for _, item := range result.Items {
		event := CalendarEvent{
			ID:       item.ID,
			Summary:  item.Summary,
			Location: item.Location,
			Start:    firstNonEmpty(item.Start.DateTime, item.Start.Date),
			End:      firstNonEmpty(item.End.DateTime, item.End.Date),
		}
		for _, a := range item.Attendees {
			event.Attendees = append(event.Attendees, a.Email)
		}
		events = append(events, event)
	}
	return events, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
