package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bronhq/bron/internal/discovery"
)

// Convenience wrappers for the launch integrations. Base URLs come from
// the discovery catalog so tests and staging can be pointed elsewhere by
// the Overrides map.

// Overrides replaces catalog base URLs per provider key.
type Overrides map[string]string

func (e *Executor) serviceURL(ov Overrides, key, path string) (string, error) {
	if base, ok := ov[key]; ok {
		return base + path, nil
	}
	api, ok := discovery.Info(key)
	if !ok || api.BaseURL == "" {
		return "", fmt.Errorf("no base url for %s", key)
	}
	return api.BaseURL + path, nil
}

// GmailListMessages lists message IDs matching a Gmail search query.
func (e *Executor) GmailListMessages(ctx context.Context, userID, query string, maxResults int, ov Overrides) (*Result, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	u, err := e.serviceURL(ov, "gmail", "/gmail/v1/users/me/messages")
	if err != nil {
		return nil, err
	}
	params := url.Values{"maxResults": {fmt.Sprint(maxResults)}}
	if query != "" {
		params.Set("q", query)
	}
	return e.Execute(ctx, &Call{
		UserID: userID, Provider: "gmail",
		Method: "GET", URL: u + "?" + params.Encode(),
	})
}

// GmailGetMessage fetches one full message.
func (e *Executor) GmailGetMessage(ctx context.Context, userID, messageID string, ov Overrides) (*Result, error) {
	u, err := e.serviceURL(ov, "gmail", "/gmail/v1/users/me/messages/"+url.PathEscape(messageID))
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, &Call{UserID: userID, Provider: "gmail", Method: "GET", URL: u})
}

// GmailSendMessage sends a plain-text email on the user's behalf.
func (e *Executor) GmailSendMessage(ctx context.Context, userID, to, subject, body string, ov Overrides) (*Result, error) {
	u, err := e.serviceURL(ov, "gmail", "/gmail/v1/users/me/messages/send")
	if err != nil {
		return nil, err
	}
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to, subject, body)
	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return e.Execute(ctx, &Call{
		UserID: userID, Provider: "gmail",
		Method: "POST", URL: u,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	})
}

// CalendarListEvents lists upcoming events on the primary calendar.
func (e *Executor) CalendarListEvents(ctx context.Context, userID, timeMin string, maxResults int, ov Overrides) (*Result, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	u, err := e.serviceURL(ov, "google_calendar", "/calendars/primary/events")
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"maxResults":   {fmt.Sprint(maxResults)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	if timeMin != "" {
		params.Set("timeMin", timeMin)
	}
	return e.Execute(ctx, &Call{
		UserID: userID, Provider: "google_calendar",
		Method: "GET", URL: u + "?" + params.Encode(),
	})
}

// CalendarCreateEvent creates an event on the primary calendar.
func (e *Executor) CalendarCreateEvent(ctx context.Context, userID, summary, startRFC3339, endRFC3339 string, ov Overrides) (*Result, error) {
	u, err := e.serviceURL(ov, "google_calendar", "/calendars/primary/events")
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]any{
		"summary": summary,
		"start":   map[string]string{"dateTime": startRFC3339},
		"end":     map[string]string{"dateTime": endRFC3339},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return e.Execute(ctx, &Call{
		UserID: userID, Provider: "google_calendar",
		Method: "POST", URL: u,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	})
}
