// api/models/fact.go
package models

import (
	"encoding/json"
	"time"
)

// PageView is one rendering of a page to a visitor.
type PageView struct {
	ID        string    `json:"id"`
	Page      string    `json:"page"`
	Referrer  *string   `json:"referrer"`
	UserAgent *string   `json:"userAgent"`
	SessionID *string   `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalyticsEvent is a named interaction such as form_submit or cta_click.
// EventData is kept as raw JSON and never interpreted server-side.
type AnalyticsEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"eventName"`
	EventData json.RawMessage `json:"eventData"`
	Page      *string         `json:"page"`
	SessionID *string         `json:"sessionId"`
	CreatedAt time.Time       `json:"createdAt"`
}

const (
	FactPageView = "pageview"
	FactEvent    = "event"
)

// TrackRequest is the beacon payload accepted by the collector. The
// snake_case fields are what older tracker builds send.
type TrackRequest struct {
	Type      string          `json:"type"`
	Page      string          `json:"page"`
	Referrer  string          `json:"referrer"`
	EventName string          `json:"eventName"`
	EventData json.RawMessage `json:"eventData"`
	SessionID string          `json:"sessionId"`

	LegacyEventName string          `json:"event_name"`
	LegacyEventData json.RawMessage `json:"event_data"`
	LegacySessionID string          `json:"session_id"`
}

// Normalize folds the legacy aliases into the camelCase fields.
func (r *TrackRequest) Normalize() {
	if r.EventName == "" {
		r.EventName = r.LegacyEventName
	}
	if len(r.EventData) == 0 {
		r.EventData = r.LegacyEventData
	}
	if r.SessionID == "" {
		r.SessionID = r.LegacySessionID
	}
	r.LegacyEventName, r.LegacyEventData, r.LegacySessionID = "", nil, ""
}
