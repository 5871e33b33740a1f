package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"foodcost/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newTestCollector(store FactWriter) *Collector {
	c := NewCollector(store)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCollect_PageViewTruncatesFields(t *testing.T) {
	store := &memStore{}
	c := newTestCollector(store)

	err := c.Collect(context.Background(), models.TrackRequest{
		Type:      models.FactPageView,
		Page:      "/" + strings.Repeat("p", 600),
		Referrer:  strings.Repeat("r", 1200),
		SessionID: strings.Repeat("s", 150),
	}, strings.Repeat("u", 700))
	require.NoError(t, err)

	require.Len(t, store.pageViews, 1)
	pv := store.pageViews[0]
	assert.NotEmpty(t, pv.ID)
	assert.Len(t, []rune(pv.Page), MaxPageLen)
	assert.Len(t, []rune(*pv.Referrer), MaxReferrerLen)
	assert.Len(t, []rune(*pv.UserAgent), MaxUserAgentLen)
	assert.Len(t, []rune(*pv.SessionID), MaxSessionLen)
	assert.Equal(t, fixedNow, pv.CreatedAt)
	assert.Empty(t, store.events)
}

func TestCollect_PageViewOptionalFieldsAreNull(t *testing.T) {
	store := &memStore{}
	c := newTestCollector(store)

	require.NoError(t, c.Collect(context.Background(), models.TrackRequest{Type: "pageview", Page: "/"}, ""))

	pv := store.pageViews[0]
	assert.Nil(t, pv.Referrer)
	assert.Nil(t, pv.UserAgent)
	assert.Nil(t, pv.SessionID)
}

func TestCollect_Event(t *testing.T) {
	store := &memStore{}
	c := newTestCollector(store)

	err := c.Collect(context.Background(), models.TrackRequest{
		Type:      models.FactEvent,
		EventName: strings.Repeat("e", 250),
		EventData: json.RawMessage(`{"cta_name":"hero"}`),
		Page:      "/",
		SessionID: "s1",
	}, "ignored")
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Len(t, ev.EventName, MaxEventNameLen)
	assert.JSONEq(t, `{"cta_name":"hero"}`, string(ev.EventData))
	assert.Equal(t, "/", *ev.Page)
	assert.Equal(t, "s1", *ev.SessionID)
	assert.Empty(t, store.pageViews)
}

func TestCollect_EventLegacyFields(t *testing.T) {
	store := &memStore{}
	c := newTestCollector(store)

	err := c.Collect(context.Background(), models.TrackRequest{
		Type:            models.FactEvent,
		LegacyEventName: "phone_click",
		LegacyEventData: json.RawMessage(`null`),
		LegacySessionID: "legacy",
	}, "")
	require.NoError(t, err)

	ev := store.events[0]
	assert.Equal(t, "phone_click", ev.EventName)
	assert.Nil(t, ev.EventData)
	assert.Nil(t, ev.Page)
	assert.Equal(t, "legacy", *ev.SessionID)
}

func TestCollect_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  models.TrackRequest
	}{
		{"missing type", models.TrackRequest{Page: "/"}},
		{"unknown type", models.TrackRequest{Type: "click", Page: "/"}},
		{"pageview without page", models.TrackRequest{Type: "pageview"}},
		{"event without name", models.TrackRequest{Type: "event", Page: "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			err := newTestCollector(store).Collect(context.Background(), tt.req, "ua")

			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Empty(t, store.pageViews)
			assert.Empty(t, store.events)
		})
	}
}

func TestCollect_StorageError(t *testing.T) {
	store := &memStore{insertErr: errors.New("clickhouse down")}

	err := newTestCollector(store).Collect(context.Background(), models.TrackRequest{Type: "pageview", Page: "/"}, "")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidPayload))
}
