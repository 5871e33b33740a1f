package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"foodcost/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store *memStore, cfg ServiceConfig) *Service {
	if cfg.RowLimit == 0 {
		cfg.RowLimit = 1000
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := NewService(store, store, store, cfg)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestReport_RoundTrip(t *testing.T) {
	store := &memStore{}
	c := newTestCollector(store)
	ctx := context.Background()

	require.NoError(t, c.Collect(ctx, models.TrackRequest{
		Type:      "pageview",
		Page:      "/pricing",
		Referrer:  "https://www.google.com/search?q=x",
		SessionID: "sess-1",
	}, "Mozilla/5.0"))
	require.NoError(t, c.Collect(ctx, models.TrackRequest{
		Type:      "event",
		EventName: "cta_click",
		SessionID: "sess-1",
	}, ""))

	r, err := newTestService(store, ServiceConfig{}).Report(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, r.TotalViews)
	assert.Contains(t, r.TrafficSources, models.SourceCount{Source: "Google", Count: 1})
	assert.Equal(t, map[string]int{"cta_click": 1}, r.EventCounts)
	require.Len(t, r.EventsByCategory, 1)
	assert.Equal(t, "Navigation", r.EventsByCategory[0].Category)
	assert.Equal(t, []models.EventCount{{EventName: "cta_click", Count: 1}}, r.EventsByCategory[0].Events)
	assert.Equal(t, 1, r.Funnel[2].Count)
	assert.Equal(t, "0.0", r.ConversionRate)
}

func TestReport_UTMScenario(t *testing.T) {
	store := &memStore{leads: []models.Lead{{
		Name:      "Ivan",
		Phone:     "+7 900 000-00-00",
		Source:    models.LeadSourceForm,
		UtmData:   json.RawMessage(`{"utm_source":"fb","utm_campaign":"promo"}`),
		CreatedAt: fixedNow.Add(-time.Hour),
	}}}

	r, err := newTestService(store, ServiceConfig{}).Report(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, []models.UtmCampaign{{Source: "fb", Medium: "(none)", Campaign: "promo", Leads: 1}}, r.UtmCampaigns)
	assert.Equal(t, "0", r.ConversionRate)
}

func TestReport_WindowExcludesOldFacts(t *testing.T) {
	store := &memStore{
		pageViews: []models.PageView{
			pageView("/", fixedNow.Add(-2*time.Hour), "a"),
			pageView("/", fixedNow.Add(-8*24*time.Hour), "b"),
		},
	}

	r, err := newTestService(store, ServiceConfig{}).Report(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 1, r.TotalViews)
	require.Len(t, r.DailyStats, 1)
	assert.Equal(t, "2026-10-14", r.DailyStats[0].Date)
}

func TestReport_MaxDaysClamp(t *testing.T) {
	store := &memStore{
		pageViews: []models.PageView{pageView("/", fixedNow.Add(-20*24*time.Hour), "")},
	}

	r, err := newTestService(store, ServiceConfig{MaxDays: 10}).Report(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, 0, r.TotalViews)
}

func TestReport_InvalidWindow(t *testing.T) {
	_, err := newTestService(&memStore{}, ServiceConfig{}).Report(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestReport_ReadErrorAborts(t *testing.T) {
	store := &memStore{readErr: errors.New("timeout")}

	r, err := newTestService(store, ServiceConfig{}).Report(context.Background(), 30)
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestReport_RowLimit(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 5; i++ {
		store.pageViews = append(store.pageViews, pageView("/", fixedNow.Add(-time.Minute), ""))
	}

	r, err := newTestService(store, ServiceConfig{RowLimit: 3}).Report(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, r.TotalViews)
}
