package analytics

import (
	"context"
	"sync"
	"time"

	"foodcost/api/models"
)

// memStore is an in-memory stand-in for the ClickHouse and lead stores.
type memStore struct {
	mu        sync.Mutex
	pageViews []models.PageView
	events    []models.AnalyticsEvent
	leads     []models.Lead

	insertErr error
	readErr   error
}

func (m *memStore) InsertPageViews(_ context.Context, views []models.PageView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.pageViews = append(m.pageViews, views...)
	return nil
}

func (m *memStore) InsertEvents(_ context.Context, events []models.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, events...)
	return nil
}

func inWindow(t, since, until time.Time) bool {
	return !t.Before(since) && !t.After(until)
}

func (m *memStore) PageViewsBetween(_ context.Context, since, until time.Time, limit int) ([]models.PageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []models.PageView
	for _, pv := range m.pageViews {
		if inWindow(pv.CreatedAt, since, until) && len(out) < limit {
			out = append(out, pv)
		}
	}
	return out, nil
}

func (m *memStore) EventsBetween(_ context.Context, since, until time.Time, limit int) ([]models.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AnalyticsEvent
	for _, e := range m.events {
		if inWindow(e.CreatedAt, since, until) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) LeadsBetween(_ context.Context, since, until time.Time, limit int) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lead
	for _, l := range m.leads {
		if inWindow(l.CreatedAt, since, until) && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}
