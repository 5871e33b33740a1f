// api/store/analytics_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"foodcost/api/database"
	"foodcost/api/models"
)

// AnalyticsStore keeps page views and events in ClickHouse.
type AnalyticsStore struct {
	DB *database.ClickHouseClient
}

func NewAnalyticsStore(chClient *database.ClickHouseClient) *AnalyticsStore {
	return &AnalyticsStore{
		DB: chClient,
	}
}

func (s *AnalyticsStore) InsertPageViews(ctx context.Context, views []models.PageView) error {
	if len(views) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO page_views (id, page, referrer, user_agent, session_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page view batch: %w", err)
	}

	for _, pv := range views {
		if err := batch.Append(
			pv.ID,
			pv.Page,
			pv.Referrer,
			pv.UserAgent,
			pv.SessionID,
			pv.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append page view %s: %w", pv.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send page view batch: %w", err)
	}

	log.Debug().Int("count", len(views)).Msg("Inserted page views")
	return nil
}

func (s *AnalyticsStore) InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (id, event_name, event_data, page, session_id, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}

	for _, ev := range events {
		var data *string
		if len(ev.EventData) > 0 {
			raw := string(ev.EventData)
			data = &raw
		}
		if err := batch.Append(
			ev.ID,
			ev.EventName,
			data,
			ev.Page,
			ev.SessionID,
			ev.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append event %s: %w", ev.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}

	log.Debug().Int("count", len(events)).Msg("Inserted analytics events")
	return nil
}

// PageViewsBetween returns page views in [since, until], newest first.
func (s *AnalyticsStore) PageViewsBetween(ctx context.Context, since, until time.Time, limit int) ([]models.PageView, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT toString(id), page, referrer, user_agent, session_id, created_at
		FROM page_views
		WHERE created_at >= @since AND created_at <= @until
		ORDER BY created_at DESC
		LIMIT @limit
	`, windowArgs(since, until, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query page views: %w", err)
	}
	defer rows.Close()

	results := make([]models.PageView, 0)
	for rows.Next() {
		var pv models.PageView
		if err := rows.Scan(&pv.ID, &pv.Page, &pv.Referrer, &pv.UserAgent, &pv.SessionID, &pv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page view: %w", err)
		}
		results = append(results, pv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page views: %w", err)
	}

	return results, nil
}

// EventsBetween returns events in [since, until], newest first.
func (s *AnalyticsStore) EventsBetween(ctx context.Context, since, until time.Time, limit int) ([]models.AnalyticsEvent, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT toString(id), event_name, event_data, page, session_id, created_at
		FROM analytics_events
		WHERE created_at >= @since AND created_at <= @until
		ORDER BY created_at DESC
		LIMIT @limit
	`, windowArgs(since, until, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics events: %w", err)
	}
	defer rows.Close()

	results := make([]models.AnalyticsEvent, 0)
	for rows.Next() {
		var (
			ev   models.AnalyticsEvent
			data *string
		)
		if err := rows.Scan(&ev.ID, &ev.EventName, &data, &ev.Page, &ev.SessionID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytics event: %w", err)
		}
		if data != nil {
			ev.EventData = []byte(*data)
		}
		results = append(results, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analytics events: %w", err)
	}

	return results, nil
}

// windowArgs binds the bounds as DateTime64(3). Positional time args are
// rendered with second precision, which would drop the current second.
func windowArgs(since, until time.Time, limit int) []any {
	return []any{
		clickhouse.DateNamed("since", since.UTC(), clickhouse.MilliSeconds),
		clickhouse.DateNamed("until", until.UTC(), clickhouse.MilliSeconds),
		clickhouse.Named("limit", limit),
	}
}
