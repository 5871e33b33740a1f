package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodcost/api/metrics"
	"foodcost/api/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidWindow is returned for a non-positive day count.
var ErrInvalidWindow = errors.New("days must be a positive integer")

type PageViewReader interface {
	PageViewsBetween(ctx context.Context, since, until time.Time, limit int) ([]models.PageView, error)
}

type EventReader interface {
	EventsBetween(ctx context.Context, since, until time.Time, limit int) ([]models.AnalyticsEvent, error)
}

type LeadReader interface {
	LeadsBetween(ctx context.Context, since, until time.Time, limit int) ([]models.Lead, error)
}

type ServiceConfig struct {
	// RowLimit caps each of the three reads.
	RowLimit int
	MaxDays  int
	Location *time.Location
}

// Service builds reports from the fact and lead stores. It holds no state
// between calls.
type Service struct {
	pageViews PageViewReader
	events    EventReader
	leads     LeadReader
	cfg       ServiceConfig
	now       func() time.Time
}

func NewService(pv PageViewReader, ev EventReader, leads LeadReader, cfg ServiceConfig) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		pageViews: pv,
		events:    ev,
		leads:     leads,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Report aggregates the trailing window of the given number of days. Any
// failed read aborts the whole report.
func (s *Service) Report(ctx context.Context, days int) (*models.Report, error) {
	if days < 1 {
		return nil, ErrInvalidWindow
	}
	if s.cfg.MaxDays > 0 && days > s.cfg.MaxDays {
		days = s.cfg.MaxDays
	}

	start := time.Now()
	until := s.now().UTC()
	since := until.Add(-time.Duration(days) * 24 * time.Hour)

	var facts Facts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.pageViews.PageViewsBetween(gctx, since, until, s.cfg.RowLimit)
		if err != nil {
			return fmt.Errorf("page views: %w", err)
		}
		facts.PageViews = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.events.EventsBetween(gctx, since, until, s.cfg.RowLimit)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		facts.Events = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.leads.LeadsBetween(gctx, since, until, s.cfg.RowLimit)
		if err != nil {
			return fmt.Errorf("leads: %w", err)
		}
		facts.Leads = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read analytics window: %w", err)
	}

	for kind, n := range map[string]int{
		models.FactPageView: len(facts.PageViews),
		models.FactEvent:    len(facts.Events),
		"lead":              len(facts.Leads),
	} {
		metrics.ReportRows.WithLabelValues(kind).Observe(float64(n))
		if n >= s.cfg.RowLimit && s.cfg.RowLimit > 0 {
			log.Warn().Str("kind", kind).Int("limit", s.cfg.RowLimit).Int("days", days).Msg("Report window hit row limit, results are truncated")
		}
	}

	report := Aggregate(facts, s.cfg.Location)

	elapsed := time.Since(start)
	metrics.ReportDuration.Observe(elapsed.Seconds())
	log.Debug().
		Int("days", days).
		Int("page_views", report.TotalViews).
		Int("events", report.TotalEvents).
		Int("leads", report.TotalLeads).
		Dur("elapsed", elapsed).
		Msg("Analytics report built")

	return &report, nil
}
