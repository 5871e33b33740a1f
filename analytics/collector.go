package analytics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"foodcost/api/metrics"
	"foodcost/api/models"
	"foodcost/api/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Field limits, in runes.
const (
	MaxPageLen      = 500
	MaxReferrerLen  = 1000
	MaxUserAgentLen = 500
	MaxSessionLen   = 100
	MaxEventNameLen = 200
)

// ErrInvalidPayload marks a beacon the collector refuses to store.
var ErrInvalidPayload = errors.New("invalid tracking payload")

// FactWriter persists raw facts.
type FactWriter interface {
	InsertPageViews(ctx context.Context, views []models.PageView) error
	InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error
}

// Collector validates beacon payloads and appends one fact per call.
type Collector struct {
	store FactWriter
	now   func() time.Time
}

func NewCollector(store FactWriter) *Collector {
	return &Collector{store: store, now: time.Now}
}

// Collect stores req as a page view or event. Validation failures wrap
// ErrInvalidPayload and write nothing.
func (c *Collector) Collect(ctx context.Context, req models.TrackRequest, userAgent string) error {
	req.Normalize()

	switch req.Type {
	case models.FactPageView:
		return c.collectPageView(ctx, req, userAgent)
	case models.FactEvent:
		return c.collectEvent(ctx, req)
	case "":
		return c.reject(fmt.Errorf("%w: type is required", ErrInvalidPayload))
	default:
		return c.reject(fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, req.Type))
	}
}

func (c *Collector) collectPageView(ctx context.Context, req models.TrackRequest, userAgent string) error {
	if req.Page == "" {
		return c.reject(fmt.Errorf("%w: page is required", ErrInvalidPayload))
	}

	pv := models.PageView{
		ID:        uuid.New().String(),
		Page:      utils.Truncate(req.Page, MaxPageLen),
		Referrer:  utils.NullIfEmpty(utils.Truncate(req.Referrer, MaxReferrerLen)),
		UserAgent: utils.NullIfEmpty(utils.Truncate(userAgent, MaxUserAgentLen)),
		SessionID: utils.NullIfEmpty(utils.Truncate(req.SessionID, MaxSessionLen)),
		CreatedAt: c.now().UTC(),
	}

	if err := c.store.InsertPageViews(ctx, []models.PageView{pv}); err != nil {
		return fmt.Errorf("failed to store page view: %w", err)
	}

	metrics.TrackedFactsTotal.WithLabelValues(models.FactPageView).Inc()
	return nil
}

func (c *Collector) collectEvent(ctx context.Context, req models.TrackRequest) error {
	if req.EventName == "" {
		return c.reject(fmt.Errorf("%w: eventName is required", ErrInvalidPayload))
	}

	ev := models.AnalyticsEvent{
		ID:        uuid.New().String(),
		EventName: utils.Truncate(req.EventName, MaxEventNameLen),
		EventData: nullJSON(req.EventData),
		Page:      utils.NullIfEmpty(utils.Truncate(req.Page, MaxPageLen)),
		SessionID: utils.NullIfEmpty(utils.Truncate(req.SessionID, MaxSessionLen)),
		CreatedAt: c.now().UTC(),
	}

	if err := c.store.InsertEvents(ctx, []models.AnalyticsEvent{ev}); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}

	metrics.TrackedFactsTotal.WithLabelValues(models.FactEvent).Inc()
	return nil
}

func (c *Collector) reject(err error) error {
	metrics.TrackRejectedTotal.Inc()
	log.Debug().Err(err).Msg("Rejected tracking payload")
	return err
}

func nullJSON(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
