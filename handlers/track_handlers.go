// api/handlers/track_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"foodcost/api/analytics"
	"foodcost/api/models"
)

type FactCollector interface {
	Collect(ctx context.Context, req models.TrackRequest, userAgent string) error
}

type Reporter interface {
	Report(ctx context.Context, days int) (*models.Report, error)
}

type AnalyticsHandlers struct {
	Collector   FactCollector
	Reporter    Reporter
	DefaultDays int
}

func NewAnalyticsHandlers(collector FactCollector, reporter Reporter, defaultDays int) *AnalyticsHandlers {
	if defaultDays < 1 {
		defaultDays = 30
	}
	return &AnalyticsHandlers{
		Collector:   collector,
		Reporter:    reporter,
		DefaultDays: defaultDays,
	}
}

// TrackEvent stores one beacon fact. The browser ignores failures.
func (h *AnalyticsHandlers) TrackEvent(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Collector.Collect(ctx, req, c.GetHeader("User-Agent")); err != nil {
		if errors.Is(err, analytics.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("type", req.Type).Msg("Error recording analytics fact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetReport returns the dashboard report for ?days=N.
func (h *AnalyticsHandlers) GetReport(c *gin.Context) {
	days := h.DefaultDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": analytics.ErrInvalidWindow.Error()})
			return
		}
		days = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	report, err := h.Reporter.Report(ctx, days)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Int("days", days).Msg("Error building analytics report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}

	c.JSON(http.StatusOK, report)
}
