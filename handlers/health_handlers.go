package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is one named dependency checked by /health.
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

type HealthHandlers struct {
	Checks []HealthCheck
}

func NewHealthHandlers(checks ...HealthCheck) *HealthHandlers {
	return &HealthHandlers{Checks: checks}
}

func (h *HealthHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	for _, check := range h.Checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("component", check.Name).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": check.Name})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
