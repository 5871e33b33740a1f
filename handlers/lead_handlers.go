package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"foodcost/api/models"
	"foodcost/api/store"
)

type LeadRepository interface {
	CreateLead(ctx context.Context, req models.CreateLeadRequest) (*models.Lead, error)
	ListLeads(ctx context.Context, f models.LeadFilter) ([]models.Lead, error)
	UpdateLead(ctx context.Context, id string, req models.UpdateLeadRequest) (*models.Lead, error)
	DeleteLead(ctx context.Context, id string) error
}

// LeadNotifier is told about every lead created through the public form.
type LeadNotifier interface {
	LeadCreated(lead models.Lead)
}

type LeadHandlers struct {
	Leads    LeadRepository
	Notifier LeadNotifier
}

func NewLeadHandlers(leads LeadRepository, notifier LeadNotifier) *LeadHandlers {
	return &LeadHandlers{Leads: leads, Notifier: notifier}
}

// CreateLead is the public contact form endpoint.
func (h *LeadHandlers) CreateLead(c *gin.Context) {
	var req models.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and phone are required"})
		return
	}
	if req.Source != "" && !req.Source.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead source"})
		return
	}
	if !isJSONObjectOrNull(req.UtmData) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "utmData must be an object"})
		return
	}

	lead, err := h.Leads.CreateLead(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("Error creating lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create lead"})
		return
	}

	if h.Notifier != nil {
		h.Notifier.LeadCreated(*lead)
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *LeadHandlers) ListLeads(c *gin.Context) {
	leads, err := h.Leads.ListLeads(c.Request.Context(), models.LeadFilter{
		Status: c.Query("status"),
		Source: c.Query("source"),
		Search: c.Query("search"),
	})
	if err != nil {
		log.Error().Err(err).Msg("Error listing leads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	c.JSON(http.StatusOK, leads)
}

// UpdateLead changes status and/or notes. Other fields in the body are ignored.
func (h *LeadHandlers) UpdateLead(c *gin.Context) {
	var req models.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Status == nil && req.Notes == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead status"})
		return
	}

	id := c.Param("id")
	if !validLeadID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}
	lead, err := h.Leads.UpdateLead(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		log.Error().Err(err).Str("lead_id", id).Msg("Error updating lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update lead"})
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandlers) DeleteLead(c *gin.Context) {
	id := c.Param("id")
	if !validLeadID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}
	if err := h.Leads.DeleteLead(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		log.Error().Err(err).Str("lead_id", id).Msg("Error deleting lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete lead"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func isJSONObjectOrNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	return trimmed[0] == '{'
}

// Lead ids are UUIDs; anything else cannot match a row.
func validLeadID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
