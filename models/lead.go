package models

import (
	"encoding/json"
	"time"
)

type LeadSource string

const (
	LeadSourceForm       LeadSource = "form"
	LeadSourceCallback   LeadSource = "callback"
	LeadSourceCalculator LeadSource = "calculator"
)

func (s LeadSource) Valid() bool {
	switch s {
	case LeadSourceForm, LeadSourceCallback, LeadSourceCalculator:
		return true
	}
	return false
}

type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusInProgress LeadStatus = "in_progress"
	LeadStatusCompleted  LeadStatus = "completed"
	LeadStatusCancelled  LeadStatus = "cancelled"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusInProgress, LeadStatusCompleted, LeadStatusCancelled:
		return true
	}
	return false
}

// Lead is a contact request left on the site. Only Status and Notes change
// after creation.
type Lead struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Email     *string         `json:"email"`
	Message   *string         `json:"message"`
	Source    LeadSource      `json:"source"`
	Status    LeadStatus      `json:"status"`
	Notes     *string         `json:"notes"`
	UtmData   json.RawMessage `json:"utmData"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type CreateLeadRequest struct {
	Name    string          `json:"name" binding:"required"`
	Phone   string          `json:"phone" binding:"required"`
	Email   string          `json:"email"`
	Message string          `json:"message"`
	Source  LeadSource      `json:"source"`
	UtmData json.RawMessage `json:"utmData"`
}

// UpdateLeadRequest carries the operator-editable fields. A nil pointer
// means the field was absent from the body.
type UpdateLeadRequest struct {
	Status *LeadStatus `json:"status"`
	Notes  *string     `json:"notes"`
}

type LeadFilter struct {
	Status string
	Source string
	Search string
}
