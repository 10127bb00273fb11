package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
)

// Dispute statuses
const (
	DisputeStatusOpen            = "open"
	DisputeStatusResolvedRefund  = "resolved_refund"
	DisputeStatusResolvedRelease = "resolved_release"
)

// Dispute reasons
const (
	DisputeReasonNotReceived    = "not_received"
	DisputeReasonNotAsDescribed = "not_as_described"
	DisputeReasonDamaged        = "damaged"
	DisputeReasonOther          = "other"
)

// Resolution actions
const (
	DisputeActionRefund  = "refund"
	DisputeActionRelease = "release"
)

func IsValidDisputeReason(r string) bool {
	switch r {
	case DisputeReasonNotReceived, DisputeReasonNotAsDescribed, DisputeReasonDamaged, DisputeReasonOther:
		return true
	}
	return false
}

type Dispute struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"order_id"`
	RaisedBy       uuid.UUID  `json:"raised_by"`
	Reason         string     `json:"reason"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewDispute(orderID, raisedBy uuid.UUID, reason, description string, now time.Time) (*Dispute, error) {
	if !IsValidDisputeReason(reason) {
		return nil, apperr.Validation("invalid_reason", fmt.Sprintf("invalid dispute reason %q", reason))
	}
	description = strings.TrimSpace(description)
	if reason == DisputeReasonOther && description == "" {
		return nil, apperr.Validation("description_required", "description is required when reason is other")
	}
	return &Dispute{
		ID:          uuid.New(),
		OrderID:     orderID,
		RaisedBy:    raisedBy,
		Reason:      reason,
		Description: description,
		Status:      DisputeStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (d *Dispute) Clone() *Dispute {
	c := *d
	c.ResolutionNote = clonePtr(d.ResolutionNote)
	c.ResolvedBy = clonePtr(d.ResolvedBy)
	c.ResolvedAt = clonePtr(d.ResolvedAt)
	return &c
}

// Resolve closes the dispute. Resolution is final.
func (d *Dispute) Resolve(action string, arbitratorID uuid.UUID, note string, now time.Time) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return apperr.Validation("resolution_note_required", "resolution note is required")
	}
	var status string
	switch action {
	case DisputeActionRefund:
		status = DisputeStatusResolvedRefund
	case DisputeActionRelease:
		status = DisputeStatusResolvedRelease
	default:
		return apperr.Validation("invalid_resolution", fmt.Sprintf("invalid resolution action %q, must be refund or release", action))
	}
	if d.Status != DisputeStatusOpen {
		return apperr.Precondition("dispute_not_open", fmt.Sprintf("dispute is already %s", d.Status))
	}
	d.Status = status
	d.ResolutionNote = &note
	d.ResolvedBy = &arbitratorID
	d.ResolvedAt = &now
	d.UpdatedAt = now
	return nil
}
