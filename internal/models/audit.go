package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types
const (
	ActorUser       = "user"
	ActorOperator   = "operator"
	ActorArbitrator = "arbitrator"
	ActorSystem     = "system"
	ActorProcessor  = "processor"
)

// Audited entity types
const (
	EntityOrder       = "order"
	EntityNegotiation = "negotiation"
	EntityDispute     = "dispute"
	EntityPayout      = "payout"
	EntityBankProfile = "bank_profile"
)

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	ActorType   string     `json:"actor_type"` // user/operator/arbitrator/system/processor
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
