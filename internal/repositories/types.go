package repositories

import (
	"time"

	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
)

// OrderTransition is everything one order transition writes. Order carries the
// new state and the version that was read; the write only applies if the stored
// version still matches. Payout, OpenedDispute and ResolvedDispute are written in
// the same transaction when set.
type OrderTransition struct {
	Order           *models.Order
	Payout          *models.Payout
	OpenedDispute   *models.Dispute
	ResolvedDispute *models.Dispute
}

type OrderFilter struct {
	BuyerID       *uuid.UUID
	SellerID      *uuid.UUID
	PartyID       *uuid.UUID // buyer or seller
	Status        *string
	UpdatedBefore *time.Time
	Limit         int
	Offset        int
}

type PayoutFilter struct {
	SellerID *uuid.UUID
	Status   *string
	Limit    int
	Offset   int
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
