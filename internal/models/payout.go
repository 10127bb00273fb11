package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payout statuses
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
)

// Payout actions
const (
	PayoutActionMarkProcessing = "mark_processing"
	PayoutActionMarkCompleted  = "mark_completed"
	PayoutActionMarkFailed     = "mark_failed"
	PayoutActionRetry          = "retry"
)

var ValidPayoutTransitions = map[string][]string{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusCompleted},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
	PayoutStatusFailed:     {PayoutStatusPending},
	PayoutStatusCompleted:  {},
}

func IsValidPayoutTransition(from, to string) bool {
	for _, s := range ValidPayoutTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidPayoutStatus(s string) bool {
	_, ok := ValidPayoutTransitions[s]
	return ok
}

// PayoutActionTarget maps an operator action to the status it moves to.
func PayoutActionTarget(action string) (string, error) {
	switch action {
	case PayoutActionMarkProcessing:
		return PayoutStatusProcessing, nil
	case PayoutActionMarkCompleted:
		return PayoutStatusCompleted, nil
	case PayoutActionMarkFailed:
		return PayoutStatusFailed, nil
	case PayoutActionRetry:
		return PayoutStatusPending, nil
	}
	return "", apperr.Validation("invalid_payout_action", fmt.Sprintf("invalid payout action %q", action))
}

// RequiresBankProfile reports whether moving to status needs a valid seller bank profile.
func RequiresBankProfile(to string) bool {
	return to == PayoutStatusProcessing || to == PayoutStatusCompleted
}

// FeeFunc computes the platform fee for an order total.
type FeeFunc func(total decimal.Decimal, currency string) decimal.Decimal

// BasisPointsFee charges bps/10000 of the total, rounded to cents.
func BasisPointsFee(bps int) FeeFunc {
	rate := decimal.NewFromInt(int64(bps)).Div(decimal.NewFromInt(10000))
	return func(total decimal.Decimal, _ string) decimal.Decimal {
		return total.Mul(rate).Round(2)
	}
}

type Payout struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	PlatformFee     decimal.Decimal `json:"platform_fee"`
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PayoutReference *string         `json:"payout_reference,omitempty"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	PayoutAt        *time.Time      `json:"payout_at,omitempty"`
	Attempts        int             `json:"attempts"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPayout builds the pending payout for an order that just became fund-releasable.
func NewPayout(o *Order, fee FeeFunc, now time.Time) (*Payout, error) {
	if !IsFundReleasable(o.Status) {
		return nil, apperr.Precondition("order_not_releasable", fmt.Sprintf("order in status %s is not fund-releasable", o.Status))
	}
	gross := o.TotalAmount
	f := decimal.Zero
	if fee != nil {
		f = fee(gross, o.Currency)
	}
	if f.IsNegative() {
		f = decimal.Zero
	}
	if f.GreaterThan(gross) {
		f = gross
	}
	return &Payout{
		ID:           uuid.New(),
		OrderID:      o.ID,
		SellerID:     o.SellerID,
		GrossAmount:  gross,
		PlatformFee:  f,
		PayoutAmount: gross.Sub(f),
		Currency:     o.Currency,
		Status:       PayoutStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *Payout) Clone() *Payout {
	c := *p
	c.PayoutReference = clonePtr(p.PayoutReference)
	c.FailureReason = clonePtr(p.FailureReason)
	c.PayoutAt = clonePtr(p.PayoutAt)
	return &c
}

// Advance applies an operator action. Bank profile checks happen in the caller.
func (p *Payout) Advance(action string, reference, reason *string, now time.Time) error {
	to, err := PayoutActionTarget(action)
	if err != nil {
		return err
	}
	if !IsValidPayoutTransition(p.Status, to) {
		return apperr.Precondition("invalid_payout_transition", fmt.Sprintf("payout cannot move from %s to %s", p.Status, to))
	}

	switch to {
	case PayoutStatusProcessing:
		p.Attempts++
	case PayoutStatusCompleted:
		if p.Status == PayoutStatusPending {
			p.Attempts++
		}
		p.PayoutAt = &now
		if reference != nil {
			ref := strings.TrimSpace(*reference)
			if ref != "" {
				p.PayoutReference = &ref
			}
		}
		p.FailureReason = nil
	case PayoutStatusFailed:
		if reason == nil || strings.TrimSpace(*reason) == "" {
			return apperr.Validation("failure_reason_required", "failure reason is required")
		}
		r := strings.TrimSpace(*reason)
		p.FailureReason = &r
	}

	p.Status = to
	p.UpdatedAt = now
	return nil
}

// PayoutSummary is a derived aggregate over the ledger, grouped by status and currency.
type PayoutSummary struct {
	Status            string          `json:"status"`
	Currency          string          `json:"currency"`
	Count             int             `json:"count"`
	TotalGross        decimal.Decimal `json:"total_gross"`
	TotalFees         decimal.Decimal `json:"total_fees"`
	TotalPayoutAmount decimal.Decimal `json:"total_payout_amount"`
}
