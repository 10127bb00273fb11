package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPendingPayment  = "pending_payment"
	OrderStatusPaid            = "paid"
	OrderStatusMeetupArranged  = "meetup_arranged"
	OrderStatusShipped         = "shipped"
	OrderStatusDelivered       = "delivered"
	OrderStatusCompleted       = "completed"
	OrderStatusDisputed        = "disputed"
	OrderStatusResolvedRefund  = "resolved_refund"
	OrderStatusResolvedRelease = "resolved_release"
	OrderStatusCancelled       = "cancelled"
	OrderStatusRefunded        = "refunded"

	// Display only, never persisted.
	OrderStatusCompletedPendingPayout = "completed_pending_payout"
)

const (
	OrderTypeMeetup   = "meetup"
	OrderTypeShipping = "shipping"

	PaymentMethodOnline = "online"
	PaymentMethodCash   = "cash"
)

const (
	PartyBuyer  = "buyer"
	PartySeller = "seller"
)

// Confirmation states derived from the two confirmation timestamps.
const (
	ConfirmationUnconfirmed        = "unconfirmed"
	ConfirmationPartiallyConfirmed = "partially_confirmed"
	ConfirmationConfirmed          = "confirmed"
)

// Valid state transitions: from -> []to
var ValidOrderTransitions = map[string][]string{
	OrderStatusPendingPayment:  {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:            {OrderStatusMeetupArranged, OrderStatusShipped, OrderStatusCompleted, OrderStatusDisputed, OrderStatusRefunded},
	OrderStatusMeetupArranged:  {OrderStatusCompleted, OrderStatusDisputed, OrderStatusRefunded},
	OrderStatusShipped:         {OrderStatusDelivered, OrderStatusCompleted, OrderStatusDisputed, OrderStatusRefunded},
	OrderStatusDelivered:       {OrderStatusCompleted, OrderStatusDisputed, OrderStatusRefunded},
	OrderStatusDisputed:        {OrderStatusResolvedRefund, OrderStatusResolvedRelease},
	OrderStatusCompleted:       {},
	OrderStatusResolvedRefund:  {},
	OrderStatusResolvedRelease: {},
	OrderStatusCancelled:       {},
	OrderStatusRefunded:        {},
}

func IsValidOrderTransition(from, to string) bool {
	allowed, ok := ValidOrderTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidOrderStatus(s string) bool {
	_, ok := ValidOrderTransitions[s]
	return ok
}

func IsTerminalOrderStatus(s string) bool {
	allowed, ok := ValidOrderTransitions[s]
	return ok && len(allowed) == 0
}

// IsFundReleasable reports whether a Payout may exist for an order in status s.
func IsFundReleasable(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusResolvedRelease
}

// IsDisputable reports whether funds are held and the order is still open.
func IsDisputable(s string) bool {
	switch s {
	case OrderStatusPaid, OrderStatusMeetupArranged, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

type Order struct {
	ID                uuid.UUID       `json:"id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	SellerID          uuid.UUID       `json:"seller_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	NegotiationID     *uuid.UUID      `json:"negotiation_id,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	OrderType         string          `json:"order_type"`     // meetup / shipping
	PaymentMethod     string          `json:"payment_method"` // online / cash
	MeetupLocation    *string         `json:"meetup_location,omitempty"`
	MeetupTime        *time.Time      `json:"meetup_time,omitempty"`
	ShippingCarrier   *string         `json:"shipping_carrier,omitempty"`
	TrackingNumber    *string         `json:"tracking_number,omitempty"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	PaymentTxID       *string         `json:"payment_tx_id,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	BuyerConfirmedAt  *time.Time      `json:"buyer_confirmed_at,omitempty"`
	SellerConfirmedAt *time.Time      `json:"seller_confirmed_at,omitempty"`
	Status            string          `json:"status"`
	PayoutStatus      *string         `json:"payout_status,omitempty"`
	CancelReason      *string         `json:"cancel_reason,omitempty"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// OrderView embeds Order and adds the derived read-model fields.
type OrderView struct {
	Order
	DisplayStatus     string   `json:"display_status"`
	ConfirmationState string   `json:"confirmation_state"`
	ConfirmedBy       []string `json:"confirmed_by"`
}

func (o *Order) View() OrderView {
	return OrderView{
		Order:             *o,
		DisplayStatus:     o.DisplayStatus(),
		ConfirmationState: o.ConfirmationState(),
		ConfirmedBy:       o.ConfirmedBy(),
	}
}

// Clone returns a deep copy so that callers can mutate without touching shared state.
func (o *Order) Clone() *Order {
	c := *o
	c.NegotiationID = clonePtr(o.NegotiationID)
	c.MeetupLocation = clonePtr(o.MeetupLocation)
	c.MeetupTime = clonePtr(o.MeetupTime)
	c.ShippingCarrier = clonePtr(o.ShippingCarrier)
	c.TrackingNumber = clonePtr(o.TrackingNumber)
	c.ShippedAt = clonePtr(o.ShippedAt)
	c.DeliveredAt = clonePtr(o.DeliveredAt)
	c.PaymentTxID = clonePtr(o.PaymentTxID)
	c.PaidAt = clonePtr(o.PaidAt)
	c.BuyerConfirmedAt = clonePtr(o.BuyerConfirmedAt)
	c.SellerConfirmedAt = clonePtr(o.SellerConfirmedAt)
	c.PayoutStatus = clonePtr(o.PayoutStatus)
	c.CancelReason = clonePtr(o.CancelReason)
	c.CompletedAt = clonePtr(o.CompletedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Validate checks the creation invariants of a new order.
func (o *Order) Validate() error {
	if o.BuyerID == uuid.Nil || o.SellerID == uuid.Nil || o.ProductID == uuid.Nil {
		return apperr.Validation("missing_party", "buyer_id, seller_id and product_id are required")
	}
	if o.BuyerID == o.SellerID {
		return apperr.Validation("buyer_is_seller", "buyer and seller must be different users")
	}
	if !o.TotalAmount.IsPositive() {
		return apperr.Validation("invalid_amount", "total_amount must be greater than zero")
	}
	if err := ValidateCurrency(o.Currency); err != nil {
		return err
	}
	if o.OrderType != OrderTypeMeetup && o.OrderType != OrderTypeShipping {
		return apperr.Validation("invalid_order_type", fmt.Sprintf("invalid order_type %q, must be meetup or shipping", o.OrderType))
	}
	if o.PaymentMethod != PaymentMethodOnline && o.PaymentMethod != PaymentMethodCash {
		return apperr.Validation("invalid_payment_method", fmt.Sprintf("invalid payment_method %q, must be online or cash", o.PaymentMethod))
	}
	if o.PaymentMethod == PaymentMethodCash && o.OrderType != OrderTypeMeetup {
		return apperr.Validation("cash_requires_meetup", "cash payment is only available for meetup orders")
	}
	return nil
}

// ValidateCurrency accepts ISO-4217 style upper-case three letter codes.
func ValidateCurrency(c string) error {
	if len(c) != 3 || strings.ToUpper(c) != c {
		return apperr.Validation("invalid_currency", fmt.Sprintf("invalid currency %q", c))
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return apperr.Validation("invalid_currency", fmt.Sprintf("invalid currency %q", c))
		}
	}
	return nil
}

// PartyOf returns PartyBuyer or PartySeller for userID, or "" if the user is not a party.
func (o *Order) PartyOf(userID uuid.UUID) string {
	switch userID {
	case o.BuyerID:
		return PartyBuyer
	case o.SellerID:
		return PartySeller
	}
	return ""
}

func (o *Order) IsParty(userID uuid.UUID) bool {
	return o.PartyOf(userID) != ""
}

// IsConfirmable reports whether confirmation flags may currently be written.
func (o *Order) IsConfirmable() bool {
	switch o.Status {
	case OrderStatusMeetupArranged, OrderStatusShipped, OrderStatusDelivered:
		return true
	case OrderStatusPaid:
		return o.OrderType == OrderTypeMeetup
	}
	return false
}

func (o *Order) ConfirmationState() string {
	switch {
	case o.BuyerConfirmedAt != nil && o.SellerConfirmedAt != nil:
		return ConfirmationConfirmed
	case o.BuyerConfirmedAt != nil || o.SellerConfirmedAt != nil:
		return ConfirmationPartiallyConfirmed
	}
	return ConfirmationUnconfirmed
}

func (o *Order) ConfirmedBy() []string {
	by := []string{}
	if o.BuyerConfirmedAt != nil {
		by = append(by, PartyBuyer)
	}
	if o.SellerConfirmedAt != nil {
		by = append(by, PartySeller)
	}
	return by
}

// DisplayStatus surfaces completed_pending_payout until the payout settles.
func (o *Order) DisplayStatus() string {
	if IsFundReleasable(o.Status) && (o.PayoutStatus == nil || *o.PayoutStatus != PayoutStatusCompleted) {
		return OrderStatusCompletedPendingPayout
	}
	return o.Status
}

func (o *Order) transitionTo(status string, now time.Time) error {
	if !IsValidOrderTransition(o.Status, status) {
		return apperr.Precondition("invalid_transition", fmt.Sprintf("order cannot move from %s to %s", o.Status, status))
	}
	o.Status = status
	o.UpdatedAt = now
	if IsFundReleasable(status) {
		ps := PayoutStatusPending
		o.PayoutStatus = &ps
	}
	return nil
}

// MarkPaid records a successful payment. Returns alreadyPaid=true when the same
// transaction id was applied before, so repeated processor events are no-ops.
func (o *Order) MarkPaid(txID string, now time.Time) (alreadyPaid bool, err error) {
	if strings.TrimSpace(txID) == "" {
		return false, apperr.Validation("missing_transaction_id", "transaction id is required")
	}
	if o.PaymentTxID != nil {
		if *o.PaymentTxID == txID {
			return true, nil
		}
		return false, apperr.Precondition("already_paid", "order was already paid with a different transaction")
	}
	if o.Status != OrderStatusPendingPayment {
		return false, apperr.Precondition("order_not_pending_payment", fmt.Sprintf("order in status %s cannot be paid", o.Status))
	}
	if err := o.transitionTo(OrderStatusPaid, now); err != nil {
		return false, err
	}
	o.PaymentTxID = &txID
	o.PaidAt = &now
	return false, nil
}

// ArrangeMeetup overwrites both meetup fields. The first arrangement moves paid to meetup_arranged.
func (o *Order) ArrangeMeetup(location string, at time.Time, now time.Time) error {
	location = strings.TrimSpace(location)
	if location == "" || at.IsZero() {
		return apperr.Validation("invalid_meetup", "meetup location and time are required")
	}
	if o.OrderType != OrderTypeMeetup {
		return apperr.Precondition("not_meetup_order", "meetup can only be arranged for meetup orders")
	}
	switch o.Status {
	case OrderStatusPaid:
		if err := o.transitionTo(OrderStatusMeetupArranged, now); err != nil {
			return err
		}
	case OrderStatusMeetupArranged:
	case OrderStatusDisputed:
		return apperr.Precondition("order_disputed", "order is under dispute")
	default:
		return apperr.Precondition("order_not_arrangeable", fmt.Sprintf("meetup cannot be arranged in status %s", o.Status))
	}
	at = at.UTC()
	o.MeetupLocation = &location
	o.MeetupTime = &at
	o.UpdatedAt = now
	return nil
}

// Ship sets carrier and tracking number once and moves paid to shipped.
func (o *Order) Ship(carrier, trackingNumber string, now time.Time) error {
	carrier = strings.TrimSpace(carrier)
	trackingNumber = strings.TrimSpace(trackingNumber)
	if carrier == "" || trackingNumber == "" {
		return apperr.Validation("invalid_shipping", "carrier and tracking number are required")
	}
	if o.OrderType != OrderTypeShipping {
		return apperr.Precondition("not_shipping_order", "only shipping orders can be shipped")
	}
	if o.ShippingCarrier != nil || o.TrackingNumber != nil {
		return apperr.Precondition("shipping_already_set", "carrier and tracking number are already set")
	}
	if o.Status != OrderStatusPaid {
		return apperr.Precondition("order_not_paid", fmt.Sprintf("order in status %s cannot be shipped", o.Status))
	}
	if err := o.transitionTo(OrderStatusShipped, now); err != nil {
		return err
	}
	o.ShippingCarrier = &carrier
	o.TrackingNumber = &trackingNumber
	o.ShippedAt = &now
	return nil
}

func (o *Order) MarkDelivered(now time.Time) error {
	if o.Status != OrderStatusShipped {
		return apperr.Precondition("order_not_shipped", fmt.Sprintf("order in status %s cannot be marked delivered", o.Status))
	}
	if err := o.transitionTo(OrderStatusDelivered, now); err != nil {
		return err
	}
	o.DeliveredAt = &now
	return nil
}

// Confirm sets the confirmation flag of party. When it is the second flag the
// order moves to completed and completed is returned true.
func (o *Order) Confirm(party string, now time.Time) (completed bool, err error) {
	var flag **time.Time
	switch party {
	case PartyBuyer:
		flag = &o.BuyerConfirmedAt
	case PartySeller:
		flag = &o.SellerConfirmedAt
	default:
		return false, apperr.Forbidden("not_a_party", "only the buyer or the seller can confirm")
	}

	if o.Status == OrderStatusDisputed {
		return false, apperr.Precondition("order_disputed", "order is under dispute, confirmations are frozen")
	}
	if *flag != nil {
		return false, apperr.Precondition("already_confirmed", fmt.Sprintf("%s already confirmed", party))
	}
	if !o.IsConfirmable() {
		return false, apperr.Precondition("order_not_confirmable", fmt.Sprintf("order in status %s cannot be confirmed", o.Status))
	}

	t := now
	*flag = &t
	o.UpdatedAt = now

	if o.BuyerConfirmedAt == nil || o.SellerConfirmedAt == nil {
		return false, nil
	}
	if err := o.transitionTo(OrderStatusCompleted, now); err != nil {
		return false, err
	}
	o.CompletedAt = &t
	return true, nil
}

func (o *Order) Cancel(reason string, now time.Time) error {
	if o.Status != OrderStatusPendingPayment {
		return apperr.Precondition("order_not_cancellable", fmt.Sprintf("order in status %s cannot be cancelled", o.Status))
	}
	if err := o.transitionTo(OrderStatusCancelled, now); err != nil {
		return err
	}
	if reason != "" {
		o.CancelReason = &reason
	}
	return nil
}

// Refund is the operator path out of a fund-held state without a dispute.
func (o *Order) Refund(reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return apperr.Validation("refund_reason_required", "refund reason is required")
	}
	if o.Status == OrderStatusDisputed {
		return apperr.Precondition("order_disputed", "disputed orders are refunded through dispute resolution")
	}
	if !IsDisputable(o.Status) {
		return apperr.Precondition("order_not_refundable", fmt.Sprintf("order in status %s cannot be refunded", o.Status))
	}
	if err := o.transitionTo(OrderStatusRefunded, now); err != nil {
		return err
	}
	o.CancelReason = &reason
	return nil
}

// EnterDispute freezes the order. Confirmation flags already set are kept.
func (o *Order) EnterDispute(now time.Time) error {
	if !IsDisputable(o.Status) {
		if o.Status == OrderStatusDisputed {
			return apperr.Conflict("dispute_already_open", "a dispute is already open for this order")
		}
		return apperr.Precondition("order_not_disputable", fmt.Sprintf("order in status %s cannot be disputed", o.Status))
	}
	return o.transitionTo(OrderStatusDisputed, now)
}

func (o *Order) ResolveDispute(action string, now time.Time) error {
	if o.Status != OrderStatusDisputed {
		return apperr.Precondition("order_not_disputed", fmt.Sprintf("order in status %s is not disputed", o.Status))
	}
	switch action {
	case DisputeActionRefund:
		return o.transitionTo(OrderStatusResolvedRefund, now)
	case DisputeActionRelease:
		if err := o.transitionTo(OrderStatusResolvedRelease, now); err != nil {
			return err
		}
		o.CompletedAt = &now
		return nil
	}
	return apperr.Validation("invalid_resolution", fmt.Sprintf("invalid resolution action %q", action))
}
