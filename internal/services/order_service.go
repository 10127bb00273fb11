package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/payment"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderService struct {
	orders       OrderStore
	negotiations NegotiationStore
	catalog      ListingCatalog
	processor    payment.Processor
	fee          models.FeeFunc
	tx           *transitioner
	rec          *recorder
	cfg          *config.Config
	log          *zap.Logger
}

func NewOrderService(
	orders OrderStore,
	negotiations NegotiationStore,
	audit AuditStore,
	catalog ListingCatalog,
	processor payment.Processor,
	fee models.FeeFunc,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:       orders,
		negotiations: negotiations,
		catalog:      catalog,
		processor:    processor,
		fee:          fee,
		tx:           &transitioner{orders: orders, retries: cfg.TransitionMaxRetries, metrics: m, now: time.Now},
		rec:          &recorder{audit: audit, publisher: publisher, metrics: m, log: log},
		cfg:          cfg,
		log:          log,
	}
}

type CreateOrderInput struct {
	SellerID      uuid.UUID
	ProductID     uuid.UUID
	NegotiationID *uuid.UUID
	TotalAmount   decimal.Decimal // optional; must match the agreed or listed price when set
	Currency      string
	OrderType     string
	PaymentMethod string
}

// CreateOrder opens an order in pending_payment. The price comes from the
// accepted negotiation when one is referenced, otherwise from the listing.
func (s *OrderService) CreateOrder(ctx context.Context, buyer Actor, in CreateOrderInput) (*models.Order, error) {
	o := &models.Order{
		BuyerID:       buyer.ID,
		SellerID:      in.SellerID,
		ProductID:     in.ProductID,
		NegotiationID: in.NegotiationID,
		Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		OrderType:     in.OrderType,
		PaymentMethod: in.PaymentMethod,
		Status:        models.OrderStatusPendingPayment,
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = models.PaymentMethodOnline
	}

	var price decimal.Decimal
	var currency string
	if in.NegotiationID != nil {
		n, err := s.negotiations.GetByID(ctx, *in.NegotiationID)
		if err != nil {
			return nil, err
		}
		if n.Status != models.NegotiationStatusAccepted || n.FinalPrice == nil {
			return nil, apperr.Precondition("negotiation_not_accepted", fmt.Sprintf("negotiation is %s", n.Status))
		}
		if n.BuyerID != buyer.ID {
			return nil, apperr.Forbidden("not_negotiation_buyer", "only the buyer of the negotiation can order at the agreed price")
		}
		if n.ProductID != in.ProductID {
			return nil, apperr.Validation("negotiation_product_mismatch", "negotiation is for a different product")
		}
		if in.SellerID != uuid.Nil && in.SellerID != n.SellerID {
			return nil, apperr.Validation("negotiation_seller_mismatch", "negotiation is with a different seller")
		}
		o.SellerID = n.SellerID
		price, currency = *n.FinalPrice, n.Currency
	} else {
		l, err := s.catalog.GetListing(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if !l.Active {
			return nil, apperr.Precondition("listing_inactive", "listing is no longer available")
		}
		if in.SellerID != uuid.Nil && in.SellerID != l.SellerID {
			return nil, apperr.Validation("listing_seller_mismatch", "listing belongs to a different seller")
		}
		o.SellerID = l.SellerID
		price, currency = l.Price, l.Currency
	}

	if !in.TotalAmount.IsZero() && !in.TotalAmount.Equal(price) {
		return nil, apperr.Validation("price_mismatch", fmt.Sprintf("total amount %s does not match agreed price %s", in.TotalAmount.StringFixed(2), price.StringFixed(2)))
	}
	o.TotalAmount = price
	if o.Currency == "" {
		o.Currency = currency
	}
	if o.Currency == "" {
		o.Currency = s.cfg.DefaultCurrency
	}
	if currency != "" && o.Currency != currency {
		return nil, apperr.Validation("currency_mismatch", fmt.Sprintf("currency must be %s", currency))
	}
	if err := payment.CheckPrecision(o.TotalAmount, o.Currency); err != nil {
		return nil, err
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	s.tx.metrics.Transition(models.EntityOrder, "", o.Status)
	s.rec.record(ctx, buyer, "order_created", models.EntityOrder, o.ID, map[string]any{
		"total_amount":   o.TotalAmount.String(),
		"currency":       o.Currency,
		"order_type":     o.OrderType,
		"payment_method": o.PaymentMethod,
	})
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderCreated, o, ""))

	s.log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("buyer_id", o.BuyerID.String()),
		zap.String("seller_id", o.SellerID.String()),
	)
	return o, nil
}

// ConfirmPayment moves an online order to paid after the processor reports the
// transaction as succeeded. Repeating it with the same transaction id is a no-op.
func (s *OrderService) ConfirmPayment(ctx context.Context, actor Actor, orderID uuid.UUID, txID string) (*models.Order, error) {
	txID = strings.TrimSpace(txID)
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != models.PaymentMethodOnline {
		return nil, apperr.Precondition("not_online_order", "cash payments are confirmed by an operator")
	}
	if actor.Type == models.ActorUser && o.BuyerID != actor.ID {
		return nil, apperr.Forbidden("not_buyer", "only the buyer can confirm a payment")
	}

	alreadyPaid, err := o.Clone().MarkPaid(txID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if alreadyPaid {
		return o, nil
	}

	if err := s.verifyCharge(ctx, o, txID); err != nil {
		return nil, err
	}
	return s.applyPayment(ctx, actor, orderID, txID, "processor")
}

// ApplyProcessorPayment handles a signature-verified processor notification.
func (s *OrderService) ApplyProcessorPayment(ctx context.Context, charge *payment.Charge) (*models.Order, error) {
	orderID, err := uuid.Parse(charge.OrderID)
	if err != nil {
		return nil, apperr.Validation("missing_order_reference", "payment carries no order reference")
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paid, err := s.applyCharge(ctx, o, charge)
	if err != nil && charge.Succeeded {
		switch apperr.CodeOf(err) {
		case apperr.CodeInternal, apperr.CodeUnavailable, apperr.CodeConflict:
			// redelivered by the processor
		default:
			s.recordUnappliedCharge(ctx, o, charge, err)
		}
	}
	return paid, err
}

func (s *OrderService) applyCharge(ctx context.Context, o *models.Order, charge *payment.Charge) (*models.Order, error) {
	if o.PaymentMethod != models.PaymentMethodOnline {
		return nil, apperr.Precondition("not_online_order", "cash payments are confirmed by an operator")
	}
	if err := payment.VerifyCharge(charge, o.ID.String(), o.TotalAmount, o.Currency); err != nil {
		return nil, err
	}
	return s.applyPayment(ctx, ProcessorActor(), o.ID, charge.ID, "webhook")
}

// recordUnappliedCharge leaves a trace of captured funds the order could not
// take, e.g. a charge landing after the order was cancelled, for an operator
// to refund.
func (s *OrderService) recordUnappliedCharge(ctx context.Context, o *models.Order, charge *payment.Charge, cause error) {
	reason := apperr.ReasonOf(cause)
	s.log.Warn("captured payment not applied",
		zap.String("order_id", o.ID.String()),
		zap.String("payment_tx_id", charge.ID),
		zap.String("order_status", o.Status),
		zap.String("reason", reason),
	)
	s.rec.record(ctx, ProcessorActor(), "payment_unapplied", models.EntityOrder, o.ID, map[string]any{
		"payment_tx_id": charge.ID,
		"amount":        charge.Amount.String(),
		"currency":      strings.ToUpper(charge.Currency),
		"order_status":  o.Status,
		"reason":        reason,
	})
	ev := orderEvent(events.EventPaymentUnapplied, o, "")
	ev.Payload["payment_tx_id"] = charge.ID
	ev.Payload["amount"] = charge.Amount.String()
	ev.Payload["currency"] = strings.ToUpper(charge.Currency)
	ev.Payload["reason"] = reason
	s.rec.publish(ctx, events.StreamOrders, ev)
}

// ConfirmCashPayment records a cash payment collected against an operator receipt.
func (s *OrderService) ConfirmCashPayment(ctx context.Context, operator Actor, orderID uuid.UUID, receipt string) (*models.Order, error) {
	if operator.Type != models.ActorOperator {
		return nil, apperr.Forbidden("not_operator", "only an operator can confirm cash payments")
	}
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return nil, apperr.Validation("receipt_required", "receipt reference is required")
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != models.PaymentMethodCash {
		return nil, apperr.Precondition("not_cash_order", "online payments are confirmed by the payment processor")
	}
	return s.applyPayment(ctx, operator, orderID, "cash:"+receipt, "cash_receipt")
}

func (s *OrderService) verifyCharge(ctx context.Context, o *models.Order, txID string) error {
	if s.processor == nil {
		return apperr.New(apperr.CodeUnavailable, "payment_processor_unconfigured", "payment processor is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentConfirmTimeout)
	defer cancel()

	start := time.Now()
	charge, err := s.processor.RetrieveCharge(ctx, txID)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.tx.metrics.ProcessorCheck(outcome, elapsed)
		return err
	}
	if err := payment.VerifyCharge(charge, o.ID.String(), o.TotalAmount, o.Currency); err != nil {
		s.tx.metrics.ProcessorCheck("rejected", elapsed)
		return err
	}
	s.tx.metrics.ProcessorCheck("succeeded", elapsed)
	return nil
}

func (s *OrderService) applyPayment(ctx context.Context, actor Actor, orderID uuid.UUID, txID, source string) (*models.Order, error) {
	m, err := s.tx.apply(ctx, orderID, "confirm_payment", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		alreadyPaid, err := o.MarkPaid(txID, now)
		if err != nil {
			return nil, err
		}
		if alreadyPaid {
			return nil, nil
		}
		return &repositories.OrderTransition{}, nil
	})
	if err != nil {
		return nil, err
	}
	if m.Transition == nil {
		return m.Order, nil
	}

	o := m.Order
	s.rec.record(ctx, actor, "payment_received", models.EntityOrder, o.ID, map[string]any{
		"payment_tx_id": txID,
		"source":        source,
	})
	ev := orderEvent(events.EventPaymentReceived, o, m.From)
	ev.Payload["payment_tx_id"] = txID
	s.rec.publish(ctx, events.StreamOrders, ev)
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	return o, nil
}

func (s *OrderService) ArrangeMeetup(ctx context.Context, actor Actor, orderID uuid.UUID, location string, at time.Time) (*models.Order, error) {
	m, err := s.tx.apply(ctx, orderID, "arrange_meetup", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if !o.IsParty(actor.ID) {
			return nil, apperr.Forbidden("not_a_party", "only the buyer or the seller can arrange the meetup")
		}
		if err := o.ArrangeMeetup(location, at, now); err != nil {
			return nil, err
		}
		return &repositories.OrderTransition{}, nil
	})
	if err != nil {
		return nil, err
	}

	o := m.Order
	s.rec.record(ctx, actor, "meetup_arranged", models.EntityOrder, o.ID, map[string]any{
		"meetup_location": *o.MeetupLocation,
		"meetup_time":     o.MeetupTime.Format(time.RFC3339),
	})
	ev := orderEvent(events.EventMeetupUpdated, o, m.From)
	ev.Payload["meetup_location"] = *o.MeetupLocation
	ev.Payload["meetup_time"] = o.MeetupTime.Format(time.RFC3339)
	s.rec.publish(ctx, events.StreamOrders, ev)
	if m.From != o.Status {
		s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	}
	return o, nil
}

func (s *OrderService) ShipOrder(ctx context.Context, actor Actor, orderID uuid.UUID, carrier, trackingNumber string) (*models.Order, error) {
	m, err := s.tx.apply(ctx, orderID, "ship_order", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if o.SellerID != actor.ID {
			return nil, apperr.Forbidden("not_seller", "only the seller can ship the order")
		}
		if err := o.Ship(carrier, trackingNumber, now); err != nil {
			return nil, err
		}
		return &repositories.OrderTransition{}, nil
	})
	if err != nil {
		return nil, err
	}

	o := m.Order
	s.rec.record(ctx, actor, "order_shipped", models.EntityOrder, o.ID, map[string]any{
		"shipping_carrier": *o.ShippingCarrier,
		"tracking_number":  *o.TrackingNumber,
	})
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	return o, nil
}

// MarkDelivered is informational; confirmation is possible from shipped as well.
func (s *OrderService) MarkDelivered(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	m, err := s.tx.apply(ctx, orderID, "mark_delivered", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if actor.Type != models.ActorSystem && !o.IsParty(actor.ID) {
			return nil, apperr.Forbidden("not_a_party", "only the buyer or the seller can mark the order delivered")
		}
		if err := o.MarkDelivered(now); err != nil {
			return nil, err
		}
		return &repositories.OrderTransition{}, nil
	})
	if err != nil {
		return nil, err
	}

	o := m.Order
	s.rec.record(ctx, actor, "order_delivered", models.EntityOrder, o.ID, nil)
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	return o, nil
}

// ConfirmCompletion sets the acting party's confirmation. The second
// confirmation completes the order and creates its payout in the same commit.
func (s *OrderService) ConfirmCompletion(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	var party string
	m, err := s.tx.apply(ctx, orderID, "confirm_completion", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		party = o.PartyOf(actor.ID)
		completed, err := o.Confirm(party, now)
		if err != nil {
			return nil, err
		}
		tr := &repositories.OrderTransition{}
		if completed {
			p, err := models.NewPayout(o, s.fee, now)
			if err != nil {
				return nil, err
			}
			tr.Payout = p
		}
		return tr, nil
	})
	if err != nil {
		return nil, err
	}

	o := m.Order
	s.rec.record(ctx, actor, "confirmation_recorded", models.EntityOrder, o.ID, map[string]any{
		"party":              party,
		"confirmation_state": o.ConfirmationState(),
	})
	ev := orderEvent(events.EventOrderConfirmed, o, m.From)
	ev.Payload["party"] = party
	s.rec.publish(ctx, events.StreamOrders, ev)

	if p := m.Transition.Payout; p != nil {
		s.log.Info("order completed",
			zap.String("order_id", o.ID.String()),
			zap.String("payout_id", p.ID.String()),
			zap.String("payout_amount", p.PayoutAmount.String()),
		)
		s.rec.record(ctx, SystemActor(), "payout_created", models.EntityPayout, p.ID, map[string]any{
			"order_id":      o.ID.String(),
			"payout_amount": p.PayoutAmount.String(),
		})
		s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
		s.rec.publish(ctx, events.StreamPayouts, payoutEvent(events.EventPayoutCreated, p, ""))
	}
	return o, nil
}

// CancelOrder is allowed to the buyer and to the system before payment.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	m, err := s.tx.apply(ctx, orderID, "cancel_order", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if actor.Type != models.ActorSystem && o.BuyerID != actor.ID {
			return nil, apperr.Forbidden("not_buyer", "only the buyer can cancel the order")
		}
		if err := o.Cancel(reason, now); err != nil {
			return nil, err
		}
		return &repositories.OrderTransition{}, nil
	})
	if err != nil {
		return nil, err
	}

	o := m.Order
	s.rec.record(ctx, actor, "order_cancelled", models.EntityOrder, o.ID, map[string]any{"reason": reason})
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	return o, nil
}

// RefundOrder is the operator exit from a fund-held state. No payout is created.
func (s *OrderService) RefundOrder(ctx context.Context, operator Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	if operator.Type != models.ActorOperator {
		return nil, apperr.Forbidden("not_operator", "only an operator can refund an order")
	}
	reason = strings.TrimSpace(reason)
	m, err := s.tx.apply(ctx, orderID, "refund_order", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if err := o.Refund(reason, now); err != nil {
			return nil, err
		}
		return &repositories.OrderTransition{}, nil
	})
	if err != nil {
		return nil, err
	}

	o := m.Order
	s.rec.record(ctx, operator, "order_refunded", models.EntityOrder, o.ID, map[string]any{"reason": reason})
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	return o, nil
}

// GetOrder returns the order to its parties and to staff actors.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Type == models.ActorUser && !o.IsParty(actor.ID) {
		return nil, apperr.Forbidden("not_a_party", "order belongs to other users")
	}
	return o, nil
}

// ListOrders restricts users to their own orders.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, f repositories.OrderFilter) ([]models.Order, error) {
	if f.Status != nil && !models.IsValidOrderStatus(*f.Status) {
		return nil, apperr.Validation("invalid_status", fmt.Sprintf("unknown order status %q", *f.Status))
	}
	if actor.Type == models.ActorUser {
		id := actor.ID
		f.PartyID = &id
	}
	return s.orders.List(ctx, f)
}

// GetOrderEvents returns the order's audit trail, newest first.
func (s *OrderService) GetOrderEvents(ctx context.Context, actor Actor, orderID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.rec.audit.GetByEntity(ctx, models.EntityOrder, orderID, limit, offset)
}

// CancelStalePending cancels unpaid orders untouched for longer than maxAge.
// Orders paid in the meantime are skipped.
func (s *OrderService) CancelStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	status := models.OrderStatusPendingPayment
	before := time.Now().UTC().Add(-maxAge)
	stale, err := s.orders.List(ctx, repositories.OrderFilter{Status: &status, UpdatedBefore: &before, Limit: 100})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range stale {
		if _, err := s.CancelOrder(ctx, SystemActor(), o.ID, "payment_timeout"); err != nil {
			if apperr.IsPrecondition(err) || apperr.IsConflict(err) {
				continue
			}
			s.log.Error("failed to cancel stale order", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func orderEvent(eventType string, o *models.Order, oldStatus string) events.Event {
	payload := map[string]any{
		"order_id":           o.ID.String(),
		"buyer_id":           o.BuyerID.String(),
		"seller_id":          o.SellerID.String(),
		"new_status":         o.Status,
		"display_status":     o.DisplayStatus(),
		"confirmation_state": o.ConfirmationState(),
	}
	if oldStatus != "" {
		payload["old_status"] = oldStatus
	}
	if o.PayoutStatus != nil {
		payload["payout_status"] = *o.PayoutStatus
	}
	return events.Event{Type: eventType, Payload: payload}
}

func payoutEvent(eventType string, p *models.Payout, oldStatus string) events.Event {
	payload := map[string]any{
		"payout_id":     p.ID.String(),
		"order_id":      p.OrderID.String(),
		"seller_id":     p.SellerID.String(),
		"new_status":    p.Status,
		"payout_amount": p.PayoutAmount.String(),
		"currency":      p.Currency,
	}
	if oldStatus != "" {
		payload["old_status"] = oldStatus
	}
	return events.Event{Type: eventType, Payload: payload}
}
