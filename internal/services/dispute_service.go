package services

import (
	"context"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DisputeService struct {
	orders   OrderStore
	disputes DisputeStore
	fee      models.FeeFunc
	tx       *transitioner
	rec      *recorder
	log      *zap.Logger
}

func NewDisputeService(
	orders OrderStore,
	disputes DisputeStore,
	audit AuditStore,
	fee models.FeeFunc,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		orders:   orders,
		disputes: disputes,
		fee:      fee,
		tx:       &transitioner{orders: orders, retries: cfg.TransitionMaxRetries, metrics: m, now: time.Now},
		rec:      &recorder{audit: audit, publisher: publisher, metrics: m, log: log},
		log:      log,
	}
}

// OpenDispute freezes the order. The dispute row and the order status are
// written in one commit; a concurrent second dispute loses with a conflict.
func (s *DisputeService) OpenDispute(ctx context.Context, actor Actor, orderID uuid.UUID, reason, description string) (*models.Dispute, *models.Order, error) {
	var d *models.Dispute
	m, err := s.tx.apply(ctx, orderID, "open_dispute", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if !o.IsParty(actor.ID) {
			return nil, apperr.Forbidden("not_a_party", "only the buyer or the seller can open a dispute")
		}
		if o.Status == models.OrderStatusResolvedRefund || o.Status == models.OrderStatusResolvedRelease {
			return nil, apperr.Precondition("dispute_already_resolved", "the dispute on this order was resolved and cannot be reopened")
		}
		var err error
		d, err = models.NewDispute(o.ID, actor.ID, reason, description, now)
		if err != nil {
			return nil, err
		}
		if err := o.EnterDispute(now); err != nil {
			return nil, err
		}
		return &repositories.OrderTransition{OpenedDispute: d}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	o := m.Order
	s.rec.record(ctx, actor, "dispute_opened", models.EntityDispute, d.ID, map[string]any{
		"order_id": o.ID.String(),
		"reason":   d.Reason,
	})
	ev := orderEvent(events.EventDisputeOpened, o, m.From)
	ev.Payload["dispute_id"] = d.ID.String()
	ev.Payload["reason"] = d.Reason
	s.rec.publish(ctx, events.StreamOrders, ev)
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))

	s.log.Info("dispute opened", zap.String("dispute_id", d.ID.String()), zap.String("order_id", o.ID.String()))
	return d, o, nil
}

// ResolveDispute closes an open dispute. Release completes the order with a
// payout exactly like a dual-confirmed completion; refund creates none.
func (s *DisputeService) ResolveDispute(ctx context.Context, actor Actor, disputeID uuid.UUID, action, note string) (*models.Dispute, *models.Order, error) {
	if actor.Type != models.ActorArbitrator {
		return nil, nil, apperr.Forbidden("not_arbitrator", "only an arbitrator can resolve disputes")
	}
	current, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}

	var d *models.Dispute
	m, err := s.tx.apply(ctx, current.OrderID, "resolve_dispute", func(o *models.Order, now time.Time) (*repositories.OrderTransition, error) {
		if o.IsParty(actor.ID) {
			return nil, apperr.Forbidden("arbitrator_is_party", "an arbitrator cannot resolve a dispute on their own order")
		}
		fresh, err := s.disputes.GetByID(ctx, disputeID)
		if err != nil {
			return nil, err
		}
		d = fresh
		if err := d.Resolve(action, actor.ID, note, now); err != nil {
			return nil, err
		}
		if err := o.ResolveDispute(action, now); err != nil {
			return nil, err
		}
		tr := &repositories.OrderTransition{ResolvedDispute: d}
		if action == models.DisputeActionRelease {
			p, err := models.NewPayout(o, s.fee, now)
			if err != nil {
				return nil, err
			}
			tr.Payout = p
		}
		return tr, nil
	})
	if err != nil {
		return nil, nil, err
	}

	o := m.Order
	s.tx.metrics.Transition(models.EntityDispute, models.DisputeStatusOpen, d.Status)
	s.rec.record(ctx, actor, "dispute_resolved", models.EntityDispute, d.ID, map[string]any{
		"order_id":        o.ID.String(),
		"action":          action,
		"resolution_note": *d.ResolutionNote,
	})
	ev := orderEvent(events.EventDisputeResolved, o, m.From)
	ev.Payload["dispute_id"] = d.ID.String()
	ev.Payload["resolution"] = d.Status
	s.rec.publish(ctx, events.StreamOrders, ev)
	s.rec.publish(ctx, events.StreamOrders, orderEvent(events.EventOrderStatusChanged, o, m.From))
	if p := m.Transition.Payout; p != nil {
		s.rec.record(ctx, SystemActor(), "payout_created", models.EntityPayout, p.ID, map[string]any{
			"order_id":      o.ID.String(),
			"payout_amount": p.PayoutAmount.String(),
		})
		s.rec.publish(ctx, events.StreamPayouts, payoutEvent(events.EventPayoutCreated, p, ""))
	}
	return d, o, nil
}

// GetDispute is visible to the order's parties and to staff.
func (s *DisputeService) GetDispute(ctx context.Context, actor Actor, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOrder(ctx, actor, d.OrderID); err != nil {
		return nil, err
	}
	return d, nil
}

// GetOpenDispute returns the order's unresolved dispute, NotFound when there is none.
func (s *DisputeService) GetOpenDispute(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Dispute, error) {
	if err := s.authorizeOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.disputes.GetOpenByOrder(ctx, orderID)
}

func (s *DisputeService) ListDisputes(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.Dispute, error) {
	if err := s.authorizeOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.disputes.ListByOrder(ctx, orderID)
}

func (s *DisputeService) authorizeOrder(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if actor.Type == models.ActorUser && !o.IsParty(actor.ID) {
		return apperr.Forbidden("not_a_party", "dispute belongs to other users")
	}
	return nil
}
