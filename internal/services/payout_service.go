package services

import (
	"context"
	"fmt"
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

type PayoutService struct {
	payouts  PayoutStore
	profiles BankProfileStore
	retries  int
	rec      *recorder
	now      func() time.Time
	log      *zap.Logger
}

func NewPayoutService(
	payouts PayoutStore,
	profiles BankProfileStore,
	audit AuditStore,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *PayoutService {
	return &PayoutService{
		payouts:  payouts,
		profiles: profiles,
		retries:  cfg.TransitionMaxRetries,
		rec:      &recorder{audit: audit, publisher: publisher, metrics: m, log: log},
		now:      time.Now,
		log:      log,
	}
}

type AdvancePayoutInput struct {
	Action    string
	Reference *string
	Reason    *string
}

// AdvancePayout applies an operator action to the payout. Moving money out
// (processing, completed) requires a well-formed seller bank profile.
func (s *PayoutService) AdvancePayout(ctx context.Context, actor Actor, payoutID uuid.UUID, in AdvancePayoutInput) (*models.Payout, error) {
	if actor.Type != models.ActorOperator && actor.Type != models.ActorSystem {
		return nil, apperr.Forbidden("not_operator", "only an operator can advance payouts")
	}
	to, err := models.PayoutActionTarget(in.Action)
	if err != nil {
		return nil, err
	}

	attempts := s.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		p, err := s.payouts.GetByID(ctx, payoutID)
		if err != nil {
			return nil, err
		}
		from := p.Status

		if err := p.Advance(in.Action, in.Reference, in.Reason, s.now().UTC()); err != nil {
			return nil, err
		}
		if models.RequiresBankProfile(to) {
			if err := s.requireBankProfile(ctx, p.SellerID); err != nil {
				return nil, err
			}
		}

		err = s.payouts.Update(ctx, p, from)
		if err == nil {
			s.afterAdvance(ctx, actor, p, from)
			return p, nil
		}
		if !isVersionConflict(err) {
			return nil, err
		}
		s.rec.metrics.Conflict("advance_payout")
		lastErr = err
	}
	return nil, lastErr
}

func (s *PayoutService) requireBankProfile(ctx context.Context, sellerID uuid.UUID) error {
	profile, err := s.profiles.GetBySeller(ctx, sellerID)
	if apperr.IsNotFound(err) {
		return apperr.Precondition("bank_profile_missing", "seller has no bank profile")
	}
	if err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return apperr.Wrap(err, apperr.CodePreconditionFailed, "bank_profile_incomplete",
			fmt.Sprintf("seller bank profile is not usable: %s", apperr.As(err).Message))
	}
	return nil
}

func (s *PayoutService) afterAdvance(ctx context.Context, actor Actor, p *models.Payout, from string) {
	s.rec.metrics.Transition(models.EntityPayout, from, p.Status)
	if p.Status == models.PayoutStatusCompleted {
		s.rec.metrics.PayoutAmount(p.Status, p.Currency, p.PayoutAmount.InexactFloat64())
	}

	meta := map[string]any{
		"order_id":   p.OrderID.String(),
		"old_status": from,
		"new_status": p.Status,
		"attempts":   p.Attempts,
	}
	if p.PayoutReference != nil {
		meta["payout_reference"] = *p.PayoutReference
	}
	if p.FailureReason != nil {
		meta["failure_reason"] = *p.FailureReason
	}
	s.rec.record(ctx, actor, "payout_"+p.Status, models.EntityPayout, p.ID, meta)
	s.rec.publish(ctx, events.StreamPayouts, payoutEvent(events.EventPayoutStatusChanged, p, from))

	s.log.Info("payout advanced",
		zap.String("payout_id", p.ID.String()),
		zap.String("from", from),
		zap.String("to", p.Status),
	)
}

// GetPayout is visible to the seller and to staff.
func (s *PayoutService) GetPayout(ctx context.Context, actor Actor, payoutID uuid.UUID) (*models.Payout, error) {
	p, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if actor.Type == models.ActorUser && p.SellerID != actor.ID {
		return nil, apperr.Forbidden("not_seller", "payout belongs to another seller")
	}
	return p, nil
}

func (s *PayoutService) GetPayoutByOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Payout, error) {
	p, err := s.payouts.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Type == models.ActorUser && p.SellerID != actor.ID {
		return nil, apperr.Forbidden("not_seller", "payout belongs to another seller")
	}
	return p, nil
}

// ListPayouts restricts sellers to their own payouts.
func (s *PayoutService) ListPayouts(ctx context.Context, actor Actor, f repositories.PayoutFilter) ([]models.Payout, error) {
	if err := s.scope(actor, &f); err != nil {
		return nil, err
	}
	return s.payouts.List(ctx, f)
}

// Summary aggregates the ledger per status and currency. It is a derived view.
func (s *PayoutService) Summary(ctx context.Context, actor Actor, f repositories.PayoutFilter) ([]models.PayoutSummary, error) {
	if err := s.scope(actor, &f); err != nil {
		return nil, err
	}
	return s.payouts.Summary(ctx, f)
}

func (s *PayoutService) scope(actor Actor, f *repositories.PayoutFilter) error {
	if f.Status != nil && !models.IsValidPayoutStatus(*f.Status) {
		return apperr.Validation("invalid_status", fmt.Sprintf("unknown payout status %q", *f.Status))
	}
	if actor.Type == models.ActorUser {
		id := actor.ID
		f.SellerID = &id
	}
	return nil
}
