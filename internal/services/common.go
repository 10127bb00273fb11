package services

import (
	"context"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actor is who performs an operation. ID is uuid.Nil for system actors.
type Actor struct {
	ID   uuid.UUID
	Type string // models.Actor*
}

func UserActor(id uuid.UUID) Actor       { return Actor{ID: id, Type: models.ActorUser} }
func OperatorActor(id uuid.UUID) Actor   { return Actor{ID: id, Type: models.ActorOperator} }
func ArbitratorActor(id uuid.UUID) Actor { return Actor{ID: id, Type: models.ActorArbitrator} }
func SystemActor() Actor                 { return Actor{Type: models.ActorSystem} }
func ProcessorActor() Actor              { return Actor{Type: models.ActorProcessor} }

func (a Actor) userID() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// recorder writes the audit trail and publishes events after a committed
// transition. Neither can undo the transition, so failures are only logged.
type recorder struct {
	audit     AuditStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func (r *recorder) record(ctx context.Context, actor Actor, action, entityType string, entityID uuid.UUID, meta map[string]any) {
	if err := r.audit.Log(ctx, models.AuditLog{
		ActorUserID: actor.userID(),
		ActorType:   actor.Type,
		Action:      action,
		EntityType:  entityType,
		EntityID:    &entityID,
		Meta:        meta,
	}); err != nil {
		r.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_id", entityID.String()),
			zap.Error(err),
		)
	}
}

func (r *recorder) publish(ctx context.Context, stream string, event events.Event) {
	if err := r.publisher.Publish(ctx, stream, event); err != nil {
		r.log.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
	}
}

func isVersionConflict(err error) bool {
	return apperr.IsConflict(err) && apperr.ReasonOf(err) == "version_conflict"
}

// orderMutation is the result of one committed (or no-op) order transition.
type orderMutation struct {
	Order      *models.Order
	From       string
	Transition *repositories.OrderTransition // nil when nothing was written
}

// transitioner applies read-validate-commit cycles to one order. A lost
// compare-and-swap re-reads and re-validates the order before trying again.
type transitioner struct {
	orders  OrderStore
	retries int
	metrics *metrics.Metrics
	now     func() time.Time
}

// apply loads the order and calls fn on it. fn mutates the order and returns
// the side effects to commit with it, or nil to report a no-op.
func (t *transitioner) apply(ctx context.Context, id uuid.UUID, op string,
	fn func(o *models.Order, now time.Time) (*repositories.OrderTransition, error),
) (*orderMutation, error) {
	attempts := t.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		o, err := t.orders.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		from := o.Status

		tr, err := fn(o, t.now().UTC())
		if err != nil {
			return nil, err
		}
		if tr == nil {
			return &orderMutation{Order: o, From: from}, nil
		}
		tr.Order = o

		err = t.orders.Commit(ctx, *tr)
		if err == nil {
			if from != o.Status {
				t.metrics.Transition(models.EntityOrder, from, o.Status)
			}
			if tr.Payout != nil {
				t.metrics.PayoutCreated(o.Status, tr.Payout.Currency)
			}
			return &orderMutation{Order: o, From: from, Transition: tr}, nil
		}
		if !isVersionConflict(err) {
			return nil, err
		}
		t.metrics.Conflict(op)
		lastErr = err
	}
	return nil, lastErr
}
