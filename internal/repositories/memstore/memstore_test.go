package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, s *Store, status string) *models.Order {
	t.Helper()
	o := &models.Order{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		TotalAmount:   decimal.NewFromInt(200),
		Currency:      "MXN",
		OrderType:     models.OrderTypeMeetup,
		PaymentMethod: models.PaymentMethodOnline,
		Status:        status,
	}
	require.NoError(t, s.Orders().Create(context.Background(), o))
	return o
}

func TestCommitRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, models.OrderStatusPaid)

	first, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	second, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)

	_, err = first.Confirm(models.PartyBuyer, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Orders().Commit(ctx, repositories.OrderTransition{Order: first}))
	assert.Equal(t, 1, first.Version)

	_, err = second.Confirm(models.PartySeller, time.Now())
	require.NoError(t, err)
	err = s.Orders().Commit(ctx, repositories.OrderTransition{Order: second})
	assert.True(t, apperr.IsConflict(err))

	stored, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.BuyerConfirmedAt)
	assert.Nil(t, stored.SellerConfirmedAt)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, models.OrderStatusPaid)

	existing, err := models.NewDispute(o.ID, o.BuyerID, models.DisputeReasonDamaged, "", time.Now())
	require.NoError(t, err)
	s.disputes[existing.ID] = existing

	loaded, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.EnterDispute(time.Now()))
	second, err := models.NewDispute(o.ID, o.SellerID, models.DisputeReasonOther, "buyer unresponsive", time.Now())
	require.NoError(t, err)

	err = s.Orders().Commit(ctx, repositories.OrderTransition{Order: loaded, OpenedDispute: second})
	assert.Equal(t, "dispute_already_open", apperr.ReasonOf(err))

	stored, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
	assert.Equal(t, 0, stored.Version)
}

func TestCommitRejectsSecondPayout(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, models.OrderStatusCompleted)

	p, err := models.NewPayout(o, nil, time.Now())
	require.NoError(t, err)
	s.payouts[p.ID] = p

	loaded, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	dup, err := models.NewPayout(loaded, nil, time.Now())
	require.NoError(t, err)

	err = s.Orders().Commit(ctx, repositories.OrderTransition{Order: loaded, Payout: dup})
	assert.Equal(t, "payout_already_exists", apperr.ReasonOf(err))
}

func TestPayoutUpdateMirrorsOrderStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, models.OrderStatusCompleted)
	p, err := models.NewPayout(o, nil, time.Now())
	require.NoError(t, err)
	s.payouts[p.ID] = p.Clone()

	require.NoError(t, p.Advance(models.PayoutActionMarkProcessing, nil, nil, time.Now()))
	require.NoError(t, s.Payouts().Update(ctx, p, models.PayoutStatusPending))

	stored, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusProcessing, *stored.PayoutStatus)

	err = s.Payouts().Update(ctx, p, models.PayoutStatusPending)
	assert.True(t, apperr.IsConflict(err))
}

func TestPayoutSummaryGroupsByStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	fee := models.BasisPointsFee(1000)
	for i := 0; i < 3; i++ {
		o := seedOrder(t, s, models.OrderStatusCompleted)
		p, err := models.NewPayout(o, fee, time.Now())
		require.NoError(t, err)
		if i == 2 {
			p.Status = models.PayoutStatusCompleted
		}
		s.payouts[p.ID] = p
	}

	summary, err := s.Payouts().Summary(ctx, repositories.PayoutFilter{})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, models.PayoutStatusCompleted, summary[0].Status)
	assert.Equal(t, 1, summary[0].Count)
	assert.Equal(t, models.PayoutStatusPending, summary[1].Status)
	assert.Equal(t, 2, summary[1].Count)
	assert.True(t, summary[1].TotalPayoutAmount.Equal(decimal.NewFromInt(360)))
	assert.True(t, summary[1].TotalFees.Equal(decimal.NewFromInt(40)))
}

func TestOneActiveNegotiationPerProduct(t *testing.T) {
	ctx := context.Background()
	s := New()
	conv, product, buyer, seller := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	n, offer, err := models.NewNegotiation(conv, product, buyer, seller, buyer, decimal.NewFromInt(100), decimal.NewFromInt(90), "MXN", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Negotiations().Create(ctx, n, offer))

	dup, dupOffer, err := models.NewNegotiation(conv, product, buyer, seller, buyer, decimal.NewFromInt(100), decimal.NewFromInt(85), "MXN", time.Now())
	require.NoError(t, err)
	assert.True(t, apperr.IsConflict(s.Negotiations().Create(ctx, dup, dupOffer)))

	resp, err := n.Respond(seller, models.NegotiationActionReject, nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Negotiations().Update(ctx, n, resp))

	require.NoError(t, s.Negotiations().Create(ctx, dup, dupOffer))

	offers, err := s.Negotiations().ListOffers(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestListOrdersByParty(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, models.OrderStatusPaid)
	seedOrder(t, s, models.OrderStatusPaid)

	orders, err := s.Orders().List(ctx, repositories.OrderFilter{PartyID: &o.SellerID})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)

	status := models.OrderStatusCancelled
	orders, err = s.Orders().List(ctx, repositories.OrderFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestNegativeOffsetReadsFromStart(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := seedOrder(t, s, models.OrderStatusCompleted)
	p, err := models.NewPayout(o, nil, time.Now())
	require.NoError(t, err)
	s.payouts[p.ID] = p
	require.NoError(t, s.Audit().Log(ctx, models.AuditLog{
		ActorType:  models.ActorSystem,
		Action:     "order_created",
		EntityType: models.EntityOrder,
		EntityID:   &o.ID,
	}))

	orders, err := s.Orders().List(ctx, repositories.OrderFilter{Offset: -1})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	payouts, err := s.Payouts().List(ctx, repositories.PayoutFilter{Offset: -3})
	require.NoError(t, err)
	assert.Len(t, payouts, 1)

	logs, err := s.Audit().GetByEntity(ctx, models.EntityOrder, o.ID, 10, -1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
