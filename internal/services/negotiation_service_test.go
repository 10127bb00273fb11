package services

import (
	"context"
	"testing"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type negotiationFixture struct {
	conv, product uuid.UUID
	buyer, seller Actor
}

func (e *env) conversation(active bool) negotiationFixture {
	f := negotiationFixture{conv: uuid.New(), buyer: UserActor(uuid.New()), seller: UserActor(uuid.New())}
	f.product = e.listing(f.seller.ID, 100)
	e.chat.conversations[f.conv] = &Conversation{ID: f.conv, BuyerID: f.buyer.ID, SellerID: f.seller.ID, ProductID: f.product, Active: active}
	return f
}

func TestNegotiationCounterThenAccept(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.conversation(true)

	n, err := e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusPending, n.Status)
	assert.True(t, n.OriginalPrice.Equal(decimal.NewFromInt(100)))

	counter := decimal.NewFromInt(80)
	n, err = e.negotiations.Respond(ctx, f.seller, n.ID, models.NegotiationActionCounter, &counter)
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusCountered, n.Status)

	_, err = e.negotiations.Respond(ctx, f.seller, n.ID, models.NegotiationActionAccept, nil)
	assert.Equal(t, "not_counterparty", apperr.ReasonOf(err))

	n, err = e.negotiations.Respond(ctx, f.buyer, n.ID, models.NegotiationActionAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusAccepted, n.Status)
	assert.True(t, n.FinalPrice.Equal(counter))

	offers, err := e.negotiations.ListOffers(ctx, f.seller, n.ID)
	require.NoError(t, err)
	require.Len(t, offers, 3)
	assert.Equal(t, models.NegotiationActionPropose, offers[0].Action)
	assert.Equal(t, models.NegotiationActionCounter, offers[1].Action)
	assert.Equal(t, models.NegotiationActionAccept, offers[2].Action)

	_, err = e.negotiations.Respond(ctx, f.buyer, n.ID, models.NegotiationActionReject, nil)
	assert.Equal(t, "negotiation_closed", apperr.ReasonOf(err))

	assert.Contains(t, e.pub.types(), events.EventNegotiationResponded)
}

func TestNegotiationReject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.conversation(true)

	n, err := e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.NewFromInt(100))
	require.NoError(t, err)

	n, err = e.negotiations.Respond(ctx, f.seller, n.ID, models.NegotiationActionReject, nil)
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusRejected, n.Status)
	assert.Nil(t, n.FinalPrice)
}

func TestProposeGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.conversation(true)

	_, err := e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.Zero)
	assert.Equal(t, "invalid_price", apperr.ReasonOf(err))

	_, err = e.negotiations.Propose(ctx, f.buyer, uuid.New(), f.product, decimal.NewFromInt(90))
	assert.True(t, apperr.IsNotFound(err))

	_, err = e.negotiations.Propose(ctx, UserActor(uuid.New()), f.conv, f.product, decimal.NewFromInt(90))
	assert.Equal(t, "not_a_participant", apperr.ReasonOf(err))

	_, err = e.negotiations.Propose(ctx, f.buyer, f.conv, uuid.New(), decimal.NewFromInt(90))
	assert.Equal(t, "conversation_product_mismatch", apperr.ReasonOf(err))

	inactive := e.conversation(false)
	_, err = e.negotiations.Propose(ctx, inactive.buyer, inactive.conv, inactive.product, decimal.NewFromInt(90))
	assert.Equal(t, "conversation_inactive", apperr.ReasonOf(err))

	_, err = e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.NewFromInt(90))
	require.NoError(t, err)
	_, err = e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.NewFromInt(85))
	assert.True(t, apperr.IsConflict(err))
}

func TestNegotiationPricesKeepCurrencyPrecision(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.conversation(true)

	_, err := e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.RequireFromString("100.005"))
	assert.Equal(t, "invalid_amount_precision", apperr.ReasonOf(err))

	n, err := e.negotiations.Propose(ctx, f.buyer, f.conv, f.product, decimal.RequireFromString("95.50"))
	require.NoError(t, err)

	counter := decimal.RequireFromString("90.125")
	_, err = e.negotiations.Respond(ctx, f.seller, n.ID, models.NegotiationActionCounter, &counter)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, "invalid_amount_precision", apperr.ReasonOf(err))

	stored, err := e.negotiations.GetNegotiation(ctx, f.buyer, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusPending, stored.Status)
	assert.Nil(t, stored.CounterPrice)
}

func TestSellerMayPropose(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	f := e.conversation(true)

	n, err := e.negotiations.Propose(ctx, f.seller, f.conv, f.product, decimal.NewFromInt(95))
	require.NoError(t, err)
	assert.Equal(t, f.buyer.ID, n.ResponderID())

	n, err = e.negotiations.Respond(ctx, f.buyer, n.ID, models.NegotiationActionAccept, nil)
	require.NoError(t, err)
	assert.True(t, n.FinalPrice.Equal(decimal.NewFromInt(95)))

	list, err := e.negotiations.ListByConversation(ctx, f.buyer, f.conv)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = e.negotiations.ListByConversation(ctx, UserActor(uuid.New()), f.conv)
	assert.True(t, apperr.IsForbidden(err))
}
