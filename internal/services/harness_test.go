package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/payment"
	"github.com/c2c-marketplace/backend/internal/repositories/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validCLABE = "032180000118359719"

func notFoundErr(reason string) error {
	return apperr.NotFound(reason, reason)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeChat struct {
	conversations map[uuid.UUID]*Conversation
}

func (f *fakeChat) GetConversation(_ context.Context, id uuid.UUID) (*Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return nil, notFoundErr("conversation_not_found")
	}
	return c, nil
}

type fakeCatalog struct {
	listings map[uuid.UUID]*Listing
}

func (f *fakeCatalog) GetListing(_ context.Context, id uuid.UUID) (*Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, notFoundErr("listing_not_found")
	}
	return l, nil
}

type fakeProcessor struct {
	mu      sync.Mutex
	charges map[string]*payment.Charge
	calls   int
	block   bool
}

func (f *fakeProcessor) RetrieveCharge(ctx context.Context, id string) (*payment.Charge, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	c, ok := f.charges[id]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, notFoundErr("payment_not_found")
	}
	return c, nil
}

type env struct {
	store        *memstore.Store
	pub          *recordingPublisher
	chat         *fakeChat
	catalog      *fakeCatalog
	processor    *fakeProcessor
	cfg          *config.Config
	orders       *OrderService
	disputes     *DisputeService
	payouts      *PayoutService
	profiles     *BankProfileService
	negotiations *NegotiationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := &config.Config{
		DefaultCurrency:       "MXN",
		PlatformFeeBPS:        1000,
		TransitionMaxRetries:  5,
		PaymentConfirmTimeout: 50 * time.Millisecond,
	}
	e := &env{
		store:     memstore.New(),
		pub:       &recordingPublisher{},
		chat:      &fakeChat{conversations: map[uuid.UUID]*Conversation{}},
		catalog:   &fakeCatalog{listings: map[uuid.UUID]*Listing{}},
		processor: &fakeProcessor{charges: map[string]*payment.Charge{}},
		cfg:       cfg,
	}
	log := zap.NewNop()
	m := metrics.New()
	fee := models.BasisPointsFee(cfg.PlatformFeeBPS)

	e.orders = NewOrderService(e.store.Orders(), e.store.Negotiations(), e.store.Audit(), e.catalog, e.processor, fee, e.pub, m, cfg, log)
	e.disputes = NewDisputeService(e.store.Orders(), e.store.Disputes(), e.store.Audit(), fee, e.pub, m, cfg, log)
	e.payouts = NewPayoutService(e.store.Payouts(), e.store.BankProfiles(), e.store.Audit(), e.pub, m, cfg, log)
	e.profiles = NewBankProfileService(e.store.BankProfiles(), e.store.Audit(), log)
	e.negotiations = NewNegotiationService(e.store.Negotiations(), e.store.Audit(), e.chat, e.catalog, e.pub, m, cfg, log)
	return e
}

// listing registers an active listing of the given price and returns its product id.
func (e *env) listing(seller uuid.UUID, price int64) uuid.UUID {
	id := uuid.New()
	e.catalog.listings[id] = &Listing{ID: id, SellerID: seller, Price: decimal.NewFromInt(price), Currency: "MXN", Active: true}
	return id
}

// order creates an order for a 200 MXN listing and returns it with its parties.
func (e *env) order(t *testing.T, orderType, method string) (*models.Order, Actor, Actor) {
	t.Helper()
	buyer, seller := UserActor(uuid.New()), UserActor(uuid.New())
	product := e.listing(seller.ID, 200)
	o, err := e.orders.CreateOrder(context.Background(), buyer, CreateOrderInput{
		ProductID:     product,
		OrderType:     orderType,
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return o, buyer, seller
}

// paidOrder creates an online order and confirms its payment through the processor.
func (e *env) paidOrder(t *testing.T, orderType string) (*models.Order, Actor, Actor) {
	t.Helper()
	o, buyer, seller := e.order(t, orderType, models.PaymentMethodOnline)
	txID := "pi_" + o.ID.String()
	e.processor.charges[txID] = &payment.Charge{
		ID:        txID,
		Amount:    o.TotalAmount,
		Currency:  "mxn",
		Succeeded: true,
		OrderID:   o.ID.String(),
	}
	paid, err := e.orders.ConfirmPayment(context.Background(), buyer, o.ID, txID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaid, paid.Status)
	return paid, buyer, seller
}
