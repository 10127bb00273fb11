//go:build integration

package repositories

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/db"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

func setupPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("marketplace"),
		postgres.WithUsername("marketplace"),
		postgres.WithPassword("marketplace"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := zap.NewNop()
	pool, err := db.NewPostgresPool(ctx, dsn, 5, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, migrationsDir(), log))
	return pool
}

func createPaidOrder(ctx context.Context, t *testing.T, repo *OrderRepo) *models.Order {
	t.Helper()
	o := &models.Order{
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		TotalAmount:   decimal.NewFromInt(200),
		Currency:      "MXN",
		OrderType:     models.OrderTypeMeetup,
		PaymentMethod: models.PaymentMethodOnline,
		Status:        models.OrderStatusPendingPayment,
	}
	require.NoError(t, repo.Create(ctx, o))

	_, err := o.MarkPaid("pi_"+o.ID.String(), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, OrderTransition{Order: o}))
	return o
}

func TestPostgresStores(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(ctx, t)

	orders := NewOrderRepo(pool)
	disputes := NewDisputeRepo(pool)
	payouts := NewPayoutRepo(pool)
	negotiations := NewNegotiationRepo(pool)
	profiles := NewBankProfileRepo(pool)
	audit := NewAuditRepo(pool)

	t.Run("stale version conflicts", func(t *testing.T) {
		o := createPaidOrder(ctx, t, orders)

		a, err := orders.GetByID(ctx, o.ID)
		require.NoError(t, err)
		b, err := orders.GetByID(ctx, o.ID)
		require.NoError(t, err)

		_, err = a.Confirm(models.PartyBuyer, time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, orders.Commit(ctx, OrderTransition{Order: a}))

		_, err = b.Confirm(models.PartySeller, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, apperr.IsConflict(orders.Commit(ctx, OrderTransition{Order: b})))
	})

	t.Run("completion writes exactly one payout", func(t *testing.T) {
		o := createPaidOrder(ctx, t, orders)
		now := time.Now().UTC()
		_, err := o.Confirm(models.PartyBuyer, now)
		require.NoError(t, err)
		completed, err := o.Confirm(models.PartySeller, now)
		require.NoError(t, err)
		require.True(t, completed)

		p, err := models.NewPayout(o, models.BasisPointsFee(1000), now)
		require.NoError(t, err)
		require.NoError(t, orders.Commit(ctx, OrderTransition{Order: o, Payout: p}))

		stored, err := payouts.GetByOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, stored.GrossAmount.Equal(decimal.NewFromInt(200)))
		assert.True(t, stored.PayoutAmount.Equal(decimal.NewFromInt(180)))

		dup, err := models.NewPayout(o, nil, now)
		require.NoError(t, err)
		err = orders.Commit(ctx, OrderTransition{Order: o, Payout: dup})
		assert.True(t, apperr.IsConflict(err))

		reloaded, err := orders.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, reloaded.Status)
		assert.Equal(t, models.PayoutStatusPending, *reloaded.PayoutStatus)
	})

	t.Run("one open dispute per order", func(t *testing.T) {
		o := createPaidOrder(ctx, t, orders)
		now := time.Now().UTC()

		d, err := models.NewDispute(o.ID, o.BuyerID, models.DisputeReasonNotReceived, "", now)
		require.NoError(t, err)
		require.NoError(t, o.EnterDispute(now))
		require.NoError(t, orders.Commit(ctx, OrderTransition{Order: o, OpenedDispute: d}))

		open, err := disputes.GetOpenByOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, open.ID)

		require.NoError(t, d.Resolve(models.DisputeActionRelease, uuid.New(), "buyer received item", now))
		require.NoError(t, o.ResolveDispute(models.DisputeActionRelease, now))
		p, err := models.NewPayout(o, nil, now)
		require.NoError(t, err)
		require.NoError(t, orders.Commit(ctx, OrderTransition{Order: o, ResolvedDispute: d, Payout: p}))

		list, err := disputes.ListByOrder(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.DisputeStatusResolvedRelease, list[0].Status)
	})

	t.Run("payout update mirrors order", func(t *testing.T) {
		sellerProfile := &models.SellerBankProfile{SellerID: uuid.New(), CLABE: "032180000118359719", BankName: "BBVA", HolderName: "Ana"}
		require.NoError(t, profiles.Upsert(ctx, sellerProfile))
		got, err := profiles.GetBySeller(ctx, sellerProfile.SellerID)
		require.NoError(t, err)
		assert.Equal(t, "032180000118359719", got.CLABE)

		pending := models.PayoutStatusPending
		list, err := payouts.List(ctx, PayoutFilter{Status: &pending})
		require.NoError(t, err)
		require.NotEmpty(t, list)

		p := list[0]
		require.NoError(t, p.Advance(models.PayoutActionMarkProcessing, nil, nil, time.Now().UTC()))
		require.NoError(t, payouts.Update(ctx, &p, models.PayoutStatusPending))
		assert.True(t, apperr.IsConflict(payouts.Update(ctx, &p, models.PayoutStatusPending)))

		o, err := orders.GetByID(ctx, p.OrderID)
		require.NoError(t, err)
		assert.Equal(t, models.PayoutStatusProcessing, *o.PayoutStatus)

		summary, err := payouts.Summary(ctx, PayoutFilter{})
		require.NoError(t, err)
		assert.NotEmpty(t, summary)
	})

	t.Run("negotiation uniqueness and history", func(t *testing.T) {
		conv, product, buyer, seller := uuid.New(), uuid.New(), uuid.New(), uuid.New()
		now := time.Now().UTC()

		n, offer, err := models.NewNegotiation(conv, product, buyer, seller, buyer, decimal.NewFromInt(120), decimal.NewFromInt(100), "MXN", now)
		require.NoError(t, err)
		require.NoError(t, negotiations.Create(ctx, n, offer))

		dup, dupOffer, err := models.NewNegotiation(conv, product, buyer, seller, buyer, decimal.NewFromInt(120), decimal.NewFromInt(95), "MXN", now)
		require.NoError(t, err)
		assert.True(t, apperr.IsConflict(negotiations.Create(ctx, dup, dupOffer)))

		counter := decimal.NewFromInt(80)
		resp, err := n.Respond(seller, models.NegotiationActionCounter, &counter, now)
		require.NoError(t, err)
		require.NoError(t, negotiations.Update(ctx, n, resp))

		resp, err = n.Respond(buyer, models.NegotiationActionAccept, nil, now)
		require.NoError(t, err)
		require.NoError(t, negotiations.Update(ctx, n, resp))

		stored, err := negotiations.GetByID(ctx, n.ID)
		require.NoError(t, err)
		assert.True(t, stored.FinalPrice.Equal(counter))

		offers, err := negotiations.ListOffers(ctx, n.ID)
		require.NoError(t, err)
		assert.Len(t, offers, 3)
	})

	t.Run("audit log", func(t *testing.T) {
		id := uuid.New()
		require.NoError(t, audit.Log(ctx, models.AuditLog{
			ActorType:  models.ActorSystem,
			Action:     "order_created",
			EntityType: models.EntityOrder,
			EntityID:   &id,
			Meta:       map[string]any{"total_amount": "200"},
		}))
		logs, err := audit.GetByEntity(ctx, models.EntityOrder, id, 10, 0)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("missing rows are not found", func(t *testing.T) {
		_, err := orders.GetByID(ctx, uuid.New())
		assert.True(t, apperr.IsNotFound(err))
		_, err = profiles.GetBySeller(ctx, uuid.New())
		assert.True(t, apperr.IsNotFound(err))
	})
}
