package services

import (
	"context"

	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/c2c-marketplace/backend/internal/repositories/memstore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores are satisfied by both the Postgres repositories and memstore.

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error)
	Commit(ctx context.Context, t repositories.OrderTransition) error
}

type DisputeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error)
}

type PayoutStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payout, error)
	List(ctx context.Context, f repositories.PayoutFilter) ([]models.Payout, error)
	Summary(ctx context.Context, f repositories.PayoutFilter) ([]models.PayoutSummary, error)
	Update(ctx context.Context, p *models.Payout, fromStatus string) error
}

type NegotiationStore interface {
	Create(ctx context.Context, n *models.Negotiation, offer *models.NegotiationOffer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Negotiation, error)
	Update(ctx context.Context, n *models.Negotiation, offer *models.NegotiationOffer) error
	ListOffers(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationOffer, error)
}

type BankProfileStore interface {
	Upsert(ctx context.Context, p *models.SellerBankProfile) error
	GetBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerBankProfile, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

// Stores groups one backend's implementation of every store.
type Stores struct {
	Orders       OrderStore
	Disputes     DisputeStore
	Payouts      PayoutStore
	Negotiations NegotiationStore
	BankProfiles BankProfileStore
	Audit        AuditStore
}

func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Orders:       repositories.NewOrderRepo(pool),
		Disputes:     repositories.NewDisputeRepo(pool),
		Payouts:      repositories.NewPayoutRepo(pool),
		Negotiations: repositories.NewNegotiationRepo(pool),
		BankProfiles: repositories.NewBankProfileRepo(pool),
		Audit:        repositories.NewAuditRepo(pool),
	}
}

// MemoryStores keeps everything in process. State is lost on restart.
func MemoryStores() Stores {
	s := memstore.New()
	return Stores{
		Orders:       s.Orders(),
		Disputes:     s.Disputes(),
		Payouts:      s.Payouts(),
		Negotiations: s.Negotiations(),
		BankProfiles: s.BankProfiles(),
		Audit:        s.Audit(),
	}
}
