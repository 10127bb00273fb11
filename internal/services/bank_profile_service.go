package services

import (
	"context"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BankProfileService struct {
	profiles BankProfileStore
	rec      *recorder
	log      *zap.Logger
}

func NewBankProfileService(profiles BankProfileStore, audit AuditStore, log *zap.Logger) *BankProfileService {
	return &BankProfileService{
		profiles: profiles,
		rec:      &recorder{audit: audit, log: log},
		log:      log,
	}
}

type BankProfileInput struct {
	CLABE      string
	BankName   string
	HolderName string
}

// UpsertBankProfile sets the acting seller's payout destination.
func (s *BankProfileService) UpsertBankProfile(ctx context.Context, seller Actor, in BankProfileInput) (*models.SellerBankProfile, error) {
	if seller.ID == uuid.Nil {
		return nil, apperr.Forbidden("not_a_seller", "bank profiles belong to a user")
	}
	p := &models.SellerBankProfile{
		SellerID:   seller.ID,
		CLABE:      in.CLABE,
		BankName:   in.BankName,
		HolderName: in.HolderName,
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return nil, err
	}

	s.rec.record(ctx, seller, "bank_profile_updated", models.EntityBankProfile, p.SellerID, map[string]any{
		"clabe_last4": p.CLABE[len(p.CLABE)-4:],
		"bank_name":   p.BankName,
	})
	return p, nil
}

// GetBankProfile is visible to the seller and to operators.
func (s *BankProfileService) GetBankProfile(ctx context.Context, actor Actor, sellerID uuid.UUID) (*models.SellerBankProfile, error) {
	if actor.Type != models.ActorOperator && actor.ID != sellerID {
		return nil, apperr.Forbidden("not_owner", "bank profile belongs to another seller")
	}
	return s.profiles.GetBySeller(ctx, sellerID)
}
