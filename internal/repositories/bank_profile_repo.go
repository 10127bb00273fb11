package repositories

import (
	"context"

	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BankProfileRepo struct {
	pool *pgxpool.Pool
}

func NewBankProfileRepo(pool *pgxpool.Pool) *BankProfileRepo {
	return &BankProfileRepo{pool: pool}
}

func (r *BankProfileRepo) Upsert(ctx context.Context, p *models.SellerBankProfile) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO seller_bank_profiles (seller_id, clabe, bank_name, holder_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (seller_id) DO UPDATE SET
			clabe = EXCLUDED.clabe,
			bank_name = EXCLUDED.bank_name,
			holder_name = EXCLUDED.holder_name,
			updated_at = now()
		RETURNING created_at, updated_at
	`, p.SellerID, p.CLABE, p.BankName, p.HolderName).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *BankProfileRepo) GetBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerBankProfile, error) {
	var p models.SellerBankProfile
	err := r.pool.QueryRow(ctx, `
		SELECT seller_id, clabe, bank_name, holder_name, created_at, updated_at
		FROM seller_bank_profiles WHERE seller_id = $1
	`, sellerID).Scan(&p.SellerID, &p.CLABE, &p.BankName, &p.HolderName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "bank_profile_not_found", "seller has no bank profile")
	}
	return &p, nil
}
