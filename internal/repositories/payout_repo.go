package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PayoutRepo struct {
	pool *pgxpool.Pool
}

func NewPayoutRepo(pool *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

const payoutColumns = `id, order_id, seller_id, gross_amount, platform_fee, payout_amount, currency, status,
	payout_reference, failure_reason, payout_at, attempts, created_at, updated_at`

func scanPayout(row pgx.Row) (*models.Payout, error) {
	var p models.Payout
	err := row.Scan(&p.ID, &p.OrderID, &p.SellerID, &p.GrossAmount, &p.PlatformFee, &p.PayoutAmount, &p.Currency, &p.Status,
		&p.PayoutReference, &p.FailureReason, &p.PayoutAt, &p.Attempts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// insertPayout runs inside the order transition. order_id is unique, so a second
// payout for the same order aborts the whole transition.
func insertPayout(ctx context.Context, tx pgx.Tx, p *models.Payout) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO payouts (id, order_id, seller_id, gross_amount, platform_fee, payout_amount, currency, status,
		                     attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO NOTHING
	`, p.ID, p.OrderID, p.SellerID, p.GrossAmount, p.PlatformFee, p.PayoutAmount, p.Currency, p.Status,
		p.Attempts, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("payout_already_exists", "a payout already exists for this order")
	}
	return nil
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	p, err := scanPayout(r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "payout_not_found", "payout not found")
	}
	return p, nil
}

func (r *PayoutRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payout, error) {
	p, err := scanPayout(r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE order_id = $1`, orderID))
	if err != nil {
		return nil, notFound(err, "payout_not_found", "payout not found for order")
	}
	return p, nil
}

func payoutWhere(f PayoutFilter) (string, []any) {
	args := []any{}
	where := []string{}
	if f.SellerID != nil {
		args = append(args, *f.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *PayoutRepo) List(ctx context.Context, f PayoutFilter) ([]models.Payout, error) {
	where, args := payoutWhere(f)
	query := `SELECT ` + payoutColumns + ` FROM payouts` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, normalizeLimit(f.Limit), normalizeOffset(f.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (r *PayoutRepo) Summary(ctx context.Context, f PayoutFilter) ([]models.PayoutSummary, error) {
	where, args := payoutWhere(f)
	rows, err := r.pool.Query(ctx, `
		SELECT status, currency, COUNT(*), COALESCE(SUM(gross_amount), 0), COALESCE(SUM(platform_fee), 0), COALESCE(SUM(payout_amount), 0)
		FROM payouts`+where+`
		GROUP BY status, currency
		ORDER BY status, currency
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PayoutSummary
	for rows.Next() {
		var s models.PayoutSummary
		if err := rows.Scan(&s.Status, &s.Currency, &s.Count, &s.TotalGross, &s.TotalFees, &s.TotalPayoutAmount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update writes a payout status change if the stored status still equals
// fromStatus, and mirrors the new status onto orders.payout_status.
func (r *PayoutRepo) Update(ctx context.Context, p *models.Payout, fromStatus string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE payouts SET status = $3, payout_reference = $4, failure_reason = $5, payout_at = $6,
		                   attempts = $7, updated_at = $8
		WHERE id = $1 AND status = $2
	`, p.ID, fromStatus, p.Status, p.PayoutReference, p.FailureReason, p.PayoutAt, p.Attempts, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("version_conflict", "payout was modified concurrently")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payout_status = $2, updated_at = $3, version = version + 1 WHERE id = $1
	`, p.OrderID, p.Status, p.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
