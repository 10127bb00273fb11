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

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, buyer_id, seller_id, product_id, negotiation_id, total_amount, currency,
	order_type, payment_method, meetup_location, meetup_time, shipping_carrier, tracking_number,
	shipped_at, delivered_at, payment_tx_id, paid_at, buyer_confirmed_at, seller_confirmed_at,
	status, payout_status, cancel_reason, version, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ProductID, &o.NegotiationID, &o.TotalAmount, &o.Currency,
		&o.OrderType, &o.PaymentMethod, &o.MeetupLocation, &o.MeetupTime, &o.ShippingCarrier, &o.TrackingNumber,
		&o.ShippedAt, &o.DeliveredAt, &o.PaymentTxID, &o.PaidAt, &o.BuyerConfirmedAt, &o.SellerConfirmedAt,
		&o.Status, &o.PayoutStatus, &o.CancelReason, &o.Version, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, product_id, negotiation_id, total_amount, currency,
		                    order_type, payment_method, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
		RETURNING version, created_at, updated_at
	`, o.ID, o.BuyerID, o.SellerID, o.ProductID, o.NegotiationID, o.TotalAmount, o.Currency,
		o.OrderType, o.PaymentMethod, o.Status,
	).Scan(&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if isUniqueViolation(err, "orders_negotiation_uq") {
		return apperr.Conflict("negotiation_already_ordered", "an order already exists for this negotiation")
	}
	return err
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "order_not_found", "order not found")
	}
	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.BuyerID != nil {
		where = append(where, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, *f.BuyerID)
		argIdx++
	}
	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.PartyID != nil {
		where = append(where, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", argIdx, argIdx))
		args = append(args, *f.PartyID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.UpdatedBefore != nil {
		where = append(where, fmt.Sprintf("updated_at < $%d", argIdx))
		args = append(args, *f.UpdatedBefore)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, normalizeLimit(f.Limit), normalizeOffset(f.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// Commit writes an order transition and its side effects in one transaction.
// A stale version yields a Conflict and nothing is written.
func (r *OrderRepo) Commit(ctx context.Context, t OrderTransition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := t.Order
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET
			meetup_location = $3, meetup_time = $4, shipping_carrier = $5, tracking_number = $6,
			shipped_at = $7, delivered_at = $8, payment_tx_id = $9, paid_at = $10,
			buyer_confirmed_at = $11, seller_confirmed_at = $12, status = $13, payout_status = $14,
			cancel_reason = $15, completed_at = $16, updated_at = $17, version = version + 1
		WHERE id = $1 AND version = $2
	`, o.ID, o.Version,
		o.MeetupLocation, o.MeetupTime, o.ShippingCarrier, o.TrackingNumber,
		o.ShippedAt, o.DeliveredAt, o.PaymentTxID, o.PaidAt,
		o.BuyerConfirmedAt, o.SellerConfirmedAt, o.Status, o.PayoutStatus,
		o.CancelReason, o.CompletedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "orders_payment_tx_uq") {
			return apperr.Wrap(err, apperr.CodeConflict, "transaction_already_used", "payment transaction is already attached to another order")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("version_conflict", "order was modified concurrently")
	}

	if t.OpenedDispute != nil {
		if err := insertDispute(ctx, tx, t.OpenedDispute); err != nil {
			return err
		}
	}
	if t.ResolvedDispute != nil {
		if err := resolveDispute(ctx, tx, t.ResolvedDispute); err != nil {
			return err
		}
	}
	if t.Payout != nil {
		if err := insertPayout(ctx, tx, t.Payout); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.Version++
	return nil
}
