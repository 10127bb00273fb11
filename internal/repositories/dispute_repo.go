package repositories

import (
	"context"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = `id, order_id, raised_by, reason, description, status, resolution_note,
	resolved_by, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.OrderID, &d.RaisedBy, &d.Reason, &d.Description, &d.Status, &d.ResolutionNote,
		&d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "dispute_not_found", "dispute not found")
	}
	return d, nil
}

func (r *DisputeRepo) GetOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1 AND status = 'open'
	`, orderID))
	if err != nil {
		return nil, notFound(err, "dispute_not_found", "no open dispute for order")
	}
	return d, nil
}

func (r *DisputeRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1 ORDER BY created_at DESC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

func insertDispute(ctx context.Context, tx pgx.Tx, d *models.Dispute) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO disputes (id, order_id, raised_by, reason, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.OrderID, d.RaisedBy, d.Reason, d.Description, d.Status, d.CreatedAt, d.UpdatedAt)
	if isUniqueViolation(err, "disputes_open_uq") {
		return apperr.Wrap(err, apperr.CodeConflict, "dispute_already_open", "a dispute is already open for this order")
	}
	return err
}

func resolveDispute(ctx context.Context, tx pgx.Tx, d *models.Dispute) error {
	tag, err := tx.Exec(ctx, `
		UPDATE disputes SET status = $2, resolution_note = $3, resolved_by = $4, resolved_at = $5, updated_at = $6
		WHERE id = $1 AND status = 'open'
	`, d.ID, d.Status, d.ResolutionNote, d.ResolvedBy, d.ResolvedAt, d.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("dispute_not_open", "dispute was resolved concurrently")
	}
	return nil
}
