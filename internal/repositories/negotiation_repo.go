package repositories

import (
	"context"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NegotiationRepo struct {
	pool *pgxpool.Pool
}

func NewNegotiationRepo(pool *pgxpool.Pool) *NegotiationRepo {
	return &NegotiationRepo{pool: pool}
}

const negotiationColumns = `id, conversation_id, product_id, buyer_id, seller_id, proposer_id, original_price,
	proposed_price, counter_price, final_price, currency, status, version, created_at, updated_at`

func scanNegotiation(row pgx.Row) (*models.Negotiation, error) {
	var n models.Negotiation
	err := row.Scan(&n.ID, &n.ConversationID, &n.ProductID, &n.BuyerID, &n.SellerID, &n.ProposerID, &n.OriginalPrice,
		&n.ProposedPrice, &n.CounterPrice, &n.FinalPrice, &n.Currency, &n.Status, &n.Version, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func insertOffer(ctx context.Context, tx pgx.Tx, o *models.NegotiationOffer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO negotiation_offers (id, negotiation_id, actor_id, action, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.NegotiationID, o.ActorID, o.Action, o.Price, o.CreatedAt)
	return err
}

// Create inserts the negotiation with its opening offer. The partial unique index
// on active negotiations turns a second open negotiation into a Conflict.
func (r *NegotiationRepo) Create(ctx context.Context, n *models.Negotiation, offer *models.NegotiationOffer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO negotiations (id, conversation_id, product_id, buyer_id, seller_id, proposer_id, original_price,
		                          proposed_price, currency, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)
	`, n.ID, n.ConversationID, n.ProductID, n.BuyerID, n.SellerID, n.ProposerID, n.OriginalPrice,
		n.ProposedPrice, n.Currency, n.Status, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "negotiations_active_uq") {
			return apperr.Wrap(err, apperr.CodeConflict, "negotiation_already_active", "an active negotiation already exists for this product in the conversation")
		}
		return err
	}
	if err := insertOffer(ctx, tx, offer); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *NegotiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	n, err := scanNegotiation(r.pool.QueryRow(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "negotiation_not_found", "negotiation not found")
	}
	return n, nil
}

func (r *NegotiationRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Negotiation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+negotiationColumns+` FROM negotiations WHERE conversation_id = $1 ORDER BY created_at DESC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Update applies a response if the stored version still matches n.Version and
// appends offer to the history.
func (r *NegotiationRepo) Update(ctx context.Context, n *models.Negotiation, offer *models.NegotiationOffer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE negotiations SET counter_price = $3, final_price = $4, status = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2
	`, n.ID, n.Version, n.CounterPrice, n.FinalPrice, n.Status, n.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("version_conflict", "negotiation was modified concurrently")
	}
	if err := insertOffer(ctx, tx, offer); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	n.Version++
	return nil
}

func (r *NegotiationRepo) ListOffers(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationOffer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, negotiation_id, actor_id, action, price, created_at
		FROM negotiation_offers WHERE negotiation_id = $1 ORDER BY created_at, id
	`, negotiationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NegotiationOffer
	for rows.Next() {
		var o models.NegotiationOffer
		if err := rows.Scan(&o.ID, &o.NegotiationID, &o.ActorID, &o.Action, &o.Price, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
