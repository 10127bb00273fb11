package services

import (
	"context"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/c2c-marketplace/backend/internal/metrics"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type NegotiationService struct {
	negotiations NegotiationStore
	chat         ConversationDirectory
	catalog      ListingCatalog
	retries      int
	defaultCcy   string
	rec          *recorder
	now          func() time.Time
	log          *zap.Logger
}

func NewNegotiationService(
	negotiations NegotiationStore,
	audit AuditStore,
	chat ConversationDirectory,
	catalog ListingCatalog,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *NegotiationService {
	return &NegotiationService{
		negotiations: negotiations,
		chat:         chat,
		catalog:      catalog,
		retries:      cfg.TransitionMaxRetries,
		defaultCcy:   cfg.DefaultCurrency,
		rec:          &recorder{audit: audit, publisher: publisher, metrics: m, log: log},
		now:          time.Now,
		log:          log,
	}
}

// Propose opens a negotiation inside an active conversation. The listing price
// at this moment is kept as the original price.
func (s *NegotiationService) Propose(ctx context.Context, actor Actor, conversationID, productID uuid.UUID, price decimal.Decimal) (*models.Negotiation, error) {
	if !price.IsPositive() {
		return nil, apperr.Validation("invalid_price", "proposed price must be greater than zero")
	}

	conv, err := s.chat.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Active {
		return nil, apperr.Precondition("conversation_inactive", "conversation is no longer active")
	}
	if conv.ProductID != productID {
		return nil, apperr.Validation("conversation_product_mismatch", "conversation is about a different product")
	}
	if actor.ID != conv.BuyerID && actor.ID != conv.SellerID {
		return nil, apperr.Forbidden("not_a_participant", "only conversation participants can propose a price")
	}

	listing, err := s.catalog.GetListing(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !listing.Active {
		return nil, apperr.Precondition("listing_inactive", "listing is no longer available")
	}
	currency := listing.Currency
	if currency == "" {
		currency = s.defaultCcy
	}
	if err := payment.CheckPrecision(price, currency); err != nil {
		return nil, err
	}

	n, offer, err := models.NewNegotiation(conv.ID, productID, conv.BuyerID, conv.SellerID, actor.ID,
		listing.Price, price, currency, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.negotiations.Create(ctx, n, offer); err != nil {
		return nil, err
	}

	s.rec.metrics.Transition(models.EntityNegotiation, "", n.Status)
	s.rec.record(ctx, actor, "negotiation_proposed", models.EntityNegotiation, n.ID, map[string]any{
		"original_price": n.OriginalPrice.String(),
		"proposed_price": n.ProposedPrice.String(),
	})
	s.rec.publish(ctx, events.StreamNegotiations, negotiationEvent(events.EventNegotiationProposed, n, offer))
	return n, nil
}

// Respond applies accept, reject or counter from the party whose turn it is.
func (s *NegotiationService) Respond(ctx context.Context, actor Actor, negotiationID uuid.UUID, action string, counterPrice *decimal.Decimal) (*models.Negotiation, error) {
	attempts := s.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		n, err := s.negotiations.GetByID(ctx, negotiationID)
		if err != nil {
			return nil, err
		}
		from := n.Status
		if counterPrice != nil {
			if err := payment.CheckPrecision(*counterPrice, n.Currency); err != nil {
				return nil, err
			}
		}

		offer, err := n.Respond(actor.ID, action, counterPrice, s.now().UTC())
		if err != nil {
			return nil, err
		}

		err = s.negotiations.Update(ctx, n, offer)
		if err == nil {
			s.rec.metrics.Transition(models.EntityNegotiation, from, n.Status)
			meta := map[string]any{"action": action, "old_status": from, "new_status": n.Status}
			if offer.Price != nil {
				meta["price"] = offer.Price.String()
			}
			s.rec.record(ctx, actor, "negotiation_"+action, models.EntityNegotiation, n.ID, meta)
			s.rec.publish(ctx, events.StreamNegotiations, negotiationEvent(events.EventNegotiationResponded, n, offer))
			return n, nil
		}
		if !isVersionConflict(err) {
			return nil, err
		}
		s.rec.metrics.Conflict("respond_negotiation")
		lastErr = err
	}
	return nil, lastErr
}

// GetNegotiation is visible to the two participants.
func (s *NegotiationService) GetNegotiation(ctx context.Context, actor Actor, negotiationID uuid.UUID) (*models.Negotiation, error) {
	n, err := s.negotiations.GetByID(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if actor.Type == models.ActorUser && actor.ID != n.BuyerID && actor.ID != n.SellerID {
		return nil, apperr.Forbidden("not_a_participant", "negotiation belongs to other users")
	}
	return n, nil
}

func (s *NegotiationService) ListByConversation(ctx context.Context, actor Actor, conversationID uuid.UUID) ([]models.Negotiation, error) {
	list, err := s.negotiations.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if actor.Type != models.ActorUser || len(list) == 0 {
		return list, nil
	}
	if actor.ID != list[0].BuyerID && actor.ID != list[0].SellerID {
		return nil, apperr.Forbidden("not_a_participant", "conversation belongs to other users")
	}
	return list, nil
}

// ListOffers returns the negotiation's offer history, oldest first.
func (s *NegotiationService) ListOffers(ctx context.Context, actor Actor, negotiationID uuid.UUID) ([]models.NegotiationOffer, error) {
	if _, err := s.GetNegotiation(ctx, actor, negotiationID); err != nil {
		return nil, err
	}
	return s.negotiations.ListOffers(ctx, negotiationID)
}

func negotiationEvent(eventType string, n *models.Negotiation, offer *models.NegotiationOffer) events.Event {
	payload := map[string]any{
		"negotiation_id":  n.ID.String(),
		"conversation_id": n.ConversationID.String(),
		"product_id":      n.ProductID.String(),
		"buyer_id":        n.BuyerID.String(),
		"seller_id":       n.SellerID.String(),
		"status":          n.Status,
		"action":          offer.Action,
	}
	if offer.Price != nil {
		payload["price"] = offer.Price.String()
	}
	if n.FinalPrice != nil {
		payload["final_price"] = n.FinalPrice.String()
	}
	return events.Event{Type: eventType, Payload: payload}
}
