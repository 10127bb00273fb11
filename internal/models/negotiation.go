package models

import (
	"fmt"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Negotiation statuses
const (
	NegotiationStatusPending   = "pending"
	NegotiationStatusCountered = "countered"
	NegotiationStatusAccepted  = "accepted"
	NegotiationStatusRejected  = "rejected"
)

// Negotiation actions; propose only appears in the offer history.
const (
	NegotiationActionPropose = "propose"
	NegotiationActionAccept  = "accept"
	NegotiationActionReject  = "reject"
	NegotiationActionCounter = "counter"
)

type Negotiation struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	ProductID      uuid.UUID        `json:"product_id"`
	BuyerID        uuid.UUID        `json:"buyer_id"`
	SellerID       uuid.UUID        `json:"seller_id"`
	ProposerID     uuid.UUID        `json:"proposer_id"`
	OriginalPrice  decimal.Decimal  `json:"original_price"`
	ProposedPrice  decimal.Decimal  `json:"proposed_price"`
	CounterPrice   *decimal.Decimal `json:"counter_price,omitempty"`
	FinalPrice     *decimal.Decimal `json:"final_price,omitempty"`
	Currency       string           `json:"currency"`
	Status         string           `json:"status"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NegotiationOffer is one append-only event in a negotiation's history.
type NegotiationOffer struct {
	ID            uuid.UUID        `json:"id"`
	NegotiationID uuid.UUID        `json:"negotiation_id"`
	ActorID       uuid.UUID        `json:"actor_id"`
	Action        string           `json:"action"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func NewNegotiation(conversationID, productID, buyerID, sellerID, proposerID uuid.UUID, original, proposed decimal.Decimal, currency string, now time.Time) (*Negotiation, *NegotiationOffer, error) {
	if !proposed.IsPositive() {
		return nil, nil, apperr.Validation("invalid_price", "proposed price must be greater than zero")
	}
	if proposerID != buyerID && proposerID != sellerID {
		return nil, nil, apperr.Forbidden("not_a_participant", "only conversation participants can propose a price")
	}
	if err := ValidateCurrency(currency); err != nil {
		return nil, nil, err
	}
	n := &Negotiation{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ProductID:      productID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		ProposerID:     proposerID,
		OriginalPrice:  original,
		ProposedPrice:  proposed,
		Currency:       currency,
		Status:         NegotiationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p := proposed
	offer := &NegotiationOffer{
		ID:            uuid.New(),
		NegotiationID: n.ID,
		ActorID:       proposerID,
		Action:        NegotiationActionPropose,
		Price:         &p,
		CreatedAt:     now,
	}
	return n, offer, nil
}

// ResponderID is the participant who did not propose.
func (n *Negotiation) ResponderID() uuid.UUID {
	if n.ProposerID == n.BuyerID {
		return n.SellerID
	}
	return n.BuyerID
}

func (n *Negotiation) IsActive() bool {
	return n.Status == NegotiationStatusPending || n.Status == NegotiationStatusCountered
}

func (n *Negotiation) Clone() *Negotiation {
	c := *n
	c.CounterPrice = clonePtr(n.CounterPrice)
	c.FinalPrice = clonePtr(n.FinalPrice)
	return &c
}

// Respond applies accept, reject or counter from actorID and returns the offer event to append.
// In pending only the responder may act; in countered only the proposer may accept or reject.
func (n *Negotiation) Respond(actorID uuid.UUID, action string, counterPrice *decimal.Decimal, now time.Time) (*NegotiationOffer, error) {
	if action != NegotiationActionAccept && action != NegotiationActionReject && action != NegotiationActionCounter {
		return nil, apperr.Validation("invalid_action", fmt.Sprintf("invalid action %q, must be accept, reject or counter", action))
	}
	if !n.IsActive() {
		return nil, apperr.Precondition("negotiation_closed", fmt.Sprintf("negotiation is already %s", n.Status))
	}

	offer := &NegotiationOffer{
		ID:            uuid.New(),
		NegotiationID: n.ID,
		ActorID:       actorID,
		Action:        action,
		CreatedAt:     now,
	}

	switch n.Status {
	case NegotiationStatusPending:
		if actorID != n.ResponderID() {
			return nil, apperr.Forbidden("not_counterparty", "only the counterparty can respond to this offer")
		}
		switch action {
		case NegotiationActionAccept:
			p := n.ProposedPrice
			n.FinalPrice = &p
			n.Status = NegotiationStatusAccepted
		case NegotiationActionReject:
			n.Status = NegotiationStatusRejected
		case NegotiationActionCounter:
			if counterPrice == nil || !counterPrice.IsPositive() {
				return nil, apperr.Validation("invalid_price", "counter price must be greater than zero")
			}
			p := *counterPrice
			n.CounterPrice = &p
			n.Status = NegotiationStatusCountered
		}

	case NegotiationStatusCountered:
		if actorID != n.ProposerID {
			return nil, apperr.Forbidden("not_counterparty", "only the original proposer can answer a counter offer")
		}
		switch action {
		case NegotiationActionAccept:
			p := *n.CounterPrice
			n.FinalPrice = &p
			n.Status = NegotiationStatusAccepted
		case NegotiationActionReject:
			n.Status = NegotiationStatusRejected
		case NegotiationActionCounter:
			return nil, apperr.Precondition("counter_not_allowed", "a counter offer can only be accepted or rejected")
		}
	}

	if n.FinalPrice != nil {
		p := *n.FinalPrice
		offer.Price = &p
	} else if action == NegotiationActionCounter {
		p := *n.CounterPrice
		offer.Price = &p
	}
	n.UpdatedAt = now
	return offer, nil
}
