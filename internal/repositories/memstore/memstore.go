// Package memstore is an in-process implementation of the repositories with the
// same compare-and-swap semantics as the Postgres stores. It backs the service
// tests and STORAGE_BACKEND=memory.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/models"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu           sync.Mutex
	orders       map[uuid.UUID]*models.Order
	disputes     map[uuid.UUID]*models.Dispute
	payouts      map[uuid.UUID]*models.Payout
	negotiations map[uuid.UUID]*models.Negotiation
	offers       map[uuid.UUID][]models.NegotiationOffer
	profiles     map[uuid.UUID]*models.SellerBankProfile
	audit        []models.AuditLog
}

func New() *Store {
	return &Store{
		orders:       make(map[uuid.UUID]*models.Order),
		disputes:     make(map[uuid.UUID]*models.Dispute),
		payouts:      make(map[uuid.UUID]*models.Payout),
		negotiations: make(map[uuid.UUID]*models.Negotiation),
		offers:       make(map[uuid.UUID][]models.NegotiationOffer),
		profiles:     make(map[uuid.UUID]*models.SellerBankProfile),
	}
}

func (s *Store) Orders() *Orders             { return &Orders{s: s} }
func (s *Store) Disputes() *Disputes         { return &Disputes{s: s} }
func (s *Store) Payouts() *Payouts           { return &Payouts{s: s} }
func (s *Store) Negotiations() *Negotiations { return &Negotiations{s: s} }
func (s *Store) BankProfiles() *BankProfiles { return &BankProfiles{s: s} }
func (s *Store) Audit() *Audit               { return &Audit{s: s} }

func window[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Orders

type Orders struct{ s *Store }

func (r *Orders) Create(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if o.NegotiationID != nil {
		for _, other := range r.s.orders {
			if other.NegotiationID != nil && *other.NegotiationID == *o.NegotiationID {
				return apperr.Conflict("negotiation_already_ordered", "an order already exists for this negotiation")
			}
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	o.Version = 0
	r.s.orders[o.ID] = o.Clone()
	return nil
}

func (r *Orders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	return o.Clone(), nil
}

func (r *Orders) List(_ context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Order
	for _, o := range r.s.orders {
		if f.BuyerID != nil && o.BuyerID != *f.BuyerID {
			continue
		}
		if f.SellerID != nil && o.SellerID != *f.SellerID {
			continue
		}
		if f.PartyID != nil && !o.IsParty(*f.PartyID) {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		if f.UpdatedBefore != nil && !o.UpdatedAt.Before(*f.UpdatedBefore) {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return window(out, f.Limit, f.Offset), nil
}

// Commit validates every part of the transition before applying any of it.
func (r *Orders) Commit(_ context.Context, t repositories.OrderTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o := t.Order
	current, ok := r.s.orders[o.ID]
	if !ok {
		return apperr.NotFound("order_not_found", "order not found")
	}
	if current.Version != o.Version {
		return apperr.Conflict("version_conflict", "order was modified concurrently")
	}
	if o.PaymentTxID != nil {
		for id, other := range r.s.orders {
			if id != o.ID && other.PaymentTxID != nil && *other.PaymentTxID == *o.PaymentTxID {
				return apperr.Conflict("transaction_already_used", "payment transaction is already attached to another order")
			}
		}
	}
	if d := t.OpenedDispute; d != nil {
		for _, existing := range r.s.disputes {
			if existing.OrderID == d.OrderID && existing.Status == models.DisputeStatusOpen {
				return apperr.Conflict("dispute_already_open", "a dispute is already open for this order")
			}
		}
	}
	if d := t.ResolvedDispute; d != nil {
		existing, ok := r.s.disputes[d.ID]
		if !ok || existing.Status != models.DisputeStatusOpen {
			return apperr.Conflict("dispute_not_open", "dispute was resolved concurrently")
		}
	}
	if p := t.Payout; p != nil {
		for _, existing := range r.s.payouts {
			if existing.OrderID == p.OrderID {
				return apperr.Conflict("payout_already_exists", "a payout already exists for this order")
			}
		}
	}

	o.Version++
	stored := o.Clone()
	stored.CreatedAt = current.CreatedAt
	r.s.orders[o.ID] = stored
	if t.OpenedDispute != nil {
		r.s.disputes[t.OpenedDispute.ID] = t.OpenedDispute.Clone()
	}
	if t.ResolvedDispute != nil {
		r.s.disputes[t.ResolvedDispute.ID] = t.ResolvedDispute.Clone()
	}
	if t.Payout != nil {
		r.s.payouts[t.Payout.ID] = t.Payout.Clone()
	}
	return nil
}

// Disputes

type Disputes struct{ s *Store }

func (r *Disputes) GetByID(_ context.Context, id uuid.UUID) (*models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.disputes[id]
	if !ok {
		return nil, apperr.NotFound("dispute_not_found", "dispute not found")
	}
	return d.Clone(), nil
}

func (r *Disputes) GetOpenByOrder(_ context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, d := range r.s.disputes {
		if d.OrderID == orderID && d.Status == models.DisputeStatusOpen {
			return d.Clone(), nil
		}
	}
	return nil, apperr.NotFound("dispute_not_found", "no open dispute for order")
}

func (r *Disputes) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Dispute
	for _, d := range r.s.disputes {
		if d.OrderID == orderID {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Payouts

type Payouts struct{ s *Store }

func (r *Payouts) GetByID(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payouts[id]
	if !ok {
		return nil, apperr.NotFound("payout_not_found", "payout not found")
	}
	return p.Clone(), nil
}

func (r *Payouts) GetByOrder(_ context.Context, orderID uuid.UUID) (*models.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.payouts {
		if p.OrderID == orderID {
			return p.Clone(), nil
		}
	}
	return nil, apperr.NotFound("payout_not_found", "payout not found for order")
}

func (r *Payouts) filtered(f repositories.PayoutFilter) []models.Payout {
	var out []models.Payout
	for _, p := range r.s.payouts {
		if f.SellerID != nil && p.SellerID != *f.SellerID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

func (r *Payouts) List(_ context.Context, f repositories.PayoutFilter) ([]models.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return window(r.filtered(f), f.Limit, f.Offset), nil
}

func (r *Payouts) Summary(_ context.Context, f repositories.PayoutFilter) ([]models.PayoutSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type key struct{ status, currency string }
	groups := map[key]*models.PayoutSummary{}
	for _, p := range r.filtered(f) {
		k := key{p.Status, p.Currency}
		g, ok := groups[k]
		if !ok {
			g = &models.PayoutSummary{Status: p.Status, Currency: p.Currency,
				TotalGross: decimal.Zero, TotalFees: decimal.Zero, TotalPayoutAmount: decimal.Zero}
			groups[k] = g
		}
		g.Count++
		g.TotalGross = g.TotalGross.Add(p.GrossAmount)
		g.TotalFees = g.TotalFees.Add(p.PlatformFee)
		g.TotalPayoutAmount = g.TotalPayoutAmount.Add(p.PayoutAmount)
	}

	out := make([]models.PayoutSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

func (r *Payouts) Update(_ context.Context, p *models.Payout, fromStatus string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.payouts[p.ID]
	if !ok {
		return apperr.NotFound("payout_not_found", "payout not found")
	}
	if current.Status != fromStatus {
		return apperr.Conflict("version_conflict", "payout was modified concurrently")
	}
	r.s.payouts[p.ID] = p.Clone()

	if o, ok := r.s.orders[p.OrderID]; ok {
		status := p.Status
		o.PayoutStatus = &status
		o.UpdatedAt = p.UpdatedAt
		o.Version++
	}
	return nil
}

// Negotiations

type Negotiations struct{ s *Store }

func (r *Negotiations) Create(_ context.Context, n *models.Negotiation, offer *models.NegotiationOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.negotiations {
		if existing.ConversationID == n.ConversationID && existing.ProductID == n.ProductID && existing.IsActive() {
			return apperr.Conflict("negotiation_already_active", "an active negotiation already exists for this product in the conversation")
		}
	}
	n.Version = 0
	r.s.negotiations[n.ID] = n.Clone()
	r.s.offers[n.ID] = append(r.s.offers[n.ID], *offer)
	return nil
}

func (r *Negotiations) GetByID(_ context.Context, id uuid.UUID) (*models.Negotiation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.negotiations[id]
	if !ok {
		return nil, apperr.NotFound("negotiation_not_found", "negotiation not found")
	}
	return n.Clone(), nil
}

func (r *Negotiations) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]models.Negotiation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Negotiation
	for _, n := range r.s.negotiations {
		if n.ConversationID == conversationID {
			out = append(out, *n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Negotiations) Update(_ context.Context, n *models.Negotiation, offer *models.NegotiationOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.negotiations[n.ID]
	if !ok {
		return apperr.NotFound("negotiation_not_found", "negotiation not found")
	}
	if current.Version != n.Version {
		return apperr.Conflict("version_conflict", "negotiation was modified concurrently")
	}
	n.Version++
	r.s.negotiations[n.ID] = n.Clone()
	r.s.offers[n.ID] = append(r.s.offers[n.ID], *offer)
	return nil
}

func (r *Negotiations) ListOffers(_ context.Context, negotiationID uuid.UUID) ([]models.NegotiationOffer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.NegotiationOffer, len(r.s.offers[negotiationID]))
	copy(out, r.s.offers[negotiationID])
	return out, nil
}

// Bank profiles

type BankProfiles struct{ s *Store }

func (r *BankProfiles) Upsert(_ context.Context, p *models.SellerBankProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.s.profiles[p.SellerID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	c := *p
	r.s.profiles[p.SellerID] = &c
	return nil
}

func (r *BankProfiles) GetBySeller(_ context.Context, sellerID uuid.UUID) (*models.SellerBankProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[sellerID]
	if !ok {
		return nil, apperr.NotFound("bank_profile_not_found", "seller has no bank profile")
	}
	c := *p
	return &c, nil
}

// Audit

type Audit struct{ s *Store }

func (r *Audit) Log(_ context.Context, entry models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.s.audit = append(r.s.audit, entry)
	return nil
}

func (r *Audit) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.AuditLog
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
