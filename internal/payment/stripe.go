package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

// StripeProcessor resolves transaction ids as Stripe PaymentIntent ids.
type StripeProcessor struct {
	client *client.API
	log    *zap.Logger
}

func NewStripeProcessor(secretKey string, log *zap.Logger) *StripeProcessor {
	return &StripeProcessor{
		client: client.New(secretKey, nil),
		log:    log,
	}
}

func (p *StripeProcessor) RetrieveCharge(ctx context.Context, id string) (*Charge, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.client.PaymentIntents.Get(id, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(ctx.Err(), apperr.CodeUnavailable, "payment_processor_timeout", "payment processor did not answer in time")
		}
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, apperr.Precondition("payment_not_found", "transaction not found at payment processor")
		}
		p.log.Warn("stripe payment intent lookup failed", zap.String("payment_intent", id), zap.Error(err))
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "payment_processor_unavailable", "payment processor unavailable")
	}

	return chargeFromIntent(pi), nil
}

func chargeFromIntent(pi *stripe.PaymentIntent) *Charge {
	currency := string(pi.Currency)
	c := &Charge{
		ID:        pi.ID,
		Amount:    FromMinorUnits(pi.Amount, currency),
		Currency:  currency,
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}
	if pi.Metadata != nil {
		c.OrderID = pi.Metadata["order_id"]
	}
	return c
}
