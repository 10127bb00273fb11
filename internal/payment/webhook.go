package payment

import (
	"encoding/json"
	"fmt"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookEvent is a verified processor notification about a successful payment.
type WebhookEvent struct {
	ID      string // processor event id, used for de-duplication
	Type    string
	Charge  *Charge
	OrderID string
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Charge is nil for event types other than payment_intent.succeeded.
func ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeValidation, "invalid_webhook_signature", "invalid webhook signature")
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeValidation, "invalid_webhook_payload", fmt.Sprintf("cannot decode %s payload", event.Type))
	}
	out.Charge = chargeFromIntent(&pi)
	out.OrderID = out.Charge.OrderID
	return out, nil
}
