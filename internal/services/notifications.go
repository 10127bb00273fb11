package services

import (
	"fmt"
	"strings"

	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/google/uuid"
)

// Notification is a chat message for one user derived from a domain event.
type Notification struct {
	UserID uuid.UUID
	Text   string
}

var orderStatusText = map[string]string{
	"paid":             "Payment received for order %s.",
	"meetup_arranged":  "Meetup details for order %s were updated.",
	"shipped":          "Order %s was shipped.",
	"delivered":        "Order %s was delivered. Please confirm completion.",
	"completed":        "Order %s is complete.",
	"disputed":         "A dispute was opened on order %s.",
	"resolved_refund":  "The dispute on order %s was resolved with a refund to the buyer.",
	"resolved_release": "The dispute on order %s was resolved in favor of the seller.",
	"cancelled":        "Order %s was cancelled.",
	"refunded":         "Order %s was refunded.",
}

// NotificationsFor maps an event to the messages its parties should receive.
// Events without a message return nil.
func NotificationsFor(ev events.Event) []Notification {
	str := func(key string) string {
		s, _ := ev.Payload[key].(string)
		return s
	}
	short := func(id string) string {
		if i := strings.IndexByte(id, '-'); i > 0 {
			return id[:i]
		}
		return id
	}

	var text string
	var targets []string
	switch ev.Type {
	case events.EventOrderCreated:
		text = fmt.Sprintf("New order %s is waiting for payment.", short(str("order_id")))
		targets = []string{"seller_id"}
	case events.EventOrderStatusChanged:
		tmpl, ok := orderStatusText[str("new_status")]
		if !ok {
			return nil
		}
		text = fmt.Sprintf(tmpl, short(str("order_id")))
		targets = []string{"buyer_id", "seller_id"}
	case events.EventOrderConfirmed:
		if str("confirmation_state") != "partially_confirmed" {
			return nil
		}
		text = fmt.Sprintf("Your counterparty confirmed order %s. Confirm on your side to complete it.", short(str("order_id")))
		targets = []string{"buyer_id", "seller_id"}
	case events.EventPayoutStatusChanged:
		if str("new_status") != "completed" {
			return nil
		}
		text = fmt.Sprintf("Payout of %s %s for order %s was sent.", str("payout_amount"), str("currency"), short(str("order_id")))
		targets = []string{"seller_id"}
	case events.EventNegotiationProposed, events.EventNegotiationResponded:
		text = fmt.Sprintf("Price offer update: %s.", str("status"))
		targets = []string{"buyer_id", "seller_id"}
	default:
		return nil
	}

	var out []Notification
	for _, key := range targets {
		id, err := uuid.Parse(str(key))
		if err != nil {
			continue
		}
		out = append(out, Notification{UserID: id, Text: text})
	}
	return out
}
