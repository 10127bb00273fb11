package events

import "context"

// Streams
const (
	StreamOrders       = "events:order"
	StreamNegotiations = "events:negotiation"
	StreamPayouts      = "events:payout"
)

// Event types
const (
	EventOrderCreated         = "order_created"
	EventOrderStatusChanged   = "order_status_changed"
	EventOrderConfirmed       = "order_confirmation_recorded"
	EventPaymentReceived      = "payment_received"
	EventPaymentUnapplied     = "payment_unapplied"
	EventMeetupUpdated        = "meetup_updated"
	EventDisputeOpened        = "dispute_opened"
	EventDisputeResolved      = "dispute_resolved"
	EventPayoutCreated        = "payout_created"
	EventPayoutStatusChanged  = "payout_status_changed"
	EventNegotiationProposed  = "negotiation_proposed"
	EventNegotiationResponded = "negotiation_responded"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
