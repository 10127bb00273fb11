package services

import (
	"testing"

	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsFor(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	orderID := "7b0c6f5e-0d5b-4f8e-9a51-8f9a3c4e2d11"
	payload := func(kv ...string) map[string]any {
		p := map[string]any{"order_id": orderID, "buyer_id": buyer.String(), "seller_id": seller.String()}
		for i := 0; i+1 < len(kv); i += 2 {
			p[kv[i]] = kv[i+1]
		}
		return p
	}

	tests := []struct {
		name  string
		event events.Event
		users []uuid.UUID
		text  string
	}{
		{"created", events.Event{Type: events.EventOrderCreated, Payload: payload()}, []uuid.UUID{seller}, "New order 7b0c6f5e"},
		{"shipped", events.Event{Type: events.EventOrderStatusChanged, Payload: payload("new_status", "shipped")}, []uuid.UUID{buyer, seller}, "was shipped"},
		{"partial", events.Event{Type: events.EventOrderConfirmed, Payload: payload("confirmation_state", "partially_confirmed")}, []uuid.UUID{buyer, seller}, "Confirm on your side"},
		{"confirmed", events.Event{Type: events.EventOrderConfirmed, Payload: payload("confirmation_state", "confirmed")}, nil, ""},
		{"payout sent", events.Event{Type: events.EventPayoutStatusChanged, Payload: payload("new_status", "completed", "payout_amount", "180", "currency", "MXN")}, []uuid.UUID{seller}, "180 MXN"},
		{"payout processing", events.Event{Type: events.EventPayoutStatusChanged, Payload: payload("new_status", "processing")}, nil, ""},
		{"unknown", events.Event{Type: "something_else", Payload: payload()}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NotificationsFor(tt.event)
			require.Len(t, got, len(tt.users))
			for i, n := range got {
				assert.Equal(t, tt.users[i], n.UserID)
				assert.Contains(t, n.Text, tt.text)
			}
		})
	}
}
