package models

import (
	"testing"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidOrderTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy paths
		{OrderStatusPendingPayment, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusMeetupArranged, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCompleted, true},
		{OrderStatusShipped, OrderStatusCompleted, true},
		{OrderStatusMeetupArranged, OrderStatusCompleted, true},
		{OrderStatusPaid, OrderStatusCompleted, true},

		// Disputes
		{OrderStatusPaid, OrderStatusDisputed, true},
		{OrderStatusMeetupArranged, OrderStatusDisputed, true},
		{OrderStatusShipped, OrderStatusDisputed, true},
		{OrderStatusDelivered, OrderStatusDisputed, true},
		{OrderStatusDisputed, OrderStatusResolvedRefund, true},
		{OrderStatusDisputed, OrderStatusResolvedRelease, true},

		// Cancel / refund
		{OrderStatusPendingPayment, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusRefunded, true},

		// Invalid
		{OrderStatusPendingPayment, OrderStatusDisputed, false},
		{OrderStatusCancelled, OrderStatusDisputed, false},
		{OrderStatusCompleted, OrderStatusDisputed, false},
		{OrderStatusResolvedRefund, OrderStatusDisputed, false},
		{OrderStatusResolvedRelease, OrderStatusDisputed, false},
		{OrderStatusDisputed, OrderStatusCompleted, false},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusPendingPayment, OrderStatusShipped, false},
		{OrderStatusMeetupArranged, OrderStatusShipped, false},
		{OrderStatusCompleted, OrderStatusRefunded, false},
		{"nonexistent", OrderStatusPaid, false},
		{OrderStatusPaid, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidOrderTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidOrderTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []string{OrderStatusCompleted, OrderStatusResolvedRefund, OrderStatusResolvedRelease, OrderStatusCancelled, OrderStatusRefunded}
	for _, s := range terminal {
		if !IsTerminalOrderStatus(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	if IsTerminalOrderStatus(OrderStatusDisputed) {
		t.Error("disputed should not be terminal")
	}
	if IsTerminalOrderStatus("nonexistent") {
		t.Error("unknown status should not be terminal")
	}
}

func newTestOrder(orderType, status string) *Order {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	return &Order{
		ID:            uuid.New(),
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		TotalAmount:   decimal.NewFromInt(200),
		Currency:      "MXN",
		OrderType:     orderType,
		PaymentMethod: PaymentMethodOnline,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderValidate(t *testing.T) {
	base := newTestOrder(OrderTypeMeetup, OrderStatusPendingPayment)
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(o *Order)
		reason string
	}{
		{"same party", func(o *Order) { o.SellerID = o.BuyerID }, "buyer_is_seller"},
		{"zero amount", func(o *Order) { o.TotalAmount = decimal.Zero }, "invalid_amount"},
		{"negative amount", func(o *Order) { o.TotalAmount = decimal.NewFromInt(-5) }, "invalid_amount"},
		{"lowercase currency", func(o *Order) { o.Currency = "mxn" }, "invalid_currency"},
		{"bad order type", func(o *Order) { o.OrderType = "pickup" }, "invalid_order_type"},
		{"bad payment method", func(o *Order) { o.PaymentMethod = "crypto" }, "invalid_payment_method"},
		{"cash shipping", func(o *Order) {
			o.OrderType = OrderTypeShipping
			o.PaymentMethod = PaymentMethodCash
		}, "cash_requires_meetup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base.Clone()
			tt.mutate(o)
			err := o.Validate()
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Equal(t, tt.reason, apperr.ReasonOf(err))
		})
	}
}

func TestMarkPaidIsIdempotentOnSameTransaction(t *testing.T) {
	o := newTestOrder(OrderTypeShipping, OrderStatusPendingPayment)
	now := time.Now()

	already, err := o.MarkPaid("pi_123", now)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, OrderStatusPaid, o.Status)
	require.NotNil(t, o.PaidAt)

	already, err = o.MarkPaid("pi_123", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, now, *o.PaidAt)

	_, err = o.MarkPaid("pi_other", now)
	assert.True(t, apperr.IsPrecondition(err))
	assert.Equal(t, "already_paid", apperr.ReasonOf(err))
}

func TestMarkPaidOnCancelledOrder(t *testing.T) {
	o := newTestOrder(OrderTypeShipping, OrderStatusCancelled)
	_, err := o.MarkPaid("pi_123", time.Now())
	assert.True(t, apperr.IsPrecondition(err))
	assert.Nil(t, o.PaymentTxID)
}

func TestArrangeMeetupOverwrites(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusPaid)
	first := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, o.ArrangeMeetup("Metro Insurgentes", first, time.Now()))
	assert.Equal(t, OrderStatusMeetupArranged, o.Status)

	require.NoError(t, o.ArrangeMeetup("Parque México", second, time.Now()))
	assert.Equal(t, OrderStatusMeetupArranged, o.Status)
	assert.Equal(t, "Parque México", *o.MeetupLocation)
	assert.Equal(t, second, *o.MeetupTime)
}

func TestArrangeMeetupRejections(t *testing.T) {
	at := time.Now().Add(24 * time.Hour)

	shipping := newTestOrder(OrderTypeShipping, OrderStatusPaid)
	assert.Equal(t, "not_meetup_order", apperr.ReasonOf(shipping.ArrangeMeetup("Centro", at, time.Now())))

	disputed := newTestOrder(OrderTypeMeetup, OrderStatusDisputed)
	assert.Equal(t, "order_disputed", apperr.ReasonOf(disputed.ArrangeMeetup("Centro", at, time.Now())))

	completed := newTestOrder(OrderTypeMeetup, OrderStatusCompleted)
	assert.True(t, apperr.IsPrecondition(completed.ArrangeMeetup("Centro", at, time.Now())))

	paid := newTestOrder(OrderTypeMeetup, OrderStatusPaid)
	assert.True(t, apperr.IsValidation(paid.ArrangeMeetup("  ", at, time.Now())))
}

func TestShipIsWriteOnce(t *testing.T) {
	o := newTestOrder(OrderTypeShipping, OrderStatusPaid)
	require.NoError(t, o.Ship("Estafeta", "EST123", time.Now()))
	assert.Equal(t, OrderStatusShipped, o.Status)

	err := o.Ship("DHL", "DHL999", time.Now())
	assert.True(t, apperr.IsPrecondition(err))
	assert.Equal(t, "shipping_already_set", apperr.ReasonOf(err))
	assert.Equal(t, "Estafeta", *o.ShippingCarrier)
	assert.Equal(t, "EST123", *o.TrackingNumber)
}

func TestShipMeetupOrderRejected(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusPaid)
	err := o.Ship("Estafeta", "EST123", time.Now())
	assert.True(t, apperr.IsPrecondition(err))
	assert.Equal(t, "not_shipping_order", apperr.ReasonOf(err))
}

func TestConfirmInEitherOrderCompletes(t *testing.T) {
	for _, order := range [][2]string{{PartyBuyer, PartySeller}, {PartySeller, PartyBuyer}} {
		t.Run(order[0]+"_first", func(t *testing.T) {
			o := newTestOrder(OrderTypeShipping, OrderStatusShipped)

			completed, err := o.Confirm(order[0], time.Now())
			require.NoError(t, err)
			assert.False(t, completed)
			assert.Equal(t, ConfirmationPartiallyConfirmed, o.ConfirmationState())
			assert.Equal(t, []string{order[0]}, o.ConfirmedBy())

			completed, err = o.Confirm(order[1], time.Now())
			require.NoError(t, err)
			assert.True(t, completed)
			assert.Equal(t, OrderStatusCompleted, o.Status)
			assert.Equal(t, ConfirmationConfirmed, o.ConfirmationState())
			require.NotNil(t, o.CompletedAt)
			require.NotNil(t, o.PayoutStatus)
			assert.Equal(t, PayoutStatusPending, *o.PayoutStatus)
			assert.Equal(t, OrderStatusCompletedPendingPayout, o.DisplayStatus())
		})
	}
}

func TestConfirmTwiceKeepsOriginalTimestamp(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusMeetupArranged)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := o.Confirm(PartyBuyer, first)
	require.NoError(t, err)

	_, err = o.Confirm(PartyBuyer, first.Add(time.Hour))
	assert.True(t, apperr.IsPrecondition(err))
	assert.Equal(t, "already_confirmed", apperr.ReasonOf(err))
	assert.Equal(t, first, *o.BuyerConfirmedAt)
}

func TestConfirmableStates(t *testing.T) {
	tests := []struct {
		orderType string
		status    string
		expected  bool
	}{
		{OrderTypeMeetup, OrderStatusPaid, true},
		{OrderTypeShipping, OrderStatusPaid, false},
		{OrderTypeMeetup, OrderStatusMeetupArranged, true},
		{OrderTypeShipping, OrderStatusShipped, true},
		{OrderTypeShipping, OrderStatusDelivered, true},
		{OrderTypeMeetup, OrderStatusPendingPayment, false},
		{OrderTypeMeetup, OrderStatusDisputed, false},
		{OrderTypeMeetup, OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.orderType+"/"+tt.status, func(t *testing.T) {
			o := newTestOrder(tt.orderType, tt.status)
			assert.Equal(t, tt.expected, o.IsConfirmable())
		})
	}
}

func TestDisputeFreezesConfirmationsButKeepsFlags(t *testing.T) {
	o := newTestOrder(OrderTypeShipping, OrderStatusShipped)
	_, err := o.Confirm(PartyBuyer, time.Now())
	require.NoError(t, err)

	require.NoError(t, o.EnterDispute(time.Now()))
	assert.Equal(t, OrderStatusDisputed, o.Status)
	assert.NotNil(t, o.BuyerConfirmedAt)

	_, err = o.Confirm(PartySeller, time.Now())
	assert.Equal(t, "order_disputed", apperr.ReasonOf(err))
	assert.Nil(t, o.SellerConfirmedAt)
}

func TestEnterDisputeGuards(t *testing.T) {
	for _, s := range []string{OrderStatusPendingPayment, OrderStatusCancelled, OrderStatusCompleted, OrderStatusResolvedRefund, OrderStatusResolvedRelease} {
		o := newTestOrder(OrderTypeMeetup, s)
		err := o.EnterDispute(time.Now())
		assert.True(t, apperr.IsPrecondition(err), s)
		assert.Equal(t, s, o.Status)
	}

	disputed := newTestOrder(OrderTypeMeetup, OrderStatusDisputed)
	assert.True(t, apperr.IsConflict(disputed.EnterDispute(time.Now())))
}

func TestResolveDisputeRelease(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusDisputed)
	require.NoError(t, o.ResolveDispute(DisputeActionRelease, time.Now()))
	assert.Equal(t, OrderStatusResolvedRelease, o.Status)
	assert.Equal(t, PayoutStatusPending, *o.PayoutStatus)

	refund := newTestOrder(OrderTypeMeetup, OrderStatusDisputed)
	require.NoError(t, refund.ResolveDispute(DisputeActionRefund, time.Now()))
	assert.Equal(t, OrderStatusResolvedRefund, refund.Status)
	assert.Nil(t, refund.PayoutStatus)
	assert.Equal(t, OrderStatusResolvedRefund, refund.DisplayStatus())
}

func TestCancelOnlyBeforePayment(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusPendingPayment)
	require.NoError(t, o.Cancel("buyer changed mind", time.Now()))
	assert.Equal(t, OrderStatusCancelled, o.Status)

	paid := newTestOrder(OrderTypeMeetup, OrderStatusPaid)
	assert.True(t, apperr.IsPrecondition(paid.Cancel("", time.Now())))
}

func TestRefundFromFundHeldStates(t *testing.T) {
	o := newTestOrder(OrderTypeShipping, OrderStatusShipped)
	require.NoError(t, o.Refund("item lost", time.Now()))
	assert.Equal(t, OrderStatusRefunded, o.Status)

	disputed := newTestOrder(OrderTypeShipping, OrderStatusDisputed)
	assert.Equal(t, "order_disputed", apperr.ReasonOf(disputed.Refund("lost", time.Now())))

	pending := newTestOrder(OrderTypeShipping, OrderStatusPaid)
	assert.True(t, apperr.IsValidation(pending.Refund(" ", time.Now())))
}

func TestDisplayStatusAfterPayoutCompleted(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusCompleted)
	ps := PayoutStatusCompleted
	o.PayoutStatus = &ps
	assert.Equal(t, OrderStatusCompleted, o.DisplayStatus())

	view := o.View()
	assert.Equal(t, OrderStatusCompleted, view.DisplayStatus)
	assert.Equal(t, ConfirmationUnconfirmed, view.ConfirmationState)
	assert.Empty(t, view.ConfirmedBy)
}

func TestCloneDoesNotShareFlags(t *testing.T) {
	o := newTestOrder(OrderTypeMeetup, OrderStatusPaid)
	c := o.Clone()
	_, err := c.Confirm(PartyBuyer, time.Now())
	require.NoError(t, err)
	assert.Nil(t, o.BuyerConfirmedAt)
}
