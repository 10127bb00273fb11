package dto

import "time"

// Orders

type CreateOrderRequest struct {
	SellerID      string  `json:"seller_id"`
	ProductID     string  `json:"product_id"`
	NegotiationID *string `json:"negotiation_id,omitempty"`
	TotalAmount   string  `json:"total_amount,omitempty"` // optional, checked against the agreed price
	Currency      string  `json:"currency,omitempty"`
	OrderType     string  `json:"order_type"`     // meetup / shipping
	PaymentMethod string  `json:"payment_method"` // online / cash
}

type ConfirmPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

type ConfirmCashPaymentRequest struct {
	Receipt string `json:"receipt"`
}

type ArrangeMeetupRequest struct {
	Location string    `json:"location"`
	Time     time.Time `json:"time"`
}

type ShipOrderRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

// Negotiations

type ProposePriceRequest struct {
	ConversationID string `json:"conversation_id"`
	ProductID      string `json:"product_id"`
	ProposedPrice  string `json:"proposed_price"`
}

type RespondNegotiationRequest struct {
	Action       string  `json:"action"` // accept / reject / counter
	CounterPrice *string `json:"counter_price,omitempty"`
}

// Disputes

type OpenDisputeRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

type ResolveDisputeRequest struct {
	Action string `json:"action"` // refund / release
	Note   string `json:"note"`
}

// Payouts

type AdvancePayoutRequest struct {
	Action    string  `json:"action"` // mark_processing / mark_completed / mark_failed / retry
	Reference *string `json:"reference,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

type BankProfileRequest struct {
	CLABE      string `json:"clabe"`
	BankName   string `json:"bank_name"`
	HolderName string `json:"holder_name"`
}
