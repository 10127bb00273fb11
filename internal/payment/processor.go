package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

// Charge is the processor's view of a payment transaction.
type Charge struct {
	ID        string
	Amount    decimal.Decimal
	Currency  string
	Succeeded bool
	OrderID   string // metadata order_id, empty when the charge was created without it
}

// Processor looks up payment transactions by id.
type Processor interface {
	RetrieveCharge(ctx context.Context, id string) (*Charge, error)
}

// VerifyCharge checks that a charge settles an order of the given amount and currency.
func VerifyCharge(c *Charge, orderID string, amount decimal.Decimal, currency string) error {
	if !c.Succeeded {
		return apperr.Precondition("payment_not_succeeded", fmt.Sprintf("transaction %s has not succeeded", c.ID))
	}
	if !strings.EqualFold(c.Currency, currency) {
		return apperr.Precondition("payment_currency_mismatch",
			fmt.Sprintf("transaction currency %s does not match order currency %s", strings.ToUpper(c.Currency), currency))
	}
	if !c.Amount.Equal(amount) {
		return apperr.Precondition("payment_amount_mismatch",
			fmt.Sprintf("transaction amount %s does not match order total %s", c.Amount.StringFixed(2), amount.StringFixed(2)))
	}
	if c.OrderID != "" && c.OrderID != orderID {
		return apperr.Precondition("payment_order_mismatch", "transaction belongs to another order")
	}
	return nil
}

// ISO-4217 currencies the processor bills without a fractional unit.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

func minorExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// FromMinorUnits converts an integer amount in the currency's smallest unit.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -minorExponent(currency))
}

// ToMinorUnits is the inverse of FromMinorUnits; sub-unit remainders are rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(minorExponent(currency)).Round(0).IntPart()
}

// CheckPrecision rejects amounts with more decimal places than the currency's
// smallest unit.
func CheckPrecision(amount decimal.Decimal, currency string) error {
	if !FromMinorUnits(ToMinorUnits(amount, currency), currency).Equal(amount) {
		return apperr.Validation("invalid_amount_precision",
			fmt.Sprintf("%s allows at most %d decimal places", strings.ToUpper(currency), minorExponent(currency)))
	}
	return nil
}
