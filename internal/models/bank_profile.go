package models

import (
	"strings"
	"time"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/google/uuid"
)

const CLABELength = 18

var clabeWeights = [3]int{3, 7, 1}

// SellerBankProfile is where payouts are sent. One per seller.
type SellerBankProfile struct {
	SellerID   uuid.UUID `json:"seller_id"`
	CLABE      string    `json:"clabe"`
	BankName   string    `json:"bank_name"`
	HolderName string    `json:"holder_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ValidateCLABE checks length, digits and the control digit (weights 3,7,1 mod 10).
func ValidateCLABE(clabe string) error {
	if len(clabe) != CLABELength {
		return apperr.Validation("invalid_clabe", "CLABE must have exactly 18 digits")
	}
	sum := 0
	for i, r := range clabe {
		if r < '0' || r > '9' {
			return apperr.Validation("invalid_clabe", "CLABE must contain digits only")
		}
		if i < CLABELength-1 {
			sum += (int(r-'0') * clabeWeights[i%3]) % 10
		}
	}
	control := (10 - sum%10) % 10
	if int(clabe[CLABELength-1]-'0') != control {
		return apperr.Validation("invalid_clabe", "CLABE control digit does not match")
	}
	return nil
}

func (p *SellerBankProfile) Normalize() {
	p.CLABE = strings.ReplaceAll(strings.TrimSpace(p.CLABE), " ", "")
	p.BankName = strings.TrimSpace(p.BankName)
	p.HolderName = strings.TrimSpace(p.HolderName)
}

// Validate reports whether the profile is complete and well-formed enough to receive payouts.
func (p *SellerBankProfile) Validate() error {
	if err := ValidateCLABE(p.CLABE); err != nil {
		return err
	}
	if p.BankName == "" {
		return apperr.Validation("bank_name_required", "bank name is required")
	}
	if p.HolderName == "" {
		return apperr.Validation("holder_name_required", "account holder name is required")
	}
	return nil
}
