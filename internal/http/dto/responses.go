package dto

import "github.com/c2c-marketplace/backend/internal/models"

type ErrorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

func OrderViews(orders []models.Order) []models.OrderView {
	out := make([]models.OrderView, len(orders))
	for i := range orders {
		out[i] = orders[i].View()
	}
	return out
}

type DisputeResponse struct {
	Dispute *models.Dispute  `json:"dispute"`
	Order   models.OrderView `json:"order"`
}

// BankProfileResponse masks the account number except its last four digits.
type BankProfileResponse struct {
	SellerID    string `json:"seller_id"`
	CLABEMasked string `json:"clabe_masked"`
	BankName    string `json:"bank_name"`
	HolderName  string `json:"holder_name"`
}

func NewBankProfileResponse(p *models.SellerBankProfile) BankProfileResponse {
	masked := p.CLABE
	if n := len(masked); n > 4 {
		masked = "**************" + masked[n-4:]
	}
	return BankProfileResponse{
		SellerID:    p.SellerID.String(),
		CLABEMasked: masked,
		BankName:    p.BankName,
		HolderName:  p.HolderName,
	}
}
