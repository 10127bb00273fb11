package handlers

import (
	"github.com/c2c-marketplace/backend/internal/http/dto"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PayoutHandler struct {
	payoutService  *services.PayoutService
	profileService *services.BankProfileService
	log            *zap.Logger
}

func NewPayoutHandler(payoutService *services.PayoutService, profileService *services.BankProfileService, log *zap.Logger) *PayoutHandler {
	return &PayoutHandler{payoutService: payoutService, profileService: profileService, log: log}
}

// payoutFilter returns the filter, or the reason and message of a 400.
func payoutFilter(c *fiber.Ctx) (f repositories.PayoutFilter, reason, msg string) {
	limit, offset, ok := paging(c)
	if !ok {
		return f, "invalid_paging", pagingMessage
	}
	f = repositories.PayoutFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		f.Status = &v
	}
	if v := c.Query("seller_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, "invalid_seller_id", "invalid seller_id"
		}
		f.SellerID = &id
	}
	return f, "", ""
}

func (h *PayoutHandler) ListPayouts(c *fiber.Ctx) error {
	f, reason, msg := payoutFilter(c)
	if reason != "" {
		return badRequest(c, reason, msg)
	}

	list, err := h.payoutService.ListPayouts(c.UserContext(), actorFrom(c), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}

func (h *PayoutHandler) Summary(c *fiber.Ctx) error {
	f, reason, msg := payoutFilter(c)
	if reason != "" {
		return badRequest(c, reason, msg)
	}

	summary, err := h.payoutService.Summary(c.UserContext(), actorFrom(c), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}

func (h *PayoutHandler) GetPayout(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_payout_id", "invalid payout id")
	}

	p, err := h.payoutService.GetPayout(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *PayoutHandler) GetOrderPayout(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}

	p, err := h.payoutService.GetPayoutByOrder(c.UserContext(), actorFrom(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *PayoutHandler) AdvancePayout(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_payout_id", "invalid payout id")
	}
	var req dto.AdvancePayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	p, err := h.payoutService.AdvancePayout(c.UserContext(), actorFrom(c), id, services.AdvancePayoutInput{
		Action:    req.Action,
		Reference: req.Reference,
		Reason:    req.Reason,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *PayoutHandler) UpsertMyBankProfile(c *fiber.Ctx) error {
	var req dto.BankProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	p, err := h.profileService.UpsertBankProfile(c.UserContext(), actorFrom(c), services.BankProfileInput{
		CLABE:      req.CLABE,
		BankName:   req.BankName,
		HolderName: req.HolderName,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBankProfileResponse(p)})
}

func (h *PayoutHandler) GetMyBankProfile(c *fiber.Ctx) error {
	actor := actorFrom(c)
	p, err := h.profileService.GetBankProfile(c.UserContext(), actor, actor.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewBankProfileResponse(p)})
}

// GetSellerBankProfile returns the full account number for operators settling a payout.
func (h *PayoutHandler) GetSellerBankProfile(c *fiber.Ctx) error {
	sellerID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_seller_id", "invalid seller id")
	}

	p, err := h.profileService.GetBankProfile(c.UserContext(), actorFrom(c), sellerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}
