package handlers

import (
	"github.com/c2c-marketplace/backend/internal/http/dto"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type NegotiationHandler struct {
	negotiationService *services.NegotiationService
	log                *zap.Logger
}

func NewNegotiationHandler(negotiationService *services.NegotiationService, log *zap.Logger) *NegotiationHandler {
	return &NegotiationHandler{negotiationService: negotiationService, log: log}
}

func (h *NegotiationHandler) Propose(c *fiber.Ctx) error {
	var req dto.ProposePriceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return badRequest(c, "invalid_conversation_id", "invalid conversation_id")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return badRequest(c, "invalid_product_id", "invalid product_id")
	}
	price, err := decimal.NewFromString(req.ProposedPrice)
	if err != nil {
		return badRequest(c, "invalid_price", "proposed_price must be a decimal number")
	}

	n, err := h.negotiationService.Propose(c.UserContext(), actorFrom(c), convID, productID, price)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: n})
}

func (h *NegotiationHandler) Respond(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_negotiation_id", "invalid negotiation id")
	}
	var req dto.RespondNegotiationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	var counter *decimal.Decimal
	if req.CounterPrice != nil && *req.CounterPrice != "" {
		p, err := decimal.NewFromString(*req.CounterPrice)
		if err != nil {
			return badRequest(c, "invalid_price", "counter_price must be a decimal number")
		}
		counter = &p
	}

	n, err := h.negotiationService.Respond(c.UserContext(), actorFrom(c), id, req.Action, counter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: n})
}

func (h *NegotiationHandler) GetNegotiation(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_negotiation_id", "invalid negotiation id")
	}

	n, err := h.negotiationService.GetNegotiation(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: n})
}

func (h *NegotiationHandler) ListOffers(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_negotiation_id", "invalid negotiation id")
	}

	offers, err := h.negotiationService.ListOffers(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}

func (h *NegotiationHandler) ListByConversation(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_conversation_id", "invalid conversation id")
	}

	list, err := h.negotiationService.ListByConversation(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}
