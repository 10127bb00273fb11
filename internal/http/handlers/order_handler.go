package handlers

import (
	"github.com/c2c-marketplace/backend/internal/http/dto"
	"github.com/c2c-marketplace/backend/internal/repositories"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService *services.OrderService
	log          *zap.Logger
}

func NewOrderHandler(orderService *services.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, log: log}
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	in := services.CreateOrderInput{
		Currency:      req.Currency,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
	}
	var err error
	if req.SellerID != "" {
		if in.SellerID, err = uuid.Parse(req.SellerID); err != nil {
			return badRequest(c, "invalid_seller_id", "invalid seller_id")
		}
	}
	if in.ProductID, err = uuid.Parse(req.ProductID); err != nil {
		return badRequest(c, "invalid_product_id", "invalid product_id")
	}
	if req.NegotiationID != nil && *req.NegotiationID != "" {
		nid, err := uuid.Parse(*req.NegotiationID)
		if err != nil {
			return badRequest(c, "invalid_negotiation_id", "invalid negotiation_id")
		}
		in.NegotiationID = &nid
	}
	if req.TotalAmount != "" {
		if in.TotalAmount, err = decimal.NewFromString(req.TotalAmount); err != nil {
			return badRequest(c, "invalid_amount", "invalid total_amount")
		}
	}

	o, err := h.orderService.CreateOrder(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}

	o, err := h.orderService.GetOrder(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	limit, offset, ok := paging(c)
	if !ok {
		return badRequest(c, "invalid_paging", pagingMessage)
	}
	filter := repositories.OrderFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("role"); v != "" {
		userID := actorFrom(c).ID
		switch v {
		case "buyer":
			filter.BuyerID = &userID
		case "seller":
			filter.SellerID = &userID
		}
	}

	orders, err := h.orderService.ListOrders(c.UserContext(), actorFrom(c), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.OrderViews(orders)})
}

func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.ConfirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	o, err := h.orderService.ConfirmPayment(c.UserContext(), actorFrom(c), id, req.TransactionID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) ConfirmCashPayment(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.ConfirmCashPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	o, err := h.orderService.ConfirmCashPayment(c.UserContext(), actorFrom(c), id, req.Receipt)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) ArrangeMeetup(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.ArrangeMeetupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	o, err := h.orderService.ArrangeMeetup(c.UserContext(), actorFrom(c), id, req.Location, req.Time)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) ShipOrder(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.ShipOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	o, err := h.orderService.ShipOrder(c.UserContext(), actorFrom(c), id, req.Carrier, req.TrackingNumber)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) MarkDelivered(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}

	o, err := h.orderService.MarkDelivered(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) ConfirmCompletion(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}

	o, err := h.orderService.ConfirmCompletion(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.ReasonRequest
	_ = c.BodyParser(&req)

	o, err := h.orderService.CancelOrder(c.UserContext(), actorFrom(c), id, req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) RefundOrder(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request")
	}

	o, err := h.orderService.RefundOrder(c.UserContext(), actorFrom(c), id, req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: o.View()})
}

func (h *OrderHandler) GetOrderEvents(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "invalid_order_id", "invalid order id")
	}
	limit, offset, ok := paging(c)
	if !ok {
		return badRequest(c, "invalid_paging", pagingMessage)
	}

	logs, err := h.orderService.GetOrderEvents(c.UserContext(), actorFrom(c), id, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
