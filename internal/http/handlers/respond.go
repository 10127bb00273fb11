package handlers

import (
	"strconv"

	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/c2c-marketplace/backend/internal/http/dto"
	"github.com/c2c-marketplace/backend/internal/middleware"
	"github.com/c2c-marketplace/backend/internal/rbac"
	"github.com/c2c-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError writes err as {error, reason, request_id} with the status of its kind.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	e := apperr.As(err)
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	if e.Code == apperr.CodeInternal || e.Code == apperr.CodeUnavailable {
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.String("reason", e.Reason),
			zap.Error(err),
		)
	}
	msg := e.Message
	if e.Code == apperr.CodeInternal {
		msg = "internal error"
	}
	return c.Status(e.HTTPStatus).JSON(dto.ErrorResponse{Error: msg, Reason: e.Reason, RequestID: reqID})
}

func badRequest(c *fiber.Ctx, reason, msg string) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, Reason: reason, RequestID: reqID})
}

// actorFrom maps the authenticated role onto the service-level actor.
func actorFrom(c *fiber.Ctx) services.Actor {
	id := middleware.GetUserID(c)
	switch middleware.GetRole(c) {
	case rbac.RoleOperator:
		return services.OperatorActor(id)
	case rbac.RoleArbitrator:
		return services.ArbitratorActor(id)
	default:
		return services.UserActor(id)
	}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

const pagingMessage = "limit and offset must be non-negative integers"

// paging reads limit and offset; ok is false for malformed or negative values.
func paging(c *fiber.Ctx) (limit, offset int, ok bool) {
	limit = 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
