package middleware

import (
	"strings"

	"github.com/c2c-marketplace/backend/internal/auth"
	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		role := claims.Role
		if !rbac.IsValidRole(role) {
			role = rbac.RoleUser
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxRole, role)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// RequirePermission rejects requests whose role lacks permission. Every
// attempt at an operation that moves held funds is logged.
func RequirePermission(permission string, log *zap.Logger) fiber.Handler {
	financial := rbac.IsFinancialOperation(permission)
	return func(c *fiber.Ctx) error {
		allowed := rbac.HasPermission(GetRole(c), permission)
		if financial {
			reqID, _ := c.Locals(CtxRequestID).(string)
			log.Info("financial operation",
				zap.String("request_id", reqID),
				zap.String("user_id", GetUserID(c).String()),
				zap.String("role", GetRole(c)),
				zap.String("permission", permission),
				zap.String("path", c.Path()),
				zap.Bool("allowed", allowed),
			)
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":  "insufficient role",
				"reason": "missing_permission",
			})
		}
		return c.Next()
	}
}
