package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware is a fixed-window counter per route and caller. Callers
// are keyed by user id once authenticated, by IP otherwise.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := c.IP()
		if id := GetUserID(c); id != uuid.Nil {
			caller = id.String()
		}
		key := fmt.Sprintf("rl:%s:%s:%s", c.Method(), c.Path(), caller)

		ctx := c.UserContext()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":  "rate limit exceeded",
				"reason": "rate_limited",
			})
		}

		return c.Next()
	}
}
