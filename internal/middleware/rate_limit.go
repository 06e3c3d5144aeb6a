package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit builds a named limiter. Authenticated requests are bucketed per
// user so one spammer cannot exhaust the shared IP budget behind a NAT;
// anonymous traffic (the login endpoint) falls back to the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
				return identifier + ":u" + strconv.FormatUint(uint64(userID), 10)
			}
			return identifier + ":" + c.IP()
		},
	})
}
