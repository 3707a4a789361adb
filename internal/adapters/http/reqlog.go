package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
)

// RequestLoggerMiddleware stores a logger carrying the request ID in the
// request's user context. Handlers and services pick it up with
// logging.FromContext.
func RequestLoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		l := slog.Default().With("request_id", rid)
		c.SetUserContext(logging.WithLogger(c.UserContext(), l))
		return c.Next()
	}
}
