package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
)

const (
	metricsContentType = metrics.ContentType
	localToken         = "token"
)

func writePrometheus(c fiber.Ctx) {
	metrics.WritePrometheus(c.Response().BodyWriter())
}

// bearerAuth requires "Authorization: Bearer <token>". Token issuance and
// verification belong to the platform's auth service; here the token is
// only required and made available to handlers.
func bearerAuth(c fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}
	c.Locals(localToken, strings.TrimSpace(token))
	return c.Next()
}

func requestLogger(log *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		log.Debug("request",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		)
		return err
	}
}
