// Package api exposes editing sessions over HTTP.
package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/im-knots/ea-monorepo/internal/app/usecases"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	// RequireAuth rejects /api requests without a bearer token.
	RequireAuth bool
	Logger      *slog.Logger
}

// NewApp builds the fiber app serving sessions.
func NewApp(sessions *usecases.SessionManager, opts Options) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = logger.Named("api")
	}

	app := fiber.New(fiber.Config{
		AppName:      "agentbuilder",
		ErrorHandler: errorHandler,
	})
	app.Use(requestLogger(opts.Logger))

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", metricsHandler)

	h := &handlers{sessions: sessions, logger: opts.Logger}

	v1 := app.Group("/api/v1")
	if opts.RequireAuth {
		v1.Use(fiber.Handler(bearerAuth))
	}

	v1.Get("/catalog", h.catalog)

	v1.Post("/sessions", h.createSession)
	v1.Get("/sessions/:id", h.getSession)
	v1.Delete("/sessions/:id", h.closeSession)
	v1.Put("/sessions/:id/meta", h.updateMeta)
	v1.Put("/sessions/:id/json", h.editJSON)
	v1.Post("/sessions/:id/save", h.save)
	v1.Post("/sessions/:id/run", h.run)
	v1.Post("/sessions/:id/stop", h.stop)

	v1.Post("/sessions/:id/nodes", h.addNode)
	v1.Get("/sessions/:id/nodes/:node", h.getNode)
	v1.Delete("/sessions/:id/nodes/:node", h.removeNode)
	v1.Put("/sessions/:id/nodes/:node/alias", h.updateAlias)
	v1.Put("/sessions/:id/nodes/:node/position", h.moveNode)
	v1.Get("/sessions/:id/nodes/:node/fields", h.fields)
	v1.Put("/sessions/:id/nodes/:node/parameters/:key", h.setParameter)
	v1.Post("/sessions/:id/nodes/:node/parameters/:key/toggle", h.toggleParameter)
	v1.Put("/sessions/:id/nodes/:node/parameters/:key/items/:index", h.setListItem)

	v1.Post("/sessions/:id/edges", h.connect)
	v1.Delete("/sessions/:id/edges/:edge", h.removeEdge)

	v1.Get("/sessions/:id/drafts", h.listDrafts)
	v1.Post("/sessions/:id/drafts", h.saveDraft)
	v1.Post("/sessions/:id/drafts/:draft/restore", h.restoreDraft)
	v1.Delete("/sessions/:id/drafts/:draft", h.deleteDraft)

	return app
}

func errorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return writeError(c, err)
}

func metricsHandler(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, metricsContentType)
	writePrometheus(c)
	return nil
}
