package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/im-knots/ea-monorepo/internal/adapters/rest"
	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
	"github.com/im-knots/ea-monorepo/internal/core/parameter"
	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
	"github.com/im-knots/ea-monorepo/pkg/validation"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{dto.ErrSessionNotFound, http.StatusNotFound},
	{graph.ErrNodeNotFound, http.StatusNotFound},
	{graph.ErrEdgeNotFound, http.StatusNotFound},
	{catalog.ErrEntryNotFound, http.StatusNotFound},
	{snapshot.ErrSnapshotNotFound, http.StatusNotFound},

	{graph.ErrDuplicateAlias, http.StatusConflict},
	{dto.ErrAgentIDChanged, http.StatusConflict},
	{dto.ErrAgentNotSaved, http.StatusConflict},
	{agent.ErrDuplicateAlias, http.StatusConflict},

	{agent.ErrInvalidJSON, http.StatusBadRequest},
	{agent.ErrUnknownNodeType, http.StatusBadRequest},
	{agent.ErrUnknownAlias, http.StatusBadRequest},
	{graph.ErrSourceNodeNotFound, http.StatusBadRequest},
	{graph.ErrTargetNodeNotFound, http.StatusBadRequest},
	{parameter.ErrUnknownParameter, http.StatusBadRequest},
	{parameter.ErrTypeMismatch, http.StatusBadRequest},
	{parameter.ErrInvalidChoice, http.StatusBadRequest},
	{parameter.ErrUnsupportedKind, http.StatusBadRequest},
	{parameter.ErrIndexOutOfRange, http.StatusBadRequest},
	{dto.ErrMissingCreator, http.StatusBadRequest},

	{dto.ErrNoDraftStore, http.StatusNotImplemented},
	{dto.ErrNoCatalog, http.StatusServiceUnavailable},
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) || errors.Is(err, dto.ErrRemote) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		body["error"] = "validation failed"
		body["details"] = verrs
	}
	return c.Status(status).JSON(body)
}
