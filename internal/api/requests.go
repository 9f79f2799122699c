package api

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/im-knots/ea-monorepo/pkg/validation"
)

type createSessionRequest struct {
	CreatorID string `json:"creator_id" validate:"required"`
	AgentID   string `json:"agent_id"`
}

type metaRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type jsonEditRequest struct {
	Text string `json:"text" validate:"required"`
}

type addNodeRequest struct {
	CatalogID string `json:"catalog_id" validate:"required"`
}

type aliasRequest struct {
	Alias string `json:"alias"`
}

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type parameterRequest struct {
	Value any `json:"value"`
}

// listItemRequest writes a scalar item, or one field of an object item
// when Field is set.
type listItemRequest struct {
	Value string `json:"value"`
	Field string `json:"field"`
}

type connectRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

type draftRequest struct {
	Label string `json:"label" validate:"max=200"`
}

// bindJSON decodes and validates a request body. Failures are reported as
// 400 through the error handler.
func bindJSON(c fiber.Ctx, out any) error {
	if err := c.Bind().JSON(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return validation.Struct(out)
}
