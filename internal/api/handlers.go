package api

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/app/usecases"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
)

type handlers struct {
	sessions *usecases.SessionManager
	logger   *slog.Logger
}

func (h *handlers) session(c fiber.Ctx) (*usecases.Session, error) {
	return h.sessions.Get(c.Params("id"))
}

// requestContext carries the caller's bearer token to remote calls.
func requestContext(c fiber.Ctx) context.Context {
	token, _ := c.Locals(localToken).(string)
	return dto.WithCredential(c.Context(), token)
}

// view answers with the session state after a mutation.
func (h *handlers) view(c fiber.Ctx, s *usecases.Session, status int) error {
	return c.Status(status).JSON(s.View())
}

func (h *handlers) catalog(c fiber.Ctx) error {
	cat := h.sessions.Context().Catalog
	if cat == nil {
		return writeError(c, dto.ErrNoCatalog)
	}
	if filter := c.Query("filter"); filter != "" {
		return c.JSON(cat.Filter(filter))
	}
	return c.JSON(cat.Entries())
}

func (h *handlers) createSession(c fiber.Ctx) error {
	var req createSessionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	s, err := h.sessions.Create(requestContext(c), req.CreatorID, req.AgentID)
	if err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusCreated)
}

func (h *handlers) getSession(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) closeSession(c fiber.Ctx) error {
	if err := h.sessions.Close(c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) updateMeta(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req metaRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Name != nil {
		s.SetName(*req.Name)
	}
	if req.Description != nil {
		s.SetDescription(*req.Description)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) editJSON(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req jsonEditRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := s.EditJSON(req.Text); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) save(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := s.Save(requestContext(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"agent_id": id, "session": s.View()})
}

func (h *handlers) run(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	job, err := s.Start(requestContext(c))
	if err != nil {
		return writeError(c, err)
	}
	h.logger.Info("job launched", slog.String("session", s.ID()), slog.String("job", job))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_name": job, "session": s.View()})
}

func (h *handlers) stop(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	s.StopPolling()
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) addNode(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req addNodeRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	node, err := s.AddNode(req.CatalogID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *handlers) getNode(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	node, err := s.Node(c.Params("node"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(node)
}

func (h *handlers) removeNode(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.RemoveNode(c.Params("node")); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) updateAlias(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req aliasRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := s.UpdateAlias(c.Params("node"), req.Alias); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) moveNode(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req positionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := s.MoveNode(c.Params("node"), graph.Position{X: req.X, Y: req.Y}); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) fields(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	fields, err := s.Fields(c.Params("node"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fields)
}

func (h *handlers) setParameter(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req parameterRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := s.SetParameter(c.Params("node"), c.Params("key"), req.Value); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) toggleParameter(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.ToggleParameter(c.Params("node"), c.Params("key")); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) setListItem(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
	}
	var req listItemRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	node, key := c.Params("node"), c.Params("key")
	if req.Field != "" {
		err = s.SetListField(node, key, index, req.Field, req.Value)
	} else {
		err = s.SetListItem(node, key, index, req.Value)
	}
	if err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) connect(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req connectRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	edge, err := s.Connect(req.Source, req.Target)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *handlers) removeEdge(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.RemoveEdge(c.Params("edge")); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

type draftSummary struct {
	ID      string `json:"id"`
	AgentID string `json:"agent_id,omitempty"`
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
	Saved   string `json:"saved_at"`
}

func (h *handlers) listDrafts(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
	}
	drafts, err := s.ListDrafts(requestContext(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]draftSummary, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, draftSummary{
			ID:      d.ID,
			AgentID: d.AgentID,
			Name:    d.Meta.Name,
			Label:   d.Label,
			Nodes:   len(d.Graph.Nodes),
			Edges:   len(d.Graph.Edges),
			Saved:   d.Timestamp.Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}

func (h *handlers) saveDraft(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	var req draftRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return err
		}
	}
	d, err := s.SaveDraft(requestContext(c), req.Label)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": d.ID, "label": d.Label})
}

func (h *handlers) restoreDraft(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.RestoreDraft(requestContext(c), c.Params("draft")); err != nil {
		return writeError(c, err)
	}
	return h.view(c, s, fiber.StatusOK)
}

func (h *handlers) deleteDraft(c fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.DeleteDraft(requestContext(c), c.Params("draft")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
