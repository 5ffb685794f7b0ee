package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/httpx"
	"github.com/seuros/scout/internal/session"
)

// HandleCreateSession starts a session initialized from the given query.
func (a *API) HandleCreateSession(c fiber.Ctx) error {
	var req CreateSessionRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	sess := a.registry.Create(req.Query)
	return c.Status(http.StatusCreated).JSON(newSessionView(sess))
}

// HandleGetSession returns the session's current state.
func (a *API) HandleGetSession(c fiber.Ctx, sess *session.Session) error {
	return c.JSON(newSessionView(sess))
}

// HandleDeleteSession ends a session.
func (a *API) HandleDeleteSession(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid session ID")
	}
	if !a.registry.Delete(id) {
		return httpx.Error(c, http.StatusNotFound, "Session not found")
	}
	return c.SendStatus(http.StatusNoContent)
}

// HandleSetDateRange replaces the date range.
func (a *API) HandleSetDateRange(c fiber.Ctx, sess *session.Session) error {
	var req DateRangeRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	from, ok := parseBound(req.From)
	if !ok {
		return httpx.Error(c, http.StatusBadRequest, "Invalid from date")
	}
	to, ok := parseBound(req.To)
	if !ok {
		return httpx.Error(c, http.StatusBadRequest, "Invalid to date")
	}

	sess.Store.SetDateRange(from, to)
	return c.JSON(newSessionView(sess))
}

// parseBound reads an optional date. Null and "" clear the bound.
func parseBound(raw *string) (*time.Time, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	t, ok := filters.ParseTime(strings.TrimSpace(*raw))
	if !ok {
		return nil, false
	}
	return &t, true
}

// HandleSetDimension replaces one dimension's selection.
func (a *API) HandleSetDimension(c fiber.Ctx, sess *session.Session) error {
	var req DimensionRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := sess.Store.SetDimension(c.Params("dimension"), req.Values); err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSessionView(sess))
}

// HandleClearDownstream clears the dimensions below one in its hierarchies.
func (a *API) HandleClearDownstream(c fiber.Ctx, sess *session.Session) error {
	if err := sess.Store.ClearDownstream(c.Params("dimension")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSessionView(sess))
}

// HandleReset returns the session to the default state.
func (a *API) HandleReset(c fiber.Ctx, sess *session.Session) error {
	sess.Store.ResetFilters()
	return c.JSON(newSessionView(sess))
}

// HandleLoadLocation navigates the session to a new URL query, as a page
// load or back/forward navigation would.
func (a *API) HandleLoadLocation(c fiber.Ctx, sess *session.Session) error {
	var req LocationRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	sess.Store.LoadQuery(strings.TrimPrefix(req.Query, "?"))
	return c.JSON(newSessionView(sess))
}
