package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/scout/internal/httpx"
	"github.com/seuros/scout/internal/session"
)

// HandleSetCrossFilter records a chart-local selection. The shared filters
// and the URL are untouched.
func (a *API) HandleSetCrossFilter(c fiber.Ctx, sess *session.Session) error {
	var req CrossFilterRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	sess.Store.CrossFilters().SetSelection(c.Params("chart_id"), req.Values)
	return c.JSON(newSessionView(sess))
}

// HandleClearCrossFilter drops one chart's selection.
func (a *API) HandleClearCrossFilter(c fiber.Ctx, sess *session.Session) error {
	sess.Store.CrossFilters().ClearSelection(c.Params("chart_id"))
	return c.JSON(newSessionView(sess))
}

// HandleClearCrossFilters drops every chart selection.
func (a *API) HandleClearCrossFilters(c fiber.Ctx, sess *session.Session) error {
	sess.Store.CrossFilters().ClearAll()
	return c.JSON(newSessionView(sess))
}

// HandlePromoteCrossFilter copies a chart selection into a shared dimension
// filter.
func (a *API) HandlePromoteCrossFilter(c fiber.Ctx, sess *session.Session) error {
	var req PromoteRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	promoted, err := sess.Store.PromoteSelection(c.Params("chart_id"), req.Dimension)
	if err != nil {
		return writeError(c, err)
	}
	if !promoted {
		return httpx.Error(c, http.StatusNotFound, "Chart has no selection")
	}
	return c.JSON(newSessionView(sess))
}
