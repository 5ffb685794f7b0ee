package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/scout/internal/httpx"
	"github.com/seuros/scout/internal/session"
)

const maxViewNameLength = 100

// HandleListViews returns every saved view.
func (a *API) HandleListViews(c fiber.Ctx) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	views, err := a.repo.ListViews(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(views)
}

// HandleSaveView stores the session's current URL query under a name.
// Cross-filter selections are chart-local and are not saved.
func (a *API) HandleSaveView(c fiber.Ctx, sess *session.Session) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	var req SaveViewRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxViewNameLength {
		return httpx.Error(c, http.StatusBadRequest, "View name must be 1-100 characters")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := a.repo.SaveView(ctx, name, sess.Store.Query())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(view)
}

// HandleApplyView loads a saved view's query into the session.
func (a *API) HandleApplyView(c fiber.Ctx, sess *session.Session) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := a.repo.GetView(ctx, c.Params("name"))
	if err != nil {
		return writeError(c, err)
	}
	sess.Store.LoadQuery(view.Query)
	return c.JSON(newSessionView(sess))
}

// HandleDeleteView removes a saved view.
func (a *API) HandleDeleteView(c fiber.Ctx) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := a.repo.DeleteView(ctx, c.Params("name")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}
