package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/scout/internal/httpx"
	"github.com/seuros/scout/internal/session"
)

// HandlePushDrilldown appends a drilldown level, optionally narrowing the
// level's dimension to the value.
func (a *API) HandlePushDrilldown(c fiber.Ctx, sess *session.Session) error {
	var req DrilldownRequest
	if err := httpx.ReadJSON(c, &req); err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid request body")
	}

	var err error
	if req.Narrow {
		err = sess.Store.Drill(req.Level, req.Value)
	} else {
		err = sess.Store.PushDrilldown(req.Level, req.Value)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(newSessionView(sess))
}

// HandlePopDrilldown truncates the path to :index levels, the breadcrumb
// click.
func (a *API) HandlePopDrilldown(c fiber.Ctx, sess *session.Session) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid drilldown index")
	}
	if err := sess.Store.PopToIndex(index); err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSessionView(sess))
}

// HandleClearDrilldown empties the drilldown path.
func (a *API) HandleClearDrilldown(c fiber.Ctx, sess *session.Session) error {
	sess.Store.ClearDrilldown()
	return c.JSON(newSessionView(sess))
}
