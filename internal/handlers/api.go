package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/database"
	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/httpx"
	"github.com/seuros/scout/internal/logging"
	"github.com/seuros/scout/internal/realtime"
	"github.com/seuros/scout/internal/session"
)

// Repository is the data source the dashboard and saved-view endpoints read.
type Repository interface {
	Summary(ctx context.Context, q filters.Query) (database.Summary, error)
	Breakdown(ctx context.Context, q filters.Query, dimension string, limit, offset int) ([]database.BreakdownItem, int64, error)
	TimeSeries(ctx context.Context, q filters.Query, bucket string) ([]database.TimeSeriesPoint, error)
	SaveView(ctx context.Context, name, query string) (database.SavedView, error)
	GetView(ctx context.Context, name string) (database.SavedView, error)
	ListViews(ctx context.Context) ([]database.SavedView, error)
	DeleteView(ctx context.Context, name string) error
}

// API serves the filter sessions over HTTP.
type API struct {
	registry *session.Registry
	repo     Repository
	hub      *realtime.Hub
	version  string
}

// NewAPI wires the handlers. repo and hub may be nil, in which case the
// dashboard, saved-view and WebSocket routes report 503.
func NewAPI(registry *session.Registry, repo Repository, hub *realtime.Hub, version string) *API {
	return &API{registry: registry, repo: repo, hub: hub, version: version}
}

// Register mounts every route on app.
func (a *API) Register(app *fiber.App) {
	app.Get("/health", a.HandleHealth)
	app.Get("/up", a.HandleUp)

	api := app.Group("/api")
	api.Get("/version", a.HandleVersion)
	api.Get("/schema", a.HandleSchema)

	api.Post("/sessions", a.HandleCreateSession)
	api.Get("/sessions/:session_id", a.withSession(a.HandleGetSession))
	api.Delete("/sessions/:session_id", a.HandleDeleteSession)

	api.Put("/sessions/:session_id/date-range", a.withSession(a.HandleSetDateRange))
	api.Put("/sessions/:session_id/dimensions/:dimension", a.withSession(a.HandleSetDimension))
	api.Post("/sessions/:session_id/dimensions/:dimension/clear-downstream", a.withSession(a.HandleClearDownstream))
	api.Post("/sessions/:session_id/reset", a.withSession(a.HandleReset))
	api.Post("/sessions/:session_id/location", a.withSession(a.HandleLoadLocation))

	api.Post("/sessions/:session_id/drilldown", a.withSession(a.HandlePushDrilldown))
	api.Delete("/sessions/:session_id/drilldown/:index", a.withSession(a.HandlePopDrilldown))
	api.Delete("/sessions/:session_id/drilldown", a.withSession(a.HandleClearDrilldown))

	api.Put("/sessions/:session_id/crossfilters/:chart_id", a.withSession(a.HandleSetCrossFilter))
	api.Delete("/sessions/:session_id/crossfilters/:chart_id", a.withSession(a.HandleClearCrossFilter))
	api.Delete("/sessions/:session_id/crossfilters", a.withSession(a.HandleClearCrossFilters))
	api.Post("/sessions/:session_id/crossfilters/:chart_id/promote", a.withSession(a.HandlePromoteCrossFilter))

	api.Get("/sessions/:session_id/dashboard/summary", a.withSession(a.HandleSessionSummary))
	api.Get("/sessions/:session_id/dashboard/timeseries", a.withSession(a.HandleSessionTimeSeries))
	api.Get("/sessions/:session_id/dashboard/breakdown/:dimension", a.withSession(a.HandleSessionBreakdown))

	api.Get("/dashboard/summary", a.HandleSummary)
	api.Get("/dashboard/timeseries", a.HandleTimeSeries)
	api.Get("/dashboard/breakdown/:dimension", a.HandleBreakdown)

	api.Get("/views", a.HandleListViews)
	api.Post("/sessions/:session_id/views", a.withSession(a.HandleSaveView))
	api.Post("/sessions/:session_id/views/:name/apply", a.withSession(a.HandleApplyView))
	api.Delete("/views/:name", a.HandleDeleteView)

	app.Get("/ws/sessions/:session_id", a.HandleWebSocketUpgrade, a.websocketHandler())
}

type sessionHandler func(c fiber.Ctx, sess *session.Session) error

// withSession resolves :session_id, answering 400 for a malformed id and
// 404 for an unknown one.
func (a *API) withSession(next sessionHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("session_id"))
		if err != nil {
			return httpx.Error(c, http.StatusBadRequest, "Invalid session ID")
		}
		sess, ok := a.registry.Get(id)
		if !ok {
			return httpx.Error(c, http.StatusNotFound, "Session not found")
		}
		return next(c, sess)
	}
}

// HandleWebSocketUpgrade rejects plain requests and unknown sessions before
// the upgrade.
func (a *API) HandleWebSocketUpgrade(c fiber.Ctx) error {
	if a.hub == nil {
		return httpx.Error(c, http.StatusServiceUnavailable, "Realtime updates are disabled")
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return httpx.Error(c, http.StatusUpgradeRequired, "WebSocket upgrade required")
	}
	id, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return httpx.Error(c, http.StatusBadRequest, "Invalid session ID")
	}
	if _, ok := a.registry.Get(id); !ok {
		return httpx.Error(c, http.StatusNotFound, "Session not found")
	}
	return c.Next()
}

func (a *API) websocketHandler() fiber.Handler {
	if a.hub == nil {
		return func(c fiber.Ctx) error {
			return httpx.Error(c, http.StatusServiceUnavailable, "Realtime updates are disabled")
		}
	}
	return a.hub.Handler()
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c fiber.Ctx, err error) error {
	switch {
	case filters.IsValidationError(err):
		return httpx.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrViewNotFound):
		return httpx.Error(c, http.StatusNotFound, "View not found")
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.Error(c, http.StatusGatewayTimeout, "Query timed out")
	}
	logging.L().Error("request failed",
		zap.String("path", c.Path()),
		zap.Error(err))
	return httpx.Error(c, http.StatusInternalServerError, "Internal server error")
}
