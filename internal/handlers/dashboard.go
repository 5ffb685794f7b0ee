package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/httpx"
	"github.com/seuros/scout/internal/session"
)

// HandleSessionSummary returns headline metrics for the session's filters.
func (a *API) HandleSessionSummary(c fiber.Ctx, sess *session.Session) error {
	q, key := sessionQuery(sess.Store)
	return a.summary(c, q, key)
}

// HandleSummary returns headline metrics for filters in the request URL.
func (a *API) HandleSummary(c fiber.Ctx) error {
	q, key := a.queryFromRequest(c)
	return a.summary(c, q, key)
}

func (a *API) summary(c fiber.Ctx, q filters.Query, key string) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	summary, err := a.repo.Summary(ctx, q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(SummaryResponse{QueryKey: key, Summary: summary})
}

// HandleSessionTimeSeries returns revenue per bucket for the session's filters.
func (a *API) HandleSessionTimeSeries(c fiber.Ctx, sess *session.Session) error {
	q, key := sessionQuery(sess.Store)
	return a.timeSeries(c, q, key)
}

// HandleTimeSeries returns revenue per bucket for filters in the request URL.
func (a *API) HandleTimeSeries(c fiber.Ctx) error {
	q, key := a.queryFromRequest(c)
	return a.timeSeries(c, q, key)
}

func (a *API) timeSeries(c fiber.Ctx, q filters.Query, key string) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	bucket := httpx.QueryString(c, "bucket", "day")
	switch bucket {
	case "hour", "day", "week", "month":
	default:
		return httpx.Error(c, http.StatusBadRequest, "Invalid bucket")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	points, err := a.repo.TimeSeries(ctx, q, bucket)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(TimeSeriesResponse{QueryKey: key, Bucket: bucket, Points: points})
}

// HandleSessionBreakdown pages revenue grouped by :dimension for the
// session's filters.
func (a *API) HandleSessionBreakdown(c fiber.Ctx, sess *session.Session) error {
	q, _ := sessionQuery(sess.Store)
	return a.breakdown(c, q)
}

// HandleBreakdown pages revenue grouped by :dimension for filters in the
// request URL.
func (a *API) HandleBreakdown(c fiber.Ctx) error {
	q, _ := a.queryFromRequest(c)
	return a.breakdown(c, q)
}

func (a *API) breakdown(c fiber.Ctx, q filters.Query) error {
	if a.repo == nil {
		return dataSourceUnavailable(c)
	}
	pagination := ParsePaginationParams(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := a.repo.Breakdown(ctx, q, c.Params("dimension"), pagination.Per, pagination.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(NewPaginatedResponse(items, pagination, total))
}

func dataSourceUnavailable(c fiber.Ctx) error {
	return httpx.Error(c, http.StatusServiceUnavailable, "Database not configured")
}
