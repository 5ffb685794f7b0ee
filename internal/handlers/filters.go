package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/httpx"
)

const queryTimeout = 10 * time.Second

// queryFromRequest decodes filter fields straight from the request URL, so
// a shared dashboard link can be queried without a session. Pagination and
// bucket parameters are not filter keys and are ignored by the codec.
func (a *API) queryFromRequest(c fiber.Ctx) (filters.Query, string) {
	codec := filters.NewCodec(a.registry.Schema())
	state := codec.Decode(httpx.RawQuery(c)).Apply(filters.DefaultState(), time.Now())
	return state.DataQuery(), codec.QueryKey(state)
}

// sessionQuery reads the data query from a session's current state.
func sessionQuery(store *filters.Store) (filters.Query, string) {
	state := store.Snapshot()
	return state.DataQuery(), store.Codec().QueryKey(state)
}

func requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), queryTimeout)
}
