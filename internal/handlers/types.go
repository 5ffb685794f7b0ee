package handlers

import (
	"github.com/seuros/scout/internal/database"
	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/session"
)

// SessionView is the JSON form of a session's filter state.
type SessionView struct {
	ID            string              `json:"id"`
	State         filters.State       `json:"state"`
	Query         string              `json:"query"`
	QueryKey      string              `json:"query_key"`
	ActiveFilters int                 `json:"active_filters"`
	Version       uint64              `json:"version"`
	CrossFilters  map[string][]string `json:"cross_filters"`
}

func newSessionView(sess *session.Session) SessionView {
	store := sess.Store
	state := store.Snapshot()
	codec := store.Codec()
	return SessionView{
		ID:            sess.ID.String(),
		State:         state,
		Query:         codec.Encode(state),
		QueryKey:      codec.QueryKey(state),
		ActiveFilters: state.ActiveFilterCount(),
		Version:       store.Version(),
		CrossFilters:  store.CrossFilters().All(),
	}
}

// CreateSessionRequest starts a session from a page URL query.
type CreateSessionRequest struct {
	Query string `json:"query"`
}

// DateRangeRequest sets or clears the date bounds. Null clears a bound.
type DateRangeRequest struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

// DimensionRequest replaces one dimension's selection.
type DimensionRequest struct {
	Values []string `json:"values"`
}

// LocationRequest navigates the session to a new URL query.
type LocationRequest struct {
	Query string `json:"query"`
}

// DrilldownRequest pushes a level. Narrow also filters the dimension to the
// value.
type DrilldownRequest struct {
	Level  string `json:"level"`
	Value  string `json:"value"`
	Narrow bool   `json:"narrow"`
}

// CrossFilterRequest sets a chart-local selection.
type CrossFilterRequest struct {
	Values []string `json:"values"`
}

// PromoteRequest names the dimension a chart selection is copied into.
type PromoteRequest struct {
	Dimension string `json:"dimension"`
}

// SaveViewRequest names the session's current query.
type SaveViewRequest struct {
	Name string `json:"name"`
}

// SchemaResponse describes the configured dimensions.
type SchemaResponse struct {
	Dimensions  []string            `json:"dimensions"`
	Hierarchies []filters.Hierarchy `json:"hierarchies"`
}

// SummaryResponse pairs metrics with the query key they were computed for.
type SummaryResponse struct {
	QueryKey string           `json:"query_key"`
	Summary  database.Summary `json:"summary"`
}

// TimeSeriesResponse pairs points with the query key they were computed for.
type TimeSeriesResponse struct {
	QueryKey string                     `json:"query_key"`
	Bucket   string                     `json:"bucket"`
	Points   []database.TimeSeriesPoint `json:"points"`
}
