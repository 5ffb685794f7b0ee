package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/database"
	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/session"
)

// fakeRepository records the queries it receives and serves canned data.
type fakeRepository struct {
	mu      sync.Mutex
	queries []filters.Query
	calls   []string
	err     error
	views   map[string]database.SavedView
	total   int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{views: make(map[string]database.SavedView)}
}

func (f *fakeRepository) record(call string, q filters.Query) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.queries = append(f.queries, q)
}

func (f *fakeRepository) lastQuery() filters.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeRepository) Summary(_ context.Context, q filters.Query) (database.Summary, error) {
	f.record("summary", q)
	if f.err != nil {
		return database.Summary{}, f.err
	}
	return database.Summary{Revenue: 1000, Transactions: 4, Customers: 3, AvgOrderValue: 250}, nil
}

func (f *fakeRepository) Breakdown(_ context.Context, q filters.Query, dimension string, limit, offset int) ([]database.BreakdownItem, int64, error) {
	f.record("breakdown:"+dimension, q)
	if f.err != nil {
		return nil, 0, f.err
	}
	return []database.BreakdownItem{{Name: "Alaska", Revenue: 600, Transactions: 2}}, f.total, nil
}

func (f *fakeRepository) TimeSeries(_ context.Context, q filters.Query, bucket string) ([]database.TimeSeriesPoint, error) {
	f.record("timeseries:"+bucket, q)
	if f.err != nil {
		return nil, f.err
	}
	return []database.TimeSeriesPoint{{Bucket: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), Revenue: 1000, Transactions: 4}}, nil
}

func (f *fakeRepository) SaveView(_ context.Context, name, query string) (database.SavedView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	view := database.SavedView{ID: int64(len(f.views) + 1), Name: name, Query: query}
	f.views[name] = view
	return view, nil
}

func (f *fakeRepository) GetView(_ context.Context, name string) (database.SavedView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	view, ok := f.views[name]
	if !ok {
		return database.SavedView{}, database.ErrViewNotFound
	}
	return view, nil
}

func (f *fakeRepository) ListViews(context.Context) ([]database.SavedView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	views := make([]database.SavedView, 0, len(f.views))
	for _, v := range f.views {
		views = append(views, v)
	}
	return views, nil
}

func (f *fakeRepository) DeleteView(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.views[name]; !ok {
		return database.ErrViewNotFound
	}
	delete(f.views, name)
	return nil
}

func setupAPITest(t *testing.T, repo Repository) (*fiber.App, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(filters.DefaultSchema(), time.Hour, filters.WithLogger(zap.NewNop()))
	app := fiber.New()
	NewAPI(registry, repo, nil, "test").Register(app)
	return app, registry
}

// rawJSON is sent verbatim, for malformed bodies.
type rawJSON string

// doJSON sends body as JSON and decodes the response into out when non-nil.
func doJSON(t *testing.T, app *fiber.App, method, path string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case rawJSON:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createSession(t *testing.T, app *fiber.App, query string) SessionView {
	t.Helper()
	var view SessionView
	resp := doJSON(t, app, http.MethodPost, "/api/sessions", CreateSessionRequest{Query: query}, &view)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return view
}
