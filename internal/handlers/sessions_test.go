package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionFromURLQuery(t *testing.T) {
	app, registry := setupAPITest(t, nil)

	view := createSession(t, app, "?region=NCR&from=2024-01-01T00%3A00%3A00.000Z")

	assert.Equal(t, []string{"NCR"}, view.State.Dimensions["region"])
	require.NotNil(t, view.State.DateRange.From)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), view.State.DateRange.From.UTC())
	assert.Nil(t, view.State.DateRange.To)
	assert.Equal(t, 2, view.ActiveFilters)
	assert.Equal(t, 1, registry.Len())
}

func TestGetSessionErrors(t *testing.T) {
	app, _ := setupAPITest(t, nil)

	resp := doJSON(t, app, http.MethodGet, "/api/sessions/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	app, registry := setupAPITest(t, nil)
	view := createSession(t, app, "")

	resp := doJSON(t, app, http.MethodDelete, "/api/sessions/"+view.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, registry.Len())

	resp = doJSON(t, app, http.MethodDelete, "/api/sessions/"+view.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetDimensionUpdatesQuery(t *testing.T) {
	app, _ := setupAPITest(t, nil)
	view := createSession(t, app, "")

	var updated SessionView
	resp := doJSON(t, app, http.MethodPut, "/api/sessions/"+view.ID+"/dimensions/region",
		DimensionRequest{Values: []string{"NCR", "Cebu"}}, &updated)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "region=NCR,Cebu", updated.Query)
	assert.Equal(t, uint64(2), updated.Version)
}

func TestSetUnknownDimensionIsBadRequest(t *testing.T) {
	app, _ := setupAPITest(t, nil)
	view := createSession(t, app, "brand=Alaska")

	var body map[string]string
	resp := doJSON(t, app, http.MethodPut, "/api/sessions/"+view.ID+"/dimensions/galaxy",
		DimensionRequest{Values: []string{"x"}}, &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "galaxy")

	var current SessionView
	doJSON(t, app, http.MethodGet, "/api/sessions/"+view.ID, nil, &current)
	assert.Equal(t, "brand=Alaska", current.Query)
	assert.Equal(t, view.Version, current.Version)
}

func TestSetDateRange(t *testing.T) {
	app, _ := setupAPITest(t, nil)
	view := createSession(t, app, "")
	from := "2024-03-01"

	var updated SessionView
	resp := doJSON(t, app, http.MethodPut, "/api/sessions/"+view.ID+"/date-range",
		DateRangeRequest{From: &from}, &updated)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "from=2024-03-01T00%3A00%3A00.000Z", updated.Query)

	bad := "yesterday"
	resp = doJSON(t, app, http.MethodPut, "/api/sessions/"+view.ID+"/date-range",
		DateRangeRequest{To: &bad}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, "/api/sessions/"+view.ID+"/date-range",
		DateRangeRequest{}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, updated.Query)
}

func TestClearDownstreamAndReset(t *testing.T) {
	app, _ := setupAPITest(t, nil)
	view := createSession(t, app, "region=NCR&city=Manila&barangay=Tondo&brand=Alaska")

	var updated SessionView
	resp := doJSON(t, app, http.MethodPost, "/api/sessions/"+view.ID+"/dimensions/region/clear-downstream", nil, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "region=NCR&brand=Alaska", updated.Query)

	resp = doJSON(t, app, http.MethodPost, "/api/sessions/"+view.ID+"/reset", nil, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, updated.Query)
	assert.Equal(t, 0, updated.ActiveFilters)
}

func TestLoadLocation(t *testing.T) {
	app, _ := setupAPITest(t, nil)
	view := createSession(t, app, "region=NCR")

	var updated SessionView
	resp := doJSON(t, app, http.MethodPost, "/api/sessions/"+view.ID+"/location",
		LocationRequest{Query: "?category=Snacks&bogus=1"}, &updated)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string][]string{"category": {"Snacks"}}, updated.State.Dimensions)
	assert.Equal(t, "category=Snacks", updated.Query)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	app, _ := setupAPITest(t, nil)
	view := createSession(t, app, "")

	req := `{"values": [`
	resp := doJSON(t, app, http.MethodPut, "/api/sessions/"+view.ID+"/dimensions/region", rawJSON(req), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
