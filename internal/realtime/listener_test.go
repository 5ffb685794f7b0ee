package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/scout/internal/database"
	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/live"
)

func TestNewFilterEventCopiesChange(t *testing.T) {
	sessionID := uuid.New()
	createdAt := time.Now()
	change := filters.Change{
		Version:       4,
		Query:         "region=NCR",
		QueryKey:      "region=NCR",
		ActiveFilters: 1,
	}

	payload := NewFilterEvent(sessionID, change, createdAt)

	require.Equal(t, EventFilterChanged, payload.Type)
	require.Equal(t, sessionID.String(), payload.SessionID)
	require.Equal(t, uint64(4), payload.Version)
	require.Equal(t, "region=NCR", payload.Query)
	require.Equal(t, 1, payload.ActiveFilters)
	require.WithinDuration(t, createdAt, payload.CreatedAt, time.Millisecond)
}

func TestNewRefreshEventCarriesDataOrError(t *testing.T) {
	sessionID := uuid.New()
	now := time.Now()

	ok := NewRefreshEvent(sessionID, live.Result{Version: 3, QueryKey: "brand=Alaska", Data: map[string]int{"revenue": 10}}, now)
	assert.Equal(t, EventSummaryRefreshed, ok.Type)
	assert.Equal(t, uint64(3), ok.Version)
	assert.Equal(t, "brand=Alaska", ok.QueryKey)
	assert.Equal(t, map[string]int{"revenue": 10}, ok.Data)
	assert.Empty(t, ok.Error)

	failed := NewRefreshEvent(sessionID, live.Result{Version: 4, Data: "ignored", Err: errors.New("timeout")}, now)
	assert.Nil(t, failed.Data)
	assert.Equal(t, "timeout", failed.Error)
}

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	originalDB := database.DB
	database.DB = mockDB
	t.Cleanup(func() { database.DB = originalDB })
	return mock
}

func TestNotifyEventPublishesPayload(t *testing.T) {
	mock := withMockDB(t)

	payload := NewFilterEvent(uuid.New(), filters.Change{Version: 1, Query: "brand=Alaska"}, time.Now())
	bytes, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectExec("SELECT pg_notify").
		WithArgs(ChannelName, string(bytes)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	NotifyEvent(context.Background(), payload)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifyEventHandlesExecError(t *testing.T) {
	mock := withMockDB(t)

	payload := NewExpiredEvent(uuid.New(), time.Now())
	bytes, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectExec("SELECT pg_notify").
		WithArgs(ChannelName, string(bytes)).
		WillReturnError(assert.AnError)

	NotifyEvent(context.Background(), payload)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForwardRoutesBySession(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.NewString()
	client := &Client{hub: hub, conn: newFakeConn(), topic: sessionID, send: make(chan []byte, 1)}
	hub.register <- client
	waitForCondition(t, time.Second, func() bool { return hub.ClientCount(sessionID) == 1 })

	raw := `{"type":"filters.changed","session_id":"` + sessionID + `","query":"city=Cebu+City","active_filters":1,"created_at":"2024-07-01T00:00:00Z"}`
	forward(hub, raw)
	forward(hub, "not json")
	forward(hub, `{"type":"filters.changed"}`)

	select {
	case got := <-client.send:
		assert.JSONEq(t, raw, string(got))
	case <-time.After(time.Second):
		t.Fatal("notification was not forwarded")
	}
	select {
	case extra := <-client.send:
		t.Fatalf("unexpected message %q", extra)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishBroadcastsToSessionTopic(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()
	client := &Client{hub: hub, conn: newFakeConn(), topic: sessionID.String(), send: make(chan []byte, 1)}
	hub.register <- client
	waitForCondition(t, time.Second, func() bool { return hub.ClientCount("") == 1 })

	Publish(hub, NewFilterEvent(sessionID, filters.Change{Version: 2, Query: "store=S-01"}, time.Now()))

	select {
	case got := <-client.send:
		var payload EventPayload
		require.NoError(t, json.Unmarshal(got, &payload))
		assert.Equal(t, uint64(2), payload.Version)
		assert.Equal(t, "store=S-01", payload.Query)
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}
