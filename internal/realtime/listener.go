package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/database"
	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/live"
	"github.com/seuros/scout/internal/logging"
)

const ChannelName = "scout_filter_events"

// Event types sent to WebSocket clients.
const (
	EventFilterChanged    = "filters.changed"
	EventSummaryRefreshed = "summary.refreshed"
	EventSessionExpired   = "session.expired"
)

// EventPayload is the wire form of a filter event, both on the WebSocket and
// in NOTIFY payloads.
type EventPayload struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	Version       uint64    `json:"version,omitempty"`
	Query         string    `json:"query"`
	QueryKey      string    `json:"query_key,omitempty"`
	ActiveFilters int       `json:"active_filters"`
	Data          any       `json:"data,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewFilterEvent builds the payload announcing a store change.
func NewFilterEvent(sessionID uuid.UUID, change filters.Change, createdAt time.Time) EventPayload {
	return EventPayload{
		Type:          EventFilterChanged,
		SessionID:     sessionID.String(),
		Version:       change.Version,
		Query:         change.Query,
		QueryKey:      change.QueryKey,
		ActiveFilters: change.ActiveFilters,
		CreatedAt:     createdAt,
	}
}

// NewRefreshEvent builds the payload carrying a refreshed summary. Failed
// fetches send the error text instead of data.
func NewRefreshEvent(sessionID uuid.UUID, result live.Result, createdAt time.Time) EventPayload {
	payload := EventPayload{
		Type:      EventSummaryRefreshed,
		SessionID: sessionID.String(),
		Version:   result.Version,
		QueryKey:  result.QueryKey,
		CreatedAt: createdAt,
	}
	if result.Err != nil {
		payload.Error = result.Err.Error()
	} else {
		payload.Data = result.Data
	}
	return payload
}

// NewExpiredEvent builds the payload sent when a session is swept.
func NewExpiredEvent(sessionID uuid.UUID, createdAt time.Time) EventPayload {
	return EventPayload{
		Type:      EventSessionExpired,
		SessionID: sessionID.String(),
		CreatedAt: createdAt,
	}
}

// Publish sends payload to the local hub.
func Publish(hub *Hub, payload EventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.L().Warn("failed to marshal realtime payload", zap.Error(err))
		return
	}
	hub.Broadcast(payload.SessionID, data)
}

// NotifyEvent publishes payload through Postgres so every instance's
// listener can forward it.
func NotifyEvent(ctx context.Context, payload EventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.L().Warn("failed to marshal realtime payload", zap.Error(err))
		return
	}

	if _, err := database.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", ChannelName, string(data)); err != nil {
		logging.L().Warn("failed to send realtime notification", zap.Error(err))
	}
}

// StartListener forwards notifications on ChannelName to the hub until ctx
// is cancelled.
func StartListener(ctx context.Context, databaseURL string, hub *Hub) error {
	listener := pq.NewListener(databaseURL, 5*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logging.L().Warn("realtime listener event", zap.Int("event", int(event)), zap.Error(err))
		}
	})

	if err := listener.Listen(ChannelName); err != nil {
		_ = listener.Close()
		return err
	}

	go func() {
		defer func() {
			_ = listener.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					continue
				}
				forward(hub, n.Extra)
			case <-time.After(time.Minute):
				if err := listener.Ping(); err != nil {
					logging.L().Warn("realtime listener ping failed", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// forward routes a raw notification to its session topic.
func forward(hub *Hub, raw string) {
	var payload EventPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.SessionID == "" {
		logging.L().Warn("ignoring malformed realtime notification", zap.String("payload", raw))
		return
	}
	hub.Broadcast(payload.SessionID, []byte(raw))
}
