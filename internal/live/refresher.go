// Package live re-fetches dashboard data when a session's filters change.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/logging"
)

// FetchFunc loads the data for one filter query.
type FetchFunc func(ctx context.Context, q filters.Query) (any, error)

// PublishFunc receives a fetch result that is still current.
type PublishFunc func(sessionID uuid.UUID, result Result)

// Result is a completed fetch.
type Result struct {
	Version  uint64 `json:"version"`
	QueryKey string `json:"query_key"`
	Data     any    `json:"data,omitempty"`
	Err      error  `json:"-"`
}

type sessionState struct {
	queryKey string
	version  uint64 // latest change seen
	fetching uint64 // change that started the current fetch
	cancel   context.CancelFunc
}

// Refresher turns filter changes into fetches. A change whose query key
// matches the previous one is ignored. A newer change cancels the in-flight
// fetch, and results are published only while their version is the latest.
type Refresher struct {
	mu       sync.Mutex
	fetch    FetchFunc
	publish  PublishFunc
	timeout  time.Duration
	sessions map[uuid.UUID]*sessionState
	wg       sync.WaitGroup
}

// NewRefresher creates a refresher. A zero timeout means no per-fetch deadline.
func NewRefresher(fetch FetchFunc, publish PublishFunc, timeout time.Duration) *Refresher {
	return &Refresher{
		fetch:    fetch,
		publish:  publish,
		timeout:  timeout,
		sessions: make(map[uuid.UUID]*sessionState),
	}
}

// Observe handles one store change. It has the filters.Listener shape once
// bound to a session id and never blocks on the fetch.
func (r *Refresher) Observe(sessionID uuid.UUID, change filters.Change) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		r.sessions[sessionID] = st
	}
	if change.Version <= st.version {
		r.mu.Unlock()
		return
	}
	if ok && st.queryKey == change.QueryKey {
		// Drilldown-only or identical changes do not alter the data query.
		st.version = change.Version
		r.mu.Unlock()
		return
	}
	if st.cancel != nil {
		st.cancel()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	st.queryKey = change.QueryKey
	st.version = change.Version
	st.fetching = change.Version
	st.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(ctx, cancel, sessionID, change.Version, change.QueryKey, change.State.DataQuery())
}

func (r *Refresher) run(ctx context.Context, cancel context.CancelFunc, sessionID uuid.UUID, version uint64, queryKey string, q filters.Query) {
	defer r.wg.Done()
	defer cancel()

	data, err := r.fetch(ctx, q)

	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	current := ok && st.fetching == version
	r.mu.Unlock()

	if !current {
		logging.L().Debug("discarding stale fetch result",
			zap.String("session_id", sessionID.String()),
			zap.Uint64("version", version))
		return
	}
	if err != nil {
		logging.L().Warn("dashboard fetch failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}

	r.publish(sessionID, Result{Version: version, QueryKey: queryKey, Data: data, Err: err})
}

// Forget cancels any in-flight fetch and drops the session.
func (r *Refresher) Forget(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.sessions[sessionID]; ok {
		if st.cancel != nil {
			st.cancel()
		}
		delete(r.sessions, sessionID)
	}
}

// Wait blocks until every started fetch has returned.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
