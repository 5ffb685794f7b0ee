package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/filters"
	"github.com/seuros/scout/internal/logging"
)

var nowFunc = time.Now

// Session is one dashboard page: a filter store plus the URL query it mirrors.
type Session struct {
	ID        uuid.UUID
	Store     *filters.Store
	Location  *filters.MemoryLocation
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	unsub    func()
}

// LastSeen returns when the session was last looked up.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	s.lastSeen = at
	s.mu.Unlock()
}

// ChangeHook observes every change of every session in a registry.
type ChangeHook func(id uuid.UUID, change filters.Change)

// DeleteHook runs once for every session removed from a registry, whether
// deleted explicitly or swept.
type DeleteHook func(id uuid.UUID)

// Registry owns the live sessions. Each session has its own store; nothing
// is shared between sessions except the schema.
type Registry struct {
	mu       sync.RWMutex
	schema   *filters.Schema
	ttl      time.Duration
	sessions map[uuid.UUID]*Session
	hooks    []ChangeHook
	onDelete []DeleteHook
	opts     []filters.Option
}

// NewRegistry creates an empty registry. Sessions idle longer than ttl are
// removed by Sweep.
func NewRegistry(schema *filters.Schema, ttl time.Duration, opts ...filters.Option) *Registry {
	return &Registry{
		schema:   schema,
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*Session),
		opts:     opts,
	}
}

// Schema returns the dimension schema shared by all sessions.
func (r *Registry) Schema() *filters.Schema {
	return r.schema
}

// OnChange registers a hook for sessions created afterwards.
func (r *Registry) OnChange(hook ChangeHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// OnDelete registers a hook for session removal.
func (r *Registry) OnDelete(hook DeleteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDelete = append(r.onDelete, hook)
}

// Create starts a session at initialQuery and initializes its store from it.
func (r *Registry) Create(initialQuery string) *Session {
	now := nowFunc()
	location := filters.NewMemoryLocation(initialQuery)
	sess := &Session{
		ID:        uuid.New(),
		Store:     filters.NewStore(r.schema, location, r.opts...),
		Location:  location,
		CreatedAt: now,
		lastSeen:  now,
	}

	r.mu.Lock()
	hooks := append([]ChangeHook(nil), r.hooks...)
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	if len(hooks) > 0 {
		id := sess.ID
		sess.unsub = sess.Store.Subscribe(func(change filters.Change) {
			for _, hook := range hooks {
				hook(id, change)
			}
		})
	}

	sess.Store.InitializeFromURL()
	logging.L().Debug("session created",
		zap.String("session_id", sess.ID.String()),
		zap.String("query", location.Query()))
	return sess
}

// Get returns the session and marks it as seen.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		sess.touch(nowFunc())
	}
	return sess, ok
}

// Delete removes a session, detaches its change hooks and runs the delete
// hooks. It reports whether the session existed.
func (r *Registry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	onDelete := slices.Clone(r.onDelete)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if sess.unsub != nil {
		sess.unsub()
	}
	for _, hook := range onDelete {
		hook(id)
	}
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns their ids.
func (r *Registry) Sweep() []uuid.UUID {
	cutoff := nowFunc().Add(-r.ttl)

	r.mu.RLock()
	var expired []uuid.UUID
	for id, sess := range r.sessions {
		if sess.LastSeen().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		r.Delete(id)
	}
	return expired
}
