package filters

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seuros/scout/internal/logging"
)

// Change describes the state after one mutation.
type Change struct {
	Version       uint64 `json:"version"`
	State         State  `json:"state"`
	Query         string `json:"query"`
	QueryKey      string `json:"query_key"`
	ActiveFilters int    `json:"active_filters"`
}

// Listener receives a private copy of every change.
type Listener func(Change)

type subscription struct {
	id int
	fn Listener
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for drilldown timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger overrides the logger used to report discarded URL fields.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the single writer of a session's filter state and of the URL
// query that mirrors it. Every mutation re-encodes the state, replaces the
// location query and notifies subscribers in subscription order. Changes
// reach subscribers in version order even when mutations race.
type Store struct {
	mu        sync.Mutex
	schema    *Schema
	codec     *Codec
	location  Location
	state     State
	version   uint64
	written   string
	synced    bool
	listeners []subscription
	nextID    int

	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	notified   uint64 // last version delivered to listeners
	cross      *CrossFilters

	now    func() time.Time
	logger *zap.Logger
}

// NewStore returns a store in the default state. It does not read the
// location; call InitializeFromURL for that.
func NewStore(schema *Schema, location Location, opts ...Option) *Store {
	s := &Store{
		schema:   schema,
		codec:    NewCodec(schema),
		location: location,
		state:    DefaultState(),
		cross:    NewCrossFilters(),
		now:      time.Now,
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.L()
	}
	return s
}

// Schema returns the dimension schema the store validates against.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Codec returns the URL codec bound to the store's schema.
func (s *Store) Codec() *Codec {
	return s.codec
}

// CrossFilters returns the chart-local selection registry.
func (s *Store) CrossFilters() *CrossFilters {
	return s.cross
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Query returns the encoded form of the current state.
func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec.Encode(s.state)
}

// QueryKey returns the cache key consumers use to decide whether to re-fetch.
func (s *Store) QueryKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec.QueryKey(s.state)
}

// Version increases by one on every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ActiveFilterCount counts the active dimensions plus one for a set date range.
func (s *Store) ActiveFilterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveFilterCount()
}

// Subscribe registers fn for every subsequent change. Listeners run on the
// mutating goroutine after the store lock is released.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool {
			return sub.id == id
		})
	}
}

// SetDateRange replaces the date range. Bounds are stored in UTC at
// millisecond precision, matching the URL encoding.
func (s *Store) SetDateRange(from, to *time.Time) {
	_ = s.commit(func(st *State) error {
		st.DateRange = DateRange{From: truncateTime(from), To: truncateTime(to)}
		return nil
	})
}

// SetDimension replaces the selection for one dimension. It does not touch
// other dimensions or the drilldown path.
func (s *Store) SetDimension(key string, values []string) error {
	if err := s.schema.check(key); err != nil {
		return err
	}
	return s.commit(func(st *State) error {
		setDimension(st, key, values)
		return nil
	})
}

// ClearDownstream clears every dimension below key in its hierarchies.
func (s *Store) ClearDownstream(key string) error {
	if err := s.schema.check(key); err != nil {
		return err
	}
	downstream := s.schema.Downstream(key)
	if len(downstream) == 0 {
		return nil
	}
	return s.commit(func(st *State) error {
		for _, level := range downstream {
			delete(st.Dimensions, level)
		}
		return nil
	})
}

// ResetFilters returns to the default state; the URL query becomes empty.
func (s *Store) ResetFilters() {
	_ = s.commit(func(st *State) error {
		*st = DefaultState()
		return nil
	})
}

// InitializeFromURL decodes the location query over the default state.
// When the location still holds the query this store last wrote, the call
// is a no-op.
func (s *Store) InitializeFromURL() {
	s.initialize(false)
}

// LoadQuery navigates the location to query and re-initializes from it.
func (s *Store) LoadQuery(query string) {
	s.location.ReplaceQuery(query)
	s.initialize(true)
}

func (s *Store) initialize(force bool) {
	query := s.location.Query()

	s.mu.Lock()
	current := s.synced && query == s.written
	s.mu.Unlock()
	if current && !force {
		return
	}

	partial := s.codec.Decode(query)
	for _, key := range partial.Malformed {
		s.logger.Warn("discarding malformed filter field",
			zap.String("field", key),
			zap.Error(fmt.Errorf("%w: %s", ErrMalformedURLState, key)))
	}

	_ = s.commit(func(st *State) error {
		*st = partial.Apply(DefaultState(), s.now())
		return nil
	})
}

// PromoteSelection copies a chart's cross-filter selection into the shared
// dimension filter and clears the chart entry. It reports false when the
// chart has no selection. Promotion only happens through this call.
func (s *Store) PromoteSelection(chartID, dimension string) (bool, error) {
	if err := s.schema.check(dimension); err != nil {
		return false, err
	}
	values, ok := s.cross.Selection(chartID)
	if !ok {
		return false, nil
	}
	if err := s.SetDimension(dimension, values); err != nil {
		return false, err
	}
	s.cross.ClearSelection(chartID)
	return true, nil
}

// commit applies fn under the lock, syncs the location and notifies
// listeners. A non-nil error from fn leaves state, location and version
// unchanged.
func (s *Store) commit(fn func(st *State) error) error {
	s.mu.Lock()

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next

	query := s.codec.Encode(s.state)
	s.location.ReplaceQuery(query)
	s.written = query
	s.synced = true
	s.version++

	change := Change{
		Version:       s.version,
		Query:         query,
		QueryKey:      s.codec.QueryKey(s.state),
		ActiveFilters: s.state.ActiveFilterCount(),
	}
	snapshot := s.state.Clone()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.dispatch(change, snapshot, listeners)
	return nil
}

// dispatch delivers changes in version order. A commit waits until the
// previous version has been delivered, so a listener may read the store but
// must not mutate it synchronously.
func (s *Store) dispatch(change Change, snapshot State, listeners []subscription) {
	s.notifyMu.Lock()
	for s.notified+1 != change.Version {
		s.notifyCond.Wait()
	}
	s.notifyMu.Unlock()

	defer func() {
		s.notifyMu.Lock()
		s.notified = change.Version
		s.notifyCond.Broadcast()
		s.notifyMu.Unlock()
	}()

	for _, sub := range listeners {
		c := change
		c.State = snapshot.Clone()
		sub.fn(c)
	}
}

func setDimension(st *State, key string, values []string) {
	normalized := normalizeValues(values)
	if len(normalized) == 0 {
		delete(st.Dimensions, key)
		return
	}
	st.Dimensions[key] = normalized
}

func truncateTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Millisecond)
	return &v
}

// IsValidationError reports whether err is a caller mistake rather than a
// runtime failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDimension) ||
		errors.Is(err, ErrDrilldownIndexOutOfRange) ||
		errors.Is(err, ErrEmptyDrillValue)
}
