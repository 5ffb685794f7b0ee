package filters

import (
	"maps"
	"slices"
	"sync"
)

// CrossFilters tracks chart-local selections. They compose with the shared
// filter state but are never written to the URL.
type CrossFilters struct {
	mu         sync.RWMutex
	selections map[string][]string
}

// NewCrossFilters returns an empty registry.
func NewCrossFilters() *CrossFilters {
	return &CrossFilters{selections: make(map[string][]string)}
}

// SetSelection replaces the selection for chartID. An empty selection is
// kept as an explicit entry.
func (r *CrossFilters) SetSelection(chartID string, values []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections[chartID] = normalizeValues(values)
}

// ClearSelection removes the entry for chartID.
func (r *CrossFilters) ClearSelection(chartID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selections, chartID)
}

// ClearAll removes every entry.
func (r *CrossFilters) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.selections)
}

// Selection returns the chart's selection; ok is false when the chart has
// never set one or was cleared.
func (r *CrossFilters) Selection(chartID string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values, ok := r.selections[chartID]
	return slices.Clone(values), ok
}

// All returns a copy of every entry.
func (r *CrossFilters) All() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.selections))
	for chartID, values := range r.selections {
		out[chartID] = slices.Clone(values)
	}
	return out
}

// Charts returns the chart ids with an entry, sorted.
func (r *CrossFilters) Charts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.selections))
}
