package filters

import (
	"strings"
	"sync"
)

// Location is the URL query the store keeps in sync. ReplaceQuery must
// overwrite the current entry rather than add a history entry.
type Location interface {
	Query() string
	ReplaceQuery(query string)
}

// MemoryLocation holds the page URL query for a server-side session. The
// client mirrors it with history.replaceState.
type MemoryLocation struct {
	mu       sync.RWMutex
	query    string
	replaced int
}

// NewMemoryLocation starts at the given query, with or without a leading "?".
func NewMemoryLocation(query string) *MemoryLocation {
	return &MemoryLocation{query: strings.TrimPrefix(query, "?")}
}

func (l *MemoryLocation) Query() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.query
}

func (l *MemoryLocation) ReplaceQuery(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = query
	l.replaced++
}

// Replacements counts ReplaceQuery calls.
func (l *MemoryLocation) Replacements() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.replaced
}
