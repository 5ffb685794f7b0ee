package filters

import (
	"maps"
	"slices"
	"time"
)

// DateRange is an optionally open time window.
type DateRange struct {
	From *time.Time `json:"from" yaml:"from,omitempty"`
	To   *time.Time `json:"to" yaml:"to,omitempty"`
}

// IsSet reports whether either bound is present.
func (r DateRange) IsSet() bool {
	return r.From != nil || r.To != nil
}

func (r DateRange) clone() DateRange {
	return DateRange{From: cloneTime(r.From), To: cloneTime(r.To)}
}

// DrilldownLevel records one step into a more specific filter and the
// dimension filters that were live right before it was pushed.
type DrilldownLevel struct {
	Level           string              `json:"level" yaml:"level"`
	Value           string              `json:"value" yaml:"value"`
	FiltersSnapshot map[string][]string `json:"filters_snapshot" yaml:"filters_snapshot"`
	Timestamp       time.Time           `json:"timestamp" yaml:"timestamp"`
}

// State is the shared dashboard filter state. Values handed out by the
// store are private copies.
type State struct {
	DateRange  DateRange           `json:"date_range" yaml:"date_range"`
	Dimensions map[string][]string `json:"dimensions" yaml:"dimensions"`
	Drilldown  []DrilldownLevel    `json:"drilldown" yaml:"drilldown"`
}

// DefaultState is the empty, unfiltered state.
func DefaultState() State {
	return State{
		Dimensions: map[string][]string{},
		Drilldown:  []DrilldownLevel{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		DateRange:  s.DateRange.clone(),
		Dimensions: cloneDimensions(s.Dimensions),
		Drilldown:  make([]DrilldownLevel, len(s.Drilldown)),
	}
	for i, level := range s.Drilldown {
		out.Drilldown[i] = DrilldownLevel{
			Level:           level.Level,
			Value:           level.Value,
			FiltersSnapshot: cloneDimensions(level.FiltersSnapshot),
			Timestamp:       level.Timestamp,
		}
	}
	return out
}

// Values returns the selection for one dimension, nil when unfiltered.
func (s State) Values(key string) []string {
	return slices.Clone(s.Dimensions[key])
}

// ActiveFilterCount counts non-empty dimensions plus one for a set date range.
// Drilldown history is never counted.
func (s State) ActiveFilterCount() int {
	count := 0
	if s.DateRange.IsSet() {
		count++
	}
	for _, values := range s.Dimensions {
		if len(values) > 0 {
			count++
		}
	}
	return count
}

// DataQuery returns the subset of the state a data source filters on.
func (s State) DataQuery() Query {
	return Query{
		From:       cloneTime(s.DateRange.From),
		To:         cloneTime(s.DateRange.To),
		Dimensions: cloneDimensions(s.Dimensions),
	}
}

// Query is the filter-shaped request accepted by data sources.
type Query struct {
	From       *time.Time          `json:"from,omitempty"`
	To         *time.Time          `json:"to,omitempty"`
	Dimensions map[string][]string `json:"dimensions,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// cloneDimensions copies a dimension map, dropping empty selections.
func cloneDimensions(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for key, values := range in {
		if len(values) == 0 {
			continue
		}
		out[key] = slices.Clone(values)
	}
	return out
}

// normalizeValues keeps first occurrences in order and drops empty strings.
func normalizeValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dimensionsEqual(a, b map[string][]string) bool {
	return maps.EqualFunc(cloneDimensions(a), cloneDimensions(b), slices.Equal[[]string])
}
