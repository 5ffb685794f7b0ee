package filters

import (
	"encoding/json"
	"net/url"
	"slices"
	"strings"
	"time"
)

// timeLayout is ISO-8601 in UTC with millisecond precision, e.g. 2024-01-01T00:00:00.000Z.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// DrillStep is the wire form of a drilldown level. Snapshots and timestamps
// are not serialized.
type DrillStep struct {
	Level string `json:"level"`
	Value string `json:"value"`
}

// Partial holds the fields found in a query string. Nil fields were absent.
type Partial struct {
	From       *time.Time
	To         *time.Time
	Dimensions map[string][]string
	Drilldown  []DrillStep
	// Malformed names the keys that were present but discarded.
	Malformed []string
}

// Codec maps State to and from URL query strings.
type Codec struct {
	schema *Schema
}

// NewCodec returns a codec bound to schema.
func NewCodec(schema *Schema) *Codec {
	return &Codec{schema: schema}
}

// Encode renders state as a query string with a fixed key order:
// from, to, dimensions in schema order, drill. Empty fields are omitted,
// so the default state encodes to "".
func (c *Codec) Encode(s State) string {
	var parts []string

	if s.DateRange.From != nil {
		parts = append(parts, keyFrom+"="+url.QueryEscape(formatTime(*s.DateRange.From)))
	}
	if s.DateRange.To != nil {
		parts = append(parts, keyTo+"="+url.QueryEscape(formatTime(*s.DateRange.To)))
	}

	for _, key := range c.schema.dimensions {
		values := normalizeValues(s.Dimensions[key])
		if len(values) == 0 {
			continue
		}
		escaped := make([]string, len(values))
		for i, v := range values {
			escaped[i] = url.QueryEscape(v)
		}
		parts = append(parts, key+"="+strings.Join(escaped, ","))
	}

	if len(s.Drilldown) > 0 {
		steps := make([]DrillStep, len(s.Drilldown))
		for i, level := range s.Drilldown {
			steps[i] = DrillStep{Level: level.Level, Value: level.Value}
		}
		// Marshalling a slice of string pairs cannot fail.
		data, _ := json.Marshal(steps)
		parts = append(parts, keyDrill+"="+url.QueryEscape(string(data)))
	}

	return strings.Join(parts, "&")
}

// QueryKey encodes only the data-query subset of state. Two states with the
// same QueryKey request the same data.
func (c *Codec) QueryKey(s State) string {
	return c.Encode(State{DateRange: s.DateRange, Dimensions: s.Dimensions})
}

// Decode parses a query string. It never fails: unknown keys are ignored and
// malformed fields are dropped and listed in Partial.Malformed. The first
// occurrence of a repeated key wins.
func (c *Codec) Decode(query string) Partial {
	var p Partial
	seen := make(map[string]bool)

	for _, pair := range strings.Split(strings.TrimPrefix(query, "?"), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || seen[key] {
			continue
		}
		seen[key] = true

		switch {
		case key == keyFrom:
			p.From = c.decodeTime(&p, key, rawValue)
		case key == keyTo:
			p.To = c.decodeTime(&p, key, rawValue)
		case key == keyDrill:
			p.Drilldown = c.decodeDrill(&p, rawValue)
		case c.schema.Has(key):
			values, ok := decodeValues(rawValue)
			if !ok {
				p.Malformed = append(p.Malformed, key)
			}
			if len(values) > 0 {
				if p.Dimensions == nil {
					p.Dimensions = make(map[string][]string)
				}
				p.Dimensions[key] = values
			}
		}
	}

	return p
}

func (c *Codec) decodeTime(p *Partial, key, raw string) *time.Time {
	value, err := url.QueryUnescape(raw)
	if err != nil {
		p.Malformed = append(p.Malformed, key)
		return nil
	}
	if value == "" {
		return nil
	}
	t, ok := parseTime(value)
	if !ok {
		p.Malformed = append(p.Malformed, key)
		return nil
	}
	return &t
}

func (c *Codec) decodeDrill(p *Partial, raw string) []DrillStep {
	value, err := url.QueryUnescape(raw)
	if err != nil {
		p.Malformed = append(p.Malformed, keyDrill)
		return nil
	}
	if value == "" {
		return nil
	}

	var steps []DrillStep
	if err := json.Unmarshal([]byte(value), &steps); err != nil {
		p.Malformed = append(p.Malformed, keyDrill)
		return nil
	}

	valid := slices.DeleteFunc(steps, func(step DrillStep) bool {
		return !c.schema.Has(step.Level) || step.Value == ""
	})
	if len(valid) != len(steps) {
		p.Malformed = append(p.Malformed, keyDrill)
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}

// decodeValues splits on literal commas before unescaping, so escaped commas
// inside a value survive. ok is false when any piece failed to unescape.
func decodeValues(raw string) ([]string, bool) {
	ok := true
	values := make([]string, 0, strings.Count(raw, ",")+1)
	for _, piece := range strings.Split(raw, ",") {
		v, err := url.QueryUnescape(piece)
		if err != nil {
			ok = false
			continue
		}
		values = append(values, v)
	}
	return normalizeValues(values), ok
}

// Apply merges the decoded fields over base. Drilldown snapshots are rebuilt
// by replaying the path as push-then-narrow steps; the decoded dimension
// filters stay authoritative for the live state.
func (p Partial) Apply(base State, now time.Time) State {
	merged := base.Clone()

	if p.From != nil {
		merged.DateRange.From = cloneTime(p.From)
	}
	if p.To != nil {
		merged.DateRange.To = cloneTime(p.To)
	}
	for key, values := range p.Dimensions {
		merged.Dimensions[key] = slices.Clone(values)
	}
	if p.Drilldown != nil {
		merged.Drilldown = replayDrilldown(p.Drilldown, merged.Dimensions, now)
	}

	return merged
}

func replayDrilldown(steps []DrillStep, live map[string][]string, now time.Time) []DrilldownLevel {
	replay := cloneDimensions(live)
	for _, step := range steps {
		delete(replay, step.Level)
	}

	path := make([]DrilldownLevel, 0, len(steps))
	for _, step := range steps {
		path = append(path, DrilldownLevel{
			Level:           step.Level,
			Value:           step.Value,
			FiltersSnapshot: cloneDimensions(replay),
			Timestamp:       now,
		})
		replay[step.Level] = []string{step.Value}
	}
	return path
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC 3339 with optional fractional seconds, or a bare date.
// Results are truncated to the millisecond precision Encode writes.
func parseTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Truncate(time.Millisecond), true
		}
	}
	return time.Time{}, false
}

// ParseTime exposes the codec's date parsing for request bodies and flags.
func ParseTime(value string) (time.Time, bool) {
	return parseTime(strings.TrimSpace(value))
}
