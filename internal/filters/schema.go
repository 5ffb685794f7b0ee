package filters

import (
	"fmt"
	"regexp"
	"slices"
)

// Reserved query keys owned by the codec; dimensions may not use them.
const (
	keyFrom  = "from"
	keyTo    = "to"
	keyDrill = "drill"
)

var dimensionKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Hierarchy is an ordered chain of dimensions, broadest first.
type Hierarchy struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
}

// Schema is the configured set of filterable dimensions.
type Schema struct {
	dimensions  []string
	index       map[string]int
	hierarchies []Hierarchy
}

// NewSchema validates the dimension keys and hierarchies.
func NewSchema(dimensions []string, hierarchies ...Hierarchy) (*Schema, error) {
	if len(dimensions) == 0 {
		return nil, fmt.Errorf("schema needs at least one dimension")
	}

	s := &Schema{
		dimensions: make([]string, 0, len(dimensions)),
		index:      make(map[string]int, len(dimensions)),
	}
	for _, key := range dimensions {
		if !dimensionKeyPattern.MatchString(key) {
			return nil, fmt.Errorf("invalid dimension key %q", key)
		}
		switch key {
		case keyFrom, keyTo, keyDrill:
			return nil, fmt.Errorf("dimension key %q is reserved", key)
		}
		if _, dup := s.index[key]; dup {
			return nil, fmt.Errorf("duplicate dimension key %q", key)
		}
		s.index[key] = len(s.dimensions)
		s.dimensions = append(s.dimensions, key)
	}

	for _, h := range hierarchies {
		for _, level := range h.Levels {
			if !s.Has(level) {
				return nil, fmt.Errorf("hierarchy %q references unknown dimension %q", h.Name, level)
			}
		}
		s.hierarchies = append(s.hierarchies, Hierarchy{
			Name:   h.Name,
			Levels: slices.Clone(h.Levels),
		})
	}

	return s, nil
}

// DefaultSchema returns the retail dashboard dimensions.
func DefaultSchema() *Schema {
	s, err := NewSchema(
		[]string{"region", "city", "municipality", "barangay", "category", "brand", "store"},
		Hierarchy{Name: "geography", Levels: []string{"region", "city", "municipality", "barangay"}},
		Hierarchy{Name: "product", Levels: []string{"category", "brand"}},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// Has reports whether key is a configured dimension.
func (s *Schema) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Dimensions returns the dimension keys in configured order.
func (s *Schema) Dimensions() []string {
	return slices.Clone(s.dimensions)
}

// Hierarchies returns a copy of the configured hierarchies.
func (s *Schema) Hierarchies() []Hierarchy {
	out := make([]Hierarchy, len(s.hierarchies))
	for i, h := range s.hierarchies {
		out[i] = Hierarchy{Name: h.Name, Levels: slices.Clone(h.Levels)}
	}
	return out
}

// Downstream lists every dimension below key in any hierarchy containing it.
func (s *Schema) Downstream(key string) []string {
	var out []string
	for _, h := range s.hierarchies {
		pos := slices.Index(h.Levels, key)
		if pos < 0 {
			continue
		}
		for _, level := range h.Levels[pos+1:] {
			if !slices.Contains(out, level) {
				out = append(out, level)
			}
		}
	}
	return out
}

func (s *Schema) check(key string) error {
	if !s.Has(key) {
		return fmt.Errorf("%w: %q", ErrInvalidDimension, key)
	}
	return nil
}
