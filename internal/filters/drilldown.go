package filters

import "fmt"

// PushDrilldown appends a level whose snapshot is the dimension filters live
// right now. It never narrows the filters itself: callers push first and
// then narrow, so that popping back restores the pre-narrowed state. Drill
// does both in that order.
func (s *Store) PushDrilldown(level, value string) error {
	if err := s.schema.check(level); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%w: %q", ErrEmptyDrillValue, level)
	}
	return s.commit(func(st *State) error {
		st.Drilldown = append(st.Drilldown, DrilldownLevel{
			Level:           level,
			Value:           value,
			FiltersSnapshot: cloneDimensions(st.Dimensions),
			Timestamp:       s.now(),
		})
		return nil
	})
}

// Drill pushes a drilldown level and then narrows level to value. Listeners
// observe the two steps as separate changes.
func (s *Store) Drill(level, value string) error {
	if err := s.PushDrilldown(level, value); err != nil {
		return err
	}
	return s.SetDimension(level, []string{value})
}

// PopToIndex truncates the path to index levels and restores the snapshot
// of the last remaining level, or empty filters when index is 0. The
// snapshot replaces the dimension filters wholesale. The date range is kept.
func (s *Store) PopToIndex(index int) error {
	return s.commit(func(st *State) error {
		if index < 0 || index > len(st.Drilldown) {
			return fmt.Errorf("%w: %d not in [0, %d]", ErrDrilldownIndexOutOfRange, index, len(st.Drilldown))
		}
		if index > 0 {
			st.Dimensions = cloneDimensions(st.Drilldown[index-1].FiltersSnapshot)
		} else {
			st.Dimensions = map[string][]string{}
		}
		st.Drilldown = st.Drilldown[:index]
		return nil
	})
}

// ClearDrilldown returns to the root level with empty dimension filters.
func (s *Store) ClearDrilldown() {
	_ = s.PopToIndex(0)
}

// DrilldownDepth returns the current path length.
func (s *Store) DrilldownDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Drilldown)
}
