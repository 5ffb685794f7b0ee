package filters

import "errors"

var (
	// ErrInvalidDimension is returned when a mutator receives a key outside the schema.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrDrilldownIndexOutOfRange is returned by PopToIndex for an index outside [0, len].
	ErrDrilldownIndexOutOfRange = errors.New("drilldown index out of range")

	// ErrEmptyDrillValue is returned when a drilldown is pushed without a value.
	ErrEmptyDrillValue = errors.New("empty drilldown value")

	// ErrMalformedURLState tags query fields that were discarded while decoding.
	// It is only ever logged; decoding never fails.
	ErrMalformedURLState = errors.New("malformed url state")
)
