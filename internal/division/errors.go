package division

import "errors"

var (
	// ErrInvalidConfig is returned when slices per part or parts per pie is not positive.
	ErrInvalidConfig = errors.New("slices per part and parts per pie must be positive integers")
)
