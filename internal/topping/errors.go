package topping

import "errors"

var (
	// ErrEmptyTopping is returned when a topping is built from zero parts.
	ErrEmptyTopping = errors.New("topping must contain at least one part")
	// ErrInvalidName is returned when a base topping name is blank.
	ErrInvalidName = errors.New("topping name must not be blank")
	// ErrInvalidKey is returned when a key was not produced by KeyOf.
	ErrInvalidKey = errors.New("malformed topping key")
)
