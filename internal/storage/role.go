package storage

import (
	"fmt"
	"strings"
)

// Role is a participant's part in the order.
type Role int

const (
	// Undetermined is the role of a participant that has not chosen yet.
	Undetermined Role = iota
	// Host owns the order; there is at most one.
	Host
	// Guest contributes toppings to the host's order.
	Guest
)

func (r Role) String() string {
	switch r {
	case Host:
		return "host"
	case Guest:
		return "guest"
	default:
		return "undetermined"
	}
}

// ParseRole accepts "host" or "guest", case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "host":
		return Host, nil
	case "guest":
		return Guest, nil
	default:
		return Undetermined, fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Transition moves r to next. Only an undetermined participant may choose a
// role; choosing the current role again is a no-op.
func (r Role) Transition(next Role) (Role, error) {
	if next != Host && next != Guest {
		return r, fmt.Errorf("%w: cannot become %s", ErrInvalidRole, next)
	}
	if r == next {
		return r, nil
	}
	if r != Undetermined {
		return r, fmt.Errorf("%w: %s cannot become %s", ErrInvalidRole, r, next)
	}
	return next, nil
}
