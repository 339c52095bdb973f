package topping

import (
	"strconv"
	"strings"
)

// Base is an atomic ingredient identified by its name.
type Base string

// Key is the canonical, order-preserving identity of a Topping.
// Each part is written as "<byte length>:<name>", so names may contain any
// character, including the separator.
type Key string

// Topping is an ordered, non-empty sequence of base toppings.
// The zero value is invalid; build toppings with FromBase, New or Parse.
type Topping struct {
	parts []Base
}

// FromBase lifts a single base topping into a plain topping.
func FromBase(b Base) Topping {
	return Topping{parts: []Base{b}}
}

// New builds a composite topping from its parts in order.
func New(parts ...Base) (Topping, error) {
	if len(parts) == 0 {
		return Topping{}, ErrEmptyTopping
	}
	out := make([]Base, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(string(p)) == "" {
			return Topping{}, ErrInvalidName
		}
		out[i] = p
	}
	return Topping{parts: out}, nil
}

// Parse builds a topping from raw names, trimming surrounding whitespace.
func Parse(names []string) (Topping, error) {
	parts := make([]Base, 0, len(names))
	for _, name := range names {
		parts = append(parts, Base(strings.TrimSpace(name)))
	}
	return New(parts...)
}

// Parts returns a copy of the topping's parts.
func (t Topping) Parts() []Base {
	out := make([]Base, len(t.parts))
	copy(out, t.parts)
	return out
}

// Names returns the part names as plain strings.
func (t Topping) Names() []string {
	out := make([]string, len(t.parts))
	for i, p := range t.parts {
		out[i] = string(p)
	}
	return out
}

// IsPlain reports whether the topping has exactly one part.
func (t Topping) IsPlain() bool {
	return len(t.parts) == 1
}

// Valid reports whether the topping has at least one part.
func (t Topping) Valid() bool {
	return len(t.parts) > 0
}

// Key returns the canonical key of t.
func (t Topping) Key() Key {
	return KeyOf(t)
}

// Equal compares two toppings by key.
func (t Topping) Equal(other Topping) bool {
	return KeyOf(t) == KeyOf(other)
}

// String renders the topping as a human readable label.
func (t Topping) String() string {
	return strings.Join(t.Names(), " + ")
}

// KeyOf encodes t into its canonical key.
func KeyOf(t Topping) Key {
	var b strings.Builder
	for _, p := range t.parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(string(p))
	}
	return Key(b.String())
}

// FromKey decodes a key produced by KeyOf. It returns false for any string
// that KeyOf could not have produced. Names are not re-validated, so
// FromKey(KeyOf(t)) round-trips every non-empty topping.
func FromKey(k Key) (Topping, bool) {
	t, err := Decode(k)
	if err != nil {
		return Topping{}, false
	}
	return t, true
}

// Decode is FromKey with an error describing why decoding failed.
func Decode(k Key) (Topping, error) {
	raw := string(k)
	if raw == "" {
		return Topping{}, ErrEmptyTopping
	}

	var parts []Base
	for len(raw) > 0 {
		sep := strings.IndexByte(raw, ':')
		if sep <= 0 {
			return Topping{}, ErrInvalidKey
		}
		size, err := strconv.Atoi(raw[:sep])
		if err != nil || size < 0 || strconv.Itoa(size) != raw[:sep] {
			return Topping{}, ErrInvalidKey
		}
		raw = raw[sep+1:]
		if size > len(raw) {
			return Topping{}, ErrInvalidKey
		}
		parts = append(parts, Base(raw[:size]))
		raw = raw[size:]
	}

	return Topping{parts: parts}, nil
}
