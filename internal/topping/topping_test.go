package topping

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestKeyOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []Base
		want  Key
	}{
		{name: "Plain", parts: []Base{"pepperoni"}, want: "9:pepperoni"},
		{name: "Composite", parts: []Base{"ham", "pineapple"}, want: "3:ham9:pineapple"},
		{name: "SeparatorInName", parts: []Base{"a:b", "c"}, want: "3:a:b1:c"},
		{name: "Unicode", parts: []Base{"jalapeño"}, want: "9:jalapeño"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			top, err := New(tc.parts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := KeyOf(top); got != tc.want {
				t.Fatalf("expected key %q, got %q", tc.want, got)
			}
		})
	}
}

func TestKeyIsOrderSensitive(t *testing.T) {
	t.Parallel()

	a, _ := New("ham", "pineapple")
	b, _ := New("pineapple", "ham")
	if a.Equal(b) {
		t.Fatalf("expected %s and %s to be different toppings", a, b)
	}
	if !a.Equal(a) {
		t.Fatalf("expected topping to equal itself")
	}
}

func TestPlainToppingEqualsBase(t *testing.T) {
	t.Parallel()

	plain := FromBase("mushroom")
	built, err := New("mushroom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plain.IsPlain() || !plain.Equal(built) {
		t.Fatalf("expected plain toppings from the same base to be equal")
	}
}

func TestNewRejectsInvalidParts(t *testing.T) {
	t.Parallel()

	if _, err := New(); !errors.Is(err, ErrEmptyTopping) {
		t.Fatalf("expected ErrEmptyTopping, got %v", err)
	}
	if _, err := New("ham", "  "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := Parse([]string{" ham ", "olive"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseTrimsNames(t *testing.T) {
	t.Parallel()

	top, err := Parse([]string{" ham ", "olive"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"ham", "olive"}; !slices.Equal(top.Names(), want) {
		t.Fatalf("expected %v, got %v", want, top.Names())
	}
	if top.String() != "ham + olive" {
		t.Fatalf("unexpected label %q", top.String())
	}
}

func TestFromKeyRejectsMalformedKeys(t *testing.T) {
	t.Parallel()

	malformed := []Key{
		"",
		"pepperoni",
		":pepperoni",
		"10:pepperoni",
		"x:ham",
		"03:ham",
		"-3:ham",
		"+3:ham",
		"3:ham4",
	}

	for _, k := range malformed {
		k := k
		t.Run(string(k), func(t *testing.T) {
			if _, ok := FromKey(k); ok {
				t.Fatalf("expected %q to be rejected", k)
			}
		})
	}
}

func TestPartsReturnsCopy(t *testing.T) {
	t.Parallel()

	top, _ := New("ham", "olive")
	parts := top.Parts()
	parts[0] = "anchovy"
	if top.Names()[0] != "ham" {
		t.Fatalf("expected topping to be unaffected by caller mutation")
	}
}

func TestKeyRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.String(), 1, 5).Draw(t, "names")
		parts := make([]Base, len(names))
		for i, n := range names {
			parts[i] = Base(n)
		}
		top := Topping{parts: parts}

		decoded, ok := FromKey(KeyOf(top))
		require.True(t, ok, "key %q should decode", KeyOf(top))
		require.Equal(t, top.Names(), decoded.Names())
		require.Equal(t, KeyOf(top), KeyOf(decoded))
	})
}

func TestKeyInjectiveRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gen := rapid.SliceOfN(rapid.StringMatching(`[a-z:0-9]{0,4}`), 1, 3)
		a := gen.Draw(t, "a")
		b := gen.Draw(t, "b")

		ta, _ := Parse(a)
		tb, _ := Parse(b)
		if !ta.Valid() || !tb.Valid() {
			return
		}
		require.Equal(t, slices.Equal(ta.Names(), tb.Names()), KeyOf(ta) == KeyOf(tb))
	})
}
