package count

import (
	"github.com/pizzaparty/slices/internal/topping"
)

// Ordered lists the decodable entries of c for display: plain toppings in the
// order given by bases come first, followed by every other entry by key.
func Ordered(c Count, bases []topping.Base) []Pair {
	out := make([]Pair, 0, c.Len())
	seen := make(map[topping.Key]struct{}, len(bases))
	for _, b := range bases {
		t := topping.FromBase(b)
		key := t.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		e, ok := c.entries[key]
		if !ok || !e.decoded {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Pair{Topping: e.topping, Slices: e.value})
	}
	for _, p := range c.Pairs() {
		if _, ok := seen[p.Topping.Key()]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Seed returns c with a zero entry for every base that has no entry yet.
func Seed(c Count, bases []topping.Base) Count {
	entries := c.clone(len(bases))
	for _, b := range bases {
		t := topping.FromBase(b)
		if _, ok := entries[t.Key()]; !ok {
			entries[t.Key()] = entry{topping: t, decoded: true}
		}
	}
	return Count{entries: entries}
}
