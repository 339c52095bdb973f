package count

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/pizzaparty/slices/internal/topping"
)

// Pair is a topping together with a slice count.
type Pair struct {
	Topping topping.Topping
	Slices  int
}

type entry struct {
	topping topping.Topping
	decoded bool
	value   int
}

// Count maps topping keys to slice counts. The zero value is an empty Count.
type Count struct {
	entries map[topping.Key]entry
}

// Empty returns a Count with no entries.
func Empty() Count {
	return Count{}
}

// FromList builds a Count from pairs. Later pairs overwrite earlier pairs
// with the same key.
func FromList(pairs []Pair) Count {
	entries := make(map[topping.Key]entry, len(pairs))
	for _, p := range pairs {
		entries[p.Topping.Key()] = entry{topping: p.Topping, decoded: true, value: p.Slices}
	}
	return Count{entries: entries}
}

// FromKeys builds a Count from raw keys, typically read back from storage or
// the wire. Keys that do not decode are kept so the data survives a round
// trip, but they are invisible to Keys, Pairs and Total.
func FromKeys(raw map[topping.Key]int) Count {
	entries := make(map[topping.Key]entry, len(raw))
	for k, v := range raw {
		t, ok := topping.FromKey(k)
		entries[k] = entry{topping: t, decoded: ok, value: v}
	}
	return Count{entries: entries}
}

func (c Count) clone(extra int) map[topping.Key]entry {
	out := make(map[topping.Key]entry, len(c.entries)+extra)
	for k, e := range c.entries {
		out[k] = e
	}
	return out
}

// Get returns the count stored for t, or 0.
func (c Count) Get(t topping.Topping) int {
	return c.entries[t.Key()].value
}

// Has reports whether t has an entry, even a zero one.
func (c Count) Has(t topping.Topping) bool {
	_, ok := c.entries[t.Key()]
	return ok
}

// Len returns the number of stored entries, including undecodable ones.
func (c Count) Len() int {
	return len(c.entries)
}

// Add adds delta to the value stored for t (0 when absent) and returns the
// updated Count together with the new value. No clamping is applied.
func (c Count) Add(t topping.Topping, delta int) (Count, int) {
	key := t.Key()
	entries := c.clone(1)
	value := entries[key].value + delta
	entries[key] = entry{topping: t, decoded: true, value: value}
	return Count{entries: entries}, value
}

// Set overwrites the value stored for t.
func (c Count) Set(t topping.Topping, value int) Count {
	entries := c.clone(1)
	entries[t.Key()] = entry{topping: t, decoded: true, value: value}
	return Count{entries: entries}
}

// Remove drops the entry for t.
func (c Count) Remove(t topping.Topping) Count {
	entries := c.clone(0)
	delete(entries, t.Key())
	return Count{entries: entries}
}

// Join sums a and b key by key. When both sides hold an entry for the same
// key, the topping stored in a is kept.
func Join(a, b Count) Count {
	entries := a.clone(len(b.entries))
	for k, eb := range b.entries {
		ea, ok := entries[k]
		if !ok {
			entries[k] = eb
			continue
		}
		if !ea.decoded && eb.decoded {
			ea.topping, ea.decoded = eb.topping, true
		}
		ea.value += eb.value
		entries[k] = ea
	}
	return Count{entries: entries}
}

// JoinAll folds Join over counts from left to right.
func JoinAll(counts ...Count) Count {
	out := Empty()
	for _, c := range counts {
		out = Join(out, c)
	}
	return out
}

// Filter keeps the decodable entries for which keep returns true.
func (c Count) Filter(keep func(t topping.Topping, value int) bool) Count {
	entries := make(map[topping.Key]entry, len(c.entries))
	for k, e := range c.entries {
		if e.decoded && keep(e.topping, e.value) {
			entries[k] = e
		}
	}
	return Count{entries: entries}
}

// FilterZeros drops entries with a non-positive value unless they hold a
// plain topping. Plain toppings stay so they remain selectable.
func (c Count) FilterZeros() Count {
	return c.Filter(func(t topping.Topping, value int) bool {
		return value > 0 || t.IsPlain()
	})
}

// Keys returns every decodable topping, ordered by key.
func (c Count) Keys() []topping.Topping {
	keys := c.sortedKeys()
	out := make([]topping.Topping, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.entries[k].topping)
	}
	return out
}

// Pairs returns every decodable entry, ordered by key.
func (c Count) Pairs() []Pair {
	keys := c.sortedKeys()
	out := make([]Pair, 0, len(keys))
	for _, k := range keys {
		e := c.entries[k]
		out = append(out, Pair{Topping: e.topping, Slices: e.value})
	}
	return out
}

// Undecodable returns the keys that could not be decoded, sorted.
func (c Count) Undecodable() []topping.Key {
	var out []topping.Key
	for k, e := range c.entries {
		if !e.decoded {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Total sums the positive values of every decodable entry.
func (c Count) Total() int {
	total := 0
	for _, e := range c.entries {
		if e.decoded && e.value > 0 {
			total += e.value
		}
	}
	return total
}

// Raw returns every stored value by key, undecodable entries included.
func (c Count) Raw() map[topping.Key]int {
	out := make(map[topping.Key]int, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.value
	}
	return out
}

// Equal reports whether a and b hold the same value for every key. Missing
// keys compare as zero.
func Equal(a, b Count) bool {
	for k, e := range a.entries {
		if b.entries[k].value != e.value {
			return false
		}
	}
	for k, e := range b.entries {
		if a.entries[k].value != e.value {
			return false
		}
	}
	return true
}

// Fingerprint hashes the decodable, positive entries of c. Counts that feed
// the same allocation share a fingerprint.
func Fingerprint(c Count) uint64 {
	return xxhash.Sum64String(canonicalLine(c))
}

func canonicalLine(c Count) string {
	var b strings.Builder
	for _, p := range c.Pairs() {
		if p.Slices <= 0 {
			continue
		}
		b.WriteString(string(p.Topping.Key()))
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(p.Slices))
		b.WriteByte('|')
	}
	return b.String()
}

func (c Count) sortedKeys() []topping.Key {
	keys := make([]topping.Key, 0, len(c.entries))
	for k, e := range c.entries {
		if e.decoded {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
