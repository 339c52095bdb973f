package division

import (
	"sort"

	"github.com/pizzaparty/slices/internal/count"
	"github.com/pizzaparty/slices/internal/topping"
)

type sweepAllocator struct {
	cfg PieConfig
}

// New creates an Allocator for cfg, failing fast on an invalid configuration.
func New(cfg PieConfig) (Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &sweepAllocator{cfg: cfg}, nil
}

func (a *sweepAllocator) Allocate(demand count.Count) (Plan, error) {
	return Allocate(a.cfg, demand)
}

// Allocate runs the part-granularity sweep, then packs the joined remaining
// and leftover demand again with cfg.Degenerate(). Whatever neither pass could
// place is returned as Plan.Uncovered.
func Allocate(cfg PieConfig, demand count.Count) (Plan, error) {
	first, err := Divide(cfg, demand)
	if err != nil {
		return Plan{}, err
	}

	residue := count.Join(first.Remaining, first.Leftovers)
	second, err := Divide(cfg.Degenerate(), residue)
	if err != nil {
		return Plan{}, err
	}

	pies := make([]Pie, 0, len(first.Pies)+len(second.Pies))
	pies = append(pies, first.Pies...)
	pies = append(pies, second.Pies...)

	return Plan{
		Config:    cfg,
		Pies:      pies,
		PartPies:  len(first.Pies),
		Uncovered: count.Join(second.Remaining, second.Leftovers),
	}, nil
}

type partDemand struct {
	topping topping.Topping
	key     topping.Key
	parts   int
}

// Divide performs one sweep. Demand is split into whole parts and sub-part
// leftovers; toppings are visited by descending part count, then by key, and
// their parts fill pies one at a time. Only as many parts as make up whole
// pies are placed; the rest is reported as Remaining without retrying.
// Entries with a non-positive count are ignored.
func Divide(cfg PieConfig, demand count.Count) (Division, error) {
	if err := cfg.Validate(); err != nil {
		return Division{}, err
	}

	var (
		wanted    []partDemand
		leftovers []count.Pair
		total     int
	)
	for _, p := range demand.Pairs() {
		if p.Slices <= 0 {
			continue
		}
		parts, rest := p.Slices/cfg.SlicesPerPart, p.Slices%cfg.SlicesPerPart
		if rest > 0 {
			leftovers = append(leftovers, count.Pair{Topping: p.Topping, Slices: rest})
		}
		if parts > 0 {
			wanted = append(wanted, partDemand{topping: p.Topping, key: p.Topping.Key(), parts: parts})
			total += parts
		}
	}

	sort.SliceStable(wanted, func(i, j int) bool {
		if wanted[i].parts != wanted[j].parts {
			return wanted[i].parts > wanted[j].parts
		}
		return wanted[i].key < wanted[j].key
	})

	capacity := total / cfg.PartsPerPie * cfg.PartsPerPie
	pies := make([]Pie, 0, capacity/cfg.PartsPerPie)
	var (
		remaining []count.Pair
		current   Pie
		placed    int
		free      = cfg.PartsPerPie
	)
	for _, w := range wanted {
		left := w.parts
		for left > 0 && placed < capacity {
			n := min(left, free)
			current = append(current, count.Pair{Topping: w.topping, Slices: n * cfg.SlicesPerPart})
			left -= n
			free -= n
			placed += n
			if free == 0 {
				pies = append(pies, current)
				current = nil
				free = cfg.PartsPerPie
			}
		}
		if left > 0 {
			remaining = append(remaining, count.Pair{Topping: w.topping, Slices: left * cfg.SlicesPerPart})
		}
	}

	return Division{
		Pies:      pies,
		Remaining: count.FromList(remaining),
		Leftovers: count.FromList(leftovers),
	}, nil
}

func sortedPie(c count.Count) Pie {
	var pie Pie
	for _, p := range c.Pairs() {
		if p.Slices > 0 {
			pie = append(pie, p)
		}
	}
	sort.SliceStable(pie, func(i, j int) bool {
		return pie[i].Slices > pie[j].Slices
	})
	return pie
}
