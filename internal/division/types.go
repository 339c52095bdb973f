package division

import (
	"fmt"

	"github.com/pizzaparty/slices/internal/count"
)

// PieConfig describes the capacity of one pie.
type PieConfig struct {
	SlicesPerPart int `yaml:"slices_per_part" json:"slicesPerPart"`
	PartsPerPie   int `yaml:"parts_per_pie" json:"partsPerPie"`
}

// Validate fails with ErrInvalidConfig when either dimension is not positive.
func (c PieConfig) Validate() error {
	if c.SlicesPerPart <= 0 || c.PartsPerPie <= 0 {
		return fmt.Errorf("%w: got %d slices per part, %d parts per pie", ErrInvalidConfig, c.SlicesPerPart, c.PartsPerPie)
	}
	return nil
}

// SlicesPerPie is the hard slice capacity of one pie.
func (c PieConfig) SlicesPerPie() int {
	return c.SlicesPerPart * c.PartsPerPie
}

// Degenerate returns the single-slice configuration used to pack residue:
// every slice is its own part and one pie holds SlicesPerPie of them.
func (c PieConfig) Degenerate() PieConfig {
	return PieConfig{SlicesPerPart: 1, PartsPerPie: c.SlicesPerPie()}
}

// Pie is the ordered list of toppings placed in one pie.
type Pie []count.Pair

// Slices sums the slice counts of the pie.
func (p Pie) Slices() int {
	total := 0
	for _, pair := range p {
		total += pair.Slices
	}
	return total
}

// Division is the outcome of a single packing sweep.
// Remaining holds whole parts that did not fit into a full pie, converted back
// to slices; Leftovers holds demand smaller than one part.
type Division struct {
	Pies      []Pie
	Remaining count.Count
	Leftovers count.Count
}

// Plan is the outcome of the full two-pass allocation.
type Plan struct {
	Config PieConfig
	// Pies lists the part-granularity pies followed by the single-slice pies.
	Pies []Pie
	// PartPies is how many leading entries of Pies came from the first pass.
	PartPies int
	// Uncovered is the demand that did not fill a whole pie in either pass.
	Uncovered count.Count
}

// UncoveredPie returns the uncovered residue as one pie, largest first.
// It is empty when everything was placed.
func (p Plan) UncoveredPie() Pie {
	return sortedPie(p.Uncovered)
}

// AllPies returns Pies followed by the uncovered pseudo-pie when it is not empty.
func (p Plan) AllPies() []Pie {
	out := make([]Pie, 0, len(p.Pies)+1)
	out = append(out, p.Pies...)
	if residue := p.UncoveredPie(); len(residue) > 0 {
		out = append(out, residue)
	}
	return out
}

// Slices is the total number of slices in every pie, uncovered residue included.
func (p Plan) Slices() int {
	total := p.Uncovered.Total()
	for _, pie := range p.Pies {
		total += pie.Slices()
	}
	return total
}

// Allocator packs demand into pies for a fixed configuration.
type Allocator interface {
	Allocate(demand count.Count) (Plan, error)
}
