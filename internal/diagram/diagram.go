package diagram

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jbeda/geom"

	"github.com/pizzaparty/slices/internal/count"
	"github.com/pizzaparty/slices/internal/division"
)

// DefaultRadius is used when a non-positive radius is requested.
const DefaultRadius = 100.0

var palette = []string{
	"#e4572e", "#f3a712", "#a8c686", "#669bbc", "#8f2d56",
	"#29335c", "#db9d47", "#4c956c", "#d1495b", "#00798c",
}

// Wedge is one topping's region of a pie.
type Wedge struct {
	Label      string     `json:"label"`
	Parts      []string   `json:"parts"`
	Slices     int        `json:"slices"`
	StartAngle float64    `json:"startAngle"`
	EndAngle   float64    `json:"endAngle"`
	Start      geom.Coord `json:"start"`
	End        geom.Coord `json:"end"`
	LargeArc   bool       `json:"largeArc"`
	Full       bool       `json:"full"`
	Anchor     geom.Coord `json:"anchor"`
	Path       string     `json:"path"`
	Color      string     `json:"color"`
}

// Diagram is a self-contained drawing of one pie.
type Diagram struct {
	Title     string    `json:"title"`
	Radius    float64   `json:"radius"`
	Capacity  int       `json:"capacity"`
	Bounds    geom.Rect `json:"bounds"`
	Wedges    []Wedge   `json:"wedges"`
	Uncovered bool      `json:"uncovered"`
}

// Size is the side of the diagram's square bounding box.
func (d Diagram) Size() float64 {
	return d.Bounds.Width()
}

// Render lays out one pie. Pairs are drawn largest first starting at angle 0;
// ties keep their input order. Pairs with no slices produce no wedge, and a
// pie with no capacity renders with no wedges at all.
func Render(capacity int, pie []count.Pair, radius float64) Diagram {
	if radius <= 0 {
		radius = DefaultRadius
	}
	d := Diagram{
		Radius:   radius,
		Capacity: capacity,
		Bounds:   Bounds(radius),
		Wedges:   []Wedge{},
	}
	if capacity <= 0 {
		return d
	}

	sorted := make([]count.Pair, len(pie))
	copy(sorted, pie)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Slices > sorted[j].Slices
	})

	offset := 0
	for _, p := range sorted {
		if p.Slices <= 0 {
			continue
		}
		w := layoutWedge(offset, p.Slices, capacity, radius)
		w.Label = p.Topping.String()
		w.Parts = p.Topping.Names()
		w.Slices = p.Slices
		w.Color = colorFor(string(p.Topping.Key()))
		d.Wedges = append(d.Wedges, w)
		offset += p.Slices
	}
	return d
}

// RenderPlan renders every pie of plan, followed by the uncovered residue as
// one more diagram when there is any.
func RenderPlan(plan division.Plan, radius float64) []Diagram {
	capacity := plan.Config.SlicesPerPie()
	out := make([]Diagram, 0, len(plan.Pies)+1)
	for i, pie := range plan.Pies {
		d := Render(capacity, pie, radius)
		d.Title = fmt.Sprintf("Pie %d", i+1)
		out = append(out, d)
	}
	if residue := plan.UncoveredPie(); len(residue) > 0 {
		d := Render(capacity, residue, radius)
		d.Title = "Unallocated"
		d.Uncovered = true
		out = append(out, d)
	}
	return out
}

func layoutWedge(offset, slices, capacity int, r float64) Wedge {
	start := SliceAngle(offset, capacity)
	end := SliceAngle(offset+slices, capacity)
	width := end - start
	mid := start + width/2

	w := Wedge{
		StartAngle: start,
		EndAngle:   end,
		Start:      Polar(r, start),
		End:        Polar(r, end),
		LargeArc:   width > math.Pi,
		Full:       slices >= capacity,
		Anchor:     Polar(LabelRadius(r, width), mid),
	}
	if w.Full {
		w.Anchor = geom.Coord{}
		w.Path = circlePath(r)
	} else {
		w.Path = wedgePath(w.Start, w.End, r, w.LargeArc)
	}
	return w
}

// circlePath draws a closed circle as two half arcs with no radius lines.
func circlePath(r float64) string {
	rs := num(r)
	return "M" + rs + ",0 A" + rs + "," + rs + " 0 1,1 " + num(-r) + ",0 A" + rs + "," + rs + " 0 1,1 " + rs + ",0 Z"
}

func wedgePath(start, end geom.Coord, r float64, largeArc bool) string {
	var b strings.Builder
	rs := num(r)
	b.WriteString("M" + num(start.X) + "," + num(start.Y))
	b.WriteString(" A" + rs + "," + rs + " 0 " + onezero(largeArc) + ",1 " + num(end.X) + "," + num(end.Y))
	b.WriteString(" L0,0 Z")
	return b.String()
}

func onezero(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// num formats coordinates with fixed precision so identical input always
// yields identical output.
func num(v float64) string {
	if math.Abs(v) < 0.0005 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func colorFor(key string) string {
	return palette[xxhash.Sum64String(key)%uint64(len(palette))]
}
