package diagram

import (
	"math"

	"github.com/jbeda/geom"
)

// Polar converts polar coordinates around the origin into a point.
func Polar(r, theta float64) geom.Coord {
	return geom.Coord{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// SliceAngle converts a slice index into an angle for a pie of capacity slices.
func SliceAngle(index, capacity int) float64 {
	return 2 * math.Pi * float64(index) / float64(capacity)
}

// LabelRadius places a label closer to the centre the wider its wedge is:
// 2r/3 for a vanishing wedge, 0 for a full circle.
func LabelRadius(r, wedgeAngle float64) float64 {
	if wedgeAngle >= 2*math.Pi {
		return 0
	}
	return 2 * r / 3 * (1 - wedgeAngle/(8*math.Pi))
}

// Bounds is the square box of side 2r+2 centred on the origin.
func Bounds(r float64) geom.Rect {
	return geom.Rect{
		Min: geom.Coord{X: -r - 1, Y: -r - 1},
		Max: geom.Coord{X: r + 1, Y: r + 1},
	}
}
