// Package fadecurve implements the small per-clip Curve and the FadeIn/
// FadeOut shaping that multiplies a clip's buffer during its transition
// ranges (§4.7).
package fadecurve

import "math"

// Point is one control point of a Curve, x in [0,1] (normalized range
// position) and y in [0,1] (gain).
type Point struct {
	X, Y float64
}

// Curve is a small piecewise-linear gain shape, 3-7 control points,
// re-derived whenever bend/strength/shape change (§4.7).
type Curve struct {
	points []Point
}

// Eval returns the curve's gain at normalized position x in [0,1],
// linearly interpolating between the two bracketing control points.
func (c *Curve) Eval(x float64) float64 {
	if len(c.points) == 0 {
		return 1
	}
	if x <= c.points[0].X {
		return c.points[0].Y
	}
	last := c.points[len(c.points)-1]
	if x >= last.X {
		return last.Y
	}
	for i := 0; i < len(c.points)-1; i++ {
		a, b := c.points[i], c.points[i+1]
		if x >= a.X && x <= b.X {
			if b.X == a.X {
				return a.Y
			}
			t := (x - a.X) / (b.X - a.X)
			return a.Y + t*(b.Y-a.Y)
		}
	}
	return last.Y
}

// Shape selects a fade's base contour before bend/strength are applied.
type Shape int

const (
	ShapeLinear Shape = iota
	ShapeFast
	ShapeSShape
	ShapeLong
)

// Preset bend/strength pairs (§4.7 "Fast, Linear, S-Shape, Long").
var presets = map[Shape]struct{ Bend, Strength float64 }{
	ShapeFast:   {Bend: 0.75, Strength: 0.6},
	ShapeLinear: {Bend: 0.0, Strength: 0.0},
	ShapeSShape: {Bend: 0.5, Strength: 1.0},
	ShapeLong:   {Bend: -0.6, Strength: 0.4},
}

// PresetParams returns the (bend, strength) pair a named shape preset maps to.
func PresetParams(shape Shape) (bend, strength float64) {
	p, ok := presets[shape]
	if !ok {
		return 0, 0
	}
	return p.Bend, p.Strength
}

// Derive builds a 3-7 point Curve for the given bend and strength,
// re-derived any time either parameter changes (§4.7). bend skews the
// curve's midpoint early/late; strength controls how sharply it departs
// from linear at the ends.
func Derive(bend, strength float64) *Curve {
	bend = clamp(bend, -1, 1)
	strength = clamp(strength, 0, 1)

	mid := 0.5 + 0.3*bend
	mid = clamp(mid, 0.1, 0.9)

	// Ease exponent: 1 is linear, >1 bows the curve toward strength.
	ease := 1 + 2*strength

	points := []Point{
		{X: 0, Y: 0},
		{X: mid / 2, Y: math.Pow(mid/2, ease)},
		{X: mid, Y: math.Pow(mid, ease)},
		{X: mid + (1-mid)/2, Y: 1 - math.Pow(1-(mid+(1-mid)/2), ease)},
		{X: 1, Y: 1},
	}
	return &Curve{points: points}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
