package fadecurve

import (
	"github.com/drgolem/rtengine/pkg/timeref"
)

// Kind distinguishes a fade-in from a fade-out (§4.7).
type Kind int

const (
	FadeIn Kind = iota
	FadeOut
)

// FadeCurve is one of a clip's fade regions: a kind, a range anchored at
// the clip boundary it shapes, and the derived Curve driving it.
type FadeCurve struct {
	kind   Kind
	shape  Shape
	bend   float64
	strength float64
	curve  *Curve

	// rangeStart is the track-space TimeRef of the clip's start (for
	// FadeIn) or the TimeRef one range-length before the clip's end
	// (for FadeOut); rangeLen is the fade's duration.
	rangeStart timeref.TimeRef
	rangeLen   timeref.TimeRef

	raster     bool
	rasterGrid timeref.TimeRef
}

// New derives a FadeCurve for kind, anchored at rangeStart and spanning
// rangeLen, using shape's preset bend/strength.
func New(kind Kind, shape Shape, rangeStart, rangeLen timeref.TimeRef) *FadeCurve {
	bend, strength := PresetParams(shape)
	return &FadeCurve{
		kind:       kind,
		shape:      shape,
		bend:       bend,
		strength:   strength,
		curve:      Derive(bend, strength),
		rangeStart: rangeStart,
		rangeLen:   rangeLen,
	}
}

// SetBendStrength overrides the preset bend/strength and re-derives the
// curve (§4.7: "derived each time bend/strength/shape changes").
func (fc *FadeCurve) SetBendStrength(bend, strength float64) {
	fc.bend = bend
	fc.strength = strength
	fc.curve = Derive(bend, strength)
}

// SetRaster enables/disables snapping range edits to grid.
func (fc *FadeCurve) SetRaster(enabled bool, grid timeref.TimeRef) {
	fc.raster = enabled
	fc.rasterGrid = grid
}

// SetRange updates the fade's anchor and length, snapping to the raster
// grid first if enabled (§4.7 "raster flag snaps range edits to a grid").
func (fc *FadeCurve) SetRange(start, length timeref.TimeRef) {
	if fc.raster && fc.rasterGrid > 0 {
		start = snapToGrid(start, fc.rasterGrid)
		length = snapToGrid(length, fc.rasterGrid)
	}
	fc.rangeStart = start
	fc.rangeLen = length
}

func snapToGrid(t, grid timeref.TimeRef) timeref.TimeRef {
	if grid <= 0 {
		return t
	}
	half := grid / 2
	return ((t + half) / grid) * grid
}

// Range returns the fade's current anchor and length.
func (fc *FadeCurve) Range() (start, length timeref.TimeRef) {
	return fc.rangeStart, fc.rangeLen
}

// Process multiplies bus[:N] by this fade's gain for the cycle
// [t0, t1) in file-space time, evaluating the curve on [0, rangeLen]
// mapped onto [rangeStart, rangeStart+rangeLen] (§4.7). FadeOut mirrors
// the curve (full gain at rangeStart, silence at rangeStart+rangeLen).
func (fc *FadeCurve) Process(bus []float32, t0, t1 timeref.TimeRef, n int) {
	if fc.rangeLen <= 0 || n <= 0 {
		return
	}
	rangeEnd := fc.rangeStart + fc.rangeLen

	frameDur := (t1 - t0)
	if frameDur <= 0 {
		return
	}

	for i := 0; i < n; i++ {
		t := t0 + timeref.TimeRef(int64(frameDur)*int64(i)/int64(n))
		if t < fc.rangeStart || t > rangeEnd {
			continue
		}
		x := float64(t-fc.rangeStart) / float64(fc.rangeLen)
		g := fc.curve.Eval(x)
		if fc.kind == FadeOut {
			g = 1 - g
		}
		bus[i] *= float32(g)
	}
}
