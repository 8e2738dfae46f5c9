package fadecurve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/timeref"
)

func TestCurveEvalEndpoints(t *testing.T) {
	c := Derive(0, 0)
	require.InDelta(t, 0, c.Eval(0), 1e-9)
	require.InDelta(t, 1, c.Eval(1), 1e-9)
}

func TestCurveEvalClampsOutsideRange(t *testing.T) {
	c := Derive(0, 0)
	require.Equal(t, c.Eval(0), c.Eval(-1))
	require.Equal(t, c.Eval(1), c.Eval(2))
}

func TestPresetParamsKnownShapes(t *testing.T) {
	bend, strength := PresetParams(ShapeFast)
	require.Equal(t, 0.75, bend)
	require.Equal(t, 0.6, strength)

	bend, strength = PresetParams(ShapeLinear)
	require.Zero(t, bend)
	require.Zero(t, strength)
}

func TestPresetParamsUnknownShapeReturnsZero(t *testing.T) {
	bend, strength := PresetParams(Shape(99))
	require.Zero(t, bend)
	require.Zero(t, strength)
}

func TestFadeInRampsZeroToFull(t *testing.T) {
	start := timeref.New(0)
	length := timeref.FromFrames(100, 48000)
	fc := New(FadeIn, ShapeLinear, start, length)

	n := 100
	bus := make([]float32, n)
	for i := range bus {
		bus[i] = 1
	}
	fc.Process(bus, start, start+length, n)

	require.InDelta(t, 0, bus[0], 0.05)
	require.InDelta(t, 1, bus[n-1], 0.05)
}

func TestFadeOutMirrorsFadeIn(t *testing.T) {
	start := timeref.New(0)
	length := timeref.FromFrames(100, 48000)
	fc := New(FadeOut, ShapeLinear, start, length)

	n := 100
	bus := make([]float32, n)
	for i := range bus {
		bus[i] = 1
	}
	fc.Process(bus, start, start+length, n)

	require.InDelta(t, 1, bus[0], 0.05)
	require.InDelta(t, 0, bus[n-1], 0.05)
}

func TestFadeProcessOutsideRangeLeavesBusUntouched(t *testing.T) {
	start := timeref.FromFrames(1000, 48000)
	length := timeref.FromFrames(100, 48000)
	fc := New(FadeIn, ShapeLinear, start, length)

	n := 10
	bus := make([]float32, n)
	for i := range bus {
		bus[i] = 1
	}
	fc.Process(bus, timeref.New(0), timeref.FromFrames(10, 48000), n)
	for _, v := range bus {
		require.Equal(t, float32(1), v)
	}
}

func TestSetRangeSnapsToRasterGrid(t *testing.T) {
	fc := New(FadeIn, ShapeLinear, timeref.New(0), timeref.New(100))
	grid := timeref.New(1000)
	fc.SetRaster(true, grid)
	fc.SetRange(timeref.New(1400), timeref.New(2600))

	start, length := fc.Range()
	require.Equal(t, timeref.New(1000), start)
	require.Equal(t, timeref.New(3000), length)
}

func TestSetBendStrengthRederivesCurve(t *testing.T) {
	fc := New(FadeIn, ShapeLinear, timeref.New(0), timeref.New(100))
	before := fc.curve.Eval(0.25)
	fc.SetBendStrength(0.9, 0.9)
	after := fc.curve.Eval(0.25)
	require.NotEqual(t, before, after)
}
