// Package envelope implements the per-clip or per-track gain automation
// node (§4.6, §4.8): a sparse list of (time, gain) breakpoints, looked up
// once per cycle and linearly interpolated for every inter-sample gain
// change within that cycle.
package envelope

import (
	"sort"

	"github.com/drgolem/rtengine/pkg/timeref"
)

// Point is one gain automation breakpoint.
type Point struct {
	Time timeref.TimeRef
	Gain float64
}

// Envelope holds breakpoints sorted by time. A clip's envelope is
// addressed in clip-source (file) time so automation stays aligned with
// the source material rather than the clip's position on the track
// (§4.6 "call the gain envelope with file-space times"); a track's
// envelope is addressed in track/transport time.
type Envelope struct {
	points []Point
}

// New creates an envelope with a single constant-gain breakpoint at
// time 0, equivalent to no automation until points are added.
func New(defaultGain float64) *Envelope {
	return &Envelope{points: []Point{{Time: 0, Gain: defaultGain}}}
}

// AddPoint inserts or replaces a breakpoint at t, keeping points sorted.
func (e *Envelope) AddPoint(t timeref.TimeRef, gain float64) {
	i := sort.Search(len(e.points), func(i int) bool { return e.points[i].Time >= t })
	if i < len(e.points) && e.points[i].Time == t {
		e.points[i].Gain = gain
		return
	}
	e.points = append(e.points, Point{})
	copy(e.points[i+1:], e.points[i:])
	e.points[i] = Point{Time: t, Gain: gain}
}

// RemovePoint deletes the breakpoint at exactly t, if one exists.
func (e *Envelope) RemovePoint(t timeref.TimeRef) {
	for i, p := range e.points {
		if p.Time == t {
			e.points = append(e.points[:i], e.points[i+1:]...)
			return
		}
	}
}

// GainAt returns the interpolated gain at time t: the exact breakpoint's
// gain if t falls on one, linear interpolation between the two
// bracketing breakpoints otherwise, and the nearest endpoint's gain
// outside the envelope's defined range.
func (e *Envelope) GainAt(t timeref.TimeRef) float64 {
	if len(e.points) == 0 {
		return 1
	}
	if t <= e.points[0].Time {
		return e.points[0].Gain
	}
	last := e.points[len(e.points)-1]
	if t >= last.Time {
		return last.Gain
	}
	i := sort.Search(len(e.points), func(i int) bool { return e.points[i].Time >= t })
	b := e.points[i]
	if b.Time == t {
		return b.Gain
	}
	a := e.points[i-1]
	span := int64(b.Time - a.Time)
	if span == 0 {
		return a.Gain
	}
	frac := float64(int64(t-a.Time)) / float64(span)
	return a.Gain + frac*(b.Gain-a.Gain)
}

// ApplyToCycle multiplies bus[:n] by this envelope's gain across the
// file-space cycle [t0, t1). It performs exactly one breakpoint-bracket
// lookup for the whole cycle, at t0, then linearly interpolates every
// intervening sample from that single segment's slope (§4.6 "exactly one
// envelope lookup per cycle; all inter-sample gain changes are linearly
// interpolated inside the envelope node"). A breakpoint falling strictly
// inside the cycle is not re-consulted until the next cycle.
func (e *Envelope) ApplyToCycle(bus []float32, t0, t1 timeref.TimeRef, n int) {
	if n <= 0 {
		return
	}
	g0, slope := e.segmentAt(t0)
	if int64(t1-t0) <= 0 || n == 1 {
		bus[0] *= float32(g0)
		return
	}
	for i := 0; i < n; i++ {
		dt := int64(t1-t0) * int64(i) / int64(n)
		g := g0 + slope*float64(dt)
		bus[i] *= float32(g)
	}
}

// segmentAt performs the envelope's one lookup for a cycle: it finds the
// breakpoint bracket containing t and returns the gain at t plus the
// bracket's per-universal-sample slope, so callers can extrapolate
// forward without a second search.
func (e *Envelope) segmentAt(t timeref.TimeRef) (gain, slopePerSample float64) {
	if len(e.points) == 0 {
		return 1, 0
	}
	if t < e.points[0].Time {
		return e.points[0].Gain, 0
	}
	last := e.points[len(e.points)-1]
	if t >= last.Time {
		return last.Gain, 0
	}
	// First breakpoint strictly after t, so a t that falls on a breakpoint
	// takes the slope of the segment starting there.
	i := sort.Search(len(e.points), func(i int) bool { return e.points[i].Time > t })
	b := e.points[i]
	a := e.points[i-1]
	span := int64(b.Time - a.Time)
	if span == 0 {
		return a.Gain, 0
	}
	slope := (b.Gain - a.Gain) / float64(span)
	frac := float64(int64(t-a.Time)) / float64(span)
	g := a.Gain + frac*(b.Gain-a.Gain)
	return g, slope
}
