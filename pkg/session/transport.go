package session

import (
	"sync/atomic"

	"github.com/drgolem/rtengine/pkg/timeref"
)

// State is the transport's run state, read by the realtime thread on
// every cycle and only ever written by a control thread via an atomic
// store, so "transport start is observable atomically" (§5).
type State int32

const (
	StateStopped State = iota
	StateRunning
)

// SnapPoint is a named timeline position transport editing operations
// can snap to (markers, clip edges, the playhead).
type SnapPoint struct {
	Name string
	Time timeref.TimeRef
}

// Transport drives per-cycle iteration: it holds the current playback
// position, run state, and the sheet's snap points. Arm/mute changes on
// tracks take effect on the next cycle boundary because the realtime
// thread only reads them once per Advance (§5).
type Transport struct {
	state    atomic.Int32
	position atomic.Int64 // timeref.TimeRef, as int64 for atomic access

	cycleFrames int
	outputRate  int

	SnapPoints []SnapPoint
}

// NewTransport creates a stopped transport at position 0.
func NewTransport(cycleFrames, outputRate int) *Transport {
	return &Transport{cycleFrames: cycleFrames, outputRate: outputRate}
}

// State returns the transport's current run state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Start begins playback/recording from the current position. Ring
// allocation (each source's AllocateRing) must already be done, since it's
// only safe while the transport is stopped (§4.4 point 5).
func (t *Transport) Start() {
	t.state.Store(int32(StateRunning))
}

// Stop halts playback/recording; the realtime thread stops advancing
// position on its next observation of this state.
func (t *Transport) Stop() {
	t.state.Store(int32(StateStopped))
}

// Position returns the current transport-space playhead location.
func (t *Transport) Position() timeref.TimeRef {
	return timeref.TimeRef(t.position.Load())
}

// Seek atomically relocates the playhead, whether the transport is
// running or stopped (§8 scenario 2, "seek under load"). The realtime
// thread only ever reads position through Advance, so a seek while
// playing is observed cleanly on the next cycle; reconciling each read
// source's ring to the new location is the disk-I/O scheduler's job
// (diskio.Scheduler.Tick -> ReadSource.ReconcileSeek), not this store.
func (t *Transport) Seek(pos timeref.TimeRef) {
	t.position.Store(int64(pos))
}

// Advance computes this cycle's [t0, t1) range and frame count, then
// moves the playhead forward by one cycle if running. Returns ok=false
// if the transport is stopped, in which case the caller should not run
// a mix cycle at all.
func (t *Transport) Advance() (cycleT0, cycleT1 timeref.TimeRef, n int, ok bool) {
	if t.State() != StateRunning {
		return 0, 0, 0, false
	}
	t0 := t.Position()
	t1 := t0 + timeref.FromFrames(int64(t.cycleFrames), t.outputRate)
	t.position.Store(int64(t1))
	return t0, t1, t.cycleFrames, true
}

// CycleFrames returns the fixed number of frames one cycle advances.
func (t *Transport) CycleFrames() int { return t.cycleFrames }

// AddSnapPoint registers a named snap point.
func (t *Transport) AddSnapPoint(name string, pos timeref.TimeRef) {
	t.SnapPoints = append(t.SnapPoints, SnapPoint{Name: name, Time: pos})
}

// NearestSnapPoint returns the snap point closest to pos, or ok=false if
// none are registered.
func (t *Transport) NearestSnapPoint(pos timeref.TimeRef) (SnapPoint, bool) {
	if len(t.SnapPoints) == 0 {
		return SnapPoint{}, false
	}
	best := t.SnapPoints[0]
	bestDist := abs64(int64(pos - best.Time))
	for _, sp := range t.SnapPoints[1:] {
		d := abs64(int64(pos - sp.Time))
		if d < bestDist {
			best, bestDist = sp, d
		}
	}
	return best, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
