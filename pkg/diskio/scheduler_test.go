package diskio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/ring"
)

type fakeReadSource struct {
	status      *ring.BufferStatus
	active      bool
	filled      int
	seekPending bool
	reconciled  int
	name        string
	order       *[]string // shared log of fill order, if set
}

func (f *fakeReadSource) FillOneSlot() bool {
	f.filled++
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return true
}
func (f *fakeReadSource) Status() *ring.BufferStatus { return f.status }
func (f *fakeReadSource) IsActive() bool             { return f.active }
func (f *fakeReadSource) ReconcileSeek() bool {
	if !f.seekPending {
		return false
	}
	f.seekPending = false
	f.reconciled++
	return true
}

type fakeWriteSource struct {
	status  *ring.BufferStatus
	written int
}

func (f *fakeWriteSource) RbFileWrite() (int, error) {
	f.written++
	return 0, nil
}
func (f *fakeWriteSource) Status() *ring.BufferStatus { return f.status }

func newStatus(fillPercent int32) *ring.BufferStatus {
	s := ring.NewBufferStatus()
	s.FillPercent.Store(fillPercent)
	return s
}

func TestTickServicesHungriestReadSourceFirst(t *testing.T) {
	s := New(time.Second, time.Hour)

	var order []string
	hungry := &fakeReadSource{status: newStatus(10), active: true, name: "hungry", order: &order} // 90% hunger
	full := &fakeReadSource{status: newStatus(90), active: true, name: "full", order: &order}     // 10% hunger

	s.RegisterReadSource("hungry", hungry)
	s.RegisterReadSource("full", full)

	s.Tick()

	require.Equal(t, 1, hungry.filled)
	require.Equal(t, 1, full.filled)
	require.Equal(t, []string{"hungry", "full"}, order)
}

func TestTickSkipsInactiveReadSource(t *testing.T) {
	s := New(time.Second, time.Hour)
	inactive := &fakeReadSource{status: newStatus(0), active: false}
	s.RegisterReadSource("r1", inactive)

	s.Tick()
	require.Zero(t, inactive.filled)
}

func TestTickServicesWriteSourceByFullness(t *testing.T) {
	s := New(time.Second, time.Hour)
	w := &fakeWriteSource{status: newStatus(80)}
	s.RegisterWriteSource("w1", w)

	s.Tick()
	require.Equal(t, 1, w.written)
}

func TestUnregisterStopsServicing(t *testing.T) {
	s := New(time.Second, time.Hour)
	r := &fakeReadSource{status: newStatus(0), active: true}
	s.RegisterReadSource("r1", r)
	s.Unregister("r1")

	s.Tick()
	require.Zero(t, r.filled)
}

func TestTickRespectsTimeBudget(t *testing.T) {
	s := New(0, time.Hour) // zero budget: deadline already passed by the time Tick checks
	r := &fakeReadSource{status: newStatus(0), active: true}
	s.RegisterReadSource("r1", r)

	s.Tick()
	require.Zero(t, r.filled)
}

func TestTickReconcilesSeekBeforeFilling(t *testing.T) {
	s := New(time.Second, time.Hour)
	r := &fakeReadSource{status: newStatus(10), active: true, seekPending: true}
	s.RegisterReadSource("r1", r)

	s.Tick()
	require.Equal(t, 1, r.reconciled)
	require.Zero(t, r.filled)

	s.Tick()
	require.Equal(t, 1, r.reconciled)
	require.Equal(t, 1, r.filled)
}

func TestSetPriorityAffectsOrdering(t *testing.T) {
	s := New(time.Second, time.Hour)
	var order []string
	low := &fakeReadSource{status: newStatus(50), active: true, name: "low", order: &order}
	high := &fakeReadSource{status: newStatus(50), active: true, name: "high", order: &order}

	s.RegisterReadSource("low", low)
	s.RegisterReadSource("high", high)
	s.SetPriority("high", 10)

	s.Tick()
	require.Equal(t, 1, low.filled)
	require.Equal(t, 1, high.filled)
	require.Equal(t, []string{"high", "low"}, order)
}
