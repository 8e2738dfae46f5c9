package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/timeref"
	"github.com/drgolem/rtengine/pkg/track"
)

func TestNewSheetRegistersMasterBus(t *testing.T) {
	s := NewSheet("demo")
	require.NotNil(t, s.MixBus())
	require.Len(t, s.MixBus(), 2)
}

func TestSheetProcessRoutesTrackThroughBusToMaster(t *testing.T) {
	s := NewSheet("demo")
	s.AddBus("drum-bus", 64)

	drums := track.New("t1", "drums", 64)
	drums.PostSends = []string{"drum-bus"}
	s.AddTrack(drums)

	bus := track.New("drum-bus", "drum bus", 64)
	bus.IsBus = true
	bus.Inputs = []string{"drum-bus"}
	bus.PostSends = []string{MasterBusID}
	s.AddTrack(bus)

	t0 := timeref.New(0)
	t1 := timeref.FromFrames(64, 48000)
	require.NoError(t, s.Process(t0, t1, 64))

	// Both tracks produced silence (no clips), but routing must not error
	// and master must be the right shape.
	require.Len(t, s.MixBus()[0], 64)
}

func TestSheetProcessDetectsRoutingCycle(t *testing.T) {
	s := NewSheet("demo")

	a := track.New("a", "a", 32)
	a.IsBus = true
	a.Inputs = []string{"b"}
	a.PostSends = []string{"b"}
	s.AddTrack(a)

	b := track.New("b", "b", 32)
	b.IsBus = true
	b.Inputs = []string{"a"}
	b.PostSends = []string{"a"}
	s.AddTrack(b)

	require.Panics(t, func() {
		_ = s.Process(timeref.New(0), timeref.FromFrames(32, 48000), 32)
	})
}

func TestSheetAnySolo(t *testing.T) {
	s := NewSheet("demo")
	require.False(t, s.AnySolo())

	tr := track.New("t1", "t1", 32)
	tr.Solo = true
	s.AddTrack(tr)
	require.True(t, s.AnySolo())
}

func TestSheetAnySoloIgnoresBusTracks(t *testing.T) {
	s := NewSheet("demo")
	bus := track.New("b1", "bus", 32)
	bus.IsBus = true
	bus.Solo = true
	s.AddTrack(bus)

	require.False(t, s.AnySolo())
}

// TestSheetProcessReusesCachedOrderUntilGraphChanges checks that order()
// is only recomputed when the routing graph actually changes (§5 "never
// allocates" on the realtime path): the cached slice's backing array
// should stay identical across cycles that don't touch AddTrack/
// AddBus/RemoveTrack, and only get replaced once one of those runs.
func TestSheetProcessReusesCachedOrderUntilGraphChanges(t *testing.T) {
	s := NewSheet("demo")
	s.AddTrack(track.New("t1", "t1", 32))
	s.AddTrack(track.New("t2", "t2", 32))

	t0, t1 := timeref.New(0), timeref.FromFrames(32, 48000)
	require.NoError(t, s.Process(t0, t1, 32))
	require.False(t, s.orderDirty)
	first := s.cachedOrder

	require.NoError(t, s.Process(t0, t1, 32))
	require.Same(t, &first[0], &s.cachedOrder[0], "order() must not rerun when the graph is unchanged")

	require.True(t, s.RemoveTrack("t2"))
	require.True(t, s.orderDirty)
	require.NoError(t, s.Process(t0, t1, 32))
	require.Len(t, s.cachedOrder, 1)
	require.Equal(t, "t1", s.cachedOrder[0].ID)
}

func TestSheetFindTrack(t *testing.T) {
	s := NewSheet("demo")
	require.Nil(t, s.FindTrack("t1"))

	s.AddTrack(track.New("t1", "t1", 32))
	found := s.FindTrack("t1")
	require.NotNil(t, found)
	require.Equal(t, "t1", found.ID)
}
