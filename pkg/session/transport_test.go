package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/timeref"
)

func TestTransportAdvanceOnlyWhileRunning(t *testing.T) {
	tr := NewTransport(128, 48000)

	_, _, _, ok := tr.Advance()
	require.False(t, ok, "stopped transport must not advance")

	tr.Start()
	t0, t1, n, ok := tr.Advance()
	require.True(t, ok)
	require.Equal(t, 128, n)
	require.True(t, t1.Compare(t0) > 0)
	require.Equal(t, t1, tr.Position())
}

func TestTransportAdvanceIsContiguous(t *testing.T) {
	tr := NewTransport(64, 48000)
	tr.Start()

	_, firstEnd, _, ok := tr.Advance()
	require.True(t, ok)

	secondStart, _, _, ok := tr.Advance()
	require.True(t, ok)
	require.Equal(t, firstEnd, secondStart, "consecutive cycles must tile without gap or overlap")
}

func TestTransportSeekSetsPositionWhileStopped(t *testing.T) {
	tr := NewTransport(64, 48000)
	target := timeref.FromFrames(1000, 48000)
	tr.Seek(target)
	require.Equal(t, target, tr.Position())
}

func TestTransportStopFreezesPosition(t *testing.T) {
	tr := NewTransport(64, 48000)
	tr.Start()
	_, _, _, ok := tr.Advance()
	require.True(t, ok)
	pos := tr.Position()

	tr.Stop()
	_, _, _, ok = tr.Advance()
	require.False(t, ok)
	require.Equal(t, pos, tr.Position())
}

func TestNearestSnapPoint(t *testing.T) {
	tr := NewTransport(64, 48000)
	tr.AddSnapPoint("verse", timeref.New(1000))
	tr.AddSnapPoint("chorus", timeref.New(5000))

	nearest, ok := tr.NearestSnapPoint(timeref.New(4000))
	require.True(t, ok)
	require.Equal(t, "chorus", nearest.Name)
}

func TestNearestSnapPointNoneRegistered(t *testing.T) {
	tr := NewTransport(64, 48000)
	_, ok := tr.NearestSnapPoint(timeref.New(0))
	require.False(t, ok)
}
