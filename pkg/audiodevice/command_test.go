package audiodevice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/clip"
	"github.com/drgolem/rtengine/pkg/command"
	"github.com/drgolem/rtengine/pkg/plugin"
	"github.com/drgolem/rtengine/pkg/session"
	"github.com/drgolem/rtengine/pkg/timeref"
	"github.com/drgolem/rtengine/pkg/track"
)

func newTestDevice() *Device {
	rt := session.NewRuntime(session.Config{
		SheetName:        "demo",
		CycleFrames:      64,
		OutputRate:       48000,
		CommandCapacity:  8,
		DisposalCapacity: 8,
		InfoCapacity:     8,
		TickBudget:       time.Millisecond,
		TickPeriod:       time.Hour,
	})
	return &Device{rt: rt}
}

type noopNode struct{}

func (noopNode) Process(bus []float32, n int) {}

func TestApplyCommandAddAndRemoveTrack(t *testing.T) {
	d := newTestDevice()
	tr := track.New("t1", "Track 1", 64)

	d.applyCommand(command.Command{Kind: command.KindAddTrack, Track: tr})
	require.NotNil(t, d.rt.Sheet.FindTrack("t1"))

	d.applyCommand(command.Command{Kind: command.KindRemoveTrack, TrackID: "t1"})
	require.Nil(t, d.rt.Sheet.FindTrack("t1"))

	disposed, ok := d.rt.Commands.Disposals.TryPop()
	require.True(t, ok)
	require.Equal(t, command.DisposeTrackRemoved, disposed.Reason)
	require.Equal(t, "t1", disposed.ID)
}

func TestApplyCommandAddAndRemoveClip(t *testing.T) {
	d := newTestDevice()
	tr := track.New("t1", "Track 1", 64)
	d.applyCommand(command.Command{Kind: command.KindAddTrack, Track: tr})

	c := clip.New("c1", nil, timeref.New(0), timeref.New(100), timeref.New(0))
	d.applyCommand(command.Command{Kind: command.KindAddClip, TrackID: "t1", Clip: c})
	require.NotNil(t, d.rt.Sheet.FindTrack("t1").FindClip("c1"))

	d.applyCommand(command.Command{Kind: command.KindRemoveClip, TrackID: "t1", ClipID: "c1"})
	require.Nil(t, d.rt.Sheet.FindTrack("t1").FindClip("c1"))

	disposed, ok := d.rt.Commands.Disposals.TryPop()
	require.True(t, ok)
	require.Equal(t, command.DisposeClipRemoved, disposed.Reason)
}

func TestApplyCommandRemoveClipNoMatchDoesNotDispose(t *testing.T) {
	d := newTestDevice()
	tr := track.New("t1", "Track 1", 64)
	d.applyCommand(command.Command{Kind: command.KindAddTrack, Track: tr})

	d.applyCommand(command.Command{Kind: command.KindRemoveClip, TrackID: "t1", ClipID: "missing"})

	_, ok := d.rt.Commands.Disposals.TryPop()
	require.False(t, ok, "no clip removed, so no disposal should be confirmed")
}

func TestApplyCommandAddAndRemovePluginOnTrack(t *testing.T) {
	d := newTestDevice()
	tr := track.New("t1", "Track 1", 64)
	d.applyCommand(command.Command{Kind: command.KindAddTrack, Track: tr})

	d.applyCommand(command.Command{Kind: command.KindAddPlugin, TrackID: "t1", PluginID: "p1", Plugin: noopNode{}, Flag: true})
	d.applyCommand(command.Command{Kind: command.KindRemovePlugin, TrackID: "t1", PluginID: "p1"})

	disposed, ok := d.rt.Commands.Disposals.TryPop()
	require.True(t, ok)
	require.Equal(t, command.DisposePluginRemoved, disposed.Reason)

	// An id the chain doesn't hold (the envelope never has one) is
	// rejected, so nothing is disposed.
	d.applyCommand(command.Command{Kind: command.KindRemovePlugin, TrackID: "t1", PluginID: "nonexistent"})
	_, ok = d.rt.Commands.Disposals.TryPop()
	require.False(t, ok)
}

func TestApplyCommandSetGainMuteSoloArm(t *testing.T) {
	d := newTestDevice()
	tr := track.New("t1", "Track 1", 64)
	d.applyCommand(command.Command{Kind: command.KindAddTrack, Track: tr})

	d.applyCommand(command.Command{Kind: command.KindSetMute, TrackID: "t1", Flag: true})
	require.True(t, d.rt.Sheet.FindTrack("t1").Mute)

	d.applyCommand(command.Command{Kind: command.KindSetSolo, TrackID: "t1", Flag: true})
	require.True(t, d.rt.Sheet.FindTrack("t1").Solo)

	d.applyCommand(command.Command{Kind: command.KindSetArm, TrackID: "t1", Flag: true})
	require.True(t, d.rt.Sheet.FindTrack("t1").Armed)

	d.applyCommand(command.Command{Kind: command.KindSetGain, TrackID: "t1", Gain: 0.25})
	require.Equal(t, 0.25, d.rt.Sheet.FindTrack("t1").Chain.Envelope().GainAt(0))
}

func TestApplyCommandSetGainTargetsClipWhenClipIDSet(t *testing.T) {
	d := newTestDevice()
	tr := track.New("t1", "Track 1", 64)
	d.applyCommand(command.Command{Kind: command.KindAddTrack, Track: tr})
	c := clip.New("c1", nil, timeref.New(0), timeref.New(100), timeref.New(0))
	d.applyCommand(command.Command{Kind: command.KindAddClip, TrackID: "t1", Clip: c})

	d.applyCommand(command.Command{Kind: command.KindSetGain, TrackID: "t1", ClipID: "c1", Gain: 0.75})
	require.Equal(t, 0.75, d.rt.Sheet.FindTrack("t1").FindClip("c1").Gain)
}

func TestApplyCommandSeekRepositionsTransportWhileRunning(t *testing.T) {
	d := newTestDevice()
	d.rt.Transport.Start()

	d.applyCommand(command.Command{Kind: command.KindSeek, Position: timeref.New(1000)})
	require.Equal(t, timeref.New(1000), d.rt.Transport.Position())
	require.Equal(t, session.StateRunning, d.rt.Transport.State())
}

var _ plugin.Node = noopNode{}
