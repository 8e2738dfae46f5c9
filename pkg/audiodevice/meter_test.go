package audiodevice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/audioframe"
	"github.com/drgolem/rtengine/pkg/audioframeringbuffer"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// TestDrainMeterFramesReportsPositionAndPeak checks that the metering tap
// stamps each CycleFrame with the transport position and peak level the
// cycle it was built from actually had (§0 Non-goals "GUI... remains an
// external collaborator" still needs something to consume).
func TestDrainMeterFramesReportsPositionAndPeak(t *testing.T) {
	d := newTestDevice()
	d.meter = audioframeringbuffer.New(4)
	d.cfg = Config{SampleRate: 48000, Channels: 2}

	pos := timeref.FromFrames(960, 48000)
	_, err := d.meter.Write([]audioframe.CycleFrame{{
		Format: audioframe.Format{
			SampleRate:    uint32(d.cfg.SampleRate),
			Channels:      uint8(d.cfg.Channels),
			BitsPerSample: 16,
		},
		Position:     pos,
		Peak:         0.42,
		SamplesCount: 64,
		Audio:        make([]byte, 64*4),
	}})
	require.NoError(t, err)

	frames := d.DrainMeterFrames(1)
	require.Len(t, frames, 1)
	require.Equal(t, pos, frames[0].Position)
	require.InDelta(t, 0.42, frames[0].Peak, 1e-6)
}

func TestPeakFloat32Wiring(t *testing.T) {
	bus := [][]float32{{0.1, -0.6}, {0.3, 0.2}}
	require.InDelta(t, 0.6, audioframe.PeakFloat32(bus, 2), 1e-6)
}
