package readsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/decoders/stream"
)

// TestFillOneSlotProducesContiguousFileLocations checks the IN_SYNC
// invariant that successive slots' FileLocation differ by exactly one
// slot's duration, with no resampler in the chain (outputRate == fileRate).
func TestFillOneSlotProducesContiguousFileLocations(t *testing.T) {
	format := stream.AudioFormat{SampleRate: 48000, Channels: 1, BytesPerSample: 2}
	provider := &fakePacketProvider{format: format, packetFrames: 1024, remaining: 1024 * 8}
	dec := stream.NewStreamDecoder(context.Background(), provider, format)

	rs, err := OpenDecoder("contig", dec, 48000)
	require.NoError(t, err)
	defer rs.Close()

	const framesPerSlot = 256
	rs.AllocateRing(8, framesPerSlot)
	slotDuration := rs.SlotDuration()
	require.Greater(t, int64(slotDuration), int64(0))

	var locations []int64
	for i := 0; i < 6; i++ {
		require.True(t, rs.FillOneSlot())
		slot, ok := rs.ring.RT.TryDequeue()
		require.True(t, ok)
		locations = append(locations, int64(slot.FileLocation))
		rs.ring.Free.TryEnqueue(slot)
	}

	for i := 1; i < len(locations); i++ {
		require.Equal(t, int64(slotDuration), locations[i]-locations[i-1])
	}
}
