package readsource

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/decoders/stream"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// fakePacketProvider is an in-memory stream.AudioPacketProvider that hands
// out a fixed number of silent packets before returning io.EOF. It exists
// only to exercise stream.StreamDecoder through OpenDecoder; it makes no
// network calls, matching the engine's non-goal of implementing networked
// collaboration itself.
type fakePacketProvider struct {
	format       stream.AudioFormat
	packetFrames int
	remaining    int
}

func (p *fakePacketProvider) ReadAudioPacket(ctx context.Context, samples int) (*stream.AudioPacket, error) {
	if p.remaining <= 0 {
		return nil, io.EOF
	}
	n := p.packetFrames
	if n > p.remaining {
		n = p.remaining
	}
	p.remaining -= n
	return &stream.AudioPacket{
		Audio:        make([]byte, n*p.format.Channels*p.format.BytesPerSample),
		SamplesCount: n,
		Format:       p.format,
	}, nil
}

func TestOpenDecoderDrivesStreamDecoder(t *testing.T) {
	format := stream.AudioFormat{SampleRate: 48000, Channels: 2, BytesPerSample: 2}
	provider := &fakePacketProvider{format: format, packetFrames: 256, remaining: 1024}

	dec := stream.NewStreamDecoder(context.Background(), provider, format)

	rs, err := OpenDecoder("live-input", dec, 48000)
	require.NoError(t, err)
	defer rs.Close()

	require.Equal(t, 2, rs.ChannelCount())
	require.Equal(t, 48000, rs.OutputRate())
	require.Equal(t, timeref.Invalid, rs.Length())

	rs.AllocateRing(4, 256)
	filled := 0
	for rs.FillOneSlot() {
		filled++
	}
	require.Greater(t, filled, 0)
}

func TestOpenDecoderLeavesLengthInvalidWithoutFrameLength(t *testing.T) {
	format := stream.AudioFormat{SampleRate: 44100, Channels: 1, BytesPerSample: 2}
	provider := &fakePacketProvider{format: format, packetFrames: 128, remaining: 128}
	dec := stream.NewStreamDecoder(context.Background(), provider, format)

	rs, err := OpenDecoder("mono-live", dec, 0)
	require.NoError(t, err)
	defer rs.Close()

	// StreamDecoder never implements types.FrameLength, so length stays
	// unknown rather than falling back to counting a nonexistent file.
	require.Equal(t, timeref.Invalid, rs.Length())
	require.Equal(t, 44100, rs.OutputRate())
}
