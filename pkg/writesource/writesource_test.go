package writesource

import (
	"math"
	"math/cmplx"
	"path/filepath"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/require"

	wavdec "github.com/drgolem/rtengine/pkg/decoders/wav"
)

func TestRingbufferWriteFillsSlotsAndPublishesToRT(t *testing.T) {
	ws := Open(filepath.Join(t.TempDir(), "out.wav"), 1, 48000, 16, false)
	ws.AllocateRing(4, 8)

	src := [][]float32{make([]float32, 8)}
	for i := range src[0] {
		src[0][i] = float32(i) / 8
	}

	n := ws.RingbufferWrite(src, 8)
	require.Equal(t, 8, n)
	require.EqualValues(t, 1, ws.ring.RT.Len())
	require.EqualValues(t, int64(8), ws.WriteCursor())
}

func TestRingbufferWriteReturnsShortWhenFreeExhausted(t *testing.T) {
	ws := Open(filepath.Join(t.TempDir(), "out.wav"), 1, 48000, 16, false)
	ws.AllocateRing(1, 8) // only one slot total

	src := [][]float32{make([]float32, 24)}
	n := ws.RingbufferWrite(src, 24) // needs 3 slots, only 1 exists
	require.Less(t, n, 24)
}

func TestRbFileWriteDrainsRTIntoEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	ws := Open(path, 1, 48000, 16, false)
	ws.AllocateRing(4, 8)
	require.NoError(t, ws.PrepareExport(8))

	src := [][]float32{make([]float32, 8)}
	ws.RingbufferWrite(src, 8)

	drained, err := ws.RbFileWrite()
	require.NoError(t, err)
	require.Equal(t, 1, drained)

	written, err := ws.FinishExport()
	require.NoError(t, err)
	require.EqualValues(t, 8, written)
}

func TestFlushPartialZeroPadsAndPublishesIncompleteSlot(t *testing.T) {
	ws := Open(filepath.Join(t.TempDir(), "out.wav"), 1, 48000, 16, false)
	ws.AllocateRing(4, 8)

	src := [][]float32{{1, 1, 1}}
	ws.RingbufferWrite(src, 3) // partial slot, 5 frames short

	partial := ws.FlushPartial()
	require.Equal(t, 3, partial)
	require.EqualValues(t, 1, ws.ring.RT.Len())
}

func TestFlushPartialNoopWithoutPendingSlot(t *testing.T) {
	ws := Open(filepath.Join(t.TempDir(), "out.wav"), 1, 48000, 16, false)
	ws.AllocateRing(4, 8)
	require.Zero(t, ws.FlushPartial())
}

// TestRecordedSineRoundTripsThroughEncoderAndDecoder exercises §8's
// gapless-recording scenario end to end: a sine wave pushed through the
// realtime write path, drained to a WAV file, then decoded back and
// verified by FFT to still carry its dominant frequency, confirming the
// dither/quantize/encode path doesn't corrupt the signal beyond 16-bit
// quantization noise.
func TestRecordedSineRoundTripsThroughEncoderAndDecoder(t *testing.T) {
	const sampleRate = 48000
	const freq = 440.0
	const totalFrames = 4096

	path := filepath.Join(t.TempDir(), "sine.wav")
	ws := Open(path, 1, sampleRate, 16, false)
	ws.AllocateRing(8, 256)
	require.NoError(t, ws.PrepareExport(totalFrames))

	samples := make([]float32, totalFrames)
	for i := range samples {
		samples[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	written := 0
	for written < totalFrames {
		n := totalFrames - written
		if n > 256 {
			n = 256
		}
		chunk := [][]float32{samples[written : written+n]}
		accepted := ws.RingbufferWrite(chunk, n)
		written += accepted

		if _, err := ws.RbFileWrite(); err != nil {
			t.Fatalf("RbFileWrite: %v", err)
		}
	}
	ws.FlushPartial()
	ws.RbFileWrite()

	_, err := ws.FinishExport()
	require.NoError(t, err)

	dec := wavdec.NewDecoder()
	require.NoError(t, dec.Open(path))
	defer dec.Close()

	rate, channels, bits := dec.GetFormat()
	require.Equal(t, sampleRate, rate)
	require.Equal(t, 1, channels)
	require.Equal(t, 16, bits)

	buf := make([]byte, totalFrames*2)
	got, err := dec.DecodeSamples(totalFrames, buf)
	require.NoError(t, err)
	require.Greater(t, got, totalFrames/2)

	samples64 := make([]float64, got)
	for i := 0; i < got; i++ {
		v := int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
		samples64[i] = float64(v) / 32768.0
	}

	spectrum := fft.FFTReal(samples64)
	binHz := float64(sampleRate) / float64(len(samples64))
	peakBin := 0
	peakMag := 0.0
	for i := 1; i < len(spectrum)/2; i++ {
		mag := cmplx.Abs(spectrum[i])
		if mag > peakMag {
			peakMag = mag
			peakBin = i
		}
	}
	peakFreq := float64(peakBin) * binHz
	require.InDelta(t, freq, peakFreq, binHz*2)
}
