package wav

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	wavdec "github.com/drgolem/rtengine/pkg/decoders/wav"
)

func TestCreateWriteCloseRoundTripsThroughDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	enc, err := Create(path, 100, 2, 44100, true)
	require.NoError(t, err)

	left := make([]float32, 100)
	right := make([]float32, 100)
	for i := range left {
		left[i] = 0.25
		right[i] = -0.25
	}
	require.NoError(t, enc.Write([][]float32{left, right}, 100))
	require.EqualValues(t, 100, enc.Written())
	require.NoError(t, enc.Close())

	dec := wavdec.NewDecoder()
	require.NoError(t, dec.Open(path))
	defer dec.Close()

	rate, channels, bits := dec.GetFormat()
	require.Equal(t, 44100, rate)
	require.Equal(t, 2, channels)
	require.Equal(t, 16, bits)
	require.EqualValues(t, 100, dec.LengthFrames())

	buf := make([]byte, 100*2*2)
	got, err := dec.DecodeSamples(100, buf)
	require.NoError(t, err)
	require.Equal(t, 100, got)
}

func TestWriteAppliesDitherWithinLSB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dithered.wav")

	enc, err := Create(path, 50, 1, 48000, false)
	require.NoError(t, err)

	silence := make([]float32, 50)
	require.NoError(t, enc.Write([][]float32{silence}, 50))
	require.NoError(t, enc.Close())

	dec := wavdec.NewDecoder()
	require.NoError(t, dec.Open(path))
	defer dec.Close()

	buf := make([]byte, 50*2)
	got, err := dec.DecodeSamples(50, buf)
	require.NoError(t, err)
	require.Equal(t, 50, got)

	for i := 0; i < got; i++ {
		v := int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
		require.LessOrEqual(t, v, int16(1))
		require.GreaterOrEqual(t, v, int16(-1))
	}
}

func TestWrittenAccumulatesAcrossMultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.wav")
	enc, err := Create(path, 20, 1, 48000, true)
	require.NoError(t, err)

	chunk := make([]float32, 10)
	require.NoError(t, enc.Write([][]float32{chunk}, 10))
	require.NoError(t, enc.Write([][]float32{chunk}, 10))
	require.EqualValues(t, 20, enc.Written())
	require.NoError(t, enc.Close())
}
