package readsource

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	wavenc "github.com/drgolem/rtengine/pkg/encoders/wav"
	"github.com/drgolem/rtengine/pkg/timeref"
)

func writeTestTone(t *testing.T, frames int, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	enc, err := wavenc.Create(path, int64(frames), 1, rate, true)
	require.NoError(t, err)

	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	require.NoError(t, enc.Write([][]float32{samples}, frames))
	require.NoError(t, enc.Close())
	return path
}

// TestFileReadIsIdempotentRegardlessOfPriorPosition checks §8's idempotence
// invariant: reading at a given file location produces the same samples no
// matter what position the source was previously read from, whether that
// means seeking forward (discarding) or backward (reopening).
func TestFileReadIsIdempotentRegardlessOfPriorPosition(t *testing.T) {
	const rate = 48000
	const totalFrames = 4800
	path := writeTestTone(t, totalFrames, rate)

	const target = 1000
	const want = 200

	// Read directly at the target from a freshly opened source.
	rsA, err := Open(path, rate)
	require.NoError(t, err)
	defer rsA.Close()
	outA := [][]float32{make([]float32, want)}
	nA, err := rsA.FileRead(outA, timeref.FromFrames(target, rate), want)
	require.NoError(t, err)
	require.Equal(t, want, nA)

	// Read past the target first (forward discard), then read target again.
	rsB, err := Open(path, rate)
	require.NoError(t, err)
	defer rsB.Close()
	scratch := [][]float32{make([]float32, 100)}
	_, err = rsB.FileRead(scratch, timeref.FromFrames(1500, rate), 100)
	require.NoError(t, err)
	outB := [][]float32{make([]float32, want)}
	nB, err := rsB.FileRead(outB, timeref.FromFrames(target, rate), want)
	require.NoError(t, err)
	require.Equal(t, want, nB)
	require.Equal(t, outA[0], outB[0])

	// Read past the target, then seek backward to it (reopen-and-discard).
	rsC, err := Open(path, rate)
	require.NoError(t, err)
	defer rsC.Close()
	_, err = rsC.FileRead(scratch, timeref.FromFrames(3000, rate), 100)
	require.NoError(t, err)
	outC := [][]float32{make([]float32, want)}
	nC, err := rsC.FileRead(outC, timeref.FromFrames(target, rate), want)
	require.NoError(t, err)
	require.Equal(t, want, nC)
	require.Equal(t, outA[0], outC[0])
}
