package peak

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/drgolem/rtengine/pkg/timeref"
)

func TestProcessRangeFramesScalesToFileRate(t *testing.T) {
	require.EqualValues(t, BaseChunkSize, ProcessRangeFrames(44100))
	require.EqualValues(t, BaseChunkSize*2, ProcessRangeFrames(88200))
}

func TestSaveLoadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.peak")

	levels := make([][]Pair, NumLevels)
	levels[0] = []Pair{{Min: 100, Max: 200}, {Min: 50, Max: 300}}
	for k := 1; k < NumLevels; k++ {
		levels[k] = []Pair{}
	}
	norms := []float32{0.1, 0.2, 0.3}

	require.NoError(t, saveFile(path, levels, norms))

	gotLevels, gotNorms, err := loadFile(path)
	require.NoError(t, err)
	require.Equal(t, levels[0], gotLevels[0])
	require.Equal(t, norms, gotNorms)
}

func TestBuildPyramidDecimatesLevels(t *testing.T) {
	level0 := []Pair{
		{Min: 10, Max: 20},
		{Min: 30, Max: 15},
		{Min: 5, Max: 40}, // trailing, unpaired: dropped by floor(3/2)=1
	}
	levels := buildPyramid(level0)
	require.Len(t, levels[1], 1)
	require.Equal(t, int16(20), levels[1][0].Max)
	require.Equal(t, int16(30), levels[1][0].Min) // Min is stored negated, so decimation keeps the larger magnitude
}

func TestBuildPyramidSizeHalvesByFloorAtEveryLevel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(rt, "n")
		level0 := make([]Pair, n)
		for i := range level0 {
			level0[i] = Pair{Min: int16(-i % 100), Max: int16(i % 100)}
		}

		levels := buildPyramid(level0)
		for k := 1; k < len(levels); k++ {
			want := len(levels[k-1]) / 2
			if len(levels[k]) != want {
				rt.Fatalf("level %d: got %d pairs, want floor(%d/2)=%d", k, len(levels[k]), len(levels[k-1]), want)
			}
		}
	})
}

func TestBuildPyramidEachPairIsPairwiseMaxOfChildren(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 200).Draw(rt, "n")
		level0 := make([]Pair, n)
		for i := range level0 {
			level0[i] = Pair{
				Min: int16(rapid.IntRange(-1000, 1000).Draw(rt, "min")),
				Max: int16(rapid.IntRange(-1000, 1000).Draw(rt, "max")),
			}
		}

		levels := buildPyramid(level0)
		for i, pair := range levels[1] {
			a, b := level0[2*i], level0[2*i+1]
			wantMax := a.Max
			if b.Max > wantMax {
				wantMax = b.Max
			}
			wantMin := a.Min
			if b.Min > wantMin {
				wantMin = b.Min
			}
			if pair.Max != wantMax || pair.Min != wantMin {
				rt.Fatalf("pair %d: got {%d,%d}, want {%d,%d}", i, pair.Min, pair.Max, wantMin, wantMax)
			}
		}
	})
}

func TestStoreProcessAndFinishWritesLoadablePeakFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mono-ch0.peak")

	s := NewStore(path, 44100)
	buf := make([]float32, 1000)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = 0.5
		} else {
			buf[i] = -0.25
		}
	}
	s.Process(buf, len(buf))
	require.NoError(t, s.Finish())

	r, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, r.Level(0))
	require.Nil(t, r.Level(NumLevels))
}

func TestValidRejectsMissingOrStalePeak(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.wav")
	peakPath := filepath.Join(dir, "source-ch0.peak")

	require.False(t, Valid(peakPath, source))
}

type fakeFrameReader struct {
	channels int
	rate     int
	name     string
	data     []float32
}

func (f *fakeFrameReader) FileRead(buf [][]float32, fileLocation timeref.TimeRef, nFrames int) (int, error) {
	start := int(fileLocation.ToFrames(f.rate))
	if start >= len(f.data) {
		return 0, errors.New("eof")
	}
	n := nFrames
	if start+n > len(f.data) {
		n = len(f.data) - start
	}
	for ch := range buf {
		copy(buf[ch][:n], f.data[start:start+n])
	}
	return n, nil
}

func (f *fakeFrameReader) ChannelCount() int { return f.channels }
func (f *fakeFrameReader) OutputRate() int   { return f.rate }
func (f *fakeFrameReader) FileName() string  { return f.name }

func TestBuildBackgroundWritesFullPyramid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bg-ch0.peak")

	data := make([]float32, 5000)
	for i := range data {
		data[i] = 0.1
	}
	reader := &fakeFrameReader{channels: 1, rate: 44100, name: "bg.wav", data: data}

	s := NewStore(path, 44100)
	err := s.BuildBackground(context.Background(), reader, 0)
	require.NoError(t, err)

	r, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, r.Level(0))
}

func TestBuildBackgroundCancelledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cancel-ch0.peak")

	data := make([]float32, 10_000_000)
	reader := &fakeFrameReader{channels: 1, rate: 44100, name: "big.wav", data: data}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStore(path, 44100)
	err := s.BuildBackground(ctx, reader, 0)
	require.Error(t, err)
	require.NoFileExists(t, path)
}

func TestGetMaxAmplitudeUsesNormValuesForWholeWindows(t *testing.T) {
	levels := make([][]Pair, NumLevels)
	for k := range levels {
		levels[k] = []Pair{}
	}
	r := &Reader{levels: levels, normValues: []float32{0.2, 0.9, 0.1}}

	amp, err := GetMaxAmplitude(r, nil, 44100, NormalizeChunkSize, 2*NormalizeChunkSize)
	require.NoError(t, err)
	require.InDelta(t, 0.9, amp, 1e-6)
}

func TestGetMaxAmplitudeEmptyRangeIsZero(t *testing.T) {
	r := &Reader{}
	amp, err := GetMaxAmplitude(r, nil, 44100, 100, 100)
	require.NoError(t, err)
	require.Zero(t, amp)
}

func TestBuildQueueDedupesBySourceAndChannel(t *testing.T) {
	q := NewBuildQueue()
	reader := &fakeFrameReader{channels: 1, rate: 44100, name: "a.wav", data: make([]float32, 10)}

	q.RequestBuild(BuildRequest{SourceID: "s1", Channel: 0, FileRate: 44100, Reader: reader})
	q.RequestBuild(BuildRequest{SourceID: "s1", Channel: 0, FileRate: 44100, Reader: reader})

	require.Len(t, q.pending, 1)
}

func TestBuildQueueCancelRemovesPending(t *testing.T) {
	q := NewBuildQueue()
	reader := &fakeFrameReader{channels: 1, rate: 44100, name: "a.wav", data: make([]float32, 10)}
	q.RequestBuild(BuildRequest{SourceID: "s1", Channel: 0, FileRate: 44100, Reader: reader})
	q.Cancel("s1", 0)
	require.Empty(t, q.pending)
}

func TestBuildQueueRunProcessesRequests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q-ch0.peak")

	data := make([]float32, 2000)
	for i := range data {
		data[i] = 0.3
	}
	reader := &fakeFrameReader{channels: 1, rate: 44100, name: "q.wav", data: data}

	q := NewBuildQueue()
	q.RequestBuild(BuildRequest{SourceID: "s1", Channel: 0, FileRate: 44100, PeakPath: path, Reader: reader})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := Load(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestChannelPeakPathConvention(t *testing.T) {
	require.Equal(t, "dir/song-ch1.peak", ChannelPeakPath("dir", "song", 1))
}
