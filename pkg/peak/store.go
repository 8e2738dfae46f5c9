package peak

import (
	"context"
	"fmt"
	"os"

	"github.com/drgolem/rtengine/pkg/timeref"
)

// FrameReader is the synchronous, non-realtime read path a Store drives
// for background builds (§4.5 "reads the entire source file in 64k-frame
// chunks through file_read"). *readsource.ReadSource satisfies this.
type FrameReader interface {
	FileRead(buf [][]float32, fileLocation timeref.TimeRef, nFrames int) (int, error)
	ChannelCount() int
	OutputRate() int
	FileName() string
}

// accumulator holds one channel's in-progress level-0 chunk and
// normalize-chunk running state (§4.5 online mode).
type accumulator struct {
	level0 []Pair

	chunkMin, chunkMax   float32
	framesInChunk        int64
	processRangeFrames   int64
	normMax              float32
	framesInNorm         int64
	normValues           []float32
}

func newAccumulator(fileRate int) *accumulator {
	return &accumulator{
		processRangeFrames: ProcessRangeFrames(fileRate),
	}
}

func (a *accumulator) process(buf []float32, n int) {
	for i := 0; i < n; i++ {
		s := buf[i]
		if s > a.chunkMax {
			a.chunkMax = s
		}
		if s < a.chunkMin {
			a.chunkMin = s
		}
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > a.normMax {
			a.normMax = abs
		}

		a.framesInChunk++
		a.framesInNorm++

		if a.framesInChunk >= a.processRangeFrames {
			a.emitLevel0()
		}
		if a.framesInNorm >= NormalizeChunkSize {
			a.normValues = append(a.normValues, a.normMax)
			a.normMax = 0
			a.framesInNorm = 0
		}
	}
}

func (a *accumulator) emitLevel0() {
	maxV := int16(a.chunkMax * MaxDBValue)
	minV := int16(-a.chunkMin * MaxDBValue) // stored negated (§4.5)
	a.level0 = append(a.level0, Pair{Min: minV, Max: maxV})
	a.chunkMin, a.chunkMax = 0, 0
	a.framesInChunk = 0
}

// flush emits any partial trailing chunk/norm window so the file's
// pyramid and norm values cover every frame processed, including a
// source whose length isn't an exact multiple of the chunk sizes.
func (a *accumulator) flush() {
	if a.framesInChunk > 0 {
		a.emitLevel0()
	}
	if a.framesInNorm > 0 {
		a.normValues = append(a.normValues, a.normMax)
		a.normMax = 0
		a.framesInNorm = 0
	}
}

// buildPyramid computes levels 1..MaxLevel from level 0 by pairwise
// decimation: level k's pair i is the max/min of level (k-1)'s pairs
// 2i and 2i+1; an odd trailing element of level (k-1) is dropped, so
// level k has exactly floor(level(k-1)/2) pairs (§4.5, §8).
func buildPyramid(level0 []Pair) [][]Pair {
	levels := make([][]Pair, NumLevels)
	levels[0] = level0
	for k := 1; k < NumLevels; k++ {
		prev := levels[k-1]
		n := len(prev) / 2 // a trailing unpaired element is dropped, not carried forward
		cur := make([]Pair, n)
		for i := 0; i < n; i++ {
			a := prev[2*i]
			b := prev[2*i+1]
			cur[i] = a
			if b.Max > cur[i].Max {
				cur[i].Max = b.Max
			}
			if b.Min > cur[i].Min {
				cur[i].Min = b.Min
			}
		}
		levels[k] = cur
	}
	return levels
}

// Store is one channel's peak accumulator plus the persisted file it
// will (or did) build against. A multi-channel source owns one Store per
// channel, each writing its own "<sourcename>-chN.peak" file.
type Store struct {
	path     string
	fileRate int
	acc      *accumulator
}

// NewStore creates a Store that will write its peak file to path, with
// level-0 chunking scaled to fileRate.
func NewStore(path string, fileRate int) *Store {
	return &Store{
		path:     path,
		fileRate: fileRate,
		acc:      newAccumulator(fileRate),
	}
}

// Process feeds one cycle's worth of samples through the online
// accumulator (§4.5 online mode). Called from the realtime or
// export-driving thread, once per cycle, never concurrently with
// BuildBackground on the same Store.
func (s *Store) Process(buf []float32, n int) {
	s.acc.process(buf, n)
}

// Finish flushes any partial trailing chunk, builds the full pyramid
// from the accumulated level 0, and writes the peak file (§4.5 online
// mode, completed at export/record finish).
func (s *Store) Finish() error {
	s.acc.flush()
	levels := buildPyramid(s.acc.level0)
	return saveFile(s.path, levels, s.acc.normValues)
}

// Valid reports whether an existing peak file at path is usable for
// sourcePath: present, correct magic/version (checked by Load), and not
// older than the source (§6 "peak-file modification time >= source-file
// modification time, else file is discarded").
func Valid(peakPath, sourcePath string) bool {
	peakInfo, err := os.Stat(peakPath)
	if err != nil {
		return false
	}
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	if peakInfo.ModTime().Before(sourceInfo.ModTime()) {
		return false
	}
	if _, _, err := loadFile(peakPath); err != nil {
		return false
	}
	return true
}

// Load reads a previously built peak file's levels and norm values back
// for waveform display / get_max_amplitude use.
func Load(peakPath string) (*Reader, error) {
	levels, norms, err := loadFile(peakPath)
	if err != nil {
		return nil, fmt.Errorf("peak: load %s: %w", peakPath, err)
	}
	return &Reader{levels: levels, normValues: norms}, nil
}

// Reader exposes a loaded peak file's pyramid and norm values for
// read-only use by waveform display and normalization (§4.5, §4.9).
type Reader struct {
	levels     [][]Pair
	normValues []float32
}

// Level returns the pairs at pyramid level k, or nil if k is out of range.
func (r *Reader) Level(k int) []Pair {
	if k < 0 || k >= len(r.levels) {
		return nil
	}
	return r.levels[k]
}

// GetMaxAmplitude returns the peak absolute amplitude (as a [0,1]
// fraction of full scale) over [startFrame, endFrame) at the source's
// file rate. Whole NormalizeChunkSize windows are served from the
// precomputed norm values; the two ragged boundary regions are read
// synchronously through reader (§4.5: "never touches the pyramid").
func GetMaxAmplitude(r *Reader, reader FrameReader, fileRate int, startFrame, endFrame int64) (float32, error) {
	if endFrame <= startFrame {
		return 0, nil
	}

	var maxAmp float32

	firstWholeWindow := ((startFrame + NormalizeChunkSize - 1) / NormalizeChunkSize)
	lastWholeWindow := endFrame / NormalizeChunkSize

	if startFrame < firstWholeWindow*NormalizeChunkSize {
		headEnd := firstWholeWindow * NormalizeChunkSize
		if headEnd > endFrame {
			headEnd = endFrame
		}
		amp, err := readRangeMax(reader, fileRate, startFrame, headEnd)
		if err != nil {
			return 0, err
		}
		if amp > maxAmp {
			maxAmp = amp
		}
	}

	for w := firstWholeWindow; w < lastWholeWindow; w++ {
		if int(w) < len(r.normValues) {
			if v := r.normValues[w]; v > maxAmp {
				maxAmp = v
			}
		}
	}

	if lastWholeWindow*NormalizeChunkSize < endFrame {
		tailStart := lastWholeWindow * NormalizeChunkSize
		if tailStart < startFrame {
			tailStart = startFrame
		}
		amp, err := readRangeMax(reader, fileRate, tailStart, endFrame)
		if err != nil {
			return 0, err
		}
		if amp > maxAmp {
			maxAmp = amp
		}
	}

	return maxAmp, nil
}

func readRangeMax(reader FrameReader, fileRate int, start, end int64) (float32, error) {
	if reader == nil || end <= start {
		return 0, nil
	}
	n := int(end - start)
	buf := make([][]float32, reader.ChannelCount())
	for ch := range buf {
		buf[ch] = make([]float32, n)
	}
	loc := timeref.FromFrames(start, fileRate)
	got, err := reader.FileRead(buf, loc, n)
	if err != nil {
		return 0, err
	}
	var maxAmp float32
	for ch := range buf {
		for i := 0; i < got; i++ {
			v := buf[ch][i]
			if v < 0 {
				v = -v
			}
			if v > maxAmp {
				maxAmp = v
			}
		}
	}
	return maxAmp, nil
}

// BuildBackground reads reader's entire file in 64k-frame chunks and
// feeds each through s.Process, then writes the completed pyramid
// (§4.5 background mode). It watches ctx for cancellation, checked once
// per chunk so a cancel is observable within one 64k-frame chunk (§4.5,
// §5); on cancellation the partial peak file is not written.
func (s *Store) BuildBackground(ctx context.Context, reader FrameReader, channel int) error {
	const chunk = 64 * 1024
	channels := reader.ChannelCount()
	buf := make([][]float32, channels)
	for ch := range buf {
		buf[ch] = make([]float32, chunk)
	}

	var cursor int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		loc := timeref.FromFrames(cursor, s.fileRate)
		n, err := reader.FileRead(buf, loc, chunk)
		if n > 0 {
			s.Process(buf[channel][:n], n)
			cursor += int64(n)
		}
		if err != nil || n == 0 {
			break
		}
	}

	return s.Finish()
}

// ChannelPeakPath is the conventional on-disk name for channel ch of
// source sourceName, mirroring the "<sourcename>-chN.peak" layout (§6).
func ChannelPeakPath(dir, sourceName string, ch int) string {
	return fmt.Sprintf("%s/%s-ch%d.peak", dir, sourceName, ch)
}
