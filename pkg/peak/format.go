// Package peak implements the pyramidal min/max waveform cache (§4.5):
// online accumulation during recording/export, background building for
// existing sources, and the on-disk peak file format used to persist
// both. The magic "TRAVPF" and layout below are the wire contract this
// engine's peak files share with every other reader/writer of them, not
// a detail this module is free to redesign.
package peak

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// MaxDBValue is the 16-bit signed peak scale: a peak pair's stored
// max/min are fractions of full scale times this value (§4.5).
const MaxDBValue = 32767

// NormalizeChunkSize is the frame window one running absolute-max
// "norm value" covers (§4.5).
const NormalizeChunkSize = 10000

// BaseChunkSize is level 0's frames-per-data-point, expressed at the
// reference 44.1kHz rate; ProcessRangeFrames scales it to a source's
// actual file rate (§4.5 "64 source frames at 44.1 kHz").
const BaseChunkSize = 64

// referenceRate is the rate BaseChunkSize is defined against.
const referenceRate = 44100

// MaxLevel is the highest pyramid level (zoom step 2^20); level 0 covers
// ProcessRangeFrames frames and each level k>0 covers double level k-1's
// span, so level 14 covers 64*2^14 = 2^20 frames (§4.5).
const MaxLevel = 14

// NumLevels is the number of pyramid levels, including level 0.
const NumLevels = MaxLevel + 1

const peakMajorVersion = 1
const peakMinorVersion = 4

var peakMagic = [6]byte{'T', 'R', 'A', 'V', 'P', 'F'}

// ProcessRangeFrames returns the number of source-rate frames level 0's
// chunk size covers for a source at fileRate (§4.5).
func ProcessRangeFrames(fileRate int) int64 {
	return int64(math.Round(float64(BaseChunkSize) * float64(fileRate) / float64(referenceRate)))
}

// Pair is one (min, max) peak data point. Min is stored negated on disk
// so both fields share the same sign convention as max (§4.5, §8: "min
// is stored negated").
type Pair struct {
	Min int16 // negated: a pair's true minimum is -Min
	Max int16
}

// header is the peak file's fixed-size preamble (§6, wire format).
type header struct {
	Major, Minor         uint8
	PeakDataOffsets      [NumLevels]int32
	PeakDataSizeForLevel [NumLevels]int32 // count of Pair values, not bytes
	NormValuesOffset     int32
	HeaderSize           int32
}

func headerByteSize() int32 {
	// magic(6) + version(2) + offsets + sizes + normValuesOffset(4) + headerSize(4)
	return int32(6 + 2 + NumLevels*4 + NumLevels*4 + 4 + 4)
}

// writeHeader serializes h to w in the on-disk byte order (little-endian).
func writeHeader(w io.Writer, h *header) error {
	if _, err := w.Write(peakMagic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{h.Major, h.Minor}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.PeakDataOffsets); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.PeakDataSizeForLevel); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.NormValuesOffset); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.HeaderSize)
}

// readHeader parses a peak file header from r, returning an error if the
// magic doesn't match or the version is incompatible (§6: "incompatible
// major/minor => discard and rebuild").
func readHeader(r io.Reader) (*header, error) {
	var magic [6]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("peak: read magic: %w", err)
	}
	if magic != peakMagic {
		return nil, fmt.Errorf("peak: bad magic %q", magic)
	}

	var version [2]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, fmt.Errorf("peak: read version: %w", err)
	}
	if version[0] != peakMajorVersion || version[1] != peakMinorVersion {
		return nil, fmt.Errorf("peak: incompatible version %d.%d", version[0], version[1])
	}

	h := &header{Major: version[0], Minor: version[1]}
	if err := binary.Read(r, binary.LittleEndian, &h.PeakDataOffsets); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.PeakDataSizeForLevel); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.NormValuesOffset); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.HeaderSize); err != nil {
		return nil, err
	}
	return h, nil
}

// writePairs appends a level's pairs to w in the on-disk (min-negated, max)
// int16 layout.
func writePairs(w io.Writer, pairs []Pair) error {
	buf := make([]byte, 4)
	for _, p := range pairs {
		binary.LittleEndian.PutUint16(buf[0:2], uint16(p.Min))
		binary.LittleEndian.PutUint16(buf[2:4], uint16(p.Max))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func readPairs(r io.Reader, n int32) ([]Pair, error) {
	buf := make([]byte, int(n)*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	out := make([]Pair, n)
	for i := range out {
		out[i].Min = int16(binary.LittleEndian.Uint16(buf[i*4 : i*4+2]))
		out[i].Max = int16(binary.LittleEndian.Uint16(buf[i*4+2 : i*4+4]))
	}
	return out, nil
}

// saveFile writes a complete peak file: header, then each level's pairs in
// order, then the float32 norm values.
func saveFile(path string, levels [][]Pair, normValues []float32) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("peak: create %s: %w", path, err)
	}
	defer f.Close()

	h := &header{Major: peakMajorVersion, Minor: peakMinorVersion}
	offset := headerByteSize()
	for k := 0; k < NumLevels && k < len(levels); k++ {
		h.PeakDataOffsets[k] = offset
		h.PeakDataSizeForLevel[k] = int32(len(levels[k]))
		offset += int32(len(levels[k])) * 4
	}
	h.NormValuesOffset = offset
	h.HeaderSize = headerByteSize()

	bw := bufio.NewWriter(f)
	if err := writeHeader(bw, h); err != nil {
		return fmt.Errorf("peak: write header %s: %w", path, err)
	}
	for k := 0; k < NumLevels && k < len(levels); k++ {
		if err := writePairs(bw, levels[k]); err != nil {
			return fmt.Errorf("peak: write level %d of %s: %w", k, path, err)
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, normValues); err != nil {
		return fmt.Errorf("peak: write norm values %s: %w", path, err)
	}
	return bw.Flush()
}

// loadFile reads a complete peak file back into its levels and norm values.
func loadFile(path string) (levels [][]Pair, normValues []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}

	levels = make([][]Pair, NumLevels)
	for k := 0; k < NumLevels; k++ {
		pairs, err := readPairs(br, h.PeakDataSizeForLevel[k])
		if err != nil {
			return nil, nil, fmt.Errorf("peak: read level %d: %w", k, err)
		}
		levels[k] = pairs
	}

	var norms []float32
	for {
		var v float32
		if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, fmt.Errorf("peak: read norm values: %w", err)
		}
		norms = append(norms, v)
	}
	return levels, norms, nil
}
