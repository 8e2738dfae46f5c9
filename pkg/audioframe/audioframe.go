// Package audioframe captures one realtime cycle's mixed output for a
// level-meter or scope consumer (§0 Non-goals "GUI... remains an external
// collaborator"): the payload is timestamped with the transport position
// it covers and pre-reduced to a peak sample value, so a slow consumer
// never has to touch the PCM bytes to answer "where are we" or "how
// loud".
package audioframe

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/drgolem/rtengine/pkg/timeref"
)

// Format describes the interleaved PCM layout of a CycleFrame's payload.
type Format struct {
	SampleRate    uint32 // Sample rate in Hz (max 384,000)
	Channels      uint8  // Number of channels (max 10)
	BitsPerSample uint8  // Bits per sample (max 64)
}

// CycleFrame is one cycle's worth of mixed, interleaved-int16 output as
// written to the audio device, plus the two scalars a meter actually
// wants: the transport position the cycle started at and the largest
// absolute sample value it contained.
type CycleFrame struct {
	Format       Format
	Position     timeref.TimeRef // transport position at the start of this cycle
	Peak         float32         // largest |sample| in this cycle, pre-clip scale
	SamplesCount uint16          // Number of samples (max 65,535)
	Audio        []byte          // Raw audio data (last field for better memory layout)
}

// headerSize is the marshaled header length: SampleRate(4) Channels(1)
// BitsPerSample(1) SamplesCount(2) Position(8) Peak(4) AudioLen(4).
const headerSize = 24

// Marshal serializes CycleFrame to a byte slice using little-endian encoding.
func (f *CycleFrame) Marshal() []byte {
	buf := make([]byte, headerSize+len(f.Audio))

	binary.LittleEndian.PutUint32(buf[0:4], f.Format.SampleRate)
	buf[4] = f.Format.Channels
	buf[5] = f.Format.BitsPerSample
	binary.LittleEndian.PutUint16(buf[6:8], f.SamplesCount)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.Position))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(f.Peak))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(len(f.Audio)))

	copy(buf[headerSize:], f.Audio)

	return buf
}

// Unmarshal deserializes a byte slice into CycleFrame using little-endian
// encoding. Returns an error if the buffer is shorter than headerSize or
// the declared audio length exceeds what remains.
func (f *CycleFrame) Unmarshal(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("buffer too small: got %d bytes, need at least %d bytes", len(data), headerSize)
	}

	f.Format.SampleRate = binary.LittleEndian.Uint32(data[0:4])
	f.Format.Channels = data[4]
	f.Format.BitsPerSample = data[5]
	f.SamplesCount = binary.LittleEndian.Uint16(data[6:8])
	f.Position = timeref.TimeRef(binary.LittleEndian.Uint64(data[8:16]))
	f.Peak = math.Float32frombits(binary.LittleEndian.Uint32(data[16:20]))
	audioLen := int(binary.LittleEndian.Uint32(data[20:24]))

	if len(data) < headerSize+audioLen {
		return fmt.Errorf("buffer too small for audio data: got %d bytes, need %d bytes", len(data), headerSize+audioLen)
	}

	f.Audio = make([]byte, audioLen)
	copy(f.Audio, data[headerSize:headerSize+audioLen])

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *CycleFrame) MarshalBinary() ([]byte, error) {
	return f.Marshal(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *CycleFrame) UnmarshalBinary(data []byte) error {
	return f.Unmarshal(data)
}

// PeakFloat32 computes the peak absolute sample value across a planar
// float32 bus (§4.9's mix bus layout), the value audiodevice.Device
// stamps onto each CycleFrame before handing it to the meter ring.
func PeakFloat32(bus [][]float32, n int) float32 {
	var peak float32
	for ch := range bus {
		for i := 0; i < n && i < len(bus[ch]); i++ {
			v := bus[ch][i]
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}
