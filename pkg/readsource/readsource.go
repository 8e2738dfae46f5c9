// Package readsource implements the read-source streaming pipeline
// (§4.2): a decoder plus optional resampler feeding a two-sided slot ring,
// with the OUT_OF_SYNC/IN_SYNC state machine tracking whether the ring's
// head slot currently matches the realtime thread's demand.
package readsource

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/drgolem/rtengine/pkg/decoders"
	"github.com/drgolem/rtengine/pkg/pcm"
	"github.com/drgolem/rtengine/pkg/resample"
	"github.com/drgolem/rtengine/pkg/ring"
	"github.com/drgolem/rtengine/pkg/timeref"
	"github.com/drgolem/rtengine/pkg/types"
)

// ReadSource owns a decoder, an optional resampler and a slot ring. Only
// the disk-I/O thread touches the decoder/resampler; only the realtime
// thread consumes ring.RT and recycles slots to ring.Free (§5).
type ReadSource struct {
	fileName      string
	fileRate      int
	channelCount  int
	bitsPerSample int
	outputRate    int
	length        timeref.TimeRef // reader-reported source length, normalized per design notes

	// decode-side state; only touched by disk-I/O (FillOneSlot/Seek/FileRead).
	mu           sync.Mutex
	decoder      types.AudioDecoder
	resampler    *resample.Resampler
	decodeCursor int64 // next file-rate frame the decoder will produce
	scratchBytes []byte

	auxDecoder      types.AudioDecoder // separate decode path for FileRead (§4.2)
	auxCursor       int64
	auxResampler    *resample.Resampler
	auxScratchBytes []byte

	ring *ring.Ring

	active  atomic.Bool
	invalid atomic.Bool

	// demandLocation/seekPending let the realtime thread flag a live seek
	// (§4.4 point 4) without blocking: RingbufferRead records the file
	// location it actually wanted when the ring falls out of sync, and
	// the disk-I/O thread's ReconcileSeek reads it back and repositions
	// the decoder to match before resuming normal fills.
	demandLocation atomic.Int64
	seekPending    atomic.Bool
}

// Open opens fileName through the decoder factory and prepares a
// ReadSource that will resample to outputRate if needed. The ring is not
// allocated here; call AllocateRing once the realtime thread is known to
// be quiescent (§4.4 point 5, §5).
func Open(fileName string, outputRate int) (*ReadSource, error) {
	dec, err := decoders.NewDecoder(fileName)
	if err != nil {
		return nil, fmt.Errorf("readsource: open %s: %w", fileName, err)
	}

	length, err := lengthOf(dec, fileName)
	if err != nil {
		dec.Close()
		return nil, err
	}

	return newReadSource(fileName, dec, length, outputRate)
}

// OpenDecoder builds a ReadSource around an already-constructed decoder
// rather than opening one from a file path, e.g. pkg/decoders/stream's
// StreamDecoder fed by an in-process AudioPacketProvider instead of a
// file on disk. name is used only for logging/FileName(); it need not
// resolve to a real path. Unlike Open, a decoder with no FrameLength
// leaves Length() at timeref.Invalid rather than falling back to
// counting samples in a file, since there may be no file to count.
func OpenDecoder(name string, dec types.AudioDecoder, outputRate int) (*ReadSource, error) {
	length := timeref.Invalid
	if fl, ok := dec.(types.FrameLength); ok {
		rate, _, _ := dec.GetFormat()
		length = timeref.FromFrames(fl.LengthFrames(), rate)
	}
	return newReadSource(name, dec, length, outputRate)
}

// lengthOf reports dec's frame count, measuring it by decoding the whole
// file when dec doesn't self-report one (§4.1 design note on length
// normalization).
func lengthOf(dec types.AudioDecoder, fileName string) (timeref.TimeRef, error) {
	rate, _, _ := dec.GetFormat()
	if fl, ok := dec.(types.FrameLength); ok {
		return timeref.FromFrames(fl.LengthFrames(), rate), nil
	}
	n, err := countLengthByDecoding(fileName)
	if err != nil {
		return 0, fmt.Errorf("readsource: measuring length of %s: %w", fileName, err)
	}
	return timeref.FromFrames(n, rate), nil
}

func newReadSource(name string, dec types.AudioDecoder, length timeref.TimeRef, outputRate int) (*ReadSource, error) {
	rate, channels, bps := dec.GetFormat()
	bps = effectiveBitsPerSample(bps)

	// outputRate <= 0 means "no resampling, run at the source's own
	// rate", used by callers (e.g. the peaks CLI) that only ever read a
	// source at its native rate and have no output device rate to match.
	if outputRate <= 0 {
		outputRate = rate
	}

	rs := &ReadSource{
		fileName:      name,
		fileRate:      rate,
		channelCount:  channels,
		bitsPerSample: bps,
		outputRate:    outputRate,
		length:        length,
		decoder:       dec,
	}

	if rate != outputRate {
		rsmp, err := resample.New(rate, outputRate, channels)
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("readsource: resampler for %s: %w", name, err)
		}
		rs.resampler = rsmp
	}

	return rs, nil
}

// effectiveBitsPerSample normalizes a decoder-reported bit depth to one of
// the four supported widths. mpg123's Go binding reports an internal
// encoding constant rather than a bit count through GetFormat, but
// go-mpg123's decoder always emits MPG123_ENC_SIGNED_16 PCM by default, so
// any value outside {8,16,24,32} is treated as 16-bit.
func effectiveBitsPerSample(reported int) int {
	switch reported {
	case 8, 16, 24, 32:
		return reported
	default:
		return 16
	}
}

// countLengthByDecoding measures a source's frame length by decoding it
// once to EOF through a throwaway decoder instance. Used when the
// underlying decoder does not implement types.FrameLength (flac/mp3).
func countLengthByDecoding(fileName string) (int64, error) {
	dec, err := decoders.NewDecoder(fileName)
	if err != nil {
		return 0, err
	}
	defer dec.Close()

	_, channels, bps := dec.GetFormat()
	bps = effectiveBitsPerSample(bps)
	const chunk = 64 * 1024
	buf := make([]byte, chunk*channels*pcm.BytesPerSampleForDepth(bps))
	var total int64
	for {
		n, err := dec.DecodeSamples(chunk, buf)
		total += int64(n)
		if err != nil || n == 0 {
			break
		}
	}
	return total, nil
}

// FileName returns the path this source was opened from.
func (rs *ReadSource) FileName() string { return rs.fileName }

// ChannelCount returns the source's channel count.
func (rs *ReadSource) ChannelCount() int { return rs.channelCount }

// OutputRate returns the rate frames are produced at (after resampling).
func (rs *ReadSource) OutputRate() int { return rs.outputRate }

// Length returns the reader-reported source length as a TimeRef.
func (rs *ReadSource) Length() timeref.TimeRef { return rs.length }

// SetActive records whether disk-I/O should keep this source's ring
// filled (§4.2 "realtime flag read by disk-I/O").
func (rs *ReadSource) SetActive(active bool) { rs.active.Store(active) }

// IsActive reports the current active flag.
func (rs *ReadSource) IsActive() bool { return rs.active.Load() }

// Invalid reports whether this source hit a fatal decode error; clips
// referencing it must render silence (§3 "ReadSource ... INVALID on I/O
// error", §4.6 guard 3).
func (rs *ReadSource) Invalid() bool { return rs.invalid.Load() }

// Status returns the ring's shared BufferStatus, or nil if no ring is
// allocated yet.
func (rs *ReadSource) Status() *ring.BufferStatus {
	if rs.ring == nil {
		return nil
	}
	return rs.ring.Status
}

// Close releases the decoder(s) and resampler(s).
func (rs *ReadSource) Close() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var err error
	if rs.decoder != nil {
		err = rs.decoder.Close()
	}
	if rs.auxDecoder != nil {
		rs.auxDecoder.Close()
	}
	return err
}
