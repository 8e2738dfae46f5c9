// Package wav implements a streaming 16-bit WAV encoder over github.com/youpy/go-wav,
// the same library github.com/drgolem/musictools's transform command uses
// for one-shot output, generalized here to a streaming Write so a
// WriteSource can hand it one slot at a time (§4.3).
package wav

import (
	"fmt"
	"io"
	"os"

	wav "github.com/youpy/go-wav"

	"github.com/drgolem/rtengine/pkg/dither"
	"github.com/drgolem/rtengine/pkg/pcm"
)

// Encoder streams planar float32 audio out to a 16-bit PCM WAV file,
// applying triangular dither before quantization unless disabled (§4.3).
// It commits to numSamples/numChannels/sampleRate at Create time because
// go-wav's header is written up front; nothing checks that the declared
// frame count is reached (see Close and Written).
type Encoder struct {
	file     *os.File
	writer   *wav.Writer
	channels int
	written  uint32
	declared uint32
	ditherer *dither.Generator
}

// Create opens outPath and writes a WAV header declaring numFrames frames
// at the given channel count and sample rate, 16-bit PCM. The dither seed
// is dither.SeedFromPath(outPath), so repeated exports to the same
// destination dither identically; disableDither should be true only for
// lossless re-encodes that never quantize (§4.3 "16-bit dithers by
// default").
func Create(outPath string, numFrames int64, channels, sampleRate int, disableDither bool) (*Encoder, error) {
	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("wav encoder: create %s: %w", outPath, err)
	}

	w := wav.NewWriter(f, uint32(numFrames), uint16(channels), uint32(sampleRate), 16)

	return &Encoder{
		file:     f,
		writer:   w,
		channels: channels,
		declared: uint32(numFrames),
		ditherer: dither.NewGenerator(dither.SeedFromPath(outPath), 16, disableDither),
	}, nil
}

// Write quantizes nFrames of planar float32 audio in src to dithered
// 16-bit PCM and appends it to the file.
func (e *Encoder) Write(src [][]float32, nFrames int) error {
	dithered := make([][]float32, len(src))
	for ch := range src {
		dithered[ch] = make([]float32, nFrames)
		for f := 0; f < nFrames; f++ {
			dithered[ch][f] = src[ch][f] + float32(e.ditherer.Next())
		}
	}

	buf := pcm.PlanarFloat32ToInterleavedInt16(dithered, nFrames)
	if _, err := e.writer.Write(buf); err != nil && err != io.EOF {
		return fmt.Errorf("wav encoder: write: %w", err)
	}
	e.written += uint32(nFrames)
	return nil
}

// Close flushes the file. Export callers should check Written() against
// the frame count they intended to write; go-wav's header already
// committed to the count passed to Create, so a short write leaves a
// technically-valid but truncated-looking WAV file.
func (e *Encoder) Close() error {
	return e.file.Close()
}

// Written returns the number of frames written so far.
func (e *Encoder) Written() uint32 {
	return e.written
}
