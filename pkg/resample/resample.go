// Package resample wraps github.com/zaf/resample (libsoxr) as the
// optional sample-rate converter owned by a ReadSource or WriteSource
// (§4.1, §4.3). SoXR streams 16-bit interleaved PCM through an io.Writer;
// this wrapper buffers that output so callers can pull it back out a
// chunk at a time, matching how github.com/drgolem/musictools's
// cmd/transform.go already drives the same library for one-shot files.
package resample

import (
	"bytes"
	"fmt"

	soxr "github.com/zaf/resample"
)

// Resampler converts interleaved 16-bit PCM from one sample rate to
// another. It is not safe for concurrent use; each ReadSource/WriteSource
// owns one.
type Resampler struct {
	sink *bytes.Buffer
	r    *soxr.Resampler
}

// New creates a resampler for channels-channel interleaved int16 PCM,
// converting fromRate -> toRate at high quality.
func New(fromRate, toRate, channels int) (*Resampler, error) {
	if fromRate == toRate {
		return nil, nil
	}
	sink := &bytes.Buffer{}
	r, err := soxr.New(sink, float64(fromRate), float64(toRate), channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("resample: create: %w", err)
	}
	return &Resampler{sink: sink, r: r}, nil
}

// Process writes interleaved int16 PCM bytes in and returns whatever
// resampled bytes SoXR has made available so far. SoXR may buffer part of
// the input internally, so the returned slice can be shorter (or longer)
// than a fixed ratio of len(in).
func (r *Resampler) Process(in []byte) ([]byte, error) {
	if r == nil {
		return in, nil
	}
	if _, err := r.r.Write(in); err != nil {
		return nil, fmt.Errorf("resample: write: %w", err)
	}
	out := append([]byte(nil), r.sink.Bytes()...)
	r.sink.Reset()
	return out, nil
}

// Flush closes the underlying resampler, releasing any frames it was
// still holding internally, and returns the final bytes (§4.3 "any
// resampler-held leftover frames are flushed").
func (r *Resampler) Flush() ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	if err := r.r.Close(); err != nil {
		return nil, fmt.Errorf("resample: close: %w", err)
	}
	out := append([]byte(nil), r.sink.Bytes()...)
	r.sink.Reset()
	return out, nil
}
