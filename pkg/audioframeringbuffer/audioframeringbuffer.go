// Package audioframeringbuffer buffers audioframe.CycleFrames between the
// realtime audio thread and a metering consumer (§0 Non-goals "GUI...
// remains an external collaborator"): the same lock-free SPSC technique
// pkg/ring uses for slot pointers, specialized to frame values instead,
// since a meter never needs a free-list handshake back to the producer -
// it only ever falls behind, and a write into a full buffer is rejected,
// so the frames lost are the newest ones.
package audioframeringbuffer

import (
	"sync/atomic"

	"github.com/drgolem/rtengine/pkg/audioframe"
	"github.com/drgolem/rtengine/pkg/types"
)

var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

// CycleFrameRingBuffer is a lock-free single-producer single-consumer
// ring buffer of audioframe.CycleFrame values.
//
// Thread safety:
//   - Write must only be called by the realtime audio thread
//   - Read must only be called by the metering consumer goroutine
//
// Capacity is rounded up to the next power of 2 for cheap modulo via
// bitwise AND.
type CycleFrameRingBuffer struct {
	buffer   []audioframe.CycleFrame
	size     uint64 // must be power of 2
	mask     uint64 // size - 1, for efficient modulo
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring buffer sized for at least capacity frames.
func New(capacity uint64) *CycleFrameRingBuffer {
	capacity = nextPowerOf2(capacity)

	return &CycleFrameRingBuffer{
		buffer: make([]audioframe.CycleFrame, capacity),
		size:   capacity,
		mask:   capacity - 1,
	}
}

// Write pushes as many of frames as fit and returns how many were
// written. The Audio slice of each frame is deep-copied so the realtime
// thread may reuse its scratch buffer immediately after Write returns.
func (rb *CycleFrameRingBuffer) Write(frames []audioframe.CycleFrame) (int, error) {
	frameCount := uint64(len(frames))
	if frameCount == 0 {
		return 0, nil
	}

	available := rb.AvailableWrite()
	toWrite := min(frameCount, available)
	if toWrite == 0 {
		return 0, ErrInsufficientSpace
	}

	writePos := rb.writePos.Load()
	for i := uint64(0); i < toWrite; i++ {
		pos := (writePos + i) & rb.mask
		rb.buffer[pos] = frames[i]
		rb.buffer[pos].Audio = make([]byte, len(frames[i].Audio))
		copy(rb.buffer[pos].Audio, frames[i].Audio)
	}
	rb.writePos.Store(writePos + toWrite)

	return int(toWrite), nil
}

// Read pops up to numFrames frames in FIFO order. Returns
// ErrInsufficientData (not a short slice) if the ring is currently
// empty, so a polling meter consumer can distinguish "nothing yet" from
// "fewer than asked".
func (rb *CycleFrameRingBuffer) Read(numFrames int) ([]audioframe.CycleFrame, error) {
	if numFrames <= 0 {
		return nil, nil
	}

	available := rb.AvailableRead()
	if available == 0 {
		return nil, ErrInsufficientData
	}

	toRead := min(uint64(numFrames), available)
	readPos := rb.readPos.Load()
	result := make([]audioframe.CycleFrame, toRead)
	for i := uint64(0); i < toRead; i++ {
		pos := (readPos + i) & rb.mask
		result[i] = rb.buffer[pos]
	}
	rb.readPos.Store(readPos + toRead)

	return result, nil
}

// AvailableWrite returns the number of frames that can be written before
// the ring is full.
func (rb *CycleFrameRingBuffer) AvailableWrite() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return rb.size - (writePos - readPos)
}

// AvailableRead returns the number of frames waiting to be read.
func (rb *CycleFrameRingBuffer) AvailableRead() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return writePos - readPos
}

// Size returns the ring's capacity in frames.
func (rb *CycleFrameRingBuffer) Size() uint64 {
	return rb.size
}

// Reset drops all buffered frames by resetting the position counters,
// for a meter consumer that wants to resync after falling far behind
// rather than drain a stale backlog.
func (rb *CycleFrameRingBuffer) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
