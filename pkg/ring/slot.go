// Package ring implements the two-sided lock-free slot queue that moves
// fixed-size planar audio buffers between a disk-I/O thread and the
// realtime audio callback thread. It follows the atomic-position SPSC
// technique of pkg/ringbuffer, generalized from a byte span to a fixed
// array of *Slot pointers so ownership of each slot's backing memory
// transfers between the two queues without ever being shared.
package ring

import (
	"sync/atomic"

	"github.com/drgolem/rtengine/pkg/timeref"
)

// DefaultSlotCount is the total number of slots a Ring allocates, split
// between its free and rt queues as they drain and refill.
const DefaultSlotCount = 50

// Slot is one fixed-capacity unit of transfer between disk-I/O and the
// realtime thread: a planar (channel-major) buffer, the source-file
// location of its first frame, and a monotonic slot number.
type Slot struct {
	Channels     [][]float32
	FileLocation timeref.TimeRef
	SlotNumber   int64
}

// NewSlot allocates a slot with channelCount planar buffers of
// framesPerSlot capacity each.
func NewSlot(slotNumber int64, channelCount, framesPerSlot int) *Slot {
	s := &Slot{
		Channels:     make([][]float32, channelCount),
		FileLocation: timeref.Invalid,
		SlotNumber:   slotNumber,
	}
	for ch := range s.Channels {
		s.Channels[ch] = make([]float32, framesPerSlot)
	}
	return s
}

// FramesPerSlot returns the slot's per-channel capacity.
func (s *Slot) FramesPerSlot() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// SlotQueue is a fixed-capacity single-producer/single-consumer queue of
// *Slot pointers. Operations are wait-free: TryEnqueue/TryDequeue either
// succeed immediately or report failure, never block or allocate.
type SlotQueue struct {
	buffer   []*Slot
	size     uint64 // power of 2
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// NewSlotQueue creates a queue with capacity rounded up to the next power
// of two.
func NewSlotQueue(capacity int) *SlotQueue {
	size := nextPowerOf2(uint64(capacity))
	return &SlotQueue{
		buffer: make([]*Slot, size),
		size:   size,
		mask:   size - 1,
	}
}

// TryEnqueue publishes slot to the queue. It releases the slot's contents
// before advancing writePos (Go's memory model gives this ordering via the
// atomic store), so a concurrent TryDequeue that observes the new writePos
// also observes the slot's final field values.
func (q *SlotQueue) TryEnqueue(slot *Slot) bool {
	writePos := q.writePos.Load()
	readPos := q.readPos.Load()
	if writePos-readPos >= q.size {
		return false
	}
	q.buffer[writePos&q.mask] = slot
	q.writePos.Store(writePos + 1)
	return true
}

// TryDequeue removes and returns the head slot, or (nil, false) if empty.
func (q *SlotQueue) TryDequeue() (*Slot, bool) {
	readPos := q.readPos.Load()
	writePos := q.writePos.Load()
	if readPos == writePos {
		return nil, false
	}
	slot := q.buffer[readPos&q.mask]
	q.buffer[readPos&q.mask] = nil
	q.readPos.Store(readPos + 1)
	return slot, true
}

// Peek returns the head slot without dequeuing it, or (nil, false) if empty.
func (q *SlotQueue) Peek() (*Slot, bool) {
	readPos := q.readPos.Load()
	writePos := q.writePos.Load()
	if readPos == writePos {
		return nil, false
	}
	return q.buffer[readPos&q.mask], true
}

// Len returns the number of slots currently queued.
func (q *SlotQueue) Len() uint64 {
	return q.writePos.Load() - q.readPos.Load()
}

// Cap returns the queue's fixed capacity.
func (q *SlotQueue) Cap() uint64 {
	return q.size
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
