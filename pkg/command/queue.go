// Package command implements the control<->realtime SPSC command queue
// and its symmetric dispose queue (§5, §9): control threads publish
// model mutations as tagged Command values the realtime thread drains at
// the top of each cycle; the realtime thread publishes Disposed values
// back once it no longer references a removed resource, the "lockless
// remove" protocol.
package command

import "sync/atomic"

// Queue is a fixed-capacity single-producer/single-consumer queue of T,
// generalizing the atomic-position technique pkg/ring.SlotQueue uses for
// *Slot to an arbitrary value type (§5 "published via a handoff queue").
type Queue[T any] struct {
	buffer   []T
	size     uint64
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// NewQueue creates a queue with capacity rounded up to the next power of two.
func NewQueue[T any](capacity int) *Queue[T] {
	size := nextPowerOf2(uint64(capacity))
	return &Queue[T]{
		buffer: make([]T, size),
		size:   size,
		mask:   size - 1,
	}
}

// TryPush publishes v, returning false if the queue is full.
func (q *Queue[T]) TryPush(v T) bool {
	writePos := q.writePos.Load()
	readPos := q.readPos.Load()
	if writePos-readPos >= q.size {
		return false
	}
	q.buffer[writePos&q.mask] = v
	q.writePos.Store(writePos + 1)
	return true
}

// TryPop removes and returns the head value, or the zero value and false
// if empty.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	readPos := q.readPos.Load()
	writePos := q.writePos.Load()
	if readPos == writePos {
		return zero, false
	}
	v := q.buffer[readPos&q.mask]
	q.buffer[readPos&q.mask] = zero
	q.readPos.Store(readPos + 1)
	return v, true
}

// DrainAll pops every currently-available value and calls fn for each,
// in FIFO order. Used by the realtime thread at the top of its cycle to
// apply every pending control-thread command (§5).
func (q *Queue[T]) DrainAll(fn func(T)) {
	for {
		v, ok := q.TryPop()
		if !ok {
			return
		}
		fn(v)
	}
}

// Len returns the number of values currently queued.
func (q *Queue[T]) Len() uint64 {
	return q.writePos.Load() - q.readPos.Load()
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
