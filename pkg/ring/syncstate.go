package ring

import "sync/atomic"

// SyncState classifies whether a read source's ring currently matches the
// realtime thread's demand (§4.2 of the engine spec).
type SyncState int32

const (
	StateUnknown SyncState = iota
	StateOutOfSync
	StateInSync
	StateQueueSeekingToNewLocation
	StateQueueSeekedToNewLocation
	StateFillRTBufferDequeueFailure
	StateFillRTBufferEnqueueFailure
)

func (s SyncState) String() string {
	switch s {
	case StateOutOfSync:
		return "OUT_OF_SYNC"
	case StateInSync:
		return "IN_SYNC"
	case StateQueueSeekingToNewLocation:
		return "QUEUE_SEEKING_TO_NEW_LOCATION"
	case StateQueueSeekedToNewLocation:
		return "QUEUE_SEEKED_TO_NEW_LOCATION"
	case StateFillRTBufferDequeueFailure:
		return "FILL_RTBUFFER_DEQUEUE_FAILURE"
	case StateFillRTBufferEnqueueFailure:
		return "FILL_RTBUFFER_ENQUEUE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// BufferStatus is the atomically-shared state both the disk-I/O thread and
// the realtime thread read and write: fill percentage, sync state and
// scheduling priority (§4.4 "hunger" ranking).
type BufferStatus struct {
	syncState   atomic.Int32
	FillPercent atomic.Int32
	Priority    atomic.Int32
}

// NewBufferStatus returns a status with default priority 1 and unknown sync state.
func NewBufferStatus() *BufferStatus {
	bs := &BufferStatus{}
	bs.syncState.Store(int32(StateUnknown))
	bs.Priority.Store(1)
	return bs
}

// SyncState returns the current sync state.
func (b *BufferStatus) SyncState() SyncState {
	return SyncState(b.syncState.Load())
}

// SetSyncState sets the current sync state.
func (b *BufferStatus) SetSyncState(s SyncState) {
	b.syncState.Store(int32(s))
}

// OutOfSync reports whether the ring is anything other than IN_SYNC.
func (b *BufferStatus) OutOfSync() bool {
	return b.SyncState() != StateInSync
}
