package ring

// Ring is the two-sided slot queue owned jointly by one realtime thread and
// one disk-I/O thread (§3, §4.1). Free holds empty slots waiting to be
// filled (by disk-I/O for a ReadSource, by the realtime thread for a
// WriteSource); RT holds full slots waiting to be consumed (by the
// realtime thread for a ReadSource, by disk-I/O for a WriteSource).
//
// A slot is a member of exactly one queue at any instant: it is either
// owned by Free or by RT, never both, and never touched by both threads
// concurrently.
type Ring struct {
	Free *SlotQueue
	RT   *SlotQueue

	ChannelCount  int
	FramesPerSlot int

	Status *BufferStatus

	nextSlotNumber int64
}

// NewRing allocates slotCount slots of channelCount x framesPerSlot and
// seeds them all into the Free queue, ready for disk-I/O to fill.
func NewRing(slotCount, channelCount, framesPerSlot int) *Ring {
	r := &Ring{
		Free:          NewSlotQueue(slotCount),
		RT:            NewSlotQueue(slotCount),
		ChannelCount:  channelCount,
		FramesPerSlot: framesPerSlot,
		Status:        NewBufferStatus(),
	}
	for i := 0; i < slotCount; i++ {
		slot := NewSlot(r.nextSlotNumber, channelCount, framesPerSlot)
		r.nextSlotNumber++
		if !r.Free.TryEnqueue(slot) {
			panic("ring: free queue overflow during initialization")
		}
	}
	return r
}

// TotalSlots returns the number of slots the ring owns, which the free
// and rt queues' lengths always sum to (§8: free.size + rt.size ==
// slot_capacity). Each queue's own Cap is rounded up to a power of two
// and can be larger.
func (r *Ring) TotalSlots() uint64 {
	return uint64(r.nextSlotNumber)
}

// Occupancy reports how full the rt queue currently is, for use by the
// disk-I/O scheduler's hunger/fullness computation (§4.4).
func (r *Ring) Occupancy() (rtLen, capacity uint64) {
	return r.RT.Len(), r.TotalSlots()
}

// RefreshFillPercent recomputes Status.FillPercent from current rt
// occupancy. Callers update this after any enqueue/dequeue against RT so
// the scheduler's urgency ranking reflects the ring's true state.
func (r *Ring) RefreshFillPercent() {
	rtLen, capacity := r.Occupancy()
	if capacity == 0 {
		r.Status.FillPercent.Store(0)
		return
	}
	r.Status.FillPercent.Store(int32(rtLen * 100 / capacity))
}

// DrainRTToFree moves every slot currently queued in RT back to Free. Used
// by disk-I/O when a seek is detected (§4.2, §4.4) and must not run
// concurrently with the realtime thread's consumption of RT.
func (r *Ring) DrainRTToFree() int {
	n := 0
	for {
		slot, ok := r.RT.TryDequeue()
		if !ok {
			break
		}
		if !r.Free.TryEnqueue(slot) {
			panic("ring: free queue overflow draining rt")
		}
		n++
	}
	return n
}
