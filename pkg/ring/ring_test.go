package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRingSeedsFreeQueue(t *testing.T) {
	r := NewRing(8, 2, 256)
	require.EqualValues(t, 8, r.Free.Len())
	require.EqualValues(t, 0, r.RT.Len())
	rt, cap := r.Occupancy()
	require.EqualValues(t, 0, rt)
	require.EqualValues(t, 8, cap)
}

// TestFreeRTCapacityInvariant checks §8's "free.size + rt.size ==
// slot_capacity": every slot dequeued from Free and pushed to RT keeps the
// two queues' combined occupancy equal to the ring's total slot count.
func TestFreeRTCapacityInvariant(t *testing.T) {
	r := NewRing(8, 1, 64)
	total := r.TotalSlots()

	for i := 0; i < 5; i++ {
		slot, ok := r.Free.TryDequeue()
		require.True(t, ok)
		require.True(t, r.RT.TryEnqueue(slot))
	}

	require.Equal(t, total, r.Free.Len()+r.RT.Len())
}

func TestDrainRTToFree(t *testing.T) {
	r := NewRing(4, 1, 16)
	for i := 0; i < 4; i++ {
		slot, ok := r.Free.TryDequeue()
		require.True(t, ok)
		require.True(t, r.RT.TryEnqueue(slot))
	}

	n := r.DrainRTToFree()
	require.Equal(t, 4, n)
	require.EqualValues(t, 4, r.Free.Len())
	require.EqualValues(t, 0, r.RT.Len())
}

func TestSlotQueueTryEnqueueFullFails(t *testing.T) {
	q := NewSlotQueue(2)
	require.True(t, q.TryEnqueue(NewSlot(0, 1, 4)))
	require.True(t, q.TryEnqueue(NewSlot(1, 1, 4)))
	require.False(t, q.TryEnqueue(NewSlot(2, 1, 4)))
}

func TestSlotQueueTryDequeueEmptyFails(t *testing.T) {
	q := NewSlotQueue(2)
	_, ok := q.TryDequeue()
	require.False(t, ok)
}

func TestSlotQueuePeekDoesNotConsume(t *testing.T) {
	q := NewSlotQueue(2)
	s := NewSlot(7, 1, 4)
	require.True(t, q.TryEnqueue(s))

	peeked, ok := q.Peek()
	require.True(t, ok)
	require.Same(t, s, peeked)
	require.EqualValues(t, 1, q.Len())

	dequeued, ok := q.TryDequeue()
	require.True(t, ok)
	require.Same(t, s, dequeued)
}

// TestConcurrentProducerConsumer exercises the SPSC queue the way the
// teacher's own ringbuffer test does: one producer filling slots, one
// consumer draining them, verifying every slot's SlotNumber survives the
// handoff in order.
func TestConcurrentProducerConsumer(t *testing.T) {
	q := NewSlotQueue(16)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int64(0); i < n; i++ {
			slot := NewSlot(i, 1, 4)
			slot.FileLocation = 0
			slot.SlotNumber = i
			for !q.TryEnqueue(slot) {
			}
		}
	}()

	received := int64(0)
	go func() {
		defer wg.Done()
		for received < n {
			slot, ok := q.TryDequeue()
			if !ok {
				continue
			}
			if slot.SlotNumber != received {
				t.Errorf("slot out of order: got %d, want %d", slot.SlotNumber, received)
			}
			received++
		}
	}()

	wg.Wait()
	require.EqualValues(t, n, received)
}
