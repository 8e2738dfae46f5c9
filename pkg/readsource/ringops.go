package readsource

import (
	"github.com/drgolem/rtengine/pkg/pcm"
	"github.com/drgolem/rtengine/pkg/ring"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// AllocateRing allocates this source's slot ring. Must only be called
// while the realtime thread is known to be quiescent (§4.4 point 5).
func (rs *ReadSource) AllocateRing(slotCount, framesPerSlot int) {
	rs.ring = ring.NewRing(slotCount, rs.channelCount, framesPerSlot)
	rs.ring.Status.SetSyncState(ring.StateOutOfSync)
	rs.scratchBytes = make([]byte, framesPerSlot*rs.channelCount*pcm.BytesPerSampleForDepth(rs.bitsPerSample)*2)
}

// FreeRing releases this source's ring. Must only be called while the
// realtime thread is known to be quiescent.
func (rs *ReadSource) FreeRing() {
	rs.ring = nil
}

// SlotDuration returns the TimeRef span one slot covers at the output rate.
func (rs *ReadSource) SlotDuration() timeref.TimeRef {
	if rs.ring == nil {
		return 0
	}
	return timeref.FromFrames(int64(rs.ring.FramesPerSlot), rs.outputRate)
}

// FillOneSlot is called by the disk-I/O scheduler (§4.4) to decode one
// slot's worth of frames and publish it to the rt queue. It advances the
// OUT_OF_SYNC -> QUEUE_SEEKING -> QUEUE_SEEKED state transitions (§4.2);
// IN_SYNC is only reached once the realtime thread accepts the first
// matching slot in RingbufferRead.
func (rs *ReadSource) FillOneSlot() bool {
	if rs.ring == nil || rs.invalid.Load() {
		return false
	}

	slot, ok := rs.ring.Free.TryDequeue()
	if !ok {
		rs.ring.Status.SetSyncState(ring.StateFillRTBufferDequeueFailure)
		return false
	}

	framesPerSlot := rs.ring.FramesPerSlot
	n, err := rs.decodeInto(slot.Channels, framesPerSlot)
	if err != nil {
		rs.invalid.Store(true)
		rs.ring.Free.TryEnqueue(slot)
		return false
	}
	if n < framesPerSlot {
		// Zero-pad a short final slot (end of file) so downstream reads
		// of the tail don't read stale data from a reused slot.
		for ch := range slot.Channels {
			for f := n; f < framesPerSlot; f++ {
				slot.Channels[ch][f] = 0
			}
		}
	}

	slot.FileLocation = timeref.FromFrames(rs.outputFrameAtFill(n), rs.outputRate)
	slot.SlotNumber++

	if !rs.ring.RT.TryEnqueue(slot) {
		rs.ring.Status.SetSyncState(ring.StateFillRTBufferEnqueueFailure)
		rs.ring.Free.TryEnqueue(slot)
		return false
	}
	rs.ring.RefreshFillPercent()

	switch rs.ring.Status.SyncState() {
	case ring.StateOutOfSync:
		rs.ring.Status.SetSyncState(ring.StateQueueSeekingToNewLocation)
	case ring.StateQueueSeekingToNewLocation:
		rs.ring.Status.SetSyncState(ring.StateQueueSeekedToNewLocation)
	}
	return true
}

// outputFrameAtFill tracks the output-rate frame position of the slot
// just filled, so its FileLocation is expressed in the same rate
// RingbufferRead demands are expressed in. When no resampling is active,
// output rate == file rate and this is just decodeCursor-n.
func (rs *ReadSource) outputFrameAtFill(framesFilled int) int64 {
	if rs.resampler == nil {
		return rs.decodeCursor - int64(framesFilled)
	}
	// With resampling active the disk-I/O scheduler fills slots in
	// strict file order; the slot's nominal output-rate location is
	// derived from the cumulative ratio rather than independently
	// tracked, since SoXR's internal buffering makes frame-for-frame
	// correspondence inexact.
	ratio := float64(rs.outputRate) / float64(rs.fileRate)
	return int64(float64(rs.decodeCursor-int64(framesFilled)) * ratio)
}

// decodeInto fills dst (framesPerSlot each channel) from the primary
// decode path, advancing decodeCursor. Returns frames actually written
// (may be less than framesPerSlot at EOF).
func (rs *ReadSource) decodeInto(dst [][]float32, framesPerSlot int) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	bytesPerFrame := rs.channelCount * pcm.BytesPerSampleForDepth(rs.bitsPerSample)
	need := framesPerSlot * bytesPerFrame
	if len(rs.scratchBytes) < need {
		rs.scratchBytes = make([]byte, need)
	}

	n, err := rs.decoder.DecodeSamples(framesPerSlot, rs.scratchBytes)
	if err != nil && n == 0 {
		return 0, err
	}
	rs.decodeCursor += int64(n)

	raw := rs.scratchBytes[:n*bytesPerFrame]
	if rs.resampler != nil {
		out, rerr := rs.resampler.Process(pcm16From(raw, rs.bitsPerSample))
		if rerr != nil {
			return 0, rerr
		}
		raw = out
		n = len(out) / (rs.channelCount * 2)
	}

	bps := rs.bitsPerSample
	if rs.resampler != nil {
		bps = 16
	}
	written := pcm.InterleavedToPlanarFloat32(raw, rs.channelCount, bps, dst)
	return written, nil
}

// pcm16From normalizes decoded PCM to 16-bit interleaved bytes for the
// resampler, which (per github.com/zaf/resample) only accepts soxr.I16
// input. Higher bit depths are truncated to 16 bits before resampling;
// the engine never resamples a lossless-quality export path that also
// needs bit-exact round-tripping (round-trip scenarios in §8 run at a
// single sample rate with no resampler in the chain).
func pcm16From(raw []byte, bitsPerSample int) []byte {
	if bitsPerSample == 16 {
		return raw
	}
	bytesPerSample := pcm.BytesPerSampleForDepth(bitsPerSample)
	out := make([]byte, (len(raw)/bytesPerSample)*2)
	for i, o := 0, 0; i+bytesPerSample <= len(raw); i, o = i+bytesPerSample, o+2 {
		// Keep the two most significant bytes (little-endian: the last two).
		out[o] = raw[i+bytesPerSample-2]
		out[o+1] = raw[i+bytesPerSample-1]
	}
	return out
}
