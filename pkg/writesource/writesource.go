// Package writesource implements the recording-side counterpart to
// pkg/readsource (§4.3): the realtime thread fills slots from its input
// bus and hands them to disk-I/O through a ring.Ring exactly like
// readsource, just with the roles of producer and consumer of RT swapped.
package writesource

import (
	"fmt"

	wavenc "github.com/drgolem/rtengine/pkg/encoders/wav"
	"github.com/drgolem/rtengine/pkg/ring"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// WriteSource owns an output ring and, once exporting, an encoder. The
// realtime thread calls RingbufferWrite; the disk-I/O thread calls
// RbFileWrite to drain RT to the encoder.
type WriteSource struct {
	fileName     string
	channelCount int
	sampleRate   int
	bitDepth     int
	disableDith  bool

	ring    *ring.Ring
	encoder *wavenc.Encoder

	nextSlot    *ring.Slot // partially filled slot the realtime thread is writing into
	nextOffset  int
	writeCursor int64 // total frames accepted from the realtime thread so far
}

// Open prepares a WriteSource targeting fileName at the given format.
// bitDepth only decides dithering: 16 dithers unless disableDither is
// true, and any other depth never dithers. The encoder always writes
// 16-bit PCM; 24- and 32-bit output files are not produced.
func Open(fileName string, channelCount, sampleRate, bitDepth int, disableDither bool) *WriteSource {
	return &WriteSource{
		fileName:     fileName,
		channelCount: channelCount,
		sampleRate:   sampleRate,
		bitDepth:     bitDepth,
		disableDith:  disableDither,
	}
}

// AllocateRing allocates the slot ring. Must only be called while the
// realtime thread is known to be quiescent (§4.4 point 5, §5).
func (ws *WriteSource) AllocateRing(slotCount, framesPerSlot int) {
	ws.ring = ring.NewRing(slotCount, ws.channelCount, framesPerSlot)
	ws.ring.Status.SetSyncState(ring.StateInSync)
}

// FreeRing releases the slot ring.
func (ws *WriteSource) FreeRing() {
	ws.ring = nil
}

// PrepareExport opens the output file and dither generator, sized for
// numFrames total output frames (§4.3). Must be called before the first
// RbFileWrite.
func (ws *WriteSource) PrepareExport(numFrames int64) error {
	dith := ws.disableDith || ws.bitDepth != 16
	enc, err := wavenc.Create(ws.fileName, numFrames, ws.channelCount, ws.sampleRate, dith)
	if err != nil {
		return fmt.Errorf("writesource: prepare export %s: %w", ws.fileName, err)
	}
	ws.encoder = enc
	return nil
}

// FinishExport flushes and closes the output file. Returns the number of
// frames actually written, for the caller to compare against the frame
// count PrepareExport declared.
func (ws *WriteSource) FinishExport() (uint32, error) {
	if ws.encoder == nil {
		return 0, nil
	}
	written := ws.encoder.Written()
	err := ws.encoder.Close()
	ws.encoder = nil
	return written, err
}

// RingbufferWrite is the realtime-thread production path (§5): it copies
// nFrames of planar audio from src into the ring, publishing full slots
// to RT as they fill. Returns the number of frames actually accepted;
// fewer than nFrames means the ring's Free queue ran dry (disk-I/O is
// falling behind) and the caller must drop the remainder rather than
// block.
func (ws *WriteSource) RingbufferWrite(src [][]float32, nFrames int) int {
	if ws.ring == nil {
		return 0
	}

	accepted := 0
	for accepted < nFrames {
		if ws.nextSlot == nil {
			slot, ok := ws.ring.Free.TryDequeue()
			if !ok {
				ws.ring.Status.SetSyncState(ring.StateFillRTBufferDequeueFailure)
				return accepted
			}
			slot.FileLocation = timeref.FromFrames(ws.writeCursor, ws.sampleRate)
			ws.nextSlot = slot
			ws.nextOffset = 0
		}

		framesPerSlot := ws.nextSlot.FramesPerSlot()
		room := framesPerSlot - ws.nextOffset
		n := nFrames - accepted
		if n > room {
			n = room
		}

		for ch := range ws.nextSlot.Channels {
			if ch >= len(src) {
				break
			}
			copy(ws.nextSlot.Channels[ch][ws.nextOffset:ws.nextOffset+n], src[ch][accepted:accepted+n])
		}
		ws.nextOffset += n
		accepted += n
		ws.writeCursor += int64(n)

		if ws.nextOffset >= framesPerSlot {
			if !ws.ring.RT.TryEnqueue(ws.nextSlot) {
				ws.ring.Status.SetSyncState(ring.StateFillRTBufferEnqueueFailure)
				ws.ring.Free.TryEnqueue(ws.nextSlot)
				ws.nextSlot = nil
				return accepted
			}
			ws.nextSlot = nil
			ws.nextOffset = 0
			ws.ring.RefreshFillPercent()
		}
	}
	return accepted
}

// RbFileWrite is the disk-I/O-thread drain path (§5): it dequeues every
// slot currently sitting in RT and appends it to the output encoder,
// recycling each slot back to Free. Returns the number of slots drained.
func (ws *WriteSource) RbFileWrite() (int, error) {
	if ws.ring == nil || ws.encoder == nil {
		return 0, nil
	}

	drained := 0
	for {
		slot, ok := ws.ring.RT.TryDequeue()
		if !ok {
			break
		}
		if err := ws.encoder.Write(slot.Channels, slot.FramesPerSlot()); err != nil {
			ws.ring.Free.TryEnqueue(slot)
			return drained, fmt.Errorf("writesource: %s: %w", ws.fileName, err)
		}
		ws.ring.Free.TryEnqueue(slot)
		ws.ring.RefreshFillPercent()
		drained++
	}
	return drained, nil
}

// FlushPartial forces the realtime thread's current partially-filled slot
// out to RT so a stopped recording doesn't lose its final incomplete
// slot (§4.3 "final partial slot"). The true frame count is returned so
// the caller can declare an accurate total to PrepareExport; RbFileWrite
// always writes a full FramesPerSlot()-sized slot, so PrepareExport's
// numFrames must be rounded up to a whole number of slots to keep the
// WAV header's declared sample count matching what gets written.
func (ws *WriteSource) FlushPartial() int {
	if ws.ring == nil || ws.nextSlot == nil {
		return 0
	}
	partialFrames := ws.nextOffset
	for ch := range ws.nextSlot.Channels {
		for f := ws.nextOffset; f < ws.nextSlot.FramesPerSlot(); f++ {
			ws.nextSlot.Channels[ch][f] = 0
		}
	}
	if !ws.ring.RT.TryEnqueue(ws.nextSlot) {
		ws.ring.Free.TryEnqueue(ws.nextSlot)
	}
	ws.nextSlot = nil
	ws.nextOffset = 0
	return partialFrames
}

// Status returns the ring's shared BufferStatus, or nil if no ring is
// allocated.
func (ws *WriteSource) Status() *ring.BufferStatus {
	if ws.ring == nil {
		return nil
	}
	return ws.ring.Status
}

// WriteCursor returns the total number of frames accepted from the
// realtime thread so far.
func (ws *WriteSource) WriteCursor() int64 {
	return ws.writeCursor
}
