package readsource

import (
	"fmt"

	"github.com/drgolem/rtengine/pkg/decoders"
	"github.com/drgolem/rtengine/pkg/pcm"
	"github.com/drgolem/rtengine/pkg/resample"
	"github.com/drgolem/rtengine/pkg/ring"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// Seek repositions the fill-side decoder to fileLocation and drains every
// slot currently sitting in the rt queue back to free (§5: "on seek, the
// disk-I/O thread drains rt back to free before refilling"). Disk-I/O
// thread only; never called from the realtime thread.
//
// None of the three decoders expose a native seek, so repositioning is
// always close+reopen+discard-decode-forward: reopen the file and decode
// (and discard) frames up to the target. This is slower than a native
// seek would be but never assumes internals this module can't verify.
func (rs *ReadSource) Seek(fileLocation timeref.TimeRef) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ring != nil {
		rs.ring.Status.SetSyncState(ring.StateOutOfSync)
		rs.ring.DrainRTToFree()
		rs.ring.RefreshFillPercent()
	}

	targetFrame := fileLocation.ToFrames(rs.fileRate)
	if targetFrame < 0 {
		targetFrame = 0
	}

	if err := rs.decoder.Close(); err != nil {
		return fmt.Errorf("readsource: seek close %s: %w", rs.fileName, err)
	}
	dec, err := decoders.NewDecoder(rs.fileName)
	if err != nil {
		return fmt.Errorf("readsource: seek reopen %s: %w", rs.fileName, err)
	}
	rs.decoder = dec
	rs.decodeCursor = 0

	if seeker, ok := dec.(interface{ SeekFrames(int64) error }); ok {
		if err := seeker.SeekFrames(targetFrame); err != nil {
			return fmt.Errorf("readsource: seek %s to frame %d: %w", rs.fileName, targetFrame, err)
		}
		rs.decodeCursor = targetFrame
	} else if err := rs.discardForward(targetFrame); err != nil {
		return fmt.Errorf("readsource: seek %s to frame %d: %w", rs.fileName, targetFrame, err)
	}

	if rs.resampler != nil {
		if _, err := rs.resampler.Flush(); err != nil {
			return fmt.Errorf("readsource: seek flush resampler for %s: %w", rs.fileName, err)
		}
		rsmp, err := resample.New(rs.fileRate, rs.outputRate, rs.channelCount)
		if err != nil {
			return fmt.Errorf("readsource: seek rebuild resampler for %s: %w", rs.fileName, err)
		}
		rs.resampler = rsmp
	}

	return nil
}

// flagDemandMismatch marks the ring out of sync and, when the mismatch was
// observed from the realtime thread's own pull (realtime=true, as opposed
// to a non-realtime preview peek), records the file location it actually
// wanted so the disk-I/O thread's ReconcileSeek can reposition the decoder
// to match (§4.4 point 4, "detect seeks under load").
func (rs *ReadSource) flagDemandMismatch(realtime bool, want timeref.TimeRef) {
	rs.ring.Status.SetSyncState(ring.StateOutOfSync)
	if realtime {
		rs.demandLocation.Store(int64(want))
		rs.seekPending.Store(true)
	}
}

// LastDemandLocation returns the file location the realtime thread most
// recently wanted but the ring couldn't serve, as recorded by
// flagDemandMismatch.
func (rs *ReadSource) LastDemandLocation() timeref.TimeRef {
	return timeref.TimeRef(rs.demandLocation.Load())
}

// ReconcileSeek is the disk-I/O scheduler's counterpart to a live seek
// (§4.4 point 4): if the realtime thread's last pull landed outside the
// ring (flagged by flagDemandMismatch), drain the ring and reposition the
// decoder to the demanded location before resuming normal fills. Reports
// whether a reconciling seek was performed this call; the caller should
// skip this tick's FillOneSlot when it has, since Seek already refilled
// the decoder's read position.
func (rs *ReadSource) ReconcileSeek() bool {
	if !rs.seekPending.CompareAndSwap(true, false) {
		return false
	}
	target := rs.LastDemandLocation()
	if err := rs.Seek(target); err != nil {
		// Leave the ring out of sync; the next RingbufferRead mismatch
		// will re-flag seekPending and retry.
		return false
	}
	return true
}

// discardForward decodes and discards frames until decodeCursor reaches
// targetFrame, used by Seek when the decoder implements no native seek.
func (rs *ReadSource) discardForward(targetFrame int64) error {
	const chunk = 64 * 1024
	bytesPerFrame := rs.channelCount * pcm.BytesPerSampleForDepth(rs.bitsPerSample)
	buf := make([]byte, chunk*bytesPerFrame)
	for rs.decodeCursor < targetFrame {
		want := targetFrame - rs.decodeCursor
		if want > chunk {
			want = chunk
		}
		n, err := rs.decoder.DecodeSamples(int(want), buf)
		rs.decodeCursor += int64(n)
		if err != nil || n == 0 {
			return err
		}
	}
	return nil
}

// RingbufferRead copies nFrames starting at fileLocation from the ring's
// head slot into out, recycling fully-consumed slots back to Free. If the
// head slot doesn't cover fileLocation the ring is declared out of sync
// and no frames are copied; the caller (Clip) must render silence for
// this pull. realtime distinguishes the audio callback's pull (§5, which
// owns slot recycling) from a non-realtime preview consumer peeking at
// the same ring without disturbing ownership.
func (rs *ReadSource) RingbufferRead(out [][]float32, fileLocation timeref.TimeRef, nFrames int, realtime bool) int {
	if rs.ring == nil {
		return 0
	}

	copied := 0
	for copied < nFrames {
		slot, ok := rs.ring.RT.Peek()
		if !ok {
			rs.ring.Status.SetSyncState(ring.StateOutOfSync)
			return copied
		}

		framesPerSlot := rs.ring.FramesPerSlot
		slotStart := slot.FileLocation
		slotEnd := timeref.FromFrames(int64(framesPerSlot), rs.outputRate).Add(slotStart)
		want := fileLocation.Add(timeref.FromFrames(int64(copied), rs.outputRate))

		if want.Compare(slotStart) < 0 || want.Compare(slotEnd) >= 0 {
			rs.flagDemandMismatch(realtime, want)
			return copied
		}

		offsetFrames := int(want.Sub(slotStart).ToFrames(rs.outputRate))
		if offsetFrames < 0 || offsetFrames >= framesPerSlot {
			rs.flagDemandMismatch(realtime, want)
			return copied
		}

		avail := framesPerSlot - offsetFrames
		n := nFrames - copied
		if n > avail {
			n = avail
		}
		for ch := range out {
			if ch >= len(slot.Channels) {
				break
			}
			copy(out[ch][copied:copied+n], slot.Channels[ch][offsetFrames:offsetFrames+n])
		}
		copied += n

		if realtime && rs.ring.Status.SyncState() != ring.StateInSync {
			rs.ring.Status.SetSyncState(ring.StateInSync)
		}

		if realtime && offsetFrames+n >= framesPerSlot {
			consumed, ok := rs.ring.RT.TryDequeue()
			if ok {
				rs.ring.Free.TryEnqueue(consumed)
				rs.ring.RefreshFillPercent()
			}
		} else {
			break
		}
	}
	return copied
}

// FileRead is the synchronous, non-realtime read path (§4.2): it bypasses
// the ring entirely using a lazily-opened auxiliary decoder so background
// consumers (peak building, export) never contend with the disk-I/O
// scheduler's fill decoder.
func (rs *ReadSource) FileRead(out [][]float32, fileLocation timeref.TimeRef, nFrames int) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.auxDecoder == nil {
		dec, err := decoders.NewDecoder(rs.fileName)
		if err != nil {
			return 0, fmt.Errorf("readsource: aux open %s: %w", rs.fileName, err)
		}
		rs.auxDecoder = dec
		rs.auxCursor = 0
		if rs.resampler != nil {
			rsmp, err := resample.New(rs.fileRate, rs.outputRate, rs.channelCount)
			if err != nil {
				dec.Close()
				rs.auxDecoder = nil
				return 0, fmt.Errorf("readsource: aux resampler for %s: %w", rs.fileName, err)
			}
			rs.auxResampler = rsmp
		}
	}

	targetFrame := fileLocation.ToFrames(rs.fileRate)
	if targetFrame < rs.auxCursor {
		// No backward seek support on the aux path yet; reopen from start.
		rs.auxDecoder.Close()
		dec, err := decoders.NewDecoder(rs.fileName)
		if err != nil {
			return 0, fmt.Errorf("readsource: aux reopen %s: %w", rs.fileName, err)
		}
		rs.auxDecoder = dec
		rs.auxCursor = 0
	}
	if targetFrame > rs.auxCursor {
		if err := rs.discardForwardAux(targetFrame); err != nil {
			return 0, err
		}
	}

	bytesPerFrame := rs.channelCount * pcm.BytesPerSampleForDepth(rs.bitsPerSample)
	need := nFrames * bytesPerFrame
	if len(rs.auxScratchBytes) < need {
		rs.auxScratchBytes = make([]byte, need)
	}
	n, err := rs.auxDecoder.DecodeSamples(nFrames, rs.auxScratchBytes)
	rs.auxCursor += int64(n)
	if err != nil && n == 0 {
		return 0, err
	}

	raw := rs.auxScratchBytes[:n*bytesPerFrame]
	bps := rs.bitsPerSample
	if rs.auxResampler != nil {
		out2, rerr := rs.auxResampler.Process(pcm16From(raw, rs.bitsPerSample))
		if rerr != nil {
			return 0, rerr
		}
		raw = out2
		bps = 16
	}
	written := pcm.InterleavedToPlanarFloat32(raw, rs.channelCount, bps, out)
	return written, nil
}

func (rs *ReadSource) discardForwardAux(targetFrame int64) error {
	const chunk = 64 * 1024
	bytesPerFrame := rs.channelCount * pcm.BytesPerSampleForDepth(rs.bitsPerSample)
	buf := make([]byte, chunk*bytesPerFrame)
	for rs.auxCursor < targetFrame {
		want := targetFrame - rs.auxCursor
		if want > chunk {
			want = chunk
		}
		n, err := rs.auxDecoder.DecodeSamples(int(want), buf)
		rs.auxCursor += int64(n)
		if err != nil || n == 0 {
			return err
		}
	}
	return nil
}

// Clone opens an independent decoder/ring pair over the same file, so
// multiple clips can reference one logical source with their own read
// positions (§9 supplemented feature: ReadSource deep-copy).
func (rs *ReadSource) Clone() (*ReadSource, error) {
	return Open(rs.fileName, rs.outputRate)
}
