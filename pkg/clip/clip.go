// Package clip implements the per-clip realtime process step (§4.6): the
// guards that can shortcut a cycle to silence, the read-source pull
// through the clip's ring, fade curve application, gain envelope
// automation in file-space time, and the final mix into a track's
// process bus.
package clip

import (
	"github.com/drgolem/rtengine/pkg/fadecurve"
	"github.com/drgolem/rtengine/pkg/plugin"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// Reader is the subset of *readsource.ReadSource a Clip pulls audio
// through.
type Reader interface {
	RingbufferRead(out [][]float32, fileLocation timeref.TimeRef, nFrames int, realtime bool) int
	ChannelCount() int
	OutputRate() int
	Invalid() bool
}

// Clip places a span of a ReadSource on a track at a given track
// position, with its own fades, gain, mute and plugin chain (§3, §4.6).
type Clip struct {
	Name string

	Source Reader

	// TrackStart/Length are in track/transport-space time; SourceStart
	// is the file-space time within Source the clip begins reading from.
	TrackStart  timeref.TimeRef
	Length      timeref.TimeRef
	SourceStart timeref.TimeRef

	Gain   float64
	Mute   bool
	Record bool // recording clip: write path only (§4.6 guard 2)

	FadeIn  *fadecurve.FadeCurve
	FadeOut *fadecurve.FadeCurve

	Chain *plugin.Chain
}

// New creates a clip with unity gain and an empty plugin chain.
func New(name string, source Reader, trackStart, length, sourceStart timeref.TimeRef) *Clip {
	return &Clip{
		Name:        name,
		Source:      source,
		TrackStart:  trackStart,
		Length:      length,
		SourceStart: sourceStart,
		Gain:        1.0,
		Chain:       plugin.NewChain(),
	}
}

// Process runs this clip's contribution to the cycle [t0, t1) (N frames,
// track-space time) into scratch, then mixes scratch into bus (mono
// clip -> L+R, stereo clip -> L,L / R,R per channel) (§4.6). Returns -1
// if the read source is invalid so the track knows to render silence for
// this clip's whole span rather than just this cycle (§4.6 guard 3).
func (c *Clip) Process(bus [][]float32, t0, t1 timeref.TimeRef, n int, scratch [][]float32) int {
	if c.Source == nil || c.Source.ChannelCount() == 0 {
		return 0 // guard 1: silent clip
	}
	if c.Record {
		return 0 // guard 2: recording clip, write path only
	}
	if c.Source.Invalid() {
		return -1 // guard 3
	}
	if c.Mute || c.Gain == 0 {
		return 0 // guard 4
	}

	clipEnd := c.TrackStart + c.Length
	if t1 <= c.TrackStart || t0 >= clipEnd {
		return 0 // guard 5: non-intersecting range
	}

	// Clip head/tail outside [t0,t1) trims frames_to_process; offset is
	// where within this cycle's bus the clip's audio begins.
	segStart := t0
	offset := 0
	if c.TrackStart > t0 {
		segStart = c.TrackStart
		offset = int(int64(segStart-t0) * int64(n) / int64(t1-t0))
	}
	segEnd := t1
	if clipEnd < t1 {
		segEnd = clipEnd
	}
	framesToProcess := int(int64(segEnd-segStart) * int64(n) / int64(t1-t0))
	if framesToProcess <= 0 || offset >= n {
		return 0
	}
	if offset+framesToProcess > n {
		framesToProcess = n - offset
	}

	fileLocation := c.SourceStart + (segStart - c.TrackStart)

	channels := c.Source.ChannelCount()
	for ch := 0; ch < channels; ch++ {
		for f := range scratch[ch] {
			scratch[ch][f] = 0
		}
	}
	got := c.Source.RingbufferRead(sliceFor(scratch, channels), fileLocation, framesToProcess, true)
	if got == 0 {
		return 0 // "if it returns 0, silence the cycle and return"
	}

	if c.FadeIn != nil {
		for ch := 0; ch < channels; ch++ {
			c.FadeIn.Process(scratch[ch][:got], segStart, segStart+timeref.FromFrames(int64(got), c.Source.OutputRate()), got)
		}
	}
	if c.FadeOut != nil {
		for ch := 0; ch < channels; ch++ {
			c.FadeOut.Process(scratch[ch][:got], segStart, segStart+timeref.FromFrames(int64(got), c.Source.OutputRate()), got)
		}
	}

	c.Chain.SetCycle(fileLocation, fileLocation+timeref.FromFrames(int64(got), c.Source.OutputRate()))
	for ch := 0; ch < channels; ch++ {
		c.Chain.ProcessPreFader(scratch[ch][:got], got)
		c.Chain.ProcessEnvelope(scratch[ch][:got], got)
		c.Chain.ProcessPostFader(scratch[ch][:got], got)
	}

	gain := float32(c.Gain)
	mixInto(bus, scratch, channels, offset, got, gain)
	return got
}

// sliceFor trims scratch to exactly channels planar buffers, matching
// the source's channel count.
func sliceFor(scratch [][]float32, channels int) [][]float32 {
	if len(scratch) <= channels {
		return scratch
	}
	return scratch[:channels]
}

// mixInto adds a clip's (mono or stereo) scratch buffer into the
// track's stereo bus at [offset, offset+n), per §4.6's "mono->L+R,
// stereo->L,L / R,R" rule.
func mixInto(bus [][]float32, scratch [][]float32, channels, offset, n int, gain float32) {
	if len(bus) < 2 {
		return
	}
	switch channels {
	case 1:
		for i := 0; i < n; i++ {
			v := scratch[0][i] * gain
			bus[0][offset+i] += v
			bus[1][offset+i] += v
		}
	default:
		for i := 0; i < n; i++ {
			bus[0][offset+i] += scratch[0][i] * gain
			if len(scratch) > 1 {
				bus[1][offset+i] += scratch[1][i] * gain
			}
		}
	}
}
