// Package track implements the per-cycle track/bus mix graph (§4.9):
// zeroing the process bus, capturing input when armed and recording,
// walking intersecting clips, running the plugin chain split around the
// track's own gain envelope, and routing the result to post-send buses.
package track

import (
	"fmt"

	"github.com/drgolem/rtengine/pkg/clip"
	"github.com/drgolem/rtengine/pkg/plugin"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// Writer is the subset of *writesource.WriteSource an armed, recording
// track pushes its input bus into.
type Writer interface {
	RingbufferWrite(src [][]float32, nFrames int) int
}

// Bus is a named stereo signal path other tracks can route into by id
// (post-sends) and this track can sum from (inputs).
type Bus struct {
	ID     string
	Buffer [][]float32 // 2 channels x cycle size, owned by the graph runner
}

// Track is either an audio track (has Clips, may be armed to record) or
// a bus track (Clips is always empty, sums Inputs only) (§4.9).
type Track struct {
	Name string
	ID   string

	IsBus bool

	Clips []*clip.Clip

	Inputs    []string // bus ids this track reads from
	PostSends []string // bus ids this track's output is routed into

	Armed     bool
	Recording bool
	RecordTo  Writer

	Mute bool
	Solo bool

	Chain *plugin.Chain

	processBus   [][]float32
	inputScratch [][]float32 // reused by sumInputs, grown lazily like processBus
}

// New creates a track with an empty plugin chain and a 2-channel
// process bus sized for cycleFrames.
func New(id, name string, cycleFrames int) *Track {
	t := &Track{
		ID:    id,
		Name:  name,
		Chain: plugin.NewChain(),
	}
	t.resizeBus(cycleFrames)
	return t
}

func (t *Track) resizeBus(cycleFrames int) {
	t.processBus = [][]float32{make([]float32, cycleFrames), make([]float32, cycleFrames)}
}

// ProcessBus returns the track's stereo process bus for this cycle,
// valid after Process returns.
func (t *Track) ProcessBus() [][]float32 {
	return t.processBus
}

// Process runs one cycle for this track (§4.9 steps 1-7). resolveBus
// looks up a sheet bus's buffer by id for inputs/post-sends;
// anySolo reports whether any non-bus track in the sheet is currently soloed
// (§4.9 "solo across a sheet mutes non-solo audio tracks"); scratch is a
// shared per-clip working buffer reused across clips to avoid
// allocating in the realtime path.
func (t *Track) Process(t0, t1 timeref.TimeRef, n int, resolveBus func(id string) [][]float32, anySolo bool, scratch [][]float32) error {
	if n > len(t.processBus[0]) {
		t.resizeBus(n)
	}
	bus := [][]float32{t.processBus[0][:n], t.processBus[1][:n]}

	// 1. Zero the process bus.
	for ch := range bus {
		for i := range bus[ch] {
			bus[ch][i] = 0
		}
	}

	silencedBySolo := anySolo && !t.Solo && !t.IsBus
	mutedOut := t.Mute || silencedBySolo

	// 2. If armed and recording, push input bus to the capture write
	// source's ring, regardless of mute (monitoring mute is a mix
	// concern, not a capture one).
	if t.Armed && t.Recording && t.RecordTo != nil {
		input := t.sumInputs(resolveBus, n)
		if input != nil {
			t.RecordTo.RingbufferWrite(input, n)
		}
	}

	if !mutedOut {
		if t.IsBus {
			// Bus tracks have no clips; they sum their inputs.
			input := t.sumInputs(resolveBus, n)
			if input != nil {
				for ch := range bus {
					if ch < len(input) {
						copy(bus[ch], input[ch])
					}
				}
			}
		} else {
			// 3. Walk clips intersecting the cycle.
			for _, c := range t.Clips {
				res := c.Process(bus, t0, t1, n, scratch)
				if res < 0 {
					// Guard 3: invalid source, render silence for this clip's span.
					continue
				}
			}
		}
	}

	// 4. Pre-fader plugins, 5. track gain envelope, 6. post-fader plugins.
	t.Chain.SetCycle(t0, t1)
	for ch := range bus {
		t.Chain.ProcessPreFader(bus[ch], n)
		t.Chain.ProcessEnvelope(bus[ch], n)
		t.Chain.ProcessPostFader(bus[ch], n)
	}

	// 7. Route process bus into each post-send bus.
	for _, sendID := range t.PostSends {
		send := resolveBus(sendID)
		if send == nil {
			return fmt.Errorf("track %s: unknown post-send bus %q", t.ID, sendID)
		}
		for ch := range bus {
			if ch >= len(send) {
				break
			}
			for i := range bus[ch] {
				if i < len(send[ch]) {
					send[ch][i] += bus[ch][i]
				}
			}
		}
	}

	return nil
}

// sumInputs adds together every input bus's samples into t's reusable
// scratch buffer, growing it only when a cycle demands more frames than
// it currently holds (§5 "never allocates" on the realtime path, mirroring
// Sheet.scratch's lazy-grow pattern).
func (t *Track) sumInputs(resolveBus func(id string) [][]float32, n int) [][]float32 {
	if len(t.Inputs) == 0 {
		return nil
	}
	if cap(t.inputScratch) == 0 || len(t.inputScratch[0]) < n {
		t.inputScratch = [][]float32{make([]float32, n), make([]float32, n)}
	}
	out := [][]float32{t.inputScratch[0][:n], t.inputScratch[1][:n]}
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}
	for _, id := range t.Inputs {
		src := resolveBus(id)
		if src == nil {
			continue
		}
		for ch := range out {
			if ch >= len(src) {
				continue
			}
			for i := 0; i < n && i < len(src[ch]); i++ {
				out[ch][i] += src[ch][i]
			}
		}
	}
	return out
}

// FindClip returns the clip with the given name, or nil if none matches.
func (t *Track) FindClip(name string) *clip.Clip {
	for _, c := range t.Clips {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RemoveClip detaches the clip with the given name from this track (§5
// KindRemoveClip). Reports whether a clip was found and removed.
func (t *Track) RemoveClip(name string) bool {
	for i, c := range t.Clips {
		if c.Name == name {
			t.Clips = append(t.Clips[:i], t.Clips[i+1:]...)
			return true
		}
	}
	return false
}
