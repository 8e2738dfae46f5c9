// Package session implements the transport clock, the per-sheet mix
// graph driver, the error-taxonomy info queue, and the Runtime struct
// that replaces the engine's former global singletons with a single
// root passed by reference (§4.9, §5, §7, §9 "Global singletons").
package session

import (
	"fmt"

	"github.com/drgolem/rtengine/pkg/timeref"
	"github.com/drgolem/rtengine/pkg/track"
)

// Bus is a named, shared stereo accumulation buffer tracks route into
// (post-sends) and bus tracks sum from (inputs) (§4.9).
type Bus struct {
	ID     string
	Buffer [][]float32
}

func newBus(id string, cycleFrames int) *Bus {
	return &Bus{ID: id, Buffer: [][]float32{make([]float32, cycleFrames), make([]float32, cycleFrames)}}
}

func (b *Bus) resize(n int) {
	if len(b.Buffer[0]) >= n {
		return
	}
	b.Buffer = [][]float32{make([]float32, n), make([]float32, n)}
}

func (b *Bus) zero(n int) {
	for ch := range b.Buffer {
		for i := 0; i < n; i++ {
			b.Buffer[ch][i] = 0
		}
	}
}

// MasterBusID names the bus every track's signal reaches last, whether
// directly (a post-send of "master") or by routing through intermediate
// bus tracks that themselves send to it (§2 "finally the master
// output").
const MasterBusID = "master"

// Sheet is one project sheet: a set of tracks and the named buses they
// route through. Track routing must be acyclic (§4.9); Process asserts
// on a cycle, matching §7's "Programmer error" taxonomy.
type Sheet struct {
	Name   string
	Tracks []*track.Track
	buses  map[string]*Bus

	scratch [][]float32 // shared per-clip working buffer, sized to one cycle

	cachedOrder []*track.Track // memoized result of order(), valid while !orderDirty
	orderDirty  bool           // set whenever the routing graph changes
}

// NewSheet creates an empty sheet with its master output bus already
// registered, so a track's PostSends can name MasterBusID without the
// caller having to add it explicitly.
func NewSheet(name string) *Sheet {
	s := &Sheet{Name: name, buses: make(map[string]*Bus)}
	s.buses[MasterBusID] = newBus(MasterBusID, 0)
	s.orderDirty = true
	return s
}

// MixBus returns the master bus's buffer for the cycle just processed,
// the final stereo output the audio device writes to hardware.
func (s *Sheet) MixBus() [][]float32 {
	return s.buses[MasterBusID].Buffer
}

// AddBus registers a named bus other tracks can route through.
func (s *Sheet) AddBus(id string, cycleFrames int) *Bus {
	b := newBus(id, cycleFrames)
	s.buses[id] = b
	s.orderDirty = true
	return b
}

// AddTrack appends t to the sheet's track list. Command-queue driven
// (§5 KindAddTrack); invalidates the cached routing order so the next
// cycle recomputes it rather than mixing a stale topology.
func (s *Sheet) AddTrack(t *track.Track) {
	s.Tracks = append(s.Tracks, t)
	s.orderDirty = true
}

// FindTrack returns the track with the given ID, or nil if none matches.
func (s *Sheet) FindTrack(id string) *track.Track {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// RemoveTrack detaches the track with the given ID from the sheet's
// track list, invalidating the cached routing order (§5 KindRemoveTrack;
// "lockless remove" protocol — the caller must only dispose the track
// once the realtime thread has run a cycle that no longer references
// it). Reports whether a track was found and removed.
func (s *Sheet) RemoveTrack(id string) bool {
	for i, t := range s.Tracks {
		if t.ID == id {
			s.Tracks = append(s.Tracks[:i], s.Tracks[i+1:]...)
			s.orderDirty = true
			return true
		}
	}
	return false
}

// AnySolo reports whether any non-bus track in the sheet is soloed.
func (s *Sheet) AnySolo() bool {
	for _, t := range s.Tracks {
		if t.Solo && !t.IsBus {
			return true
		}
	}
	return false
}

// Process runs one full cycle (§2 "data flow per audio cycle", §4.9):
// zero every bus, then process every track in dependency order (non-bus
// tracks only read clips/the transport, never another track's bus) so a
// bus's Inputs are fully accumulated before it sums them.
func (s *Sheet) Process(t0, t1 timeref.TimeRef, n int) error {
	for _, b := range s.buses {
		b.resize(n)
		b.zero(n)
	}
	if cap(s.scratch) == 0 || len(s.scratch[0]) < n {
		s.scratch = [][]float32{make([]float32, n), make([]float32, n)}
	}
	scratch := [][]float32{s.scratch[0][:n], s.scratch[1][:n]}

	resolve := func(id string) [][]float32 {
		if b, ok := s.buses[id]; ok {
			return b.Buffer[:2]
		}
		return nil
	}

	anySolo := s.AnySolo()

	// order() allocates several maps and is only re-run when the routing
	// graph has actually changed (§5 "never allocates" on the realtime
	// path); AddTrack/RemoveTrack/AddBus set orderDirty.
	if s.orderDirty {
		order, err := s.order()
		if err != nil {
			// Programmer error: routing graph is not acyclic (§7).
			panic(fmt.Sprintf("session: %v", err))
		}
		s.cachedOrder = order
		s.orderDirty = false
	}

	// Track.Process performs step 7 itself (routing its process bus into
	// each post-send bus via resolve), so there is nothing left to do
	// here once every track in dependency order has run.
	for _, t := range s.cachedOrder {
		if err := t.Process(t0, t1, n, resolve, anySolo, scratch); err != nil {
			return err
		}
	}
	return nil
}

// order returns tracks in an order where every bus track appears after
// every track whose post-sends feed one of its inputs (topological sort
// over the routing graph, Kahn's algorithm). Non-bus tracks have no
// incoming routing dependency, so they are emitted in the first pass, in
// s.Tracks order alongside any bus track that nothing feeds.
func (s *Sheet) order() ([]*track.Track, error) {
	indegree := make(map[string]int, len(s.Tracks))
	feedsInto := make(map[string][]string) // bus id -> track ids that depend on it
	byID := make(map[string]*track.Track, len(s.Tracks))

	for _, t := range s.Tracks {
		byID[t.ID] = t
		indegree[t.ID] = 0
	}
	for _, consumer := range s.Tracks {
		if !consumer.IsBus {
			continue
		}
		for _, busID := range consumer.Inputs {
			for _, producer := range s.Tracks {
				if producer.ID == consumer.ID {
					continue
				}
				feeds := producer.IsBus && producer.ID == busID
				for _, send := range producer.PostSends {
					if send == busID {
						feeds = true
						break
					}
				}
				if feeds {
					feedsInto[producer.ID] = append(feedsInto[producer.ID], consumer.ID)
					indegree[consumer.ID]++
				}
			}
		}
	}

	var queue []string
	for _, t := range s.Tracks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	var result []*track.Track
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, byID[id])
		for _, dep := range feedsInto[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(s.Tracks) {
		return nil, fmt.Errorf("routing graph has a cycle")
	}
	return result, nil
}
