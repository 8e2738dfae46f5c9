// Package diskio implements the single background scheduler thread that
// keeps every active ReadSource/WriteSource ring fed or drained (§4.4).
// It never touches audio data owned by the realtime thread; it only
// drives decoder/encoder/file I/O for the slots currently sitting in
// each source's Free (for reads) or RT (for writes) queue.
package diskio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/drgolem/rtengine/pkg/ring"
)

// ReadSource is the subset of *readsource.ReadSource the scheduler drives.
type ReadSource interface {
	FillOneSlot() bool
	Status() *ring.BufferStatus
	IsActive() bool
	// ReconcileSeek repositions the decoder when the realtime thread has
	// flagged a live seek (§4.4 point 4), reporting whether it did so.
	ReconcileSeek() bool
}

// WriteSource is the subset of *writesource.WriteSource the scheduler drives.
type WriteSource interface {
	RbFileWrite() (int, error)
	Status() *ring.BufferStatus
}

// entry pairs a registered source with the ring metadata the scheduler
// needs to rank it, independent of whether it's a read or write source.
type entry struct {
	id       string
	priority int32
	read     ReadSource
	write    WriteSource
}

// Scheduler ranks registered sources by hunger (reads) or fullness
// (writes) each tick and services as many slots as the tick's time
// budget allows (§4.4 points 1-3).
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry

	tickBudget time.Duration
	tickPeriod time.Duration
}

// New creates a scheduler with the given per-tick time budget and fallback
// periodic tick interval. Per §4.4, tickPeriod should be at most half a
// slot's duration so the scheduler never starves behind the realtime
// thread's own cycle cadence.
func New(tickBudget, tickPeriod time.Duration) *Scheduler {
	return &Scheduler{
		entries:    make(map[string]*entry),
		tickBudget: tickBudget,
		tickPeriod: tickPeriod,
	}
}

// RegisterReadSource adds a read source to the scheduler's registry under id.
func (s *Scheduler) RegisterReadSource(id string, rs ReadSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{id: id, priority: 1, read: rs}
}

// RegisterWriteSource adds a write source to the scheduler's registry under id.
func (s *Scheduler) RegisterWriteSource(id string, ws WriteSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{id: id, priority: 1, write: ws}
}

// Unregister removes a source from the registry, e.g. once a clip's
// source is fully disposed through the control<->realtime dispose queue
// (§5).
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// SetPriority adjusts a registered source's scheduling priority; armed or
// currently-visible sources get a higher value than the default of 1
// (§4.4 point 1).
func (s *Scheduler) SetPriority(id string, priority int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.priority = priority
	}
}

// Run services the registry until ctx is cancelled, waking on its own
// periodic timer (§4.4 "or by a periodic timer at least every
// slot_duration/2"). A real deployment also nudges this loop by closing
// a per-cycle channel from the realtime thread; Tick is exported so that
// trigger can be wired in independently of the timer.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick ranks every registered source by urgency and services one slot
// each, in descending urgency order, until the tick's time budget is
// spent (§4.4 points 1-3).
func (s *Scheduler) Tick() {
	s.mu.Lock()
	ranked := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		ranked = append(ranked, e)
	}
	s.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		return s.urgency(ranked[i]) > s.urgency(ranked[j])
	})

	deadline := time.Now().Add(s.tickBudget)
	for _, e := range ranked {
		if time.Now().After(deadline) {
			return
		}
		switch {
		case e.read != nil:
			if e.read.IsActive() {
				// A pending live seek takes priority over a normal fill:
				// the ring must drain and the decoder reposition before
				// any more slots at the old location are worth filling.
				if !e.read.ReconcileSeek() {
					e.read.FillOneSlot()
				}
			}
		case e.write != nil:
			e.write.RbFileWrite()
		}
	}
}

// urgency computes hunger for a read source or fullness for a write
// source, the ranking key in §4.4 points 1-2.
func (s *Scheduler) urgency(e *entry) float64 {
	status := e.status()
	if status == nil {
		return 0
	}
	priority := float64(e.priority)

	switch {
	case e.read != nil:
		fill := float64(status.FillPercent.Load()) / 100.0
		hunger := (1.0 - fill) * priority
		return hunger
	case e.write != nil:
		fill := float64(status.FillPercent.Load()) / 100.0
		return fill * priority
	default:
		return 0
	}
}

func (e *entry) status() *ring.BufferStatus {
	if e.read != nil {
		return e.read.Status()
	}
	if e.write != nil {
		return e.write.Status()
	}
	return nil
}
