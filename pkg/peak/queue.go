package peak

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// BuildRequest describes one source's peak build job, one channel at a
// time (a multi-channel source enqueues one request per channel).
type BuildRequest struct {
	SourceID string
	Channel  int
	FileRate int
	PeakPath string
	Reader   FrameReader
}

// BuildQueue is the FIFO peak-build request queue (§4.5): requesting the
// peak of a source already building is idempotent (deduped by source id
// + channel), and a running build can be cancelled, observable within one
// 64k-frame chunk since BuildBackground checks ctx every chunk.
type BuildQueue struct {
	mu      sync.Mutex
	pending []BuildRequest
	queued  map[string]bool
	cancel  map[string]context.CancelFunc

	wake chan struct{}
}

func requestKey(sourceID string, channel int) string {
	return fmt.Sprintf("%s#%d", sourceID, channel)
}

// NewBuildQueue creates an empty build queue.
func NewBuildQueue() *BuildQueue {
	return &BuildQueue{
		queued: make(map[string]bool),
		cancel: make(map[string]context.CancelFunc),
		wake:   make(chan struct{}, 1),
	}
}

// RequestBuild enqueues req unless a build for the same source+channel is
// already pending or running (§4.5 "deduplicates by source id").
func (q *BuildQueue) RequestBuild(req BuildRequest) {
	key := requestKey(req.SourceID, req.Channel)

	q.mu.Lock()
	if q.queued[key] {
		q.mu.Unlock()
		return
	}
	q.queued[key] = true
	q.pending = append(q.pending, req)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Cancel requests that a pending or in-progress build for source+channel
// stop. A running build observes this within one 64k-frame chunk.
func (q *BuildQueue) Cancel(sourceID string, channel int) {
	key := requestKey(sourceID, channel)
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel, ok := q.cancel[key]; ok {
		cancel()
	}
	delete(q.queued, key)
	for i, p := range q.pending {
		if requestKey(p.SourceID, p.Channel) == key {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
}

// Run drains the queue until ctx is cancelled, running one build at a
// time in FIFO order.
func (q *BuildQueue) Run(ctx context.Context) {
	for {
		req, ok := q.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		q.runOne(ctx, req)
	}
}

func (q *BuildQueue) dequeue() (BuildRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return BuildRequest{}, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	return req, true
}

func (q *BuildQueue) runOne(parent context.Context, req BuildRequest) {
	key := requestKey(req.SourceID, req.Channel)
	buildCtx, cancel := context.WithCancel(parent)

	q.mu.Lock()
	q.cancel[key] = cancel
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.cancel, key)
		delete(q.queued, key)
		q.mu.Unlock()
		cancel()
	}()

	store := NewStore(req.PeakPath, req.FileRate)
	if err := store.BuildBackground(buildCtx, req.Reader, req.Channel); err != nil {
		if buildCtx.Err() != nil {
			slog.Info("peak build cancelled", "source", req.SourceID, "channel", req.Channel)
			return
		}
		slog.Error("peak build failed", "source", req.SourceID, "channel", req.Channel, "error", err)
	}
}
