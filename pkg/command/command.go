package command

import "github.com/drgolem/rtengine/pkg/timeref"

// Kind tags which variant of Command's payload is populated (§9, the
// tagged-variant idiom this engine uses in place of OOP command
// subclassing).
type Kind int

const (
	KindAddClip Kind = iota
	KindRemoveClip
	KindAddTrack
	KindRemoveTrack
	KindAddPlugin
	KindRemovePlugin
	KindSetGain
	KindSetMute
	KindSetSolo
	KindSetArm
	KindSeek
	KindTransportStart
	KindTransportStop
)

// Command is the tagged union the realtime thread drains at the top of
// each cycle (§5). Exactly one of the optional payload fields is
// populated, selected by Kind; the realtime thread either applies the
// whole new node or doesn't (§5 "add/remove... is seen atomically by
// the realtime thread: either the whole new node is present, or it is
// not").
type Command struct {
	Kind Kind

	TrackID  string
	ClipID   string
	PluginID string

	Clip   interface{} // *clip.Clip, boxed to avoid an import cycle with pkg/clip
	Track  interface{} // *track.Track
	Plugin interface{} // plugin.Node

	Gain     float64
	Flag     bool
	Position timeref.TimeRef // KindSeek's target transport position
}

// DisposeReason records why the realtime thread handed a resource back
// for teardown.
type DisposeReason int

const (
	DisposeClipRemoved DisposeReason = iota
	DisposeTrackRemoved
	DisposePluginRemoved
)

// Disposed is published by the realtime thread once it has confirmed it
// no longer references a resource a control thread asked to remove
// (§5 "the realtime thread publishes 'please dispose' messages back";
// §5 "drained and freed only after the realtime thread has confirmed...
// this is the 'lockless remove' protocol").
type Disposed struct {
	Reason DisposeReason
	ID     string
}

// Bus bundles the two SPSC queues one control<->realtime pairing needs:
// Commands flows control -> realtime, Disposals flows realtime -> control.
type Bus struct {
	Commands  *Queue[Command]
	Disposals *Queue[Disposed]
}

// NewBus creates a Bus with the given queue capacities.
func NewBus(commandCapacity, disposalCapacity int) *Bus {
	return &Bus{
		Commands:  NewQueue[Command](commandCapacity),
		Disposals: NewQueue[Disposed](disposalCapacity),
	}
}
