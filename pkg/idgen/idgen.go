// Package idgen allocates stable string ids for the arena-style object
// model (§3, §9): clips, tracks, sources and plugins are referenced by
// id rather than pointer so they can cross the control<->realtime
// command boundary without sharing memory ownership.
package idgen

import "github.com/google/uuid"

// NewClipID, NewTrackID, NewSourceID and NewPluginID are distinguished
// only by prefix, for readability in logs; all are uuid v4 underneath.
func NewClipID() string   { return "clip-" + uuid.NewString() }
func NewTrackID() string  { return "track-" + uuid.NewString() }
func NewSourceID() string { return "source-" + uuid.NewString() }
func NewPluginID() string { return "plugin-" + uuid.NewString() }
