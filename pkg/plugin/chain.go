// Package plugin implements the per-clip/per-track processing chain
// (§4.8): a linear sequence of Node implementations with one
// distinguished, non-removable gain-envelope node splitting it into a
// pre-fader and post-fader section.
package plugin

import (
	"errors"

	"github.com/drgolem/rtengine/pkg/envelope"
	"github.com/drgolem/rtengine/pkg/timeref"
)

// ErrEnvelopeNotRemovable is returned by Remove for any id found in
// neither the pre- nor the post-fader section; the gain-envelope node is
// held outside both and has no id, so it can never be removed (§4.8
// "the envelope is never removable").
var ErrEnvelopeNotRemovable = errors.New("plugin: gain envelope node cannot be removed")

// Node is one processing step in a chain. Implementations must not
// block or allocate in Process; the realtime thread calls it directly.
type Node interface {
	Process(bus []float32, n int)
}

// envelopeNode adapts an *envelope.Envelope to Node, carrying the
// file-space cycle bounds the track/clip process step sets before
// calling the chain (§4.6 "call the gain envelope with file-space
// times").
type envelopeNode struct {
	env    *envelope.Envelope
	t0, t1 timeref.TimeRef
}

func (n *envelopeNode) Process(bus []float32, count int) {
	n.env.ApplyToCycle(bus, n.t0, n.t1, count)
}

// entry pairs a Node with a stable id so callers can target Remove by id
// rather than positional index, which would shift under concurrent
// control-thread edits.
type entry struct {
	id   string
	node Node
}

// Chain is a linear sequence of Nodes with one distinguished gain
// envelope. Mutation (Add/Remove) must only be called from a control
// thread through the transport's add/remove mechanism (§4.8, §5); the
// realtime thread only calls SetCycle and ProcessPreFader/
// ProcessEnvelope/ProcessPostFader.
type Chain struct {
	pre  []entry
	post []entry
	env  *envelopeNode
}

// NewChain creates a chain with a gain envelope defaulting to unity gain.
func NewChain() *Chain {
	return &Chain{env: &envelopeNode{env: envelope.New(1.0)}}
}

// Envelope returns the chain's distinguished, non-removable gain
// envelope for automation editing.
func (c *Chain) Envelope() *envelope.Envelope {
	return c.env.env
}

// SetCycle sets the file-space (for a clip) or track-space (for a track)
// cycle bounds the gain envelope evaluates against for the next process
// call (§4.6).
func (c *Chain) SetCycle(t0, t1 timeref.TimeRef) {
	c.env.t0, c.env.t1 = t0, t1
}

// AddPreFader appends node to the pre-fader section (before the gain
// envelope) under id, the key a later Remove takes.
func (c *Chain) AddPreFader(id string, node Node) {
	c.pre = append(c.pre, entry{id: id, node: node})
}

// AddPostFader appends node to the post-fader section (after the gain
// envelope) under id, the key a later Remove takes.
func (c *Chain) AddPostFader(id string, node Node) {
	c.post = append(c.post, entry{id: id, node: node})
}

// Remove deletes the node with the given id from either section. An id
// found in neither section is rejected with ErrEnvelopeNotRemovable; the
// distinguished envelope node is never in either section (§4.8).
func (c *Chain) Remove(id string) error {
	for i, e := range c.pre {
		if e.id == id {
			c.pre = append(c.pre[:i], c.pre[i+1:]...)
			return nil
		}
	}
	for i, e := range c.post {
		if e.id == id {
			c.post = append(c.post[:i], c.post[i+1:]...)
			return nil
		}
	}
	return ErrEnvelopeNotRemovable
}

// ProcessPreFader runs every pre-fader node in order (§4.8
// "process_pre_fader(bus, N) runs nodes until the envelope").
func (c *Chain) ProcessPreFader(bus []float32, n int) {
	for _, e := range c.pre {
		e.node.Process(bus, n)
	}
}

// ProcessEnvelope runs the distinguished gain envelope node.
func (c *Chain) ProcessEnvelope(bus []float32, n int) {
	c.env.Process(bus, n)
}

// ProcessPostFader runs every post-fader node in order (§4.8
// "process_post_fader(bus, N) runs the rest").
func (c *Chain) ProcessPostFader(bus []float32, n int) {
	for _, e := range c.post {
		e.node.Process(bus, n)
	}
}
