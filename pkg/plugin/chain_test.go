package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drgolem/rtengine/pkg/timeref"
)

type gainNode struct{ gain float32 }

func (g *gainNode) Process(bus []float32, n int) {
	for i := 0; i < n; i++ {
		bus[i] *= g.gain
	}
}

func TestNewChainHasUnityEnvelope(t *testing.T) {
	c := NewChain()
	require.Equal(t, 1.0, c.Envelope().GainAt(timeref.New(0)))
}

func TestAddPreFaderRunsBeforeEnvelope(t *testing.T) {
	c := NewChain()
	c.AddPreFader("double", &gainNode{gain: 2})
	c.Envelope().AddPoint(timeref.New(0), 0.5)
	c.SetCycle(timeref.New(0), timeref.New(100))

	bus := []float32{1}
	c.ProcessPreFader(bus, 1)
	c.ProcessEnvelope(bus, 1)
	require.InDelta(t, 1.0, bus[0], 1e-6) // 1 * 2 * 0.5
}

func TestAddPostFaderRunsAfterEnvelope(t *testing.T) {
	c := NewChain()
	c.AddPostFader("halve", &gainNode{gain: 0.5})
	c.SetCycle(timeref.New(0), timeref.New(100))

	bus := []float32{1}
	c.ProcessEnvelope(bus, 1)
	c.ProcessPostFader(bus, 1)
	require.InDelta(t, 0.5, bus[0], 1e-6)
}

func TestRemoveByID(t *testing.T) {
	c := NewChain()
	c.AddPreFader("n1", &gainNode{gain: 2})
	require.NoError(t, c.Remove("n1"))

	bus := []float32{1}
	c.ProcessPreFader(bus, 1)
	require.Equal(t, float32(1), bus[0])
}

func TestRemoveEnvelopeNodeRejected(t *testing.T) {
	c := NewChain()
	err := c.Remove("envelope")
	require.ErrorIs(t, err, ErrEnvelopeNotRemovable)
}

func TestRemoveUnknownIDRejected(t *testing.T) {
	c := NewChain()
	err := c.Remove("nope")
	require.ErrorIs(t, err, ErrEnvelopeNotRemovable)
}
