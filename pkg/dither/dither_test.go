package dither

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedFromPathIsDeterministic(t *testing.T) {
	a := SeedFromPath("out/mix.wav")
	b := SeedFromPath("out/mix.wav")
	require.Equal(t, a, b)
}

func TestSeedFromPathDiffersByPath(t *testing.T) {
	a := SeedFromPath("out/mix.wav")
	b := SeedFromPath("out/mix2.wav")
	require.NotEqual(t, a, b)
}

func TestGeneratorSameSeedProducesSameSequence(t *testing.T) {
	g1 := NewGenerator(42, 16, false)
	g2 := NewGenerator(42, 16, false)

	for i := 0; i < 100; i++ {
		require.Equal(t, g1.Next(), g2.Next())
	}
}

func TestGeneratorDisabledAlwaysZero(t *testing.T) {
	g := NewGenerator(1, 24, true)
	require.True(t, g.Disabled())
	for i := 0; i < 10; i++ {
		require.Zero(t, g.Next())
	}
}

func TestGeneratorBoundedByLSB(t *testing.T) {
	g := NewGenerator(7, 16, false)
	lsb := 2.0 / float64(int64(1)<<16)
	for i := 0; i < 10000; i++ {
		v := g.Next()
		require.LessOrEqual(t, math.Abs(v), lsb+1e-12)
	}
}
