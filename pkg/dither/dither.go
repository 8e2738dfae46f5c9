// Package dither generates triangular-PDF dither noise for quantizing
// float audio down to an integer bit depth on export (§4.3). No example
// or pack repository ships a dither generator; this is a small,
// self-contained numeric routine over math/rand/v2, not a library concern.
package dither

import (
	"hash/fnv"
	"math/rand/v2"
)

// Generator produces triangular-PDF dither samples scaled to one LSB of a
// target bit depth, seeded deterministically so the same output path
// always dithers identically (§4.3 "reproducibility").
type Generator struct {
	rng      *rand.Rand
	lsb      float64
	disabled bool
}

// SeedFromPath derives a deterministic 64-bit seed from an output file
// path using FNV-1a, so repeated exports of the same destination path
// dither identically.
func SeedFromPath(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}

// NewGenerator returns a triangular dither generator for the given target
// bit depth. Per §4.3, 16-bit output dithers by default; 24/32-bit float
// output should pass disable=true (no dither).
func NewGenerator(seed uint64, bitDepth int, disable bool) *Generator {
	lsb := 1.0
	if bitDepth > 0 {
		lsb = 2.0 / float64(int64(1)<<uint(bitDepth))
	}
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		lsb:      lsb,
		disabled: disable,
	}
}

// Next returns one triangular-PDF dither sample in [-lsb, +lsb], or 0 if
// dithering is disabled for this generator.
func (g *Generator) Next() float64 {
	if g.disabled {
		return 0
	}
	// Sum of two independent uniforms on [-0.5,0.5] LSB gives a triangular
	// distribution on [-1,1] LSB with zero mean, the standard TPDF dither.
	a := g.rng.Float64() - 0.5
	b := g.rng.Float64() - 0.5
	return (a + b) * g.lsb
}

// Disabled reports whether this generator adds no dither (used for
// lossless 24/32-bit float export paths).
func (g *Generator) Disabled() bool {
	return g.disabled
}
