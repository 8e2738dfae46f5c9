package clip

import "math"

// epsilon matches C's FLT_EPSILON, used to keep a normalized peak
// strictly under full scale rather than exactly at it (§8 scenario 6).
const epsilon = 1.1920929e-7

// NormalizeGain computes the gain that brings a clip whose source peaks
// at peakAmplitude (a [0,1] fraction of full scale, from the peak
// store's norm values) to targetDB dBFS (§4.9, §9 supplemented feature).
// It is a pure function of peakAmplitude and targetDB, so normalizing
// the same clip to the same target twice always yields the same gain —
// the second invocation is a no-op if the caller skips applying an
// unchanged value (§8 scenario 6 "normalizing the same clip again...
// returns a gain equal to current gain").
func NormalizeGain(peakAmplitude float64, targetDB float64) float64 {
	if peakAmplitude <= 0 {
		return 1
	}
	targetLinear := math.Pow(10, targetDB/20) - epsilon
	return targetLinear / peakAmplitude
}

// ApplyNormalize sets c.Gain to NormalizeGain(peakAmplitude, targetDB),
// returning the new gain. The caller's group command should compare
// against c.Gain before calling and skip the mutation entirely when the
// computed value already matches, keeping a repeated normalize a true
// no-op rather than a redundant identical write.
func (c *Clip) ApplyNormalize(peakAmplitude, targetDB float64) float64 {
	g := NormalizeGain(peakAmplitude, targetDB)
	c.Gain = g
	return g
}
