// Package timeref implements the engine's universal time base: a rational
// sample count in a fixed high-resolution rate that every supported device
// rate divides evenly, so conversions to and from any device rate never
// accumulate rounding error across repeated round-trips.
package timeref

import "math"

// UniversalRate is a common multiple of the supported device rates
// {22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}: 25 times
// their least common multiple of 28,224,000, so every one divides it.
const UniversalRate int64 = 705600000

// Invalid is the sentinel TimeRef value for "no location".
const Invalid TimeRef = math.MinInt64

// TimeRef is a signed count of universal-rate samples.
type TimeRef int64

// New constructs a TimeRef directly from a universal sample count.
func New(universalSamples int64) TimeRef {
	return TimeRef(universalSamples)
}

// FromFrames converts a frame count at the given device rate into a TimeRef.
// n * UniversalRate is always exact for the supported rate set because rate
// divides UniversalRate.
func FromFrames(n int64, rate int) TimeRef {
	if rate <= 0 {
		return Invalid
	}
	return TimeRef(n * UniversalRate / int64(rate))
}

// ToFrames converts a TimeRef to a frame count at the given device rate,
// truncating toward zero.
func (t TimeRef) ToFrames(rate int) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(t) * int64(rate) / UniversalRate
}

// IsValid reports whether t is not the Invalid sentinel.
func (t TimeRef) IsValid() bool {
	return t != Invalid
}

// Add returns t + other.
func (t TimeRef) Add(other TimeRef) TimeRef {
	return t + other
}

// Sub returns t - other.
func (t TimeRef) Sub(other TimeRef) TimeRef {
	return t - other
}

// Compare returns -1, 0 or 1 as t is less than, equal to, or greater than other.
func (t TimeRef) Compare(other TimeRef) int {
	switch {
	case t < other:
		return -1
	case t > other:
		return 1
	default:
		return 0
	}
}

// Less reports whether t < other.
func (t TimeRef) Less(other TimeRef) bool {
	return t < other
}

// Universal returns the raw universal-rate sample count.
func (t TimeRef) Universal() int64 {
	return int64(t)
}
