package readsource

import "testing"

func TestEffectiveBitsPerSampleNormalizesKnownWidths(t *testing.T) {
	for _, bps := range []int{8, 16, 24, 32} {
		if got := effectiveBitsPerSample(bps); got != bps {
			t.Errorf("effectiveBitsPerSample(%d) = %d, want %d", bps, got, bps)
		}
	}
}

func TestEffectiveBitsPerSampleDefaultsUnknownEncodingsTo16(t *testing.T) {
	for _, reported := range []int{0, 1, 208, -1} {
		if got := effectiveBitsPerSample(reported); got != 16 {
			t.Errorf("effectiveBitsPerSample(%d) = %d, want 16", reported, got)
		}
	}
}
