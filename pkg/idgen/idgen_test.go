package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDsCarryDistinguishingPrefixes(t *testing.T) {
	require.True(t, strings.HasPrefix(NewClipID(), "clip-"))
	require.True(t, strings.HasPrefix(NewTrackID(), "track-"))
	require.True(t, strings.HasPrefix(NewSourceID(), "source-"))
	require.True(t, strings.HasPrefix(NewPluginID(), "plugin-"))
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewClipID()
		require.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}
