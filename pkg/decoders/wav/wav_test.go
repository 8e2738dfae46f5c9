package wav

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileErrors(t *testing.T) {
	d := NewDecoder()
	err := d.Open(filepath.Join(t.TempDir(), "nonexistent.wav"))
	require.Error(t, err)
}

func TestDecodeSamplesBeforeOpenErrors(t *testing.T) {
	d := NewDecoder()
	buf := make([]byte, 16)
	_, err := d.DecodeSamples(4, buf)
	require.Error(t, err)
}

func TestCloseWithoutOpenIsNoop(t *testing.T) {
	d := NewDecoder()
	require.NoError(t, d.Close())
}
