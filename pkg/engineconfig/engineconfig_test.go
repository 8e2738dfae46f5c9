package engineconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsFullyPopulated(t *testing.T) {
	cfg := Default()
	require.Equal(t, 48000, cfg.Device.SampleRate)
	require.Equal(t, 2, cfg.Device.Channels)
	require.Equal(t, 512, cfg.Device.CycleSize)
	require.Equal(t, 8, cfg.Ring.SlotCount)
	require.Equal(t, "linear", cfg.Fades.DefaultShape)
}

func TestTickBudgetAndPeriodConvertMillis(t *testing.T) {
	cfg := DiskIOConfig{TickBudgetMillis: 2, TickPeriodMillis: 10}
	require.Equal(t, 2*time.Millisecond, cfg.TickBudget())
	require.Equal(t, 10*time.Millisecond, cfg.TickPeriod())
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	yamlDoc := `
device:
  samplerate: 96000
  channels: 2
  cyclesize: 256
diskio:
  tickbudgetmillis: 5
  tickperiodmillis: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 96000, cfg.Device.SampleRate)
	require.Equal(t, 256, cfg.Device.CycleSize)
	require.Equal(t, 5, cfg.DiskIO.TickBudgetMillis)
	// Fields omitted by the file keep Default()'s values.
	require.Equal(t, "linear", cfg.Fades.DefaultShape)
	require.Equal(t, 8, cfg.Ring.SlotCount)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/engine.yaml")
	require.Error(t, err)
}

func TestLoadInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: valid: yaml: :::"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
