package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anatase.toml")
	contents := `
[vm]
stack_capacity = 4096

[watch]
registers = [0, 1, 5]
period = "1s"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.VM.StackCapacity)
	require.Equal(t, []int{0, 1, 5}, cfg.Watch.Registers)
	require.Equal(t, time.Second, cfg.WatchPeriod())
}

func TestWatchPeriodFallsBackOnMalformedDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Period = "not-a-duration"
	require.Equal(t, 200*time.Millisecond, cfg.WatchPeriod())
}

func TestWatchRegistersDropsOutOfRangeIndices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Registers = []int{-1, 0, 255, 256, 3}
	require.Equal(t, []byte{0, 255, 3}, cfg.WatchRegisters())
}
