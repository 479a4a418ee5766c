package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roktrack/pkg/device"
)

func TestStopAll(t *testing.T) {
	sim := device.NewSim()
	_ = sim.Left.Forward(0.8)
	_ = sim.Right.Backward(0.5)
	_ = sim.Work.On()

	require.NoError(t, stopAll(sim.Drivers()))

	dir, power := sim.Left.State()
	assert.Equal(t, 0, dir)
	assert.Zero(t, power)
	dir, _ = sim.Right.State()
	assert.Equal(t, 0, dir)
	assert.False(t, sim.Work.IsOn())
}

func TestRun_SimDriverIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roktrack.yaml")
	cfg := "drive:\n    driver: sim\nlog:\n    server:\n        path: " + filepath.Join(dir, "x.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	assert.NoError(t, run(path))
}
