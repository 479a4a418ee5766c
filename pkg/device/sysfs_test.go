package device

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roktrack/pkg/config"
)

// fakeGPIOTree pre-creates the per-pin directories the kernel would add on export.
func fakeGPIOTree(t *testing.T, pins ...int) string {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "export"), nil, 0o644))
	for _, p := range pins {
		dir := filepath.Join(base, "gpio"+strconv.Itoa(p))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "value"), []byte("1\n"), 0o644))
	}
	return base
}

func readPin(t *testing.T, base string, pin int, file string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(base, "gpio"+strconv.Itoa(pin), file))
	require.NoError(t, err)
	return string(b)
}

func TestGPIO(t *testing.T) {
	base := fakeGPIOTree(t, 5)
	g, err := OpenGPIO(base, 5, true)
	require.NoError(t, err)
	assert.Equal(t, "out", readPin(t, base, 5, "direction"))

	require.NoError(t, g.Write(false))
	v, err := g.Read()
	require.NoError(t, err)
	assert.False(t, v)

	// unexported pin: the export write happens, the missing directory then fails
	_, err = OpenGPIO(base, 9, false)
	assert.Error(t, err)
	b, _ := os.ReadFile(filepath.Join(base, "export"))
	assert.Equal(t, "9", string(b))
}

func TestBumperAndRelay(t *testing.T) {
	base := fakeGPIOTree(t, 4, 16, 20)
	bp, err := OpenGPIO(base, 4, false)
	require.NoError(t, err)
	bumper := &GPIOBumper{pin: bp}
	pressed, err := bumper.Pressed()
	require.NoError(t, err)
	assert.False(t, pressed, "pulled up line is released")

	require.NoError(t, os.WriteFile(filepath.Join(base, "gpio4", "value"), []byte("0"), 0o644))
	pressed, _ = bumper.Pressed()
	assert.True(t, pressed)

	p1, _ := OpenGPIO(base, 16, true)
	p2, _ := OpenGPIO(base, 20, true)
	relay := &RelayWork{pin1: p1, pin2: p2, positive: true}
	require.NoError(t, relay.On())
	assert.Equal(t, "1", readPin(t, base, 16, "value"))
	assert.Equal(t, "0", readPin(t, base, 20, "value"))
	require.NoError(t, relay.Off())
	assert.Equal(t, "0", readPin(t, base, 16, "value"))
}

func TestSoftPWM(t *testing.T) {
	base := fakeGPIOTree(t, 12)
	g, err := OpenGPIO(base, 12, true)
	require.NoError(t, err)

	p := NewSoftPWM(g)
	p.SetDuty(1)
	assert.Eventually(t, func() bool { return readPin(t, base, 12, "value") == "1" }, time.Second, time.Millisecond)
	p.Close()
	assert.Equal(t, "0", readPin(t, base, 12, "value"))
}

func TestSysfsThermometer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("48312\n"), 0o644))
	c, err := (&SysfsThermometer{Path: path}).Celsius()
	require.NoError(t, err)
	assert.InDelta(t, 48.312, c, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("hot"), 0o644))
	_, err = (&SysfsThermometer{Path: path}).Celsius()
	assert.Error(t, err)
}

func TestOpenSysfs(t *testing.T) {
	pins := config.DefaultConfig().Pin
	base := fakeGPIOTree(t, pins.LeftPin1, pins.LeftPin2, pins.RightPin1, pins.RightPin2, pins.BumperPin, pins.Work1Pin, pins.Work2Pin)

	s, err := OpenSysfs(base, filepath.Join(base, "temp"), pins)
	require.NoError(t, err)
	defer s.Close()

	d := New(s.Drivers(), 0.7, 0.7, 1)
	d.WorkOn()
	assert.Equal(t, "1", readPin(t, base, pins.Work1Pin, "value"))
	assert.Equal(t, "in", readPin(t, base, pins.BumperPin, "direction"))
}
