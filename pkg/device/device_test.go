package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDevice(turnAdj float64) (*Device, *Sim, *clock) {
	sim := NewSim()
	d := New(sim.Drivers(), 0.7, 0.7, turnAdj)
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	d.now = c.now
	return d, sim, c
}

func TestTimedMotion(t *testing.T) {
	d, sim, c := newTestDevice(1.2)

	d.Left(500 * time.Millisecond)
	assert.Equal(t, MotionLeft, d.Motion())
	assert.Equal(t, c.t.Add(600*time.Millisecond), d.TargetTime(), "duration scaled by turn_adj")

	dir, _ := sim.Left.State()
	assert.Equal(t, -1, dir)
	dir, _ = sim.Right.State()
	assert.Equal(t, 1, dir)

	c.advance(599 * time.Millisecond)
	d.check()
	assert.Equal(t, MotionLeft, d.Motion())

	c.advance(time.Millisecond)
	d.check()
	assert.Equal(t, MotionIdle, d.Motion())
	assert.Equal(t, c.t, d.TargetTime(), "deadline kept after expiry")
	dir, _ = sim.Left.State()
	assert.Equal(t, 0, dir)
}

func TestForwardWithoutDeadline(t *testing.T) {
	d, sim, c := newTestDevice(1)
	d.Forward(0)
	c.advance(time.Hour)
	d.check()
	assert.Equal(t, MotionForward, d.Motion())
	dir, p := sim.Right.State()
	assert.Equal(t, 1, dir)
	assert.InDelta(t, 0.7, p, 1e-9)
}

func TestAdjustPowerClamp(t *testing.T) {
	d, sim, _ := newTestDevice(1)
	d.Forward(0)

	d.AdjustPower(-0.1, 0.1)
	l, r := d.Powers()
	assert.InDelta(t, 0.6, l, 1e-9)
	assert.InDelta(t, 0.8, r, 1e-9)
	_, p := sim.Left.State()
	assert.InDelta(t, 0.6, p, 1e-9, "running motion picks up new power")

	d.AdjustPower(-1, 1)
	l, r = d.Powers()
	assert.Equal(t, MinPower, l)
	assert.Equal(t, MaxPower, r)
}

func TestManeuver(t *testing.T) {
	d, sim, c := newTestDevice(1)
	d.Maneuver(
		Step{MotionBackward, 2 * time.Second},
		Step{MotionLeft, 500 * time.Millisecond},
		Step{MotionForward, 2 * time.Second},
		Step{MotionRight, 500 * time.Millisecond},
	)
	assert.True(t, d.Maneuvering())
	assert.Equal(t, MotionBackward, d.Motion())

	// drive commands do not interrupt it
	d.Forward(0)
	d.Pause()
	assert.Equal(t, MotionBackward, d.Motion())

	want := []Motion{MotionLeft, MotionForward, MotionRight, MotionIdle}
	durations := []time.Duration{2 * time.Second, 500 * time.Millisecond, 2 * time.Second, 500 * time.Millisecond}
	for i, m := range want {
		c.advance(durations[i])
		d.check()
		assert.Equal(t, m, d.Motion(), "step %d", i)
	}
	assert.False(t, d.Maneuvering())

	// Stop aborts
	sim.Work.Set(true)
	d.Maneuver(Step{MotionBackward, 2 * time.Second}, Step{MotionLeft, time.Second})
	d.Stop()
	assert.False(t, d.Maneuvering())
	assert.Equal(t, MotionIdle, d.Motion())
	assert.False(t, sim.Work.IsOn())
}

func TestBumperPauses(t *testing.T) {
	d, sim, _ := newTestDevice(1)
	d.Forward(0)
	sim.Bumper.Set(true)
	d.check()
	assert.True(t, d.Bumped())
	assert.Equal(t, MotionIdle, d.Motion())

	// but not during an escape
	d.Maneuver(Step{MotionBackward, 2 * time.Second})
	d.check()
	assert.Equal(t, MotionBackward, d.Motion())

	sim.Bumper.Set(false)
	d.check()
	assert.False(t, d.Bumped())
}

func TestTemperatureSampling(t *testing.T) {
	d, sim, c := newTestDevice(1)
	d.check()
	assert.Equal(t, 45.0, d.Temperature())

	sim.Thermometer.Set(72)
	c.advance(500 * time.Millisecond)
	d.check()
	assert.Equal(t, 45.0, d.Temperature(), "sampled once per second")

	c.advance(500 * time.Millisecond)
	d.check()
	assert.Equal(t, 72.0, d.Temperature())
}

func TestWork(t *testing.T) {
	d, sim, _ := newTestDevice(1)
	d.WorkOn()
	assert.True(t, d.Working())
	assert.True(t, sim.Work.IsOn())
	d.Pause()
	assert.True(t, sim.Work.IsOn(), "pause leaves the blade running")
	d.WorkOff()
	assert.False(t, sim.Work.IsOn())
}

func TestRunRequestStop(t *testing.T) {
	d, sim, _ := newTestDevice(1)
	d.now = time.Now
	d.WorkOn()
	d.Forward(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.RequestStop()
	assert.Eventually(t, func() bool { return d.Motion() == MotionIdle && !sim.Work.IsOn() }, time.Second, 5*time.Millisecond)

	d.Forward(0)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not exit")
	}
	assert.Equal(t, MotionIdle, d.Motion(), "shutdown stops the motors")
}
