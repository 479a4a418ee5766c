package device

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Motion is what the drive motors are doing.
type Motion uint8

const (
	MotionIdle Motion = iota
	MotionForward
	MotionBackward
	MotionLeft
	MotionRight
)

func (m Motion) String() string {
	switch m {
	case MotionForward:
		return "forward"
	case MotionBackward:
		return "backward"
	case MotionLeft:
		return "left"
	case MotionRight:
		return "right"
	}
	return "idle"
}

// Step is one leg of a maneuver.
type Step struct {
	Motion   Motion
	Duration time.Duration
}

const (
	// MinPower and MaxPower bound the trimmed drive power.
	MinPower = 0.4
	MaxPower = 1.0

	watchdogInterval = 10 * time.Millisecond
	tempInterval     = time.Second
)

// Device owns the motors, bumper and thermometer. Every motion returns at
// once; a timed motion records a deadline and the watchdog (Run) pauses the
// drive motors when it passes.
type Device struct {
	mu      sync.Mutex
	in      inner
	stop    chan struct{}
	turnAdj float64
	now     func() time.Time
}

type inner struct {
	drivers    Drivers
	leftPower  float64
	rightPower float64
	motion     Motion
	target     time.Time // zero while the motion has no deadline
	deadline   time.Time // last timed deadline, kept after it passes
	queue      []Step
	maneuver   bool
	work       bool
	bumped     bool
	temp       float64
	tempAt     time.Time
}

// New creates a device. turnAdj scales every motion duration to correct for
// clock skew between boards.
func New(drivers Drivers, leftPower, rightPower, turnAdj float64) *Device {
	if turnAdj <= 0 {
		turnAdj = 1
	}
	return &Device{
		in: inner{
			drivers:    drivers,
			leftPower:  leftPower,
			rightPower: rightPower,
		},
		stop:    make(chan struct{}, 1),
		turnAdj: turnAdj,
		now:     time.Now,
	}
}

// Forward drives straight for dur; zero means until the next command.
func (d *Device) Forward(dur time.Duration) { d.move(MotionForward, dur) }

// Backward reverses for dur.
func (d *Device) Backward(dur time.Duration) { d.move(MotionBackward, dur) }

// Left pivots counter-clockwise for dur.
func (d *Device) Left(dur time.Duration) { d.move(MotionLeft, dur) }

// Right pivots clockwise for dur.
func (d *Device) Right(dur time.Duration) { d.move(MotionRight, dur) }

func (d *Device) move(m Motion, dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.in.maneuver {
		slog.Debug("motion ignored during maneuver", "component", "device", "motion", m)
		return
	}
	d.start(m, dur)
}

// start applies a motion. Caller holds mu.
func (d *Device) start(m Motion, dur time.Duration) {
	d.in.motion = m
	if dur > 0 {
		d.in.target = d.now().Add(time.Duration(float64(dur) * d.turnAdj))
		d.in.deadline = d.in.target
	} else {
		d.in.target = time.Time{}
	}
	d.apply()
}

// apply pushes the current motion and powers to the drivers. Caller holds mu.
func (d *Device) apply() {
	l, r := d.in.drivers.Left, d.in.drivers.Right
	lp, rp := d.in.leftPower, d.in.rightPower
	var errL, errR error
	switch d.in.motion {
	case MotionForward:
		errL, errR = l.Forward(lp), r.Forward(rp)
	case MotionBackward:
		errL, errR = l.Backward(lp), r.Backward(rp)
	case MotionLeft:
		errL, errR = l.Backward(lp), r.Forward(rp)
	case MotionRight:
		errL, errR = l.Forward(lp), r.Backward(rp)
	default:
		errL, errR = l.Stop(), r.Stop()
	}
	if errL != nil || errR != nil {
		slog.Warn("drive motor error", "component", "device", "motion", d.in.motion, "left", errL, "right", errR)
	}
}

// Pause idles the drive motors and leaves the blade as it is.
func (d *Device) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.in.maneuver {
		return
	}
	d.pause()
}

func (d *Device) pause() {
	d.in.queue = nil
	d.in.maneuver = false
	d.start(MotionIdle, 0)
}

// Stop idles every motor and aborts any maneuver.
func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pause()
	d.workOff()
}

// RequestStop asks the watchdog to stop the device; it never blocks.
func (d *Device) RequestStop() {
	select {
	case d.stop <- struct{}{}:
	default:
	}
}

// WorkOn engages the blade.
func (d *Device) WorkOn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.in.work {
		return
	}
	if err := d.in.drivers.Work.On(); err != nil {
		slog.Warn("work motor error", "component", "device", "error", err)
		return
	}
	d.in.work = true
}

// WorkOff stops the blade.
func (d *Device) WorkOff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workOff()
}

func (d *Device) workOff() {
	if err := d.in.drivers.Work.Off(); err != nil {
		slog.Warn("work motor error", "component", "device", "error", err)
		return
	}
	d.in.work = false
}

// AdjustPower trims the drive powers by the given deltas, clamped to
// [MinPower, MaxPower]. A running motion picks up the new powers.
func (d *Device) AdjustPower(dl, dr float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.in.leftPower = clamp(d.in.leftPower+dl, MinPower, MaxPower)
	d.in.rightPower = clamp(d.in.rightPower+dr, MinPower, MaxPower)
	if d.in.motion != MotionIdle {
		d.apply()
	}
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// Maneuver runs steps back to back. Until it finishes only Stop interrupts it.
func (d *Device) Maneuver(steps ...Step) {
	if len(steps) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.in.maneuver {
		return
	}
	d.in.maneuver = true
	d.in.queue = append([]Step(nil), steps[1:]...)
	d.start(steps[0].Motion, steps[0].Duration)
}

// Powers returns the current drive powers.
func (d *Device) Powers() (left, right float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.leftPower, d.in.rightPower
}

// Motion returns the current drive motion.
func (d *Device) Motion() Motion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.motion
}

// Working reports whether the blade is engaged.
func (d *Device) Working() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.work
}

// Maneuvering reports whether a maneuver is in progress.
func (d *Device) Maneuvering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.maneuver
}

// TargetTime is the deadline of the most recent timed motion, zero if none
// was ever issued. It stays set after the motion ends.
func (d *Device) TargetTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.deadline
}

// Bumped returns the last sampled bumper state.
func (d *Device) Bumped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.bumped
}

// Temperature returns the last sampled SoC temperature in °C.
func (d *Device) Temperature() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in.temp
}

// Run is the watchdog loop. It samples the sensors, expires timed motions,
// advances maneuvers and pauses on bump.
func (d *Device) Run(ctx context.Context) error {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return ctx.Err()
		case <-d.stop:
			d.Stop()
		case <-ticker.C:
			d.check()
		}
	}
}

// check is one watchdog iteration.
func (d *Device) check() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()

	if d.in.drivers.Bumper != nil {
		pressed, err := d.in.drivers.Bumper.Pressed()
		if err != nil {
			slog.Debug("bumper read failed", "component", "device", "error", err)
		} else {
			d.in.bumped = pressed
		}
	}

	if d.in.drivers.Thermometer != nil && now.Sub(d.in.tempAt) >= tempInterval {
		c, err := d.in.drivers.Thermometer.Celsius()
		if err != nil {
			slog.Debug("temperature read failed", "component", "device", "error", err)
		} else {
			d.in.temp = c
		}
		d.in.tempAt = now
	}

	if !d.in.target.IsZero() && !now.Before(d.in.target) {
		if len(d.in.queue) > 0 {
			next := d.in.queue[0]
			d.in.queue = d.in.queue[1:]
			d.start(next.Motion, next.Duration)
		} else {
			d.pause()
		}
	}

	if d.in.bumped && !d.in.maneuver && d.in.motion != MotionIdle {
		d.pause()
	}
}
