package pilot

import (
	"log/slog"
	"time"

	"roktrack/pkg/device"
	"roktrack/pkg/vision"
)

// Device is the drive hardware as the pilot sees it. All motions return at
// once; timed motions expire in the device watchdog.
type Device interface {
	Stop()
	Pause()
	Forward(d time.Duration)
	Backward(d time.Duration)
	Left(d time.Duration)
	Right(d time.Duration)
	AdjustPower(dl, dr float64)
	WorkOn()
	Maneuver(steps ...device.Step)
	Bumped() bool
	TargetTime() time.Time
}

// Speaker plays voice cues without blocking.
type Speaker interface {
	Speak(name string)
}

// Notifier delivers an alert with a photo.
type Notifier interface {
	Notify(message, image string) error
}

// DefaultMaxTemp is the SoC temperature above which the robot stops.
const DefaultMaxTemp = 70.0

// Env bundles the collaborators a handler acts on.
type Env struct {
	Device   Device
	Vision   chan<- vision.Command
	Speaker  Speaker
	Notifier Notifier
	OCR      bool
	MaxTemp  float64
	Now      func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) maxTemp() float64 {
	if e.MaxTemp <= 0 {
		return DefaultMaxTemp
	}
	return e.MaxTemp
}

func (e *Env) speak(name string) {
	if e.Speaker != nil {
		e.Speaker.Speak(name)
	}
}

func (e *Env) send(c vision.Command) error {
	if e.Vision == nil {
		return vision.ErrCommandDropped
	}
	return vision.Send(e.Vision, c)
}

func (e *Env) notify(message, image string) {
	if e.Notifier == nil {
		slog.Debug("no notifier", "component", "pilot", "message", message)
		return
	}
	if err := e.Notifier.Notify(message, image); err != nil {
		slog.Warn("notification not queued", "component", "pilot", "error", err)
	}
}
