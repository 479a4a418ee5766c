package pilot

import (
	"time"

	"roktrack/pkg/device"
	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

type call struct {
	name   string
	d      time.Duration
	dl, dr float64
	steps  []device.Step
}

// fakeDevice records every command.
type fakeDevice struct {
	calls  []call
	bumped bool
	target time.Time
}

func (f *fakeDevice) rec(c call)                      { f.calls = append(f.calls, c) }
func (f *fakeDevice) Stop()                           { f.rec(call{name: "stop"}) }
func (f *fakeDevice) Pause()                          { f.rec(call{name: "pause"}) }
func (f *fakeDevice) Forward(d time.Duration)         { f.rec(call{name: "forward", d: d}) }
func (f *fakeDevice) Backward(d time.Duration)        { f.rec(call{name: "backward", d: d}) }
func (f *fakeDevice) Left(d time.Duration)            { f.rec(call{name: "left", d: d}) }
func (f *fakeDevice) Right(d time.Duration)           { f.rec(call{name: "right", d: d}) }
func (f *fakeDevice) AdjustPower(dl, dr float64)      { f.rec(call{name: "adjust", dl: dl, dr: dr}) }
func (f *fakeDevice) WorkOn()                         { f.rec(call{name: "work_on"}) }
func (f *fakeDevice) Maneuver(steps ...device.Step)   { f.rec(call{name: "maneuver", steps: steps}) }
func (f *fakeDevice) Bumped() bool                    { return f.bumped }
func (f *fakeDevice) TargetTime() time.Time           { return f.target }

func (f *fakeDevice) names() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.name)
	}
	return out
}

// motions drops work_on so tests can focus on drive commands.
func (f *fakeDevice) motions() []call {
	out := make([]call, 0, len(f.calls))
	for _, c := range f.calls {
		if c.name != "work_on" {
			out = append(out, c)
		}
	}
	return out
}

type fakeSpeaker struct{ cues []string }

func (f *fakeSpeaker) Speak(name string) { f.cues = append(f.cues, name) }

type alert struct{ message, image string }

type fakeNotifier struct{ alerts []alert }

func (f *fakeNotifier) Notify(message, image string) error {
	f.alerts = append(f.alerts, alert{message, image})
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	st     *State
	env    *Env
	dev    *fakeDevice
	spk    *fakeSpeaker
	ntf    *fakeNotifier
	vision chan vision.Command
	clock  *fakeClock
}

func newHarness(mode model.Mode) *harness {
	h := &harness{
		st:     New(mode, true, 42),
		dev:    &fakeDevice{},
		spk:    &fakeSpeaker{},
		ntf:    &fakeNotifier{},
		vision: make(chan vision.Command, 8),
		clock:  &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	h.env = &Env{
		Device:   h.dev,
		Vision:   h.vision,
		Speaker:  h.spk,
		Notifier: h.ntf,
		Now:      h.clock.now,
	}
	return h
}

func (h *harness) batch(dets ...vision.Detection) vision.Batch {
	return vision.Batch{
		Detections: dets,
		ShotAt:     h.clock.t,
		Image:      "/run/roktrack/vision.jpg",
		Width:      h.st.ImgWidth,
		Height:     h.st.ImgHeight,
	}
}

func (h *harness) commands() []vision.Command {
	var out []vision.Command
	for {
		select {
		case c := <-h.vision:
			out = append(out, c)
		default:
			return out
		}
	}
}

func (h *harness) reset() {
	h.dev.calls = nil
	h.spk.cues = nil
	h.commands()
}

// pylon builds a pylon of height hgt centered on xc.
func pylon(xc, hgt int) vision.Detection {
	w := hgt / 2
	return vision.NewDetection(xc-w/2, 20, xc-w/2+w, 20+hgt, vision.ClassPylon, 0.9)
}

func person(xc, hgt int) vision.Detection {
	d := pylon(xc, hgt)
	d.Class = vision.ClassPerson
	return d
}
