package pilot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

const (
	// AlertInterval is the minimum gap between two alerts.
	AlertInterval = 60 * time.Second
	// blurMargin extends the last turn deadline; frames shot before it are
	// likely smeared.
	blurMargin = 300 * time.Millisecond
)

// Monitor stands guard and raises an alert when its target class shows up.
type Monitor struct {
	mode     model.Mode
	cue      string
	msg      model.ChildMsg
	deblur   bool
	match    func(dets []vision.Detection) []vision.Detection
	describe func(d vision.Detection) string

	lastAlert time.Time
}

// NewMonitorPerson watches for people.
func NewMonitorPerson() *Monitor {
	return &Monitor{
		mode:   model.ModeMonitorPerson,
		cue:    "person_detecting_warn",
		msg:    model.ChildPersonFoundWarn,
		deblur: true,
		match: func(dets []vision.Detection) []vision.Detection {
			return vision.Filter(dets, vision.ClassPerson)
		},
		describe: func(vision.Detection) string { return "Person detected." },
	}
}

// NewMonitorAnimal watches for animals. Every detection of the animal
// session counts.
func NewMonitorAnimal() *Monitor {
	return &Monitor{
		mode: model.ModeMonitorAnimal,
		cue:  "animal_detecting",
		msg:  model.ChildAnimalFound,
		match: func(dets []vision.Detection) []vision.Detection {
			return vision.SortBig(dets)
		},
		describe: func(d vision.Detection) string {
			name := vision.AnimalName(d.Class)
			return fmt.Sprintf("%s%s detected.", strings.ToUpper(name[:1]), name[1:])
		},
	}
}

// Mode implements Handler.
func (m *Monitor) Mode() model.Mode { return m.mode }

// LastAlert is when the last alert fired.
func (m *Monitor) LastAlert() time.Time { return m.lastAlert }

// Handle implements Handler.
func (m *Monitor) Handle(st *State, env *Env, batch vision.Batch) {
	if systemSafety(st, env, false) {
		return
	}

	if m.deblur && batch.ShotAt.Before(env.Device.TargetTime().Add(blurMargin)) {
		return
	}

	found := m.match(batch.Detections)
	if len(found) == 0 {
		return
	}

	now := env.now()
	if !m.lastAlert.IsZero() && now.Sub(m.lastAlert) < AlertInterval {
		slog.Debug("alert suppressed", "component", "pilot", "mode", m.mode, "since", now.Sub(m.lastAlert))
		return
	}
	m.lastAlert = now

	text := m.describe(found[0])
	slog.Warn("intruder detected", "component", "pilot", "mode", m.mode, "message", text)
	st.Msg = m.msg
	env.speak(m.cue)
	env.notify(text, batch.Image)
}
