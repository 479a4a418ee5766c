package pilot

import (
	"log/slog"

	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// Risk is a condition that preempts the action table for one tick.
type Risk uint8

const (
	RiskNone Risk = iota
	RiskStateOff
	RiskHighTemp
	RiskBumped
	RiskPersonDetected
	RiskRobotDetected
)

func (r Risk) String() string {
	switch r {
	case RiskStateOff:
		return "state_off"
	case RiskHighTemp:
		return "high_temp"
	case RiskBumped:
		return "bumped"
	case RiskPersonDetected:
		return "person_detected"
	case RiskRobotDetected:
		return "robot_detected"
	}
	return "none"
}

// AssessSystemRisk checks the on flag, temperature and, when withBumper is
// set, the bumper.
func AssessSystemRisk(st *State, env *Env, withBumper bool) Risk {
	switch {
	case !st.On:
		return RiskStateOff
	case st.PiTemp > env.maxTemp():
		return RiskHighTemp
	case withBumper && env.Device.Bumped():
		return RiskBumped
	}
	return RiskNone
}

// AssessVisionRisk looks for people and other robots in the frame.
func AssessVisionRisk(dets []vision.Detection) Risk {
	switch {
	case vision.Contains(dets, vision.ClassPerson):
		return RiskPersonDetected
	case vision.Contains(dets, vision.ClassRoktrack):
		return RiskRobotDetected
	}
	return RiskNone
}

// handleRisk performs the response for r and reports whether one fired.
func handleRisk(st *State, env *Env, r Risk) bool {
	switch r {
	case RiskNone:
		return false
	case RiskStateOff:
		_ = Stop(env)
	case RiskHighTemp:
		_ = Stop(env)
		st.Msg = model.ChildPiTempHighHalt
		env.speak("high_temp")
	case RiskBumped:
		_ = Escape(st, env)
		st.Msg = model.ChildBumped
		env.speak("bumped")
	case RiskPersonDetected:
		_ = Stop(env)
		st.Msg = model.ChildPersonFoundPause
		env.speak("person_detecting")
	case RiskRobotDetected:
		_ = Stop(env)
	}
	if r != RiskStateOff {
		slog.Debug("risk handled", "component", "pilot", "risk", r)
	}
	return true
}

// systemSafety runs the system pre-pass.
func systemSafety(st *State, env *Env, withBumper bool) bool {
	return handleRisk(st, env, AssessSystemRisk(st, env, withBumper))
}

// fullSafety runs the system pre-pass, then the vision pre-pass.
func fullSafety(st *State, env *Env, dets []vision.Detection) bool {
	if systemSafety(st, env, true) {
		return true
	}
	return handleRisk(st, env, AssessVisionRisk(dets))
}
