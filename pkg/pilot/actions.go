package pilot

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"roktrack/pkg/device"
	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

const (
	turnDuration  = 500 * time.Millisecond
	steerDuration = 100 * time.Millisecond
	escapeReverse = 2 * time.Second
	escapeForward = 2 * time.Second
)

func turn(st *State, env *Env, d time.Duration) {
	if st.Phase == model.PhaseCW {
		env.Device.Right(d)
	} else {
		env.Device.Left(d)
	}
}

func phaseMotion(p model.Phase) (turn, counter device.Motion) {
	if p == model.PhaseCW {
		return device.MotionRight, device.MotionLeft
	}
	return device.MotionLeft, device.MotionRight
}

// Stop idles drive and work motors.
func Stop(env *Env) error {
	env.Device.Stop()
	return nil
}

// Escape backs off, turns in phase direction, drives on and turns back.
func Escape(st *State, env *Env) error {
	t, c := phaseMotion(st.Phase)
	env.Device.Maneuver(
		device.Step{Motion: device.MotionBackward, Duration: escapeReverse},
		device.Step{Motion: t, Duration: turnDuration},
		device.Step{Motion: device.MotionForward, Duration: escapeForward},
		device.Step{Motion: c, Duration: turnDuration},
	)
	return nil
}

// Halt ends a mission that lost its markers.
func Halt(st *State, env *Env) error {
	st.On = false
	st.Msg = model.ChildTargetNotFound
	env.Device.Stop()
	env.speak("cone_not_found")
	return env.send(vision.CommandOff)
}

// Upscale switches vision to 640x480.
func Upscale(st *State, env *Env) error {
	return scaleTo(st, env, vision.Width640)
}

// Downscale switches vision back to 320x240.
func Downscale(st *State, env *Env) error {
	return scaleTo(st, env, vision.Width320)
}

func scaleTo(st *State, env *Env, width int) error {
	if st.ImgWidth == width {
		return nil
	}
	if err := env.send(vision.SizeCommand(width)); err != nil {
		return fmt.Errorf("rescale to %d: %w", width, err)
	}
	st.Rescale(width)
	return nil
}

// ResetExHeight is used when the marker vanished mid-turn: whatever marker
// shows up next becomes the target.
func ResetExHeight(st *State, env *Env) error {
	st.Msg = model.ChildTargetLost
	st.ExHeight = int(float64(st.ImgHeight) * 1.1)
	turn(st, env, turnDuration)
	st.TurnCount++
	return nil
}

// KeepTurn turns further while the old marker is still in view.
func KeepTurn(st *State, env *Env) error {
	turn(st, env, turnDuration)
	var err error
	if st.TurnCount > 4 {
		err = Upscale(st, env)
	}
	st.TurnCount++
	return err
}

// SetNewTarget aims at a new marker and ramps the arrival height by rest.
func SetNewTarget(st *State, env *Env, marker vision.Detection) error {
	st.Msg = model.ChildNewTargetFound
	env.speak("new_cone_found")
	st.Rest -= st.Constant
	h := float64(marker.H)
	st.TargetHeight = int(h + (float64(st.ImgHeight)*0.9-h)*math.Pow(st.Rest, 2))
	st.TurnCount = 0
	return nil
}

// Stand holds position and looks again at higher resolution.
func Stand(st *State, env *Env) error {
	err := Upscale(st, env)
	st.Msg = model.ChildTargetLost
	st.TurnCount = 0
	return err
}

// StartTurn begins searching for any next marker.
func StartTurn(st *State, env *Env) error {
	turn(st, env, turnDuration)
	st.TurnCount = 1
	st.ExHeight = int(float64(st.ImgHeight) * 1.1)
	st.TargetHeight = 0
	return nil
}

// ReachMarker stops at the marker and starts turning away from it.
func ReachMarker(st *State, env *Env, marker vision.Detection) error {
	env.Device.Pause()
	st.TurnCount = 1
	st.ExHeight = marker.H
	st.TargetHeight = 0
	st.Msg = model.ChildReachTarget
	env.speak("close_to_cone")
	turn(st, env, turnDuration)
	return nil
}

// Proceed steers toward the marker.
func Proceed(st *State, env *Env, marker vision.Detection) error {
	diff := Diff(marker, st.ImgWidth, st.ImgHeight, st.Phase)
	st.Diff = diff
	val := math.Abs(0.1 * diff)
	d := env.Device
	switch {
	case diff > 0.15:
		d.Left(steerDuration)
		d.AdjustPower(-val, val)
	case diff > 0.03:
		d.AdjustPower(-val, val)
		d.Forward(0)
	case diff < -0.15:
		d.Right(steerDuration)
		d.AdjustPower(val, -val)
	case diff < -0.03:
		d.AdjustPower(val, -val)
		d.Forward(0)
	default:
		d.Forward(0)
	}

	if float64(marker.H) > float64(st.ImgHeight)*0.05 && st.ImgWidth == vision.Width640 {
		return Downscale(st, env)
	}
	return nil
}

// Diff is the signed horizontal aim error as a fraction of frame width.
// Positive means the marker is left of the aim point. Close to a marker the
// aim point shifts so the robot wraps around it in phase direction.
func Diff(marker vision.Detection, width, height int, phase model.Phase) float64 {
	w := float64(width)
	offset := 0.0
	if float64(marker.H) > float64(height)*0.5 {
		offset = w / 2 * 0.4
	}
	if phase == model.PhaseCW {
		offset = -offset
	}
	return (w/2 - float64(marker.XC) + offset) / w
}

// InvertPhase starts the clockwise lap.
func InvertPhase(st *State, env *Env) error {
	err := resetScaled(st, env, st.InvertPhase)
	env.Device.Pause()
	slog.Info("lap inverted", "component", "pilot", "phase", st.Phase)
	return err
}

// ResetMission restores the mission fields and brings vision back to
// 320x240 along with the state.
func ResetMission(st *State, env *Env) error {
	return resetScaled(st, env, st.Reset)
}

// resetScaled runs reset while keeping the state at the width vision is
// capturing, then downscales through the vision command.
func resetScaled(st *State, env *Env, reset func()) error {
	width := st.ImgWidth
	reset()
	st.Rescale(width)
	return Downscale(st, env)
}

// MissionComplete shuts the robot down after the last lap.
func MissionComplete(st *State, env *Env) error {
	st.On = false
	st.Msg = model.ChildMissionComplete
	env.Device.Stop()
	return env.send(vision.CommandOff)
}

// CalcConstant returns the per-marker rest decrement, computed once from the
// first marker seen.
func CalcConstant(current float64, imgHeight, markerHeight int) float64 {
	if current != 0 || markerHeight <= 0 || imgHeight <= 0 {
		return current
	}
	return min(0.005, 0.1*float64(markerHeight)/float64(imgHeight))
}
