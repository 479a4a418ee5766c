package pilot

import (
	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// ActPhase is the outcome of one situation assessment.
type ActPhase uint8

const (
	ActNone ActPhase = iota
	ActProceed
	ActReachMarker
	ActTurnKeep
	ActTurnMarkerFound
	ActTurnMarkerInvisible
	ActStand
	ActStartTurn
	ActInvertPhase
	ActMissionComplete
	ActTurnCountExceeded
)

var actNames = [...]string{
	"none", "proceed", "reach_marker", "turn_keep", "turn_marker_found",
	"turn_marker_invisible", "stand", "start_turn", "invert_phase",
	"mission_complete", "turn_count_exceeded",
}

func (a ActPhase) String() string {
	if int(a) < len(actNames) {
		return actNames[a]
	}
	return "unknown"
}

// Turn caps per mode family.
const (
	FillTurnCap   = 10
	OneWayTurnCap = 7
)

// Table selects the per-mode variant of the assessment.
type Table struct {
	Cap int
	// Laps enables InvertPhase and MissionComplete once rest runs out.
	Laps bool
}

var (
	fillTable   = Table{Cap: FillTurnCap, Laps: true}
	onewayTable = Table{Cap: OneWayTurnCap}
)

// Assess decides the action for the selected marker. A zero-height marker
// means none is in view.
func Assess(st *State, marker vision.Detection, t Table) ActPhase {
	switch {
	case st.TurnCount >= t.Cap:
		return ActTurnCountExceeded
	case st.TurnCount > 0:
		switch {
		case marker.H == 0:
			return ActTurnMarkerInvisible
		case float64(marker.H) < float64(st.ExHeight)-float64(st.ImgHeight)*0.015:
			if t.Laps && st.Rest < 0 {
				if st.Phase == model.PhaseCW {
					return ActMissionComplete
				}
				return ActInvertPhase
			}
			return ActTurnMarkerFound
		default:
			return ActTurnKeep
		}
	case marker.H == 0:
		switch st.TurnCount {
		case -1:
			return ActStand
		case 0:
			return ActStartTurn
		}
		return ActNone
	case marker.H >= st.TargetHeight:
		return ActReachMarker
	}
	return ActProceed
}

// act runs the shared action for a. ReachMarker is left to the caller when
// it varies by mode.
func act(st *State, env *Env, a ActPhase, marker vision.Detection) error {
	switch a {
	case ActTurnCountExceeded:
		return Halt(st, env)
	case ActTurnMarkerInvisible:
		return ResetExHeight(st, env)
	case ActTurnMarkerFound:
		return SetNewTarget(st, env, marker)
	case ActInvertPhase:
		return InvertPhase(st, env)
	case ActMissionComplete:
		return MissionComplete(st, env)
	case ActTurnKeep:
		return KeepTurn(st, env)
	case ActStand:
		return Stand(st, env)
	case ActStartTurn:
		return StartTurn(st, env)
	case ActReachMarker:
		return ReachMarker(st, env, marker)
	case ActProceed:
		return Proceed(st, env, marker)
	}
	return nil
}

func first(dets []vision.Detection) vision.Detection {
	if len(dets) == 0 {
		return vision.Detection{}
	}
	return dets[0]
}
