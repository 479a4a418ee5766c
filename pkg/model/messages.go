package model

import "fmt"

// ChildMsg is the status code a robot broadcasts to its peers.
type ChildMsg uint8

const (
	ChildHalt             ChildMsg = 0
	ChildBumped           ChildMsg = 1
	ChildPersonFoundPause ChildMsg = 2
	ChildReachTarget      ChildMsg = 3
	ChildTargetLost       ChildMsg = 4
	ChildNewTargetFound   ChildMsg = 5
	ChildFromCwToCcw      ChildMsg = 6
	ChildPiTempHighHalt   ChildMsg = 7
	ChildMissionComplete  ChildMsg = 8
	ChildTargetNotFound   ChildMsg = 9
	ChildLeaderWaiting    ChildMsg = 10
	ChildTrailerPrepared  ChildMsg = 11
	ChildClimbUp          ChildMsg = 12
	ChildClimbDown        ChildMsg = 13
	ChildAck              ChildMsg = 14
	ChildPersonFoundWarn  ChildMsg = 15
	ChildAnimalFound      ChildMsg = 16
	ChildUnknown          ChildMsg = 255
)

var childNames = [...]string{
	"halt", "bumped", "person_found_pause", "reach_target", "target_lost",
	"new_target_found", "from_cw_to_ccw", "pi_temp_high_halt", "mission_complete",
	"target_not_found", "leader_waiting", "trailer_prepared", "climb_up",
	"climb_down", "ack", "person_found_warn", "animal_found",
}

func (c ChildMsg) String() string {
	if int(c) < len(childNames) {
		return childNames[c]
	}
	if c == ChildUnknown {
		return "none"
	}
	return fmt.Sprintf("child(%d)", uint8(c))
}

// ParentMsg is a command sent by the controller peer.
type ParentMsg uint8

const (
	ParentOff           ParentMsg = 0
	ParentOn            ParentMsg = 1
	ParentReset         ParentMsg = 2
	ParentStop          ParentMsg = 3
	ParentForward       ParentMsg = 4
	ParentBackward      ParentMsg = 5
	ParentLeft          ParentMsg = 6
	ParentRight         ParentMsg = 7
	ParentFill          ParentMsg = 10
	ParentOneway        ParentMsg = 11
	ParentClimb         ParentMsg = 12
	ParentAround        ParentMsg = 13
	ParentMonitorPerson ParentMsg = 14
	ParentMonitorAnimal ParentMsg = 15
	ParentRoundTrip     ParentMsg = 16
	ParentFollowPerson  ParentMsg = 17
)

// Mode returns the mode a mode-switch command selects.
func (p ParentMsg) Mode() (Mode, bool) {
	switch p {
	case ParentFill:
		return ModeFill, true
	case ParentOneway:
		return ModeOneWay, true
	case ParentClimb:
		return ModeClimb, true
	case ParentAround:
		return ModeAround, true
	case ParentMonitorPerson:
		return ModeMonitorPerson, true
	case ParentMonitorAnimal:
		return ModeMonitorAnimal, true
	case ParentRoundTrip:
		return ModeRoundTrip, true
	case ParentFollowPerson:
		return ModeFollowPerson, true
	}
	return ModeUnknown, false
}

func (p ParentMsg) String() string {
	switch p {
	case ParentOff:
		return "off"
	case ParentOn:
		return "on"
	case ParentReset:
		return "reset"
	case ParentStop:
		return "stop"
	case ParentForward:
		return "forward"
	case ParentBackward:
		return "backward"
	case ParentLeft:
		return "left"
	case ParentRight:
		return "right"
	}
	if m, ok := p.Mode(); ok {
		return m.String()
	}
	return fmt.Sprintf("parent(%d)", uint8(p))
}
