// Package pilot holds the robot state and the mode handlers that turn a
// detection batch into drive actions.
package pilot

import (
	"roktrack/pkg/com"
	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// Identifier bounds. 0 is the controller, 250..254 are reserved and 255 is
// broadcast.
const (
	MinIdentifier = 1
	MaxIdentifier = 249
)

// NoMarkerID means no marker identity is locked.
const NoMarkerID = -1

// State is the pilot state. It is owned by the drive loop; nothing else
// mutates it.
type State struct {
	On           bool
	Mode         model.Mode
	TurnCount    int // -1 waiting, 0 at a marker, 1..cap turning
	ExHeight     int
	Rest         float64
	TargetHeight int
	Phase        model.Phase
	Constant     float64
	MarkerID     int
	PiTemp       float64
	Msg          model.ChildMsg
	Identifier   uint8
	ImgWidth     int
	ImgHeight    int
	Diff         float64
	MarkerHeight int
}

// New returns the initial state for a mission.
func New(mode model.Mode, on bool, identifier uint8) *State {
	s := &State{Mode: mode, On: on, Identifier: identifier}
	s.Reset()
	return s
}

// Reset restores the mission fields. Identity, mode and the on flag survive.
func (s *State) Reset() {
	*s = State{
		On:           s.On,
		Mode:         s.Mode,
		Identifier:   s.Identifier,
		TurnCount:    -1,
		Rest:         1.0,
		TargetHeight: int(float64(vision.HeightFor(vision.Width320)) * 0.9),
		Phase:        model.PhaseCCW,
		MarkerID:     NoMarkerID,
		Msg:          model.ChildUnknown,
		ImgWidth:     vision.Width320,
		ImgHeight:    vision.HeightFor(vision.Width320),
	}
}

// InvertPhase starts the clockwise lap from a fresh state.
func (s *State) InvertPhase() {
	s.Reset()
	s.Phase = model.PhaseCW
}

// Rescale switches the frame size. Width, height, ex height and target
// height always change together.
func (s *State) Rescale(width int) {
	if width == s.ImgWidth || s.ImgWidth == 0 {
		return
	}
	ratio := float64(width) / float64(s.ImgWidth)
	s.ImgWidth = width
	s.ImgHeight = vision.HeightFor(width)
	s.ExHeight = int(float64(s.ExHeight) * ratio)
	s.TargetHeight = int(float64(s.TargetHeight) * ratio)
}

// ResolveIdentifier draws a new identifier when a neighbor already uses
// ours. pick returns an index in [0, n).
func (s *State) ResolveIdentifier(used map[uint8]bool, pick func(n int) int) bool {
	if !used[s.Identifier] {
		return false
	}
	pool := make([]uint8, 0, MaxIdentifier)
	for id := MinIdentifier; id <= MaxIdentifier; id++ {
		if !used[uint8(id)] {
			pool = append(pool, uint8(id))
		}
	}
	if len(pool) == 0 {
		return false
	}
	s.Identifier = pool[pick(len(pool))]
	return true
}

// Status converts the state for broadcast.
func (s *State) Status(appearance uint8, leftPower, rightPower float64) com.Status {
	return com.Status{
		On:           s.On,
		Rest:         s.Rest,
		PiTemp:       s.PiTemp,
		Mode:         s.Mode,
		Msg:          s.Msg,
		Dest:         com.BroadcastID,
		Appearance:   appearance,
		LeftPower:    leftPower,
		RightPower:   rightPower,
		Diff:         s.Diff,
		MarkerHeight: s.MarkerHeight,
		ImgHeight:    s.ImgHeight,
	}
}
