package model

import (
	"fmt"
	"strings"
)

// Mode is the operating mode of the robot. The numeric value is the byte
// carried in the broadcast payload.
type Mode uint8

const (
	ModeFill          Mode = 0
	ModeOneWay        Mode = 1
	ModeClimb         Mode = 2
	ModeAround        Mode = 3
	ModeMonitorPerson Mode = 4
	ModeMonitorAnimal Mode = 5
	ModeRoundTrip     Mode = 6
	ModeFollowPerson  Mode = 7
	ModeUnknown       Mode = 255
)

var modeNames = map[Mode]string{
	ModeFill:          "fill",
	ModeOneWay:        "oneway",
	ModeClimb:         "climb",
	ModeAround:        "around",
	ModeMonitorPerson: "monitor_person",
	ModeMonitorAnimal: "monitor_animal",
	ModeRoundTrip:     "round_trip",
	ModeFollowPerson:  "follow_person",
	ModeUnknown:       "unknown",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Byte returns the wire encoding of the mode.
func (m Mode) Byte() uint8 { return uint8(m) }

// ModeFromByte decodes a wire byte; anything outside the known set is ModeUnknown.
func ModeFromByte(b uint8) Mode {
	m := Mode(b)
	if _, ok := modeNames[m]; ok {
		return m
	}
	return ModeUnknown
}

// ParseMode parses the configuration name of a mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s && m != ModeUnknown {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("unknown mode %q", s)
}

// Phase is the lap direction.
type Phase uint8

const (
	PhaseCCW Phase = iota
	PhaseCW
)

func (p Phase) String() string {
	if p == PhaseCW {
		return "cw"
	}
	return "ccw"
}
