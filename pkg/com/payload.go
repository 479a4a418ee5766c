// Package com encodes the robot status broadcast and carries it over a
// BLE advertisement transport.
package com

import (
	"errors"
	"fmt"
	"math"
	"time"

	"roktrack/pkg/model"
)

// PayloadSize is the fixed length of a status payload.
const PayloadSize = 23

// Reserved identifiers.
const (
	ControllerID uint8 = 0
	BroadcastID  uint8 = 255
)

var (
	// ErrShortPayload is returned for frames shorter than a full payload.
	ErrShortPayload = errors.New("payload too short")
	// ErrNotAdvertisement is returned for HCI packets that are not roktrack advertisements.
	ErrNotAdvertisement = errors.New("not a roktrack advertisement")
)

// Status is the subset of robot state that is broadcast.
type Status struct {
	On           bool
	Rest         float64
	PiTemp       float64
	Mode         model.Mode
	Msg          model.ChildMsg
	Dest         uint8
	Appearance   uint8
	LeftPower    float64
	RightPower   float64
	Diff         float64
	MarkerHeight int
	ImgHeight    int
}

// Frame is one outbound advertisement: sender id plus payload.
type Frame struct {
	Identifier uint8
	Payload    [PayloadSize]byte
}

// Neighbor is the last status heard from a peer.
type Neighbor struct {
	Identifier uint8
	MAC        string
	RSSI       int8
	State      bool
	Rest       uint8 // percent
	PiTemp     uint8
	Mode       model.Mode
	Msg        uint8
	Dest       uint8
	Timestamp  time.Time
}

// IsController reports whether the neighbor is the human controller.
func (n Neighbor) IsController() bool { return n.Identifier == ControllerID }

// Command returns the controller message carried by the neighbor.
func (n Neighbor) Command() model.ParentMsg { return model.ParentMsg(n.Msg) }

func clampByte(v float64) byte {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

// StateByte packs the on flag into bit 7 and rest percent into bits 0..6.
func StateByte(on bool, rest float64) byte {
	r := int(rest * 100)
	r = max(0, min(r, 127))
	b := byte(r)
	if on {
		b |= 0x80
	}
	return b
}

// EncodePayload serializes s into the 23-byte wire layout.
func EncodePayload(s Status) [PayloadSize]byte {
	var p [PayloadSize]byte
	p[0] = StateByte(s.On, s.Rest)
	p[1] = clampByte(s.PiTemp)
	p[2] = s.Mode.Byte()
	p[3] = uint8(s.Msg)
	p[4] = s.Dest
	p[5] = s.Appearance
	p[6] = clampByte(s.LeftPower * 100)
	p[7] = clampByte(s.RightPower * 100)
	p[8] = clampByte((s.Diff + 1) * 127)
	if s.ImgHeight > 0 {
		p[9] = clampByte(float64(s.MarkerHeight) / float64(s.ImgHeight) * 100)
	}
	return p
}

// DecodeFrame parses manufacturer data as sent by Cast: one identifier byte
// followed by the payload. Trailing bytes are ignored.
func DecodeFrame(data []byte) (Neighbor, error) {
	if len(data) < 6 {
		return Neighbor{}, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(data))
	}
	return Neighbor{
		Identifier: data[0],
		State:      data[1]&0x80 != 0,
		Rest:       data[1] & 0x7F,
		PiTemp:     data[2],
		Mode:       model.ModeFromByte(data[3]),
		Msg:        data[4],
		Dest:       data[5],
	}, nil
}
