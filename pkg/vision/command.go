package vision

import (
	"errors"
	"time"
)

// ErrCommandDropped is returned when the worker's command queue is full.
var ErrCommandDropped = errors.New("vision command dropped")

// Command is a management message from the drive loop to the worker.
type Command uint8

const (
	CommandOn Command = iota
	CommandOff
	CommandSessionPylon
	CommandSessionPylonOCR
	CommandSessionAnimal
	CommandSize320
	CommandSize640
)

var commandNames = [...]string{"on", "off", "session_pylon", "session_pylon_ocr", "session_animal", "size_320", "size_640"}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// Send queues a command without blocking.
func Send(ch chan<- Command, c Command) error {
	select {
	case ch <- c:
		return nil
	default:
		return ErrCommandDropped
	}
}

// Session selects the model family the detector runs.
type Session uint8

const (
	SessionPylon Session = iota
	SessionPylonOCR
	SessionAnimal
	// SessionOCR reads digits off a 96x96 pylon crop.
	SessionOCR
)

func (s Session) String() string {
	switch s {
	case SessionPylon:
		return "pylon"
	case SessionPylonOCR:
		return "pylon_ocr"
	case SessionAnimal:
		return "animal"
	case SessionOCR:
		return "ocr"
	}
	return "unknown"
}

// Command returns the management command that switches to s.
func (s Session) Command() Command {
	switch s {
	case SessionPylonOCR:
		return CommandSessionPylonOCR
	case SessionAnimal:
		return CommandSessionAnimal
	}
	return CommandSessionPylon
}

// Frame sizes. Height is always three quarters of width.
const (
	Width320  = 320
	Width640  = 640
	OCRSize   = 96
	heightDen = 4
	heightNum = 3
)

// HeightFor returns the frame height paired with width.
func HeightFor(width int) int {
	return width * heightNum / heightDen
}

// SizeCommand returns the management command for a frame width.
func SizeCommand(width int) Command {
	if width == Width640 {
		return CommandSize640
	}
	return CommandSize320
}

// Batch is the result of one captured frame.
type Batch struct {
	Detections []Detection
	ShotAt     time.Time // capture start
	Image      string    // path of the captured frame
	Width      int
	Height     int
	Err        error // set when capture or inference failed; Detections is empty
}
