package pilot

import (
	"errors"
	"fmt"
	"log/slog"

	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// ErrNoHandler is returned for modes that have no handler.
var ErrNoHandler = errors.New("no handler for mode")

// Handler runs one mode. Handle is called once per detection batch and must
// not block.
type Handler interface {
	Mode() model.Mode
	Handle(st *State, env *Env, batch vision.Batch)
}

// NewHandler returns a fresh handler for mode.
func NewHandler(mode model.Mode) (Handler, error) {
	switch mode {
	case model.ModeFill:
		return &Fill{}, nil
	case model.ModeOneWay:
		return &OneWay{}, nil
	case model.ModeFollowPerson:
		return &FollowPerson{}, nil
	case model.ModeRoundTrip:
		return NewRoundTrip(), nil
	case model.ModeMonitorPerson:
		return NewMonitorPerson(), nil
	case model.ModeMonitorAnimal:
		return NewMonitorAnimal(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoHandler, mode)
}

// SessionFor returns the detector session a mode runs with.
func SessionFor(mode model.Mode, ocr bool) vision.Session {
	switch mode {
	case model.ModeMonitorAnimal:
		return vision.SessionAnimal
	case model.ModeFill:
		if ocr {
			return vision.SessionPylonOCR
		}
	}
	return vision.SessionPylon
}

func logAction(mode model.Mode, a ActPhase, marker vision.Detection, err error) {
	if err != nil {
		slog.Warn("action failed", "component", "pilot", "mode", mode, "action", a, "error", err)
		return
	}
	slog.Debug("action", "component", "pilot", "mode", mode, "action", a, "marker_h", marker.H, "marker_xc", marker.XC)
}
