package pilot

import (
	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// OneWay drives straight down a corridor of marker pairs and stops when no
// further marker turns up.
type OneWay struct{}

// Mode implements Handler.
func (OneWay) Mode() model.Mode { return model.ModeOneWay }

// Handle implements Handler.
func (OneWay) Handle(st *State, env *Env, batch vision.Batch) {
	if fullSafety(st, env, batch.Detections) {
		return
	}

	dets := vision.Filter(batch.Detections, vision.ClassPylon)
	switch {
	case st.TurnCount == 1:
		// first turn: look past the marker just reached to the far one
		dets = vision.SortSmall(dets)
	case st.Phase == model.PhaseCW:
		dets = vision.SortLeft(dets)
	default:
		dets = vision.SortRight(dets)
	}
	marker := first(dets)
	st.MarkerHeight = marker.H

	env.Device.WorkOn()

	a := Assess(st, marker, onewayTable)
	logAction(model.ModeOneWay, a, marker, act(st, env, a, marker))
}
