package pilot

import (
	"log/slog"

	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// RoundTrip shuttles between a marker and a person, switching target on
// every arrival.
type RoundTrip struct {
	target vision.Class
}

// NewRoundTrip starts heading for the marker.
func NewRoundTrip() *RoundTrip { return &RoundTrip{target: vision.ClassPylon} }

// Mode implements Handler.
func (*RoundTrip) Mode() model.Mode { return model.ModeRoundTrip }

// Target is the class currently approached.
func (r *RoundTrip) Target() vision.Class { return r.target }

// Handle implements Handler.
func (r *RoundTrip) Handle(st *State, env *Env, batch vision.Batch) {
	if systemSafety(st, env, true) {
		return
	}

	marker := first(vision.SortBig(vision.Filter(batch.Detections, r.target)))
	st.MarkerHeight = marker.H

	a := Assess(st, marker, onewayTable)
	if a == ActReachMarker {
		if r.target == vision.ClassPylon {
			r.target = vision.ClassPerson
		} else {
			r.target = vision.ClassPylon
		}
		slog.Info("round trip target switched", "component", "pilot", "target", r.target)
	}
	logAction(model.ModeRoundTrip, a, marker, act(st, env, a, marker))
}
