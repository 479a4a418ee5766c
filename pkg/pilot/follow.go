package pilot

import (
	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// FollowPerson tails the nearest person and waits when close.
type FollowPerson struct{}

// Mode implements Handler.
func (FollowPerson) Mode() model.Mode { return model.ModeFollowPerson }

// Handle implements Handler.
func (FollowPerson) Handle(st *State, env *Env, batch vision.Batch) {
	if systemSafety(st, env, true) {
		return
	}

	marker := first(vision.SortBig(vision.Filter(batch.Detections, vision.ClassPerson)))
	st.MarkerHeight = marker.H

	a := Assess(st, marker, onewayTable)
	var err error
	if a == ActReachMarker {
		env.Device.Pause()
	} else {
		err = act(st, env, a, marker)
	}
	logAction(model.ModeFollowPerson, a, marker, err)
}
