package pilot

import (
	"log/slog"
	"time"

	"roktrack/pkg/model"
	"roktrack/pkg/vision"
)

// OCRConfirmDelay is how long the robot stands still before latching the
// marker digit it reads first.
const OCRConfirmDelay = 5 * time.Second

// Fill laps the marked area counter-clockwise, then clockwise, moving the
// arrival height inward with every marker.
type Fill struct {
	ocrUntil     time.Time // zero unless waiting to latch a marker id
	ocrCandidate int
}

// Mode implements Handler.
func (f *Fill) Mode() model.Mode { return model.ModeFill }

// Handle implements Handler.
func (f *Fill) Handle(st *State, env *Env, batch vision.Batch) {
	if fullSafety(st, env, batch.Detections) {
		return
	}

	dets := vision.Filter(batch.Detections, vision.ClassPylon)
	if st.Phase == model.PhaseCW {
		dets = vision.SortLeft(dets)
	} else {
		dets = vision.SortRight(dets)
	}

	if env.OCR {
		var waiting bool
		dets, waiting = f.lockMarker(st, env, dets)
		if waiting {
			return
		}
	}

	marker := f.pick(st, dets)
	st.MarkerHeight = marker.H

	env.Device.WorkOn()
	st.Constant = CalcConstant(st.Constant, st.ImgHeight, marker.H)

	a := Assess(st, marker, fillTable)
	logAction(model.ModeFill, a, marker, act(st, env, a, marker))
}

// lockMarker keeps the robot still until a marker id is latched, then
// restricts dets to markers carrying it.
func (f *Fill) lockMarker(st *State, env *Env, dets []vision.Detection) ([]vision.Detection, bool) {
	if st.MarkerID != NoMarkerID {
		return vision.FilterID(dets, st.MarkerID), false
	}

	var tagged *vision.Detection
	for i := range dets {
		if len(dets[i].IDs) > 0 {
			tagged = &dets[i]
			break
		}
	}

	now := env.now()
	switch {
	case f.ocrUntil.IsZero():
		if tagged == nil {
			return dets, false
		}
		f.ocrUntil = now.Add(OCRConfirmDelay)
		f.ocrCandidate = tagged.IDs[0]
		env.Device.Stop()
		env.speak("switch_ocr_mode")
		return nil, true
	case now.Before(f.ocrUntil):
		// the first digit seen is the one that latches
		env.Device.Stop()
		return nil, true
	}

	st.MarkerID = f.ocrCandidate
	f.ocrUntil = time.Time{}
	slog.Info("marker id locked", "component", "pilot", "marker_id", st.MarkerID)
	return vision.FilterID(dets, st.MarkerID), false
}

// pick selects the target. When the nearest marker is already at arrival
// size and another sits on the inner side, aim past it at the next one.
func (f *Fill) pick(st *State, dets []vision.Detection) vision.Detection {
	if len(dets) >= 2 && st.TurnCount <= 0 && dets[0].H >= st.TargetHeight {
		second := dets[1]
		if st.Phase == model.PhaseCW {
			if second.X1 < st.ImgWidth*2/3 {
				return second
			}
		} else if second.X1 > st.ImgWidth/3 {
			return second
		}
	}
	return first(dets)
}
