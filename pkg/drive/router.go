package drive

import (
	"log/slog"

	"roktrack/pkg/com"
	"roktrack/pkg/logging"
	"roktrack/pkg/model"
	"roktrack/pkg/pilot"
	"roktrack/pkg/vision"
)

// Router applies controller commands to the pilot state.
type Router struct {
	// OCR selects the pylon+OCR session for Fill.
	OCR bool
	// Animal reports whether the animal session has models.
	Animal bool
}

// Route handles one neighbor. It returns a handler when the active mode
// changes. Messages from anyone but the controller, or not addressed to
// everyone, are ignored.
func (r *Router) Route(st *pilot.State, env *pilot.Env, n com.Neighbor) pilot.Handler {
	if !n.IsController() || n.Dest != com.BroadcastID {
		return nil
	}

	cmd := n.Command()
	switch cmd {
	case model.ParentOff:
		if st.On {
			st.On = false
			env.Device.Stop()
			r.send(env, vision.CommandOff)
			event("state_off", "Controller switched the robot off")
		}
	case model.ParentOn:
		if !st.On {
			st.On = true
			r.send(env, vision.CommandOn)
			event("state_on", "Controller switched the robot on")
		}
	case model.ParentReset:
		if !st.On {
			if err := pilot.ResetMission(st, env); err != nil {
				slog.Warn("reset kept frame size", "component", "drive", "error", err)
			}
			event("reset", "Mission state reset")
		}
	default:
		mode, ok := cmd.Mode()
		if !ok {
			// manual drive commands are reserved
			return nil
		}
		return r.switchMode(st, env, mode)
	}
	return nil
}

func (r *Router) switchMode(st *pilot.State, env *pilot.Env, mode model.Mode) pilot.Handler {
	if st.On || st.Mode == mode {
		return nil
	}
	if mode == model.ModeMonitorAnimal && !r.Animal {
		slog.Warn("animal models not configured, mode ignored", "component", "drive", "mode", mode)
		return nil
	}
	h, err := pilot.NewHandler(mode)
	if err != nil {
		slog.Debug("mode ignored", "component", "drive", "mode", mode, "error", err)
		return nil
	}

	st.Mode = mode
	r.send(env, pilot.SessionFor(mode, r.OCR).Command())
	r.send(env, vision.CommandSize320)
	st.Rescale(vision.Width320)
	event("mode", "Mode switched to "+mode.String())
	return h
}

func (r *Router) send(env *pilot.Env, c vision.Command) {
	if err := vision.Send(env.Vision, c); err != nil {
		slog.Warn("vision command dropped", "component", "drive", "command", c)
	}
}

func event(kind, summary string) {
	slog.Info(summary, "component", "drive", "event", kind)
	logging.LogEvent(logging.Event{Type: kind, Title: summary})
}
