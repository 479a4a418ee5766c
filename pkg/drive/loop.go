// Package drive runs the control loop: it feeds peer commands and detection
// batches to the active mode handler and broadcasts the robot state.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"roktrack/pkg/com"
	"roktrack/pkg/logging"
	"roktrack/pkg/model"
	"roktrack/pkg/pilot"
	"roktrack/pkg/vision"
)

// Device is the hardware the loop drives and samples.
type Device interface {
	pilot.Device
	Temperature() float64
	Powers() (left, right float64)
}

// Publisher accepts outbound frames without blocking.
type Publisher interface {
	Submit(f com.Frame)
}

// Options wires a Loop.
type Options struct {
	State       *pilot.State
	Env         *pilot.Env
	Device      Device
	Neighbors   <-chan com.Neighbor
	Batches     <-chan vision.Batch
	Out         Publisher
	Router      *Router
	Tick        time.Duration
	NeighborTTL time.Duration
	Appearance  uint8
}

// Loop is the drive thread. It is the only writer of the pilot state.
type Loop struct {
	state     *pilot.State
	env       *pilot.Env
	dev       Device
	handler   pilot.Handler
	router    *Router
	inbound   <-chan com.Neighbor
	batches   <-chan vision.Batch
	out       Publisher
	neighbors map[uint8]com.Neighbor

	tick       time.Duration
	ttl        time.Duration
	appearance uint8
	lastMsg    model.ChildMsg

	now  func() time.Time
	pick func(n int) int
}

// New creates a loop running the handler for the state's mode.
func New(opts Options) (*Loop, error) {
	h, err := pilot.NewHandler(opts.State.Mode)
	if err != nil {
		return nil, fmt.Errorf("initial mode: %w", err)
	}
	if opts.Tick <= 0 {
		opts.Tick = 10 * time.Millisecond
	}
	if opts.Router == nil {
		opts.Router = &Router{}
	}
	return &Loop{
		state:      opts.State,
		env:        opts.Env,
		dev:        opts.Device,
		handler:    h,
		router:     opts.Router,
		inbound:    opts.Neighbors,
		batches:    opts.Batches,
		out:        opts.Out,
		neighbors:  make(map[uint8]com.Neighbor),
		tick:       opts.Tick,
		ttl:        opts.NeighborTTL,
		appearance: opts.Appearance,
		lastMsg:    opts.State.Msg,
		now:        time.Now,
		pick:       rand.Intn,
	}, nil
}

// State returns the pilot state. Only safe to read from the loop goroutine
// or after Run returns.
func (l *Loop) State() *pilot.State { return l.state }

// Handler returns the active mode handler.
func (l *Loop) Handler() pilot.Handler { return l.handler }

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	slog.Info("drive loop started", "component", "drive", "interval", l.tick, "mode", l.state.Mode, "on", l.state.On, "id", l.state.Identifier)
	for {
		select {
		case <-ctx.Done():
			l.dev.Stop()
			slog.Info("drive loop stopped", "component", "drive")
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs one iteration. A peer command is applied before the batch so a
// mode switch takes effect on the same tick.
func (l *Loop) Tick() {
	select {
	case n := <-l.inbound:
		l.receive(n)
	default:
	}

	select {
	case b := <-l.batches:
		l.state.PiTemp = l.dev.Temperature()
		if b.Err != nil {
			logging.TraceDefault("empty batch", "component", "drive", "error", b.Err)
			b.Detections = nil
		}
		l.handler.Handle(l.state, l.env, b)
	default:
	}

	if l.state.Msg != l.lastMsg {
		l.lastMsg = l.state.Msg
		if l.state.Msg != model.ChildUnknown {
			logging.LogEvent(logging.Event{Type: l.state.Msg.String(), Title: l.state.Mode.String(), Summary: fmt.Sprintf("rest=%.3f turn=%d", l.state.Rest, l.state.TurnCount)})
		}
	}

	l.broadcast()
}

func (l *Loop) receive(n com.Neighbor) {
	if n.Timestamp.IsZero() {
		n.Timestamp = l.now()
	}
	l.neighbors[n.Identifier] = n
	if n.IsController() && n.Dest == com.BroadcastID {
		if h := l.router.Route(l.state, l.env, n); h != nil {
			l.handler = h
			slog.Info("handler replaced", "component", "drive", "mode", h.Mode())
		}
	}
}

// broadcast resolves identifier collisions and submits the state frame.
func (l *Loop) broadcast() {
	l.prune()
	used := make(map[uint8]bool, len(l.neighbors))
	for id := range l.neighbors {
		used[id] = true
	}
	old := l.state.Identifier
	if l.state.ResolveIdentifier(used, l.pick) {
		slog.Warn("identifier collision, reassigned", "component", "drive", "old", old, "new", l.state.Identifier)
	}

	if l.out == nil {
		return
	}
	lp, rp := l.dev.Powers()
	l.out.Submit(com.Frame{
		Identifier: l.state.Identifier,
		Payload:    com.EncodePayload(l.state.Status(l.appearance, lp, rp)),
	})
}

// prune drops neighbors not heard from within the TTL.
func (l *Loop) prune() {
	if l.ttl <= 0 {
		return
	}
	now := l.now()
	for id, n := range l.neighbors {
		if now.Sub(n.Timestamp) > l.ttl {
			delete(l.neighbors, id)
		}
	}
}

// Neighbors returns a copy of the neighbor table.
func (l *Loop) Neighbors() map[uint8]com.Neighbor {
	out := make(map[uint8]com.Neighbor, len(l.neighbors))
	for k, v := range l.neighbors {
		out[k] = v
	}
	return out
}
