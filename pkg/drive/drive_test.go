package drive

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roktrack/pkg/com"
	"roktrack/pkg/device"
	"roktrack/pkg/model"
	"roktrack/pkg/pilot"
	"roktrack/pkg/vision"
)

type fakePublisher struct {
	mu     sync.Mutex
	frames []com.Frame
}

func (p *fakePublisher) Submit(f com.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
}

func (p *fakePublisher) last(t *testing.T) com.Frame {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.frames)
	return p.frames[len(p.frames)-1]
}

type rig struct {
	loop      *Loop
	dev       *device.Device
	sim       *device.Sim
	neighbors chan com.Neighbor
	batches   chan vision.Batch
	vision    chan vision.Command
	out       *fakePublisher
	now       time.Time
}

func newRig(t *testing.T, mode model.Mode, on bool) *rig {
	t.Helper()
	sim := device.NewSim()
	r := &rig{
		dev:       device.New(sim.Drivers(), 0.7, 0.7, 1),
		sim:       sim,
		neighbors: make(chan com.Neighbor, 4),
		batches:   make(chan vision.Batch, 1),
		vision:    make(chan vision.Command, 16),
		out:       &fakePublisher{},
		now:       time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	env := &pilot.Env{Device: r.dev, Vision: r.vision, Now: func() time.Time { return r.now }}
	loop, err := New(Options{
		State:       pilot.New(mode, on, 42),
		Env:         env,
		Device:      r.dev,
		Neighbors:   r.neighbors,
		Batches:     r.batches,
		Out:         r.out,
		Router:      &Router{},
		NeighborTTL: 30 * time.Second,
		Appearance:  7,
	})
	require.NoError(t, err)
	loop.now = func() time.Time { return r.now }
	r.loop = loop
	return r
}

func (r *rig) commands() []vision.Command {
	var out []vision.Command
	for {
		select {
		case c := <-r.vision:
			out = append(out, c)
		default:
			return out
		}
	}
}

func controller(msg model.ParentMsg) com.Neighbor {
	return com.Neighbor{Identifier: com.ControllerID, Msg: uint8(msg), Dest: com.BroadcastID}
}

func pylon(xc, h int) vision.Detection {
	return vision.NewDetection(xc-h/4, 10, xc-h/4+h/2, 10+h, vision.ClassPylon, 0.9)
}

func TestNew_UnhandledModeFails(t *testing.T) {
	_, err := New(Options{State: pilot.New(model.ModeClimb, true, 1)})
	assert.ErrorIs(t, err, pilot.ErrNoHandler)
}

func TestTick_BroadcastsEveryTick(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.loop.Tick()
	r.loop.Tick()

	assert.Len(t, r.out.frames, 2)
	f := r.out.last(t)
	assert.Equal(t, uint8(42), f.Identifier)
	assert.Equal(t, byte(0x80|100), f.Payload[0])
	assert.Equal(t, byte(model.ModeFill), f.Payload[2])
	assert.Equal(t, byte(255), f.Payload[3])
	assert.Equal(t, byte(7), f.Payload[5])
	assert.Equal(t, byte(70), f.Payload[6])
}

func TestTick_SkipsHandlerWithoutBatch(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.loop.Tick()
	assert.Equal(t, device.MotionIdle, r.dev.Motion())
	assert.Equal(t, -1, r.loop.State().TurnCount)
}

func TestTick_DispatchesBatch(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.batches <- vision.Batch{Detections: []vision.Detection{pylon(160, 72)}, ShotAt: r.now}
	r.loop.Tick()

	assert.Equal(t, device.MotionForward, r.dev.Motion())
	assert.True(t, r.dev.Working())
	assert.Equal(t, 72, r.loop.State().MarkerHeight)
}

func TestTick_VisionErrorIsEmptyBatch(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.batches <- vision.Batch{Err: assert.AnError, Detections: []vision.Detection{pylon(160, 72)}}
	r.loop.Tick()
	assert.Equal(t, 640, r.loop.State().ImgWidth, "no detections: stand and upscale")
}

func TestOffWhileProceeding(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.batches <- vision.Batch{Detections: []vision.Detection{pylon(160, 72)}, ShotAt: r.now}
	r.loop.Tick()
	require.Equal(t, device.MotionForward, r.dev.Motion())
	r.commands()

	r.neighbors <- controller(model.ParentOff)
	r.loop.Tick()
	assert.False(t, r.loop.State().On)
	assert.Equal(t, device.MotionIdle, r.dev.Motion())
	assert.False(t, r.dev.Working())
	assert.False(t, r.sim.Work.IsOn(), "blade relay released")
	assert.Equal(t, []vision.Command{vision.CommandOff}, r.commands())
	assert.Zero(t, r.out.last(t).Payload[0]&0x80)

	r.batches <- vision.Batch{Detections: []vision.Detection{pylon(160, 72)}, ShotAt: r.now}
	r.loop.Tick()
	assert.Equal(t, device.MotionIdle, r.dev.Motion(), "state off keeps stopping")

	r.neighbors <- controller(model.ParentOff)
	r.loop.Tick()
	assert.Empty(t, r.commands(), "repeated off is a no-op")
}

func TestIdentifierCollision(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.loop.pick = func(n int) int { return n - 1 }
	r.neighbors <- com.Neighbor{Identifier: 42, Dest: 255}
	r.loop.Tick()

	id := r.loop.State().Identifier
	assert.NotEqual(t, uint8(42), id)
	assert.Equal(t, uint8(249), id)
	assert.Equal(t, id, r.out.last(t).Identifier)
	assert.NotContains(t, r.loop.Neighbors(), id)
}

func TestNeighborsAgeOut(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.neighbors <- com.Neighbor{Identifier: 9, Timestamp: r.now}
	r.loop.Tick()
	assert.Contains(t, r.loop.Neighbors(), uint8(9))

	r.now = r.now.Add(31 * time.Second)
	r.loop.Tick()
	assert.NotContains(t, r.loop.Neighbors(), uint8(9))
}

func TestCommandFromPeerIgnored(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	r.neighbors <- com.Neighbor{Identifier: 5, Msg: uint8(model.ParentOff), Dest: 255}
	r.loop.Tick()
	assert.True(t, r.loop.State().On)

	n := controller(model.ParentOff)
	n.Dest = 3
	r.neighbors <- n
	r.loop.Tick()
	assert.True(t, r.loop.State().On, "addressed to someone else")
}

func TestModeSwitch(t *testing.T) {
	r := newRig(t, model.ModeFill, false)
	r.loop.State().Rescale(640)

	r.neighbors <- controller(model.ParentMonitorPerson)
	r.loop.Tick()
	assert.Equal(t, model.ModeMonitorPerson, r.loop.Handler().Mode())
	assert.Equal(t, model.ModeMonitorPerson, r.loop.State().Mode)
	assert.Equal(t, 320, r.loop.State().ImgWidth)
	assert.Equal(t, []vision.Command{vision.CommandSessionPylon, vision.CommandSize320}, r.commands())
	assert.Equal(t, byte(model.ModeMonitorPerson), r.out.last(t).Payload[2])
}

func TestModeSwitch_Guards(t *testing.T) {
	t.Run("while on", func(t *testing.T) {
		r := newRig(t, model.ModeFill, true)
		r.neighbors <- controller(model.ParentOneway)
		r.loop.Tick()
		assert.Equal(t, model.ModeFill, r.loop.Handler().Mode())
		assert.Empty(t, r.commands())
	})
	t.Run("same mode", func(t *testing.T) {
		r := newRig(t, model.ModeFill, false)
		h := r.loop.Handler()
		r.neighbors <- controller(model.ParentFill)
		r.loop.Tick()
		assert.Same(t, h, r.loop.Handler())
	})
	t.Run("reserved mode", func(t *testing.T) {
		r := newRig(t, model.ModeFill, false)
		r.neighbors <- controller(model.ParentClimb)
		r.loop.Tick()
		assert.Equal(t, model.ModeFill, r.loop.State().Mode)
	})
	t.Run("animal without models", func(t *testing.T) {
		r := newRig(t, model.ModeFill, false)
		r.neighbors <- controller(model.ParentMonitorAnimal)
		r.loop.Tick()
		assert.Equal(t, model.ModeFill, r.loop.State().Mode)

		r.loop.router.Animal = true
		r.neighbors <- controller(model.ParentMonitorAnimal)
		r.loop.Tick()
		assert.Equal(t, model.ModeMonitorAnimal, r.loop.State().Mode)
		assert.Equal(t, []vision.Command{vision.CommandSessionAnimal, vision.CommandSize320}, r.commands())
	})
	t.Run("ocr session", func(t *testing.T) {
		r := newRig(t, model.ModeOneWay, false)
		r.loop.router.OCR = true
		r.neighbors <- controller(model.ParentFill)
		r.loop.Tick()
		assert.Equal(t, []vision.Command{vision.CommandSessionPylonOCR, vision.CommandSize320}, r.commands())
	})
}

func TestOnAndReset(t *testing.T) {
	r := newRig(t, model.ModeFill, false)
	st := r.loop.State()
	st.TurnCount = 4
	st.Rest = 0.4

	r.neighbors <- controller(model.ParentReset)
	r.loop.Tick()
	assert.Equal(t, pilot.New(model.ModeFill, false, 42), st)

	r.neighbors <- controller(model.ParentOn)
	r.loop.Tick()
	assert.True(t, st.On)
	assert.Equal(t, []vision.Command{vision.CommandOn}, r.commands())

	st.TurnCount = 3
	r.neighbors <- controller(model.ParentReset)
	r.loop.Tick()
	assert.Equal(t, 3, st.TurnCount, "reset ignored while on")
}

func TestReset_RestoresVisionSize(t *testing.T) {
	r := newRig(t, model.ModeFill, false)
	st := r.loop.State()
	st.Rescale(vision.Width640)
	st.TurnCount = 3

	r.neighbors <- controller(model.ParentReset)
	r.loop.Tick()

	assert.Equal(t, []vision.Command{vision.CommandSize320}, r.commands())
	assert.Equal(t, pilot.New(model.ModeFill, false, 42), st)
}

func TestHaltMission(t *testing.T) {
	r := newRig(t, model.ModeFill, true)
	for i := 0; i < 20 && r.loop.State().On; i++ {
		r.batches <- vision.Batch{ShotAt: r.now}
		r.loop.Tick()
	}
	st := r.loop.State()
	assert.False(t, st.On)
	assert.Equal(t, model.ChildTargetNotFound, st.Msg)
	assert.Equal(t, device.MotionIdle, r.dev.Motion())
	assert.Equal(t, byte(model.ChildTargetNotFound), r.out.last(t).Payload[3])
}
