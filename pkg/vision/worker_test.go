package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	mu    sync.Mutex
	sizes [][2]int
	err   error
	write func(dst string) error
}

func (c *fakeCamera) Capture(ctx context.Context, dst string, width, height int) error {
	c.mu.Lock()
	c.sizes = append(c.sizes, [2]int{width, height})
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.write != nil {
		return c.write(dst)
	}
	return nil
}

type detectCall struct {
	image   string
	session Session
	size    int
}

type fakeDetector struct {
	mu     sync.Mutex
	calls  []detectCall
	boxes  func(session Session, size int) []Box
	digits []Box
}

func (d *fakeDetector) Detect(ctx context.Context, image string, session Session, size int) ([]Box, error) {
	d.mu.Lock()
	d.calls = append(d.calls, detectCall{image, session, size})
	d.mu.Unlock()
	if session == SessionOCR {
		return append([]Box(nil), d.digits...), nil
	}
	if d.boxes == nil {
		return nil, nil
	}
	return d.boxes(session, size), nil
}

func newTestWorker(t *testing.T, cam Camera, det Detector) *Worker {
	dir := t.TempDir()
	return NewWorker(cam, det, Options{
		ImagePath: filepath.Join(dir, "vision.jpg"),
		CropPath:  filepath.Join(dir, "crop.jpg"),
		On:        true,
	})
}

func TestWorkerCapture(t *testing.T) {
	det := &fakeDetector{boxes: func(s Session, size int) []Box {
		return []Box{{X1: 160, Y1: 80, X2: 200, Y2: 176, Class: ClassPylon, Prob: 0.9}}
	}}
	cam := &fakeCamera{}
	w := newTestWorker(t, cam, det)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	b := w.capture(context.Background())
	require.NoError(t, b.Err)
	assert.Equal(t, fixed, b.ShotAt)
	assert.Equal(t, 320, b.Width)
	assert.Equal(t, 240, b.Height)
	require.Len(t, b.Detections, 1)
	assert.Equal(t, 72, b.Detections[0].H)
	assert.Equal(t, [][2]int{{320, 240}}, cam.sizes)

	w.apply(CommandSize640)
	b = w.capture(context.Background())
	assert.Equal(t, 640, b.Width)
	assert.Equal(t, 480, b.Height)
	assert.Equal(t, 640, det.calls[1].size)
	// model space 640 maps 1:1 horizontally
	assert.Equal(t, 180, b.Detections[0].XC)
}

func TestWorkerThresholds(t *testing.T) {
	det := &fakeDetector{boxes: func(s Session, size int) []Box {
		return []Box{
			{X1: 0, Y1: 0, X2: 10, Y2: 10, Class: ClassPylon, Prob: 0.6},
			{X1: 50, Y1: 0, X2: 60, Y2: 10, Class: ClassPerson, Prob: 0.6},
			{X1: 100, Y1: 0, X2: 110, Y2: 10, Class: ClassPerson, Prob: 0.9},
		}
	}}
	w := newTestWorker(t, &fakeCamera{}, det)
	w.opts.Thresholds = Thresholds{Pylon: 0.5, Person: 0.7, Roktrack: 0.5, Animal: 0.95}

	b := w.capture(context.Background())
	require.Len(t, b.Detections, 2)
	assert.Equal(t, ClassPylon, b.Detections[0].Class)
	assert.InDelta(t, 0.9, b.Detections[1].Prob, 1e-9)

	w.apply(CommandSessionAnimal)
	b = w.capture(context.Background())
	assert.Empty(t, b.Detections)
	assert.Equal(t, SessionAnimal, det.calls[1].session)
}

func TestWorkerCaptureError(t *testing.T) {
	det := &fakeDetector{}
	w := newTestWorker(t, &fakeCamera{err: errors.New("no camera")}, det)

	b := w.capture(context.Background())
	assert.Error(t, b.Err)
	assert.Empty(t, b.Detections)
	assert.Empty(t, det.calls, "inference must not run without a frame")
}

func TestWorkerOCR(t *testing.T) {
	cam := &fakeCamera{write: func(dst string) error {
		img := image.NewRGBA(image.Rect(0, 0, 640, 480))
		for x := 0; x < 640; x++ {
			img.Set(x, 100, color.RGBA{R: 255, A: 255})
		}
		return SaveJPEG(dst, img)
	}}
	det := &fakeDetector{
		boxes: func(s Session, size int) []Box {
			return []Box{
				{X1: 100, Y1: 80, X2: 140, Y2: 160, Class: ClassPylon, Prob: 0.9},
				{X1: 200, Y1: 80, X2: 240, Y2: 160, Class: ClassPerson, Prob: 0.9},
			}
		},
		digits: []Box{
			{X1: 60, Class: 7, Prob: 0.9},
			{X1: 10, Class: 3, Prob: 0.9},
		},
	}
	w := newTestWorker(t, cam, det)
	w.apply(CommandSessionPylonOCR)

	b := w.capture(context.Background())
	require.NoError(t, b.Err)
	require.Len(t, b.Detections, 2)
	assert.Equal(t, []int{3, 7}, b.Detections[0].IDs)
	assert.Empty(t, b.Detections[1].IDs, "only pylons are read")

	require.Len(t, det.calls, 2)
	assert.Equal(t, detectCall{w.opts.CropPath, SessionOCR, OCRSize}, det.calls[1])

	crop, err := LoadImage(w.opts.CropPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 96, 96), crop.Bounds())
}

func TestWorkerPublishLatestWins(t *testing.T) {
	w := NewWorker(&fakeCamera{}, &fakeDetector{}, Options{})
	w.publish(Batch{Width: 1})
	w.publish(Batch{Width: 2})
	w.publish(Batch{Width: 3})

	b := <-w.Batches()
	assert.Equal(t, 3, b.Width)
	select {
	case extra := <-w.Batches():
		t.Fatalf("unexpected stale batch %+v", extra)
	default:
	}
}

func TestWorkerRun(t *testing.T) {
	cam := &fakeCamera{}
	w := newTestWorker(t, cam, &fakeDetector{})
	w.opts.On = false
	w.on = false
	w.opts.Idle = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// off: nothing is captured
	time.Sleep(20 * time.Millisecond)
	cam.mu.Lock()
	assert.Empty(t, cam.sizes)
	cam.mu.Unlock()

	w.Commands() <- CommandOn
	select {
	case b := <-w.Batches():
		assert.Equal(t, 320, b.Width)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch after On")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
