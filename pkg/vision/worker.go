package vision

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"
)

// Thresholds is the minimum probability kept per class.
type Thresholds struct {
	Pylon    float64
	Person   float64
	Roktrack float64
	Animal   float64
}

func (t Thresholds) keep(s Session, b Box) bool {
	if s == SessionAnimal {
		return b.Prob >= t.Animal
	}
	switch b.Class {
	case ClassPylon:
		return b.Prob >= t.Pylon
	case ClassPerson:
		return b.Prob >= t.Person
	case ClassRoktrack:
		return b.Prob >= t.Roktrack
	}
	return false
}

// Options configures a Worker.
type Options struct {
	ImagePath  string
	CropPath   string
	Thresholds Thresholds
	Session    Session
	On         bool
	Idle       time.Duration // pause between polls while off
}

// Worker owns the camera and the detector. Each iteration it applies at most
// one management command, captures a frame, runs inference and publishes the
// batch. Only the newest unread batch is kept.
type Worker struct {
	camera   Camera
	detector Detector
	opts     Options

	commands chan Command
	batches  chan Batch

	on      bool
	session Session
	width   int

	now func() time.Time
}

// NewWorker creates a worker starting at 320x240.
func NewWorker(camera Camera, detector Detector, opts Options) *Worker {
	if opts.Idle <= 0 {
		opts.Idle = 50 * time.Millisecond
	}
	return &Worker{
		camera:   camera,
		detector: detector,
		opts:     opts,
		commands: make(chan Command, 8),
		batches:  make(chan Batch, 1),
		on:       opts.On,
		session:  opts.Session,
		width:    Width320,
		now:      time.Now,
	}
}

// Commands is the management channel.
func (w *Worker) Commands() chan<- Command { return w.commands }

// Batches delivers detection batches.
func (w *Worker) Batches() <-chan Batch { return w.batches }

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("vision worker started", "component", "vision", "session", w.session, "on", w.on)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w.applyOne()

		if !w.on {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.opts.Idle):
			}
			continue
		}

		w.publish(w.capture(ctx))
	}
}

func (w *Worker) applyOne() {
	select {
	case c := <-w.commands:
		w.apply(c)
	default:
	}
}

func (w *Worker) apply(c Command) {
	switch c {
	case CommandOn:
		w.on = true
	case CommandOff:
		w.on = false
	case CommandSessionPylon:
		w.session = SessionPylon
	case CommandSessionPylonOCR:
		w.session = SessionPylonOCR
	case CommandSessionAnimal:
		w.session = SessionAnimal
	case CommandSize320:
		w.width = Width320
	case CommandSize640:
		w.width = Width640
	}
	slog.Debug("vision command", "component", "vision", "command", c, "session", w.session, "width", w.width, "on", w.on)
}

func (w *Worker) capture(ctx context.Context) Batch {
	width, height := w.width, HeightFor(w.width)
	b := Batch{ShotAt: w.now(), Image: w.opts.ImagePath, Width: width, Height: height}

	if err := w.camera.Capture(ctx, w.opts.ImagePath, width, height); err != nil {
		slog.Warn("capture failed", "component", "vision", "error", err)
		b.Err = err
		return b
	}

	boxes, err := w.detector.Detect(ctx, w.opts.ImagePath, w.session, width)
	if err != nil {
		slog.Warn("inference failed", "component", "vision", "error", err)
		b.Err = err
		return b
	}

	dets := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		if w.opts.Thresholds.keep(w.session, box) {
			dets = append(dets, box.Scale(width, width, height))
		}
	}

	if w.session == SessionPylonOCR {
		w.readDigits(ctx, dets, width, height)
	}
	b.Detections = dets
	return b
}

// readDigits fills IDs on every pylon from a 96x96 OCR pass over its crop.
func (w *Worker) readDigits(ctx context.Context, dets []Detection, width, height int) {
	if !Contains(dets, ClassPylon) {
		return
	}
	src, err := LoadImage(w.opts.ImagePath)
	if err != nil {
		slog.Warn("ocr skipped", "component", "vision", "error", err)
		return
	}
	for i := range dets {
		if dets[i].Class != ClassPylon {
			continue
		}
		if err := SaveJPEG(w.opts.CropPath, CropForOCR(src, dets[i], width, height)); err != nil {
			slog.Warn("ocr crop failed", "component", "vision", "error", err)
			return
		}
		digits, err := w.detector.Detect(ctx, w.opts.CropPath, SessionOCR, OCRSize)
		if err != nil {
			slog.Warn("ocr failed", "component", "vision", "error", err)
			continue
		}
		dets[i].IDs = digitsLeftToRight(digits)
	}
}

func digitsLeftToRight(boxes []Box) []int {
	slices.SortStableFunc(boxes, func(a, b Box) int { return cmp.Compare(a.X1, b.X1) })
	ids := make([]int, 0, len(boxes))
	for _, b := range boxes {
		if b.Class <= 9 {
			ids = append(ids, int(b.Class))
		}
	}
	return ids
}

// publish replaces any unread batch with b.
func (w *Worker) publish(b Batch) {
	for {
		select {
		case w.batches <- b:
			return
		default:
		}
		select {
		case <-w.batches:
		default:
		}
	}
}
