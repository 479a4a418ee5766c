package vision

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Detector runs one inference over an image file. Boxes are returned in
// model-input pixels (size x size), deduplicated by Postprocess.
type Detector interface {
	Detect(ctx context.Context, image string, session Session, size int) ([]Box, error)
}

// ModelSet resolves the weights file for a session and input size.
type ModelSet interface {
	Model(session Session, size int) (string, bool)
}

// Models is a static ModelSet keyed by session and size.
type Models map[Session]map[int]string

// Model implements ModelSet.
func (m Models) Model(session Session, size int) (string, bool) {
	// the OCR pass of the pylon+OCR session uses the same pylon weights
	if session == SessionPylonOCR {
		session = SessionPylon
	}
	p, ok := m[session][size]
	return p, ok && p != ""
}

type detectRequest struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	Model string `json:"model"`
	Size  int    `json:"size"`
}

type detectResponse struct {
	ID         string `json:"id"`
	Detections []Box  `json:"detections"`
	Error      string `json:"error,omitempty"`
}

// SubprocessDetector talks to a long-lived inference worker over JSON lines:
// one request per line on stdin, one response per line on stdout.
type SubprocessDetector struct {
	args   []string
	models ModelSet

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
}

// NewSubprocessDetector creates a detector that spawns args[0] on first use.
func NewSubprocessDetector(args []string, models ModelSet) (*SubprocessDetector, error) {
	if len(args) == 0 {
		return nil, errors.New("detector command is required")
	}
	return &SubprocessDetector{args: args, models: models}, nil
}

// Detect implements Detector. A failed exchange kills the worker; the next
// call starts a fresh one.
func (d *SubprocessDetector) Detect(ctx context.Context, image string, session Session, size int) ([]Box, error) {
	model, ok := d.models.Model(session, size)
	if !ok {
		return nil, fmt.Errorf("no model for session %s at %d", session, size)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		if err := d.spawn(ctx); err != nil {
			return nil, fmt.Errorf("failed to spawn detector: %w", err)
		}
	}

	req := detectRequest{ID: uuid.NewString(), Image: image, Model: model, Size: size}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := d.stdin.Write(append(line, '\n')); err != nil {
		d.kill()
		return nil, fmt.Errorf("detector write: %w", err)
	}

	if !d.stdout.Scan() {
		err := d.stdout.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		d.kill()
		return nil, fmt.Errorf("detector read: %w", err)
	}

	var resp detectResponse
	if err := json.Unmarshal(d.stdout.Bytes(), &resp); err != nil {
		d.kill()
		return nil, fmt.Errorf("detector response: %w", err)
	}
	if resp.ID != req.ID {
		d.kill()
		return nil, fmt.Errorf("detector response id mismatch: got %q want %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detector: %s", resp.Error)
	}
	return Postprocess(resp.Detections), nil
}

// spawn starts the worker process. The process is not bound to ctx: it
// outlives a single request.
func (d *SubprocessDetector) spawn(_ context.Context) error {
	cmd := exec.Command(d.args[0], d.args[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = sc

	go logStderr(stderr)
	slog.Info("detector worker started", "component", "vision", "command", d.args[0], "pid", cmd.Process.Pid)
	return nil
}

func (d *SubprocessDetector) kill() {
	if d.cmd == nil {
		return
	}
	d.stdin.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
}

// Close stops the worker process.
func (d *SubprocessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kill()
	return nil
}

// logStderr forwards worker stderr into slog, mapping [LEVEL] prefixes.
func logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			slog.Error("detector worker", "component", "vision", "line", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			slog.Warn("detector worker", "component", "vision", "line", line)
		default:
			slog.Debug("detector worker", "component", "vision", "line", line)
		}
	}
}
