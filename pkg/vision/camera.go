package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Camera captures one frame to dst at the requested size.
type Camera interface {
	Capture(ctx context.Context, dst string, width, height int) error
}

// CommandCamera runs an external still-capture program. Args may contain
// {output}, {width} and {height} placeholders.
type CommandCamera struct {
	Args      []string
	GrabTimes int // frames grabbed per capture; the last one is kept
}

// Capture implements Camera.
func (c *CommandCamera) Capture(ctx context.Context, dst string, width, height int) error {
	if len(c.Args) == 0 {
		return errors.New("camera command not configured")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	r := strings.NewReplacer("{output}", dst, "{width}", strconv.Itoa(width), "{height}", strconv.Itoa(height))
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}

	for i, n := 0, max(1, c.GrabTimes); i < n; i++ {
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("capture %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// FileCamera serves a fixed still image, for bench runs without a camera.
type FileCamera struct {
	Source string
}

// Capture implements Camera.
func (c *FileCamera) Capture(ctx context.Context, dst string, width, height int) error {
	src, err := os.Open(c.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
