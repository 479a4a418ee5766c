package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrEmpty is returned when a check is handed nothing to look at.
var ErrEmpty = errors.New("not configured")

// Executable checks that name resolves on PATH (or is an existing file).
func Executable(name string) CheckFunc {
	return func(ctx context.Context) error {
		if name == "" {
			return ErrEmpty
		}
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// Exists checks that every path is present.
func Exists(paths ...string) CheckFunc {
	return func(ctx context.Context) error {
		if len(paths) == 0 {
			return ErrEmpty
		}
		var errs []error
		for _, p := range paths {
			if p == "" {
				errs = append(errs, ErrEmpty)
				continue
			}
			if _, err := os.Stat(p); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// WritableDir creates dir if needed and verifies a file can be written in it.
func WritableDir(dir string) CheckFunc {
	return func(ctx context.Context) error {
		if dir == "" {
			return ErrEmpty
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}
