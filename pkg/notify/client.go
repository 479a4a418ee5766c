// Package notify posts alert messages with an attached photo to an HTTP
// notification service using a bearer token.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"roktrack/pkg/config"
	"roktrack/pkg/version"
)

var (
	// ErrDisabled is returned when no endpoint or token is configured.
	ErrDisabled = errors.New("notification disabled")
	// ErrQueueFull is returned when alerts arrive faster than they can be sent.
	ErrQueueFull = errors.New("notification queue full")
)

var userAgent = fmt.Sprintf("roktrack/%s", version.Version)

// DefaultKeep is how many alert snapshots stay on disk.
const DefaultKeep = 100

type job struct {
	message string
	image   string
}

// Client queues notifications and sends them from its own goroutine so the
// caller never waits on the network.
type Client struct {
	endpoint    string
	token       string
	retries     int
	backoff     Backoff
	snapshotDir string
	httpClient  *http.Client
	queue       chan job
	keep        int
}

// New creates a client. snapshotDir receives a private copy of every image,
// since the camera overwrites its output on each frame.
func New(cfg config.NotificationConfig, snapshotDir string) *Client {
	timeout := cfg.Timeout.D()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		token:       cfg.Token,
		retries:     max(1, cfg.Retries),
		backoff:     Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second},
		snapshotDir: snapshotDir,
		httpClient:  &http.Client{Timeout: timeout},
		queue:       make(chan job, 8),
		keep:        DefaultKeep,
	}
}

// Enabled reports whether notifications can be sent.
func (c *Client) Enabled() bool {
	return c.endpoint != "" && c.token != ""
}

// Notify snapshots image (if any) and queues the message.
func (c *Client) Notify(message, image string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	j := job{message: message}
	if image != "" {
		snap, err := c.snapshot(image)
		if err != nil {
			slog.Warn("snapshot failed, sending text only", "component", "notify", "error", err)
		} else {
			j.image = snap
		}
	}
	select {
	case c.queue <- j:
		return nil
	default:
		if j.image != "" {
			_ = os.Remove(j.image)
		}
		return ErrQueueFull
	}
}

func (c *Client) snapshot(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(c.snapshotDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(c.snapshotDir, uuid.NewString()+filepath.Ext(src))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}

// Run sends queued notifications until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-c.queue:
			if err := c.send(ctx, j); err != nil {
				slog.Error("notification failed", "component", "notify", "error", err)
			} else {
				slog.Info("notification sent", "component", "notify", "message", j.message)
			}
			if j.image != "" {
				c.prune()
			}
		}
	}
}

// prune removes the oldest snapshots beyond the keep limit.
func (c *Client) prune() {
	entries, err := os.ReadDir(c.snapshotDir)
	if err != nil {
		return
	}
	type snap struct {
		path string
		mod  time.Time
	}
	snaps := make([]snap, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		snaps = append(snaps, snap{filepath.Join(c.snapshotDir, e.Name()), info.ModTime()})
	}
	if len(snaps) <= c.keep {
		return
	}
	slices.SortFunc(snaps, func(a, b snap) int { return a.mod.Compare(b.mod) })
	for _, s := range snaps[:len(snaps)-c.keep] {
		if err := os.Remove(s.path); err != nil {
			slog.Warn("snapshot cleanup failed", "component", "notify", "path", s.path, "error", err)
		}
	}
}

func (c *Client) send(ctx context.Context, j job) error {
	for attempt := 1; attempt <= c.retries; attempt++ {
		retry, err := c.post(ctx, j)
		if err == nil {
			return nil
		}
		if !retry || attempt == c.retries {
			return err
		}
		slog.Warn("notification retry", "component", "notify", "attempt", attempt, "error", err)
		select {
		case <-time.After(c.backoff.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded")
}

// post makes one attempt. retry reports whether the failure is transient.
func (c *Client) post(ctx context.Context, j job) (retry bool, err error) {
	body, contentType, err := encode(j)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("api error: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("api error: status %d", resp.StatusCode)
	}
	return false, nil
}

func encode(j job) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", j.message); err != nil {
		return nil, "", err
	}
	if j.image != "" {
		f, err := os.Open(j.image)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		part, err := w.CreateFormFile("imageFile", filepath.Base(j.image))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
