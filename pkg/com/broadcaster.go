package com

import (
	"context"
	"log/slog"
	"time"
)

// Broadcaster rate-limits outbound frames. The drive loop submits a frame
// every tick; only the newest is cast, at most once per interval.
type Broadcaster struct {
	transport Transport
	interval  time.Duration
	frames    chan Frame
}

// NewBroadcaster creates a broadcaster over t.
func NewBroadcaster(t Transport, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Broadcaster{transport: t, interval: interval, frames: make(chan Frame, 1)}
}

// Submit replaces any pending frame with f. It never blocks.
func (b *Broadcaster) Submit(f Frame) {
	for {
		select {
		case b.frames <- f:
			return
		default:
		}
		select {
		case <-b.frames:
		default:
		}
	}
}

// Run casts pending frames until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var (
		pending Frame
		dirty   bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-b.frames:
			pending, dirty = f, true
		case <-ticker.C:
			if !dirty {
				continue
			}
			if err := b.transport.Cast(ctx, pending); err != nil {
				slog.Debug("cast failed", "component", "com", "error", err)
				continue
			}
			dirty = false
		}
	}
}
