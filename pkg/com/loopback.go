package com

import (
	"context"
	"sync"
	"time"
)

// Loopback is an in-process transport. Casts are recorded; Inject delivers
// neighbors to the listener. Used for bench runs without a radio.
type Loopback struct {
	mu    sync.Mutex
	casts []Frame
	in    chan Neighbor
}

// NewLoopback creates a loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{in: make(chan Neighbor, 16)}
}

// Inject queues a neighbor for delivery.
func (l *Loopback) Inject(n Neighbor) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	l.in <- n
}

// Listen implements Transport.
func (l *Loopback) Listen(ctx context.Context, out chan<- Neighbor) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-l.in:
			select {
			case out <- n:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Cast implements Transport.
func (l *Loopback) Cast(_ context.Context, f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.casts = append(l.casts, f)
	return nil
}

// Casts returns a copy of all frames cast so far.
func (l *Loopback) Casts() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Frame(nil), l.casts...)
}
