package com

import "context"

// Transport sends and receives status frames.
type Transport interface {
	// Listen pushes received neighbors into out until ctx is done.
	Listen(ctx context.Context, out chan<- Neighbor) error
	// Cast advertises one frame.
	Cast(ctx context.Context, f Frame) error
}
