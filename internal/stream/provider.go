// Package stream provides the frame sources feeding the pose pipeline.
package stream

import (
	"context"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// StreamProvider produces frames until stopped
type StreamProvider interface {
	// Start begins capture; frames arrive on Frames()
	Start(ctx context.Context) error
	// Frames is closed by Stop
	Frames() <-chan types.Frame
	Stop() error
	Stats() types.StreamStats
}

const frameQueueSize = 10
