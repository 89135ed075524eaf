package framesupplier

import (
	"context"

	"github.com/jitesh-kr/KineticCode/framesupplier/internal"
)

// Frame is a captured camera frame
type Frame = internal.Frame

// Supplier distributes frames from one source to N workers
type Supplier interface {
	// Start launches the distribution goroutine. Returns an error if already started.
	Start(ctx context.Context) error

	// Stop ends distribution and wakes every blocked worker. Idempotent.
	Stop() error

	// Publish hands a frame to the distribution goroutine without blocking.
	// Publish after Stop is a no-op.
	Publish(frame *Frame)

	// Subscribe registers a worker and returns its blocking read function.
	// The read function returns nil once the worker is unsubscribed or the
	// supplier stops. It must be called from a single goroutine.
	Subscribe(workerID string) func() *Frame

	// Unsubscribe removes a worker and wakes its read function. Idempotent.
	Unsubscribe(workerID string)

	// Stats returns a snapshot of drop and idle counters
	Stats() SupplierStats
}

type SupplierStats = internal.SupplierStats

type WorkerStats = internal.WorkerStats

// New creates a supplier
func New() Supplier {
	return internal.NewSupplier()
}
