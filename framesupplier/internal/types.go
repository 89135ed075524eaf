package internal

import (
	"time"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// Frame is shared by reference with every worker
type Frame = types.Frame

// SupplierStats is a snapshot of supplier state
type SupplierStats struct {
	// Published counts frames handed to Publish
	Published uint64 `json:"published"`
	// Distributed counts frames that left the inbox
	Distributed uint64 `json:"distributed"`
	// InboxDrops counts frames replaced in the inbox before distribution.
	// Anything above zero means the distribution goroutine is starved.
	InboxDrops uint64                 `json:"inbox_drops"`
	Workers    map[string]WorkerStats `json:"workers"`
}

// WorkerStats tracks one worker slot
type WorkerStats struct {
	WorkerID       string    `json:"worker_id"`
	LastConsumedAt time.Time `json:"last_consumed_at"`
	// LastConsumedSeq is the distribution sequence of the last frame read
	LastConsumedSeq uint64 `json:"last_consumed_seq"`
	// ConsecutiveDrops resets to zero on every read
	ConsecutiveDrops uint64 `json:"consecutive_drops"`
	TotalDrops       uint64 `json:"total_drops"`
	Consumed         uint64 `json:"consumed"`
	// IsIdle is set when the worker has not read a frame for idleThreshold
	IsIdle bool `json:"is_idle"`
}
