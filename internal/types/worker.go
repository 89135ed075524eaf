package types

import "time"

// WorkerMetrics contains health metrics for the pose extraction worker
type WorkerMetrics struct {
	FramesProcessed uint64    `json:"frames_processed"`
	NoPose          uint64    `json:"no_pose"`
	Errors          uint64    `json:"errors"`
	Observations    uint64    `json:"observations"`
	AvgLatencyMS    float64   `json:"avg_latency_ms"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}
