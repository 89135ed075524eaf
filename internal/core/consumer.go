package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jitesh-kr/KineticCode/anglebus"
)

// consumeFrames hands stream frames to the supplier. Publish never blocks;
// the supplier keeps only the newest frame for a busy worker.
func (k *Kinetic) consumeFrames(ctx context.Context) {
	defer k.wg.Done()

	slog.Info("frame consumer started")

	var frameCount uint64
	for {
		select {
		case <-ctx.Done():
			slog.Info("frame consumer stopping", "total_frames", frameCount)
			return

		case frame, ok := <-k.stream.Frames():
			if !ok {
				slog.Info("stream channel closed", "total_frames", frameCount)
				return
			}
			frameCount++
			k.supplier.Publish(&frame)
		}
	}
}

// logStats periodically logs pipeline throughput and drops
func (k *Kinetic) logStats(ctx context.Context, interval time.Duration) {
	defer k.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.logPipelineStats()
		}
	}
}

func (k *Kinetic) logPipelineStats() {
	streamStats := k.stream.Stats()
	supplierStats := k.supplier.Stats()
	busStats := k.bus.Stats()
	metrics := k.worker.Metrics()
	snap := k.tracker.Snapshot()

	slog.Info("pipeline stats",
		"frames", humanize.Comma(int64(streamStats.FrameCount)),
		"stream_fps_real", float64(int(streamStats.FPSReal*100))/100,
		"supplier_inbox_drops", humanize.Comma(int64(supplierStats.InboxDrops)),
		"pose_frames", humanize.Comma(int64(metrics.FramesProcessed)),
		"pose_no_pose", metrics.NoPose,
		"pose_latency_ms", float64(int(metrics.AvgLatencyMS*100))/100,
		"samples_published", humanize.Comma(int64(busStats.TotalPublished)),
		"bus_drop_rate", float64(int(anglebus.CalculateDropRate(busStats)*10000))/100,
		"session", snap.State.String(),
		"max_angle", snap.MaxAngle,
	)

	for _, ws := range supplierStats.Workers {
		if ws.ConsecutiveDrops > 0 {
			slog.Warn("pose worker falling behind",
				"worker_id", ws.WorkerID,
				"consecutive_drops", ws.ConsecutiveDrops,
				"total_drops", humanize.Comma(int64(ws.TotalDrops)),
			)
		}
		if ws.IsIdle {
			slog.Warn("pose worker idle", "worker_id", ws.WorkerID,
				"last_consumed", humanize.Time(ws.LastConsumedAt))
		}
	}

	for _, id := range anglebus.GetUnhealthySubscribers(busStats) {
		slog.Warn("anglebus subscriber unhealthy",
			"subscriber_id", id,
			"health", anglebus.GetHealth(busStats, id),
			"drop_rate", anglebus.CalculateSubscriberDropRate(busStats, id),
		)
	}
}
