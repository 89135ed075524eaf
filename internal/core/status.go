package core

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jitesh-kr/KineticCode/anglebus"
)

// getStatus answers the get_status control command
func (k *Kinetic) getStatus() map[string]interface{} {
	k.mu.RLock()
	started := k.started
	running := k.isRunning
	em := k.emitter
	k.mu.RUnlock()

	streamStats := k.stream.Stats()
	supplierStats := k.supplier.Stats()
	busStats := k.bus.Stats()
	metrics := k.worker.Metrics()
	trackerStats := k.tracker.Stats()
	hubStats := k.hub.Stats()
	presenterStats := k.presenter.Stats()

	status := map[string]interface{}{
		"instance_id": k.cfg.InstanceID,
		"uptime_s":    time.Since(started).Seconds(),
		"running":     running,
		"session":     snapshotData(k.Snapshot()),
		"stream": map[string]interface{}{
			"source":      streamStats.SourceStream,
			"connected":   streamStats.IsConnected,
			"fps_real":    streamStats.FPSReal,
			"fps_target":  streamStats.FPSTarget,
			"frame_count": streamStats.FrameCount,
			"dropped":     streamStats.FramesDropped,
			"reconnects":  streamStats.Reconnects,
			"resolution":  streamStats.Resolution,
		},
		"supplier": map[string]interface{}{
			"published":   supplierStats.Published,
			"distributed": supplierStats.Distributed,
			"inbox_drops": supplierStats.InboxDrops,
		},
		"pose_worker": map[string]interface{}{
			"extractor":        k.cfg.Pose.Extractor,
			"frames_processed": metrics.FramesProcessed,
			"observations":     metrics.Observations,
			"no_pose":          metrics.NoPose,
			"errors":           metrics.Errors,
			"avg_latency_ms":   metrics.AvgLatencyMS,
			"last_seen":        humanize.Time(metrics.LastSeenAt),
		},
		"tracker": map[string]interface{}{
			"limb":      k.tracker.Limb().Label(),
			"processed": trackerStats.Processed,
			"skipped":   trackerStats.Skipped,
			"ignored":   trackerStats.Ignored,
			"sessions":  trackerStats.Sessions,
		},
		"anglebus": map[string]interface{}{
			"published": busStats.TotalPublished,
			"sent":      busStats.TotalSent,
			"dropped":   busStats.TotalDropped,
			"drop_rate": anglebus.CalculateDropRate(busStats),
		},
		"feedback": map[string]interface{}{
			"delivered":  presenterStats.Delivered,
			"reports":    presenterStats.Reports,
			"ui_clients": hubStats.Clients,
			"ui_sent":    hubStats.Sent,
			"ui_dropped": hubStats.Dropped,
		},
	}

	if em != nil {
		es := em.Stats()
		status["mqtt"] = map[string]interface{}{
			"connected": es.Connected,
			"published": es.Published,
			"errors":    es.Errors,
		}
	}

	return status
}
