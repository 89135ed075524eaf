package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jitesh-kr/KineticCode/anglebus"
)

// WorkerHealthMetrics contains health metrics for the pose worker
type WorkerHealthMetrics struct {
	FramesProcessed uint64    `json:"frames_processed"`
	Observations    uint64    `json:"observations"`
	NoPose          uint64    `json:"no_pose"`
	Errors          uint64    `json:"errors"`
	FramesDropped   uint64    `json:"frames_dropped"`
	AvgLatencyMS    float64   `json:"avg_latency_ms"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// HealthStatus represents the health state of the service
type HealthStatus struct {
	Status          string              `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds   int64               `json:"uptime_seconds"`
	StreamConnected bool                `json:"stream_connected"`
	MQTTEnabled     bool                `json:"mqtt_enabled"`
	MQTTConnected   bool                `json:"mqtt_connected"`
	Session         string              `json:"session"`
	UIClients       int                 `json:"ui_clients"`
	Worker          WorkerHealthMetrics `json:"worker"`
	PresenterHealth string              `json:"presenter_health"`
}

// HealthCheck returns the current health status of the service
func (k *Kinetic) HealthCheck() HealthStatus {
	k.mu.RLock()
	running := k.isRunning
	started := k.started
	conn := k.conn
	k.mu.RUnlock()

	metrics := k.worker.Metrics()
	dropped := k.supplier.Stats().Workers[poseWorkerID].TotalDrops

	status := HealthStatus{
		Status:          "healthy",
		StreamConnected: running && k.stream.Stats().IsConnected,
		MQTTEnabled:     k.cfg.MQTT.Enabled(),
		MQTTConnected:   conn != nil && conn.IsConnected(),
		Session:         k.tracker.State().String(),
		UIClients:       k.hub.Stats().Clients,
		Worker: WorkerHealthMetrics{
			FramesProcessed: metrics.FramesProcessed,
			Observations:    metrics.Observations,
			NoPose:          metrics.NoPose,
			Errors:          metrics.Errors,
			FramesDropped:   dropped,
			AvgLatencyMS:    metrics.AvgLatencyMS,
			LastSeenAt:      metrics.LastSeenAt,
		},
		PresenterHealth: string(anglebus.GetHealth(k.bus.Stats(), presenterID)),
	}
	if running {
		status.UptimeSeconds = int64(time.Since(started).Seconds())
	}

	switch {
	case !running:
		status.Status = "unhealthy"
	case !status.StreamConnected:
		status.Status = "degraded"
	case status.MQTTEnabled && !status.MQTTConnected:
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health: 200 while the process is alive
func (k *Kinetic) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	k.mu.RLock()
	started := k.started
	k.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(started).Seconds()),
	})
}

// ReadinessHandler handles /readiness: 503 when unhealthy, 200 otherwise
func (k *Kinetic) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	health := k.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// SessionHandler handles GET /session
func (k *Kinetic) SessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, k.Snapshot())
}

// StartSessionHandler handles POST /session/start
func (k *Kinetic) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, k.StartSession())
}

// EndSessionHandler handles POST /session/end; 409 when no session is active
func (k *Kinetic) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	report, err := k.EndSession()
	if errors.Is(err, ErrNoActiveSession) {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ReportHandler handles GET /session/report
func (k *Kinetic) ReportHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := k.LastReport()
	if !ok {
		writeError(w, http.StatusNotFound, ErrNoReport)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// IndicatorHandler handles GET /indicator, the last rendered indicator state
func (k *Kinetic) IndicatorHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, k.indicator.Current())
}

// Handler returns the HTTP API
func (k *Kinetic) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", k.LivenessHandler)
	mux.HandleFunc("GET /readiness", k.ReadinessHandler)
	mux.HandleFunc("GET /session", k.SessionHandler)
	mux.HandleFunc("POST /session/start", k.StartSessionHandler)
	mux.HandleFunc("POST /session/end", k.EndSessionHandler)
	mux.HandleFunc("GET /session/report", k.ReportHandler)
	mux.HandleFunc("GET /indicator", k.IndicatorHandler)
	mux.HandleFunc("GET /ws", k.hub.ServeWS)

	return mux
}

// StartHTTPServer serves the HTTP API on the configured port without blocking
func (k *Kinetic) StartHTTPServer() error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", k.cfg.HTTP.Port),
		Handler:      k.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	k.mu.Lock()
	k.server = server
	k.mu.Unlock()

	slog.Info("starting http server",
		"port", k.cfg.HTTP.Port,
		"endpoints", []string{"/health", "/readiness", "/session", "/session/start", "/session/end", "/session/report", "/indicator", "/ws"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
