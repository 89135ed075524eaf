// Package core wires the pose-to-motion pipeline into a running service:
//
//	stream → framesupplier → pose worker → tracker → anglebus → presenter / emitter
//
// Session boundaries are driven from the HTTP API and the MQTT control plane.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jitesh-kr/KineticCode/anglebus"
	"github.com/jitesh-kr/KineticCode/framesupplier"
	"github.com/jitesh-kr/KineticCode/internal/config"
	"github.com/jitesh-kr/KineticCode/internal/control"
	"github.com/jitesh-kr/KineticCode/internal/emitter"
	"github.com/jitesh-kr/KineticCode/internal/feedback"
	"github.com/jitesh-kr/KineticCode/internal/pose"
	"github.com/jitesh-kr/KineticCode/internal/stream"
	"github.com/jitesh-kr/KineticCode/internal/tracker"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

const (
	poseWorkerID     = "pose-worker"
	presenterID      = "presenter"
	statsLogInterval = 10 * time.Second
)

// lifecycle is implemented by extractors that own a process
type lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

// Kinetic is the main service orchestrator
type Kinetic struct {
	cfg *config.Config

	// Pipeline
	stream    stream.StreamProvider
	supplier  framesupplier.Supplier
	extractor pose.Extractor
	worker    *pose.Worker
	tracker   *tracker.Tracker
	bus       anglebus.Bus
	presenter *feedback.Presenter
	indicator *feedback.IndicatorSink
	hub       *feedback.Hub

	// MQTT, nil when no broker is configured
	conn    emitter.Conn
	emitter *emitter.Emitter
	control *control.Handler

	server *http.Server

	// Lifecycle management
	started    time.Time
	mu         sync.RWMutex
	wg         sync.WaitGroup
	isRunning  bool
	lastReport *feedback.Report
}

// NewKinetic builds the service from a validated configuration
func NewKinetic(cfg *config.Config) (*Kinetic, error) {
	provider, err := newStream(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pose extractor: %w", err)
	}

	return newKinetic(cfg, provider, extractor)
}

func newKinetic(cfg *config.Config, provider stream.StreamProvider, extractor pose.Extractor) (*Kinetic, error) {
	limb, err := types.LimbForSide(types.Side(cfg.Tracker.Side))
	if err != nil {
		return nil, err
	}

	smoother, err := tracker.NewSmoother(cfg.Tracker.Smoothing, cfg.Tracker.Window)
	if err != nil {
		return nil, err
	}

	bus := anglebus.New()
	supplier := framesupplier.New()
	tr := tracker.New(tracker.Config{Limb: limb, Smoother: smoother}, bus)

	indicatorCfg := feedback.IndicatorConfig{
		LimbLabel:   limb.Label(),
		TargetAngle: cfg.Feedback.TargetAngle,
		Animation:   time.Duration(cfg.Feedback.AnimationMS) * time.Millisecond,
	}

	k := &Kinetic{
		cfg:       cfg,
		stream:    provider,
		supplier:  supplier,
		extractor: extractor,
		worker:    pose.NewWorker(poseWorkerID, supplier, extractor, tr),
		tracker:   tr,
		bus:       bus,
		presenter: feedback.NewPresenter(bus, feedback.PresenterConfig{ID: presenterID, Buffer: cfg.Feedback.Buffer}),
		indicator: feedback.NewIndicatorSink(indicatorCfg),
		hub:       feedback.NewHub(indicatorCfg),
	}

	k.presenter.AddSink(k.indicator)
	k.presenter.AddSink(k.hub)

	slog.Info("pipeline configured",
		"instance_id", cfg.InstanceID,
		"camera", cfg.Camera.Type,
		"extractor", cfg.Pose.Extractor,
		"limb", limb.Label(),
		"smoothing", cfg.Tracker.Smoothing,
	)

	return k, nil
}

func newStream(cfg *config.Config) (stream.StreamProvider, error) {
	s := cfg.Stream
	switch cfg.Camera.Type {
	case "v4l2":
		return stream.NewCameraStream(stream.CameraConfig{
			Device:  cfg.Camera.Device,
			Width:   s.Width,
			Height:  s.Height,
			FPS:     s.FPS,
			Source:  cfg.Camera.Name,
			Quality: s.JPEGQuality,
			Reconnect: stream.ReconnectConfig{
				MaxRetries:    s.Reconnect.MaxRetries,
				RetryDelay:    time.Duration(s.Reconnect.RetryDelayMS) * time.Millisecond,
				MaxRetryDelay: time.Duration(s.Reconnect.MaxRetryDelayMS) * time.Millisecond,
			},
		})
	default:
		slog.Info("using mock stream (no camera configured)")
		return stream.NewMockStream(s.Width, s.Height, s.FPS, cfg.Camera.Name), nil
	}
}

func newExtractor(cfg *config.Config) (pose.Extractor, error) {
	p := cfg.Pose
	switch p.Extractor {
	case "scripted":
		script, err := pose.LoadScript(p.Script)
		if err != nil {
			return nil, err
		}
		slog.Info("using scripted pose extractor", "script", p.Script, "steps", len(script.Steps))
		return pose.NewScriptedExtractor(script), nil
	default:
		return pose.NewPythonExtractor(pose.PythonExtractorConfig{
			Command:         p.Command,
			InstanceID:      cfg.InstanceID,
			MinConfidence:   p.MinConfidence,
			ResponseTimeout: time.Duration(p.ResponseTimeoutMS) * time.Millisecond,
		}), nil
	}
}

// Run starts the pipeline and blocks until ctx is cancelled
func (k *Kinetic) Run(ctx context.Context) error {
	k.mu.Lock()
	if k.isRunning {
		k.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	k.isRunning = true
	k.started = time.Now()
	k.mu.Unlock()

	slog.Info("kinetic service starting", "instance_id", k.cfg.InstanceID)

	if err := k.startPipeline(ctx); err != nil {
		return err
	}

	if k.cfg.MQTT.Enabled() {
		if err := k.startMQTT(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt: %w", err)
		}
	}

	k.wg.Add(2)
	go k.consumeFrames(ctx)
	go k.logStats(ctx, statsLogInterval)

	slog.Info("kinetic service running",
		"mqtt_enabled", k.cfg.MQTT.Enabled(),
		"http_port", k.cfg.HTTP.Port,
	)

	<-ctx.Done()

	slog.Info("kinetic service run loop exiting")
	return nil
}

// startPipeline starts components downstream first so no frame or sample
// is published before its consumer exists
func (k *Kinetic) startPipeline(ctx context.Context) error {
	if err := k.presenter.Start(ctx); err != nil {
		return fmt.Errorf("failed to start presenter: %w", err)
	}

	if lc, ok := k.extractor.(lifecycle); ok {
		if err := lc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pose extractor: %w", err)
		}
	}

	if err := k.supplier.Start(ctx); err != nil {
		return fmt.Errorf("failed to start frame supplier: %w", err)
	}

	if err := k.worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pose worker: %w", err)
	}

	if err := k.stream.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

func (k *Kinetic) startMQTT(ctx context.Context) error {
	m := k.cfg.MQTT

	conn, err := emitter.Dial(ctx, emitter.DialConfig{Broker: m.Broker, ClientID: m.ClientID})
	if err != nil {
		return err
	}

	em := emitter.New(conn, emitter.Config{
		AnglesTopic:  m.Topics.Angles,
		ReportsTopic: m.Topics.Reports,
		QoS:          m.QoS,
	})
	if err := em.Start(ctx, k.bus); err != nil {
		conn.Close()
		return err
	}

	handler := control.NewHandler(conn, control.Config{
		Topic: m.Topics.Control,
		QoS:   m.QoS["control"],
	}, control.Callbacks{
		OnStartSession: k.startSessionCommand,
		OnEndSession:   k.endSessionCommand,
		OnGetStatus:    k.getStatus,
		OnGetReport:    k.getReportCommand,
	})
	if err := handler.Start(ctx); err != nil {
		em.Stop()
		conn.Close()
		return err
	}

	k.mu.Lock()
	k.conn = conn
	k.emitter = em
	k.control = handler
	k.mu.Unlock()
	return nil
}

// Shutdown performs graceful shutdown of all components
func (k *Kinetic) Shutdown(ctx context.Context) error {
	k.mu.RLock()
	if !k.isRunning {
		k.mu.RUnlock()
		return nil
	}
	server, handler, em, conn := k.server, k.control, k.emitter, k.conn
	k.mu.RUnlock()

	slog.Info("shutting down kinetic service")

	if snap := k.tracker.Snapshot(); snap.State == tracker.Active {
		if _, err := k.EndSession(); err != nil {
			slog.Warn("failed to end active session", "error", err)
		}
	}

	// 1. HTTP first so no session command races the teardown
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("failed to stop http server", "error", err)
		}
	}
	k.hub.Close()

	// 2. Control plane
	if handler != nil {
		if err := handler.Stop(); err != nil {
			slog.Error("failed to stop control handler", "error", err)
		}
	}

	// 3. Producers: stream, worker, supplier, extractor process
	if err := k.stream.Stop(); err != nil {
		slog.Error("failed to stop stream", "error", err)
	}
	if err := k.worker.Stop(); err != nil {
		slog.Error("failed to stop pose worker", "error", err)
	}
	if err := k.supplier.Stop(); err != nil {
		slog.Error("failed to stop frame supplier", "error", err)
	}
	if lc, ok := k.extractor.(lifecycle); ok {
		if err := lc.Stop(); err != nil {
			slog.Error("failed to stop pose extractor", "error", err)
		}
	}

	// 4. Consumers of the anglebus
	if em != nil {
		if err := em.Stop(); err != nil {
			slog.Error("failed to stop emitter", "error", err)
		}
	}
	if err := k.presenter.Stop(); err != nil {
		slog.Error("failed to stop presenter", "error", err)
	}
	k.bus.Close()

	slog.Info("waiting for goroutines to finish")
	k.wg.Wait()

	if conn != nil {
		conn.Close()
	}

	k.mu.Lock()
	uptime := time.Since(k.started)
	k.isRunning = false
	k.mu.Unlock()

	slog.Info("kinetic service shutdown complete", "uptime", uptime.Round(time.Second))
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (k *Kinetic) ShutdownTimeout() time.Duration {
	return k.cfg.ShutdownTimeout()
}
