package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jitesh-kr/KineticCode/anglebus"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

const (
	defaultPresenterID     = "presenter"
	defaultPresenterBuffer = 8
	reportQueueSize        = 4
)

// PresenterConfig configures a Presenter
type PresenterConfig struct {
	// ID is the anglebus subscriber id (default "presenter")
	ID string
	// Buffer is the sample queue length; a full queue drops new samples (default 8)
	Buffer int
}

// PresenterStats counts presentation activity
type PresenterStats struct {
	Delivered uint64 `json:"delivered"`
	Reports   uint64 `json:"reports"`
	Sinks     int    `json:"sinks"`
}

// Presenter runs the presentation loop: it subscribes to the anglebus and
// hands every sample, then every report, to the registered sinks in order.
type Presenter struct {
	bus    anglebus.Bus
	id     string
	buffer int

	mu    sync.RWMutex
	sinks []Sink

	samples chan anglebus.Sample
	reports chan Report

	delivered atomic.Uint64
	reported  atomic.Uint64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewPresenter creates a presenter bound to bus. Sinks may be added before or after Start.
func NewPresenter(bus anglebus.Bus, cfg PresenterConfig) *Presenter {
	if cfg.ID == "" {
		cfg.ID = defaultPresenterID
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultPresenterBuffer
	}

	return &Presenter{
		bus:     bus,
		id:      cfg.ID,
		buffer:  cfg.Buffer,
		samples: make(chan anglebus.Sample, cfg.Buffer),
		reports: make(chan Report, reportQueueSize),
	}
}

// AddSink registers a consumer. Zero sinks is valid: samples are then consumed and discarded.
func (p *Presenter) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Start subscribes to the bus and launches the presentation goroutine
func (p *Presenter) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("presenter already started")
	}

	if err := p.bus.Subscribe(p.id, p.samples); err != nil {
		return fmt.Errorf("presenter subscribe: %w", err)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	p.wg.Add(1)
	go p.loop(ctx)

	slog.Info("presenter started", "subscriber_id", p.id, "buffer", p.buffer, "sinks", len(p.sinks))
	return nil
}

// Stop unsubscribes and waits for the presentation goroutine to exit. Idempotent.
func (p *Presenter) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	if err := p.bus.Unsubscribe(p.id); err != nil && !errors.Is(err, anglebus.ErrBusClosed) {
		slog.Warn("presenter unsubscribe failed", "error", err)
	}

	p.cancel()
	p.wg.Wait()
	p.flush()

	slog.Info("presenter stopped", "delivered", p.delivered.Load(), "reports", p.reported.Load())
	return nil
}

// Report queues a session report for delivery after any samples already queued
func (p *Presenter) Report(r Report) {
	select {
	case p.reports <- r:
	default:
		slog.Warn("report queue full, dropping report", "session_id", r.SessionID)
	}
}

// Stats returns presentation counters
func (p *Presenter) Stats() PresenterStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PresenterStats{
		Delivered: p.delivered.Load(),
		Reports:   p.reported.Load(),
		Sinks:     len(p.sinks),
	}
}

func (p *Presenter) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-p.samples:
			p.deliver(s)

		case r := <-p.reports:
			p.drainSamples()
			p.deliverReport(r)
		}
	}
}

// flush delivers whatever was queued after the loop exited, such as the
// report of a session ended during shutdown
func (p *Presenter) flush() {
	for {
		select {
		case r := <-p.reports:
			p.drainSamples()
			p.deliverReport(r)
		default:
			p.drainSamples()
			return
		}
	}
}

// drainSamples flushes samples queued before a report
func (p *Presenter) drainSamples() {
	for {
		select {
		case s := <-p.samples:
			p.deliver(s)
		default:
			return
		}
	}
}

func (p *Presenter) deliver(s types.AngleSample) {
	for _, sink := range p.snapshotSinks() {
		sink.OnAngle(s)
	}
	p.delivered.Add(1)
}

func (p *Presenter) deliverReport(r Report) {
	for _, sink := range p.snapshotSinks() {
		if rs, ok := sink.(ReportSink); ok {
			rs.OnReport(r)
		}
	}
	p.reported.Add(1)
}

func (p *Presenter) snapshotSinks() []Sink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sinks
}
