// Package emitter publishes angle samples and session reports to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jitesh-kr/KineticCode/anglebus"
	"github.com/jitesh-kr/KineticCode/internal/feedback"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

// ErrNotConnected is returned when publishing while the broker is unreachable
var ErrNotConnected = errors.New("mqtt not connected")

const defaultSubscriberID = "mqtt-emitter"

// Config names the topics and QoS levels the emitter publishes with
type Config struct {
	// ID is the anglebus subscriber id (default "mqtt-emitter")
	ID           string
	AnglesTopic  string
	ReportsTopic string
	// QoS per message kind ("angles", "reports"); missing kinds use 0
	QoS map[string]byte
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Emitter forwards the latest angle sample and every report to the broker.
// Angles are telemetry: when the broker is slower than the tracker only the
// newest sample is sent.
type Emitter struct {
	conn Conn
	cfg  Config

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64

	bus    anglebus.Bus
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an emitter on an established connection
func New(conn Conn, cfg Config) *Emitter {
	if cfg.ID == "" {
		cfg.ID = defaultSubscriberID
	}
	return &Emitter{
		conn:      conn,
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Start subscribes to bus and publishes samples until ctx is cancelled or Stop is called
func (e *Emitter) Start(ctx context.Context, bus anglebus.Bus) error {
	receiver, err := bus.SubscribeLatest(e.cfg.ID)
	if err != nil {
		return fmt.Errorf("emitter subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.bus = bus
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(ctx, receiver)

	slog.Info("mqtt emitter started",
		"angles_topic", e.cfg.AnglesTopic,
		"reports_topic", e.cfg.ReportsTopic)
	return nil
}

// Stop ends the publish loop and leaves the bus. Safe to call more than once.
func (e *Emitter) Stop() error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	err := e.bus.Unsubscribe(e.cfg.ID)
	e.wg.Wait()

	if err != nil && !errors.Is(err, anglebus.ErrBusClosed) && !errors.Is(err, anglebus.ErrSubscriberNotFound) {
		return fmt.Errorf("emitter unsubscribe: %w", err)
	}
	return nil
}

func (e *Emitter) run(ctx context.Context, receiver anglebus.SampleReceiver) {
	defer e.wg.Done()

	for {
		sample, err := receiver.Receive(ctx)
		if err != nil {
			return
		}
		if err := e.PublishSample(sample); err != nil {
			slog.Debug("angle publish failed", "error", err, "seq", sample.Seq)
		}
	}
}

// PublishSample sends one angle sample to the angles topic
func (e *Emitter) PublishSample(sample types.AngleSample) error {
	return e.publish("angles", e.cfg.AnglesTopic, sample)
}

// PublishReport sends a session report to the reports topic
func (e *Emitter) PublishReport(report feedback.Report) error {
	if err := e.publish("reports", e.cfg.ReportsTopic, report); err != nil {
		slog.Warn("report publish failed", "error", err, "session_id", report.SessionID)
		return err
	}
	slog.Info("report published", "topic", e.cfg.ReportsTopic, "session_id", report.SessionID)
	return nil
}

func (e *Emitter) publish(kind, topic string, v interface{}) error {
	if !e.conn.IsConnected() {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	qos := e.cfg.QoS[kind]
	if err := e.conn.Publish(topic, qos, payload); err != nil {
		e.countError()
		return err
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("message published", "topic", topic, "qos", qos, "size", len(payload))
	return nil
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Stats returns emitter statistics
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.conn.IsConnected(),
		Published: published,
		Errors:    e.errors,
	}
}
