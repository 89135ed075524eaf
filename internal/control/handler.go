// Package control implements the MQTT control plane: session commands
// arrive as JSON on the control topic and are answered on {control}/responses.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jitesh-kr/KineticCode/internal/emitter"
)

const commandQueueSize = 10

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Callbacks connect commands to the service. A nil callback answers
// "<command> not implemented".
type Callbacks struct {
	OnStartSession func() (map[string]interface{}, error)
	OnEndSession   func() (map[string]interface{}, error)
	OnGetStatus    func() map[string]interface{}
	OnGetReport    func() (map[string]interface{}, error)
}

// Config names the control topic and its QoS
type Config struct {
	Topic string
	QoS   byte
}

// Handler handles control plane commands
type Handler struct {
	conn      emitter.Conn
	cfg       Config
	callbacks Callbacks
	commands  chan Command

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewHandler creates a new control plane handler
func NewHandler(conn emitter.Conn, cfg Config, callbacks Callbacks) *Handler {
	return &Handler{
		conn:      conn,
		cfg:       cfg,
		callbacks: callbacks,
		commands:  make(chan Command, commandQueueSize),
	}
}

// ResponseTopic is where command responses are published
func (h *Handler) ResponseTopic() string {
	return h.cfg.Topic + "/responses"
}

// Start subscribes to the control topic and processes commands until ctx is done
func (h *Handler) Start(ctx context.Context) error {
	slog.Info("subscribing to control plane", "topic", h.cfg.Topic, "qos", h.cfg.QoS)

	if err := h.conn.Subscribe(h.cfg.Topic, h.cfg.QoS, h.onMessage); err != nil {
		return fmt.Errorf("control plane: %w", err)
	}

	h.wg.Add(1)
	go h.processCommands(ctx)

	slog.Info("control plane handler started")
	return nil
}

// Stop unsubscribes and waits for the command loop to exit
func (h *Handler) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	close(h.commands)
	h.mu.Unlock()

	err := h.conn.Unsubscribe(h.cfg.Topic)
	h.wg.Wait()

	slog.Info("control plane handler stopped")
	return err
}

// onMessage runs on the MQTT client goroutine; it only parses and enqueues
func (h *Handler) onMessage(_ string, payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	defer h.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.sendResponse(h.handleCommand(cmd))
		}
	}
}

// handleCommand executes a command and builds its response
func (h *Handler) handleCommand(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command}

	switch cmd.Command {
	case "start_session":
		resp.fromResult(cmd.Command, h.callbacks.OnStartSession)

	case "end_session":
		resp.fromResult(cmd.Command, h.callbacks.OnEndSession)

	case "get_report":
		resp.fromResult(cmd.Command, h.callbacks.OnGetReport)

	case "get_status":
		if h.callbacks.OnGetStatus != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		} else {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
		}

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

func (r *Response) fromResult(name string, fn func() (map[string]interface{}, error)) {
	if fn == nil {
		r.Status = "error"
		r.Error = name + " not implemented"
		return
	}

	data, err := fn()
	if err != nil {
		r.Status = "error"
		r.Error = err.Error()
		return
	}
	r.Status = "success"
	r.Data = data
}

func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	if err := h.conn.Publish(h.ResponseTopic(), h.cfg.QoS, payload); err != nil {
		slog.Error("failed to publish response", "error", err, "command_ack", resp.CommandAck)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
