package pose

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

const (
	defaultPythonCommand   = "models/run_pose.sh"
	defaultWriteTimeout    = 2 * time.Second
	defaultResponseTimeout = time.Second
	responseQueueSize      = 4
)

// ErrExtractorStopped is returned by Extract once the model process is gone
var ErrExtractorStopped = errors.New("pose extractor not running")

// PythonExtractorConfig configures the model subprocess
type PythonExtractorConfig struct {
	ID string
	// Command and arguments; default models/run_pose.sh (activates the venv and runs the model)
	Command    []string
	InstanceID string
	// MinConfidence drops landmarks the model is unsure about (0 keeps all)
	MinConfidence   float64
	WriteTimeout    time.Duration
	ResponseTimeout time.Duration
}

// PythonExtractor runs the pose model as a subprocess speaking length-prefixed
// msgpack over stdin/stdout. One request is in flight at a time.
type PythonExtractor struct {
	cfg PythonExtractorConfig

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	responses chan poseResponse

	reqMu sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	isActive atomic.Bool

	requests       atomic.Uint64
	answered       atomic.Uint64
	totalLatencyUS atomic.Uint64
	lastSeenAt     atomic.Value // time.Time
}

func NewPythonExtractor(cfg PythonExtractorConfig) *PythonExtractor {
	if cfg.ID == "" {
		cfg.ID = "pose-python"
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{defaultPythonCommand}
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}
	return &PythonExtractor{cfg: cfg}
}

// Start spawns the model process
func (e *PythonExtractor) Start(ctx context.Context) error {
	if e.isActive.Load() {
		return fmt.Errorf("extractor already started")
	}

	e.ctx, e.cancel = context.WithCancel(ctx)

	e.cmd = exec.CommandContext(e.ctx, e.cfg.Command[0], e.cfg.Command[1:]...)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := e.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := e.cmd.Start(); err != nil {
		e.cancel()
		return fmt.Errorf("failed to start pose process: %w", err)
	}

	slog.Info("pose process spawned",
		"extractor_id", e.cfg.ID,
		"command", strings.Join(e.cfg.Command, " "),
		"pid", e.cmd.Process.Pid,
	)

	e.attach(stdin, stdout)

	e.wg.Add(2)
	go e.logStderr(stderr)
	go e.waitProcess()

	return nil
}

// attach wires the protocol streams and starts the response reader
func (e *PythonExtractor) attach(stdin io.WriteCloser, stdout io.Reader) {
	if e.ctx == nil {
		e.ctx, e.cancel = context.WithCancel(context.Background())
	}
	e.stdin = stdin
	e.responses = make(chan poseResponse, responseQueueSize)
	e.lastSeenAt.Store(time.Now())
	e.isActive.Store(true)

	e.wg.Add(1)
	go e.readResponses(stdout)
}

// Extract sends frame to the model and waits for its answer
func (e *PythonExtractor) Extract(ctx context.Context, frame *types.Frame) (*types.JointObservation, error) {
	if !e.isActive.Load() {
		return nil, ErrExtractorStopped
	}

	e.reqMu.Lock()
	defer e.reqMu.Unlock()

	req := poseRequest{
		FrameData: frame.Data,
		Width:     frame.Width,
		Height:    frame.Height,
		Format:    frame.Format,
		Meta: requestMeta{
			InstanceID: e.cfg.InstanceID,
			Seq:        frame.Seq,
			Timestamp:  frame.Timestamp.Format(time.RFC3339Nano),
			TraceID:    frame.TraceID,
		},
	}

	sent := time.Now()
	if err := e.send(ctx, req); err != nil {
		return nil, err
	}
	e.requests.Add(1)

	timeout := time.NewTimer(e.cfg.ResponseTimeout)
	defer timeout.Stop()

	for {
		select {
		case resp, ok := <-e.responses:
			if !ok {
				return nil, ErrExtractorStopped
			}
			if resp.Seq != frame.Seq {
				// answer to a request that already timed out
				slog.Debug("discarding stale pose response",
					"extractor_id", e.cfg.ID,
					"response_seq", resp.Seq,
					"frame_seq", frame.Seq,
				)
				continue
			}
			return e.handleResponse(frame, resp, time.Since(sent))

		case <-timeout.C:
			return nil, fmt.Errorf("no pose response for frame %d within %v", frame.Seq, e.cfg.ResponseTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.ctx.Done():
			return nil, ErrExtractorStopped
		}
	}
}

func (e *PythonExtractor) handleResponse(frame *types.Frame, resp poseResponse, rtt time.Duration) (*types.JointObservation, error) {
	e.answered.Add(1)
	e.totalLatencyUS.Add(uint64(rtt.Microseconds()))
	e.lastSeenAt.Store(time.Now())

	if resp.Error != "" {
		return nil, fmt.Errorf("pose model error: %s", resp.Error)
	}

	native := make(map[types.JointName]Landmark, len(resp.Landmarks))
	for name, lm := range resp.Landmarks {
		native[types.JointName(name)] = lm
	}
	return observation(frame, native, e.cfg.MinConfidence), nil
}

// send writes one request, giving up after WriteTimeout so a hung model
// cannot stall the worker
func (e *PythonExtractor) send(ctx context.Context, req poseRequest) error {
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- writeMessage(e.stdin, req)
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			return fmt.Errorf("failed to write to pose process: %w", err)
		}
		return nil
	case <-time.After(e.cfg.WriteTimeout):
		return fmt.Errorf("stdin write timeout (pose process may be hung)")
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return ErrExtractorStopped
	}
}

func (e *PythonExtractor) readResponses(stdout io.Reader) {
	defer e.wg.Done()
	defer close(e.responses)

	for {
		var resp poseResponse
		if err := readMessage(stdout, &resp); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				slog.Debug("pose process stdout closed", "extractor_id", e.cfg.ID)
				return
			}
			if e.ctx.Err() == nil {
				slog.Error("failed to read pose response",
					"extractor_id", e.cfg.ID,
					"error", err,
				)
			}
			return
		}

		select {
		case e.responses <- resp:
		default:
			slog.Warn("dropping pose response, queue full",
				"extractor_id", e.cfg.ID,
				"seq", resp.Seq,
			)
		}
	}
}

// logStderr maps the model's log levels onto slog
func (e *PythonExtractor) logStderr(stderr io.Reader) {
	defer e.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			slog.Error("pose process error", "extractor_id", e.cfg.ID, "log", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			slog.Warn("pose process warning", "extractor_id", e.cfg.ID, "log", line)
		default:
			slog.Debug("pose process log", "extractor_id", e.cfg.ID, "log", line)
		}
	}
}

func (e *PythonExtractor) waitProcess() {
	defer e.wg.Done()

	err := e.cmd.Wait()
	e.isActive.Store(false)

	switch {
	case err == nil:
		slog.Info("pose process exited cleanly", "extractor_id", e.cfg.ID)
	case e.ctx.Err() != nil:
		slog.Debug("pose process exited (shutdown)", "extractor_id", e.cfg.ID)
	default:
		slog.Error("pose process exited unexpectedly",
			"extractor_id", e.cfg.ID,
			"error", err,
		)
	}
}

// Metrics reports request counters. Frame level counters live in Worker.
func (e *PythonExtractor) Metrics() types.WorkerMetrics {
	answered := e.answered.Load()

	var avg float64
	if answered > 0 {
		avg = float64(e.totalLatencyUS.Load()) / float64(answered) / 1000
	}

	var lastSeen time.Time
	if v := e.lastSeenAt.Load(); v != nil {
		lastSeen = v.(time.Time)
	}

	return types.WorkerMetrics{
		FramesProcessed: e.requests.Load(),
		Observations:    answered,
		AvgLatencyMS:    avg,
		LastSeenAt:      lastSeen,
	}
}

// Stop closes stdin so the model exits, and kills it after 2s
func (e *PythonExtractor) Stop() error {
	if e.cancel == nil {
		return nil
	}
	if !e.isActive.Swap(false) && e.ctx.Err() != nil {
		return nil
	}

	slog.Info("stopping pose extractor", "extractor_id", e.cfg.ID)

	if e.stdin != nil {
		_ = e.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("pose process stop timeout, killing", "extractor_id", e.cfg.ID)
		e.cancel()
		if e.cmd != nil && e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		<-done
	}
	e.cancel()

	slog.Info("pose extractor stopped",
		"extractor_id", e.cfg.ID,
		"requests", e.requests.Load(),
		"answered", e.answered.Load(),
	)
	return nil
}
