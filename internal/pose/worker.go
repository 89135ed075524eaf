package pose

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jitesh-kr/KineticCode/framesupplier"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

// ObservationHandler receives every observation the worker produces.
// *tracker.Tracker satisfies it.
type ObservationHandler interface {
	OnObservation(obs types.JointObservation) (types.AngleSample, bool)
}

// Worker pulls the freshest frame from the supplier, runs the extractor and
// hands the observation to the handler. Frames that arrive while an
// extraction is running replace each other in the supplier slot.
type Worker struct {
	id        string
	supplier  framesupplier.Supplier
	extractor Extractor
	handler   ObservationHandler

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	isActive atomic.Bool

	frames         atomic.Uint64
	noPose         atomic.Uint64
	errors         atomic.Uint64
	observations   atomic.Uint64
	totalLatencyUS atomic.Uint64
	lastSeenAt     atomic.Value // time.Time
}

func NewWorker(id string, supplier framesupplier.Supplier, extractor Extractor, handler ObservationHandler) *Worker {
	if id == "" {
		id = "pose"
	}
	return &Worker{
		id:        id,
		supplier:  supplier,
		extractor: extractor,
		handler:   handler,
	}
}

func (w *Worker) ID() string {
	return w.id
}

// Start subscribes to the supplier and launches the extraction goroutine
func (w *Worker) Start(ctx context.Context) error {
	if w.isActive.Swap(true) {
		return fmt.Errorf("worker %s already started", w.id)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	read := w.supplier.Subscribe(w.id)
	w.lastSeenAt.Store(time.Now())

	w.wg.Add(1)
	go w.run(ctx, read)

	slog.Info("pose worker started", "worker_id", w.id)
	return nil
}

func (w *Worker) run(ctx context.Context, read func() *framesupplier.Frame) {
	defer w.wg.Done()

	for {
		frame := read()
		if frame == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, frame)
	}
}

func (w *Worker) process(ctx context.Context, frame *types.Frame) {
	w.frames.Add(1)

	start := time.Now()
	obs, err := w.extractor.Extract(ctx, frame)
	w.totalLatencyUS.Add(uint64(time.Since(start).Microseconds()))
	w.lastSeenAt.Store(time.Now())

	if err != nil {
		w.errors.Add(1)
		if ctx.Err() == nil {
			slog.Error("pose extraction failed",
				"worker_id", w.id,
				"frame_seq", frame.Seq,
				"trace_id", frame.TraceID,
				"error", err,
			)
		}
		return
	}
	if obs == nil {
		w.noPose.Add(1)
		return
	}

	w.observations.Add(1)
	if w.handler != nil {
		w.handler.OnObservation(*obs)
	}
}

// Stop unsubscribes, which wakes the goroutine, and waits for it to exit
func (w *Worker) Stop() error {
	if !w.isActive.Swap(false) {
		return nil
	}

	w.cancel()
	w.supplier.Unsubscribe(w.id)
	w.wg.Wait()

	slog.Info("pose worker stopped",
		"worker_id", w.id,
		"frames", w.frames.Load(),
		"observations", w.observations.Load(),
		"no_pose", w.noPose.Load(),
		"errors", w.errors.Load(),
	)
	return nil
}

func (w *Worker) Metrics() types.WorkerMetrics {
	frames := w.frames.Load()

	var avg float64
	if frames > 0 {
		avg = float64(w.totalLatencyUS.Load()) / float64(frames) / 1000
	}

	var lastSeen time.Time
	if v := w.lastSeenAt.Load(); v != nil {
		lastSeen = v.(time.Time)
	}

	return types.WorkerMetrics{
		FramesProcessed: frames,
		NoPose:          w.noPose.Load(),
		Errors:          w.errors.Load(),
		Observations:    w.observations.Load(),
		AvgLatencyMS:    avg,
		LastSeenAt:      lastSeen,
	}
}
