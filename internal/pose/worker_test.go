package pose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jitesh-kr/KineticCode/framesupplier"
	"github.com/jitesh-kr/KineticCode/internal/tracker"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

type handlerFunc func(types.JointObservation)

func (f handlerFunc) OnObservation(obs types.JointObservation) (types.AngleSample, bool) {
	f(obs)
	return types.AngleSample{}, true
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, *types.Frame) (*types.JointObservation, error) {
	return nil, errors.New("model crashed")
}

func startPipeline(t *testing.T, ext Extractor, handler ObservationHandler) (framesupplier.Supplier, *Worker) {
	t.Helper()

	supplier := framesupplier.New()
	if err := supplier.Start(context.Background()); err != nil {
		t.Fatalf("supplier Start failed: %v", err)
	}
	w := NewWorker("pose", supplier, ext, handler)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("worker Start failed: %v", err)
	}
	t.Cleanup(func() {
		_ = w.Stop()
		_ = supplier.Stop()
	})
	return supplier, w
}

func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkerFeedsTracker(t *testing.T) {
	script, err := ParseScript([]byte("steps:\n  - angle: 60\n  - none: true\n  - angle: 120\n"))
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}

	tr := tracker.New(tracker.Config{}, nil)
	tr.Start()

	supplier, w := startPipeline(t, NewScriptedExtractor(script), tr)

	for i := 1; i <= 3; i++ {
		supplier.Publish(&types.Frame{Seq: uint64(i), Timestamp: time.Now()})
		waitUntil(t, func() bool { return w.Metrics().FramesProcessed == uint64(i) }, "frame processed")
	}
	waitUntil(t, func() bool { return tr.Snapshot().Samples == 2 }, "samples tracked")

	m := w.Metrics()
	if m.Observations != 2 || m.NoPose != 1 || m.Errors != 0 {
		t.Errorf("Expected 2 observations and 1 no-pose, got %+v", m)
	}

	snap := tr.Snapshot()
	if snap.Samples != 2 {
		t.Errorf("Expected 2 samples, got %d", snap.Samples)
	}
	if snap.MaxAngle < 119.999 || snap.MaxAngle > 120.001 {
		t.Errorf("Expected max 120°, got %v", snap.MaxAngle)
	}
}

func TestWorkerCountsErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	handler := handlerFunc(func(types.JointObservation) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	supplier, w := startPipeline(t, failingExtractor{}, handler)

	supplier.Publish(&types.Frame{Seq: 1})
	waitUntil(t, func() bool { return w.Metrics().Errors == 1 }, "error counted")

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("Expected handler not called on extraction error, got %d calls", calls)
	}
}

func TestWorkerStopIdempotent(t *testing.T) {
	script, _ := ParseScript([]byte("steps:\n  - none: true\n"))
	_, w := startPipeline(t, NewScriptedExtractor(script), nil)

	if err := w.Start(context.Background()); err == nil {
		t.Error("Expected error starting worker twice")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
}
