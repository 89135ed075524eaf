package pose

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/jitesh-kr/KineticCode/internal/geometry"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

// fakeModel answers requests the way the model process does
func fakeModel(in io.Reader, out io.WriteCloser, answer func(poseRequest) []poseResponse, done chan<- struct{}) {
	defer close(done)
	defer out.Close()

	for {
		var req poseRequest
		if err := readMessage(in, &req); err != nil {
			return
		}
		for _, resp := range answer(req) {
			if err := writeMessage(out, resp); err != nil {
				return
			}
		}
	}
}

func armResponse(seq uint64, deg float64) poseResponse {
	lms := make(map[string]Landmark)
	for name, lm := range ArmLandmarks(types.RightArm, deg) {
		lms[string(name)] = lm
	}
	return poseResponse{Seq: seq, Landmarks: lms, Timing: responseTiming{TotalMS: 12}}
}

func startFakeExtractor(t *testing.T, cfg PythonExtractorConfig, answer func(poseRequest) []poseResponse) *PythonExtractor {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	done := make(chan struct{})

	e := NewPythonExtractor(cfg)
	e.attach(reqW, respR)
	go fakeModel(reqR, respW, answer, done)

	t.Cleanup(func() {
		_ = e.Stop()
		_ = reqR.Close()
		<-done
	})
	return e
}

func TestPythonExtractorRoundTrip(t *testing.T) {
	var seen poseRequest
	e := startFakeExtractor(t, PythonExtractorConfig{InstanceID: "kinetic-01"}, func(req poseRequest) []poseResponse {
		seen = req
		return []poseResponse{armResponse(req.Meta.Seq, 135)}
	})

	frame := &types.Frame{Seq: 5, Width: 640, Height: 480, Data: []byte{0xff, 0xd8}, Format: "jpeg", Timestamp: time.Now(), TraceID: "t5"}
	obs, err := e.Extract(context.Background(), frame)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if obs == nil {
		t.Fatal("Expected an observation")
	}

	p, m, d, ok := obs.Triple(types.RightArm)
	if !ok {
		t.Fatal("Expected right arm joints")
	}
	if got := geometry.JointAngle(p, m, d); math.Abs(got-135) > 1e-9 {
		t.Errorf("Expected 135°, got %v", got)
	}
	if obs.FrameSeq != 5 || obs.TraceID != "t5" {
		t.Errorf("Frame identity lost: %+v", obs)
	}

	if seen.Meta.InstanceID != "kinetic-01" || seen.Width != 640 || seen.Format != "jpeg" || len(seen.FrameData) != 2 {
		t.Errorf("Unexpected request %+v", seen)
	}

	m2 := e.Metrics()
	if m2.FramesProcessed != 1 || m2.Observations != 1 {
		t.Errorf("Expected 1 request and 1 answer, got %+v", m2)
	}
}

func TestPythonExtractorNoPose(t *testing.T) {
	e := startFakeExtractor(t, PythonExtractorConfig{}, func(req poseRequest) []poseResponse {
		return []poseResponse{{Seq: req.Meta.Seq}}
	})

	obs, err := e.Extract(context.Background(), &types.Frame{Seq: 1})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if obs != nil {
		t.Errorf("Expected nil observation, got %+v", obs)
	}
}

func TestPythonExtractorModelError(t *testing.T) {
	e := startFakeExtractor(t, PythonExtractorConfig{}, func(req poseRequest) []poseResponse {
		return []poseResponse{{Seq: req.Meta.Seq, Error: "decode failed"}}
	})

	if _, err := e.Extract(context.Background(), &types.Frame{Seq: 1}); err == nil {
		t.Error("Expected model error to surface")
	}
}

func TestPythonExtractorDiscardsStaleResponses(t *testing.T) {
	e := startFakeExtractor(t, PythonExtractorConfig{}, func(req poseRequest) []poseResponse {
		return []poseResponse{armResponse(req.Meta.Seq-1, 10), armResponse(req.Meta.Seq, 60)}
	})

	obs, err := e.Extract(context.Background(), &types.Frame{Seq: 9})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	p, m, d, _ := obs.Triple(types.RightArm)
	if got := geometry.JointAngle(p, m, d); math.Abs(got-60) > 1e-9 {
		t.Errorf("Expected the answer for frame 9 (60°), got %v", got)
	}
}

func TestPythonExtractorResponseTimeout(t *testing.T) {
	e := startFakeExtractor(t, PythonExtractorConfig{ResponseTimeout: 20 * time.Millisecond}, func(poseRequest) []poseResponse {
		return nil
	})

	start := time.Now()
	if _, err := e.Extract(context.Background(), &types.Frame{Seq: 1}); err == nil {
		t.Error("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Timeout took %v", elapsed)
	}
}

func TestPythonExtractorStopped(t *testing.T) {
	e := startFakeExtractor(t, PythonExtractorConfig{}, func(req poseRequest) []poseResponse {
		return []poseResponse{{Seq: req.Meta.Seq}}
	})

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, err := e.Extract(context.Background(), &types.Frame{Seq: 1}); !errors.Is(err, ErrExtractorStopped) {
		t.Errorf("Expected ErrExtractorStopped, got %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
}

func TestPythonExtractorStartFailure(t *testing.T) {
	e := NewPythonExtractor(PythonExtractorConfig{Command: []string{"/nonexistent/pose-model"}})
	if err := e.Start(context.Background()); err == nil {
		_ = e.Stop()
		t.Fatal("Expected Start to fail for a missing command")
	}
}
