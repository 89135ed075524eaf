package pose

import (
	"math"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNormalizeFlipsY(t *testing.T) {
	native := map[types.JointName]Landmark{
		types.RightShoulder: {X: 0.3, Y: 0.8, Confidence: 0.9},
		types.RightElbow:    {X: 0.5, Y: 0.5, Confidence: 0.9},
		types.RightWrist:    {X: 0.7, Y: 0.1, Confidence: 0.9},
	}

	got := Normalize(native, 0)

	want := map[types.JointName][2]float64{
		types.RightShoulder: {0.3, 0.2},
		types.RightElbow:    {0.5, 0.5},
		types.RightWrist:    {0.7, 0.9},
	}
	for name, w := range want {
		p, ok := got[name]
		if !ok {
			t.Fatalf("Expected %s in normalized joints", name)
		}
		if math.Abs(p.X-w[0]) > 1e-12 || math.Abs(p.Y-w[1]) > 1e-12 {
			t.Errorf("%s: expected (%v,%v), got (%v,%v)", name, w[0], w[1], p.X, p.Y)
		}
	}
}

func TestNormalizeDropsInvalidPoints(t *testing.T) {
	native := map[types.JointName]Landmark{
		types.RightShoulder: {X: math.NaN(), Y: 0.5},
		types.RightElbow:    {X: 0.5, Y: math.Inf(1)},
		types.RightWrist:    {X: 0.5, Y: 0.5, Confidence: 0.2},
		types.LeftWrist:     {X: 0.5, Y: 0.5, Confidence: 0.8},
	}

	got := Normalize(native, 0.5)

	if len(got) != 1 {
		t.Fatalf("Expected only the confident finite joint, got %v", got)
	}
	if _, ok := got[types.LeftWrist]; !ok {
		t.Errorf("Expected left_wrist to survive, got %v", got)
	}

	if all := Normalize(native, 0); len(all) != 2 {
		t.Errorf("Expected 2 finite joints with no confidence filter, got %d", len(all))
	}
}

func TestObservationCarriesFrameIdentity(t *testing.T) {
	ts := time.Now()
	frame := &types.Frame{Seq: 12, Timestamp: ts, TraceID: "trace-12"}

	obs := observation(frame, ArmLandmarks(types.RightArm, 90), 0)
	if obs == nil {
		t.Fatal("Expected an observation")
	}
	if obs.FrameSeq != 12 || obs.TraceID != "trace-12" || !obs.Timestamp.Equal(ts) {
		t.Errorf("Frame identity lost: %+v", obs)
	}

	if empty := observation(frame, map[types.JointName]Landmark{}, 0); empty != nil {
		t.Errorf("Expected nil observation for no joints, got %+v", empty)
	}
}
