package pose

import (
	"context"
	"math"
	"testing"

	"github.com/jitesh-kr/KineticCode/internal/geometry"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

const demoScript = `
loop: true
steps:
  - angle: 40
  - angle: 85
    repeat: 2
  - none: true
  - joints:
      right_shoulder: {x: 0.5, y: 0.3}
      right_elbow: {x: 0.5, y: 0.5}
      right_wrist: {x: 0.7, y: 0.5}
  - angle: 30
    side: left
`

func angleOf(t *testing.T, obs *types.JointObservation, limb types.Limb) float64 {
	t.Helper()
	if obs == nil {
		t.Fatal("Expected an observation, got nil")
	}
	p, m, d, ok := obs.Triple(limb)
	if !ok {
		t.Fatalf("Expected %s joints in %+v", limb.Label(), obs.Joints)
	}
	return geometry.JointAngle(p, m, d)
}

func TestScriptedExtractorReplay(t *testing.T) {
	script, err := ParseScript([]byte(demoScript))
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}

	e := NewScriptedExtractor(script)
	if e.Len() != 6 {
		t.Fatalf("Expected 6 frames, got %d", e.Len())
	}

	ctx := context.Background()
	frame := &types.Frame{}
	extract := func() *types.JointObservation {
		obs, err := e.Extract(ctx, frame)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		return obs
	}

	for _, want := range []float64{40, 85, 85} {
		if got := angleOf(t, extract(), types.RightArm); math.Abs(got-want) > 1e-9 {
			t.Errorf("Expected %v°, got %v", want, got)
		}
	}

	if obs := extract(); obs != nil {
		t.Errorf("Expected no pose, got %+v", obs)
	}

	// native y up: shoulder below elbow becomes above it on screen
	if got := angleOf(t, extract(), types.RightArm); math.Abs(got-90) > 1e-9 {
		t.Errorf("Expected 90° from explicit joints, got %v", got)
	}

	if got := angleOf(t, extract(), types.LeftArm); math.Abs(got-30) > 1e-9 {
		t.Errorf("Expected left arm 30°, got %v", got)
	}

	// loops back to the start
	if got := angleOf(t, extract(), types.RightArm); math.Abs(got-40) > 1e-9 {
		t.Errorf("Expected loop back to 40°, got %v", got)
	}
}

func TestScriptedExtractorHoldsLastStep(t *testing.T) {
	script, err := ParseScript([]byte("steps:\n  - angle: 10\n  - angle: 20\n"))
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}
	e := NewScriptedExtractor(script)

	var last float64
	for i := 0; i < 5; i++ {
		obs, _ := e.Extract(context.Background(), &types.Frame{})
		last = angleOf(t, obs, types.RightArm)
	}
	if math.Abs(last-20) > 1e-9 {
		t.Errorf("Expected script to hold at 20°, got %v", last)
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "loop: true\n"},
		{"empty step", "steps:\n  - repeat: 2\n"},
		{"negative repeat", "steps:\n  - angle: 10\n    repeat: -1\n"},
		{"bad side", "steps:\n  - angle: 10\n    side: middle\n"},
		{"bad yaml", "steps: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScript([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestScriptedExtractorCancelled(t *testing.T) {
	script, _ := ParseScript([]byte("steps:\n  - angle: 10\n"))
	e := NewScriptedExtractor(script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Extract(ctx, &types.Frame{}); err == nil {
		t.Error("Expected error on cancelled context")
	}
}
