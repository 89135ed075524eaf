package pose

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/golang/geo/r2"
	"gopkg.in/yaml.v3"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// armRadius is the forearm/upper-arm length used for synthesized poses
const armRadius = 0.2

// Script is a recorded or hand-written sequence of poses, one step per frame
type Script struct {
	// Loop restarts the script when it runs out; otherwise the last step repeats
	Loop          bool         `yaml:"loop"`
	MinConfidence float64      `yaml:"min_confidence"`
	Steps         []ScriptStep `yaml:"steps"`
}

// ScriptStep describes the pose for one or more frames. Exactly one of
// Angle, Joints or None is expected.
type ScriptStep struct {
	// Angle synthesizes an arm bent to this many degrees (display space)
	Angle *float64 `yaml:"angle,omitempty"`
	// Side selects the synthesized arm (default right)
	Side types.Side `yaml:"side,omitempty"`
	// Joints are native landmarks (y up), passed through Normalize
	Joints map[types.JointName]Landmark `yaml:"joints,omitempty"`
	// None means no body in frame
	None bool `yaml:"none,omitempty"`
	// Repeat holds the step for this many frames (default 1)
	Repeat int `yaml:"repeat,omitempty"`
}

// ParseScript decodes a YAML pose script
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse pose script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("pose script has no steps")
	}
	for i, step := range s.Steps {
		if step.Repeat < 0 {
			return nil, fmt.Errorf("step %d: repeat must be >= 0", i)
		}
		if _, err := types.LimbForSide(step.Side); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if step.Angle == nil && step.Joints == nil && !step.None {
			return nil, fmt.Errorf("step %d: one of angle, joints or none is required", i)
		}
	}
	return &s, nil
}

// LoadScript reads a pose script from disk
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pose script: %w", err)
	}
	return ParseScript(data)
}

// ScriptedExtractor replays a Script, ignoring frame content. It drives the
// demo mode and stands in for the model in tests.
type ScriptedExtractor struct {
	script *Script

	mu     sync.Mutex
	frames []map[types.JointName]Landmark // nil entry = no pose
	pos    int
}

func NewScriptedExtractor(script *Script) *ScriptedExtractor {
	var frames []map[types.JointName]Landmark
	for _, step := range script.Steps {
		pose := step.landmarks()
		n := step.Repeat
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			frames = append(frames, pose)
		}
	}
	return &ScriptedExtractor{script: script, frames: frames}
}

func (e *ScriptedExtractor) Extract(ctx context.Context, frame *types.Frame) (*types.JointObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	native := e.frames[e.pos]
	switch {
	case e.pos < len(e.frames)-1:
		e.pos++
	case e.script.Loop:
		e.pos = 0
	}
	e.mu.Unlock()

	if native == nil {
		return nil, nil
	}
	return observation(frame, native, e.script.MinConfidence), nil
}

// Len returns the number of frames in one pass of the script
func (e *ScriptedExtractor) Len() int {
	return len(e.frames)
}

func (s ScriptStep) landmarks() map[types.JointName]Landmark {
	switch {
	case s.None:
		return nil
	case s.Joints != nil:
		return s.Joints
	default:
		limb, _ := types.LimbForSide(s.Side)
		return ArmLandmarks(limb, *s.Angle)
	}
}

// ArmLandmarks returns native landmarks for limb bent to deg degrees as seen
// in display space: the distal joint points along +x from the vertex and the
// proximal joint is rotated deg from it.
func ArmLandmarks(limb types.Limb, deg float64) map[types.JointName]Landmark {
	mid := r2.Point{X: 0.5, Y: 0.5}
	rad := deg * math.Pi / 180

	display := map[types.JointName]r2.Point{
		limb.Proximal: mid.Add(r2.Point{X: math.Cos(rad), Y: math.Sin(rad)}.Mul(armRadius)),
		limb.Mid:      mid,
		limb.Distal:   mid.Add(r2.Point{X: armRadius}),
	}

	native := make(map[types.JointName]Landmark, len(display))
	for name, p := range display {
		native[name] = Landmark{X: p.X, Y: 1 - p.Y, Confidence: 1}
	}
	return native
}
