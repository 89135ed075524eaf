// Package pose turns camera frames into joint observations.
//
// The pose model itself runs outside this process (PythonExtractor) or is
// replayed from a script (ScriptedExtractor). Either way the extractor reports
// joints in the model's native image space, y increasing upward, and Normalize
// converts them to display space before they reach the tracker.
package pose

import (
	"context"
	"math"

	"github.com/golang/geo/r2"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

// Extractor detects the body pose in a frame.
//
// A nil observation with a nil error means no body was found. Callers treat
// an error the same way, after logging it.
type Extractor interface {
	Extract(ctx context.Context, frame *types.Frame) (*types.JointObservation, error)
}

// Landmark is one joint as reported by the pose model
type Landmark struct {
	X          float64 `msgpack:"x" yaml:"x"`
	Y          float64 `msgpack:"y" yaml:"y"`
	Confidence float64 `msgpack:"confidence" yaml:"confidence"`
}

// Normalize converts native landmarks to display space (y' = 1 - y).
// Non-finite points and points below minConfidence are dropped, so the
// tracker sees them as missing joints.
func Normalize(native map[types.JointName]Landmark, minConfidence float64) map[types.JointName]r2.Point {
	out := make(map[types.JointName]r2.Point, len(native))
	for name, lm := range native {
		if !finite(lm.X) || !finite(lm.Y) {
			continue
		}
		if minConfidence > 0 && lm.Confidence < minConfidence {
			continue
		}
		out[name] = r2.Point{X: lm.X, Y: 1 - lm.Y}
	}
	return out
}

// observation builds the observation for frame, or nil if no joint survived
func observation(frame *types.Frame, native map[types.JointName]Landmark, minConfidence float64) *types.JointObservation {
	joints := Normalize(native, minConfidence)
	if len(joints) == 0 {
		return nil
	}
	return &types.JointObservation{
		Joints:    joints,
		Timestamp: frame.Timestamp,
		FrameSeq:  frame.Seq,
		TraceID:   frame.TraceID,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
