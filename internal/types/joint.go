package types

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"
)

// JointName identifies a body joint reported by the pose extractor
type JointName string

const (
	LeftShoulder  JointName = "left_shoulder"
	LeftElbow     JointName = "left_elbow"
	LeftWrist     JointName = "left_wrist"
	RightShoulder JointName = "right_shoulder"
	RightElbow    JointName = "right_elbow"
	RightWrist    JointName = "right_wrist"
)

// Side selects which arm is exercised
type Side string

const (
	SideRight Side = "right"
	SideLeft  Side = "left"
)

// Limb names the three joints whose angle is tracked.
// Mid is the vertex of the angle.
type Limb struct {
	Side     Side
	Proximal JointName
	Mid      JointName
	Distal   JointName
}

// RightArm is the limb tracked by default (shoulder, elbow, wrist)
var RightArm = Limb{Side: SideRight, Proximal: RightShoulder, Mid: RightElbow, Distal: RightWrist}

// LeftArm mirrors RightArm for the other side
var LeftArm = Limb{Side: SideLeft, Proximal: LeftShoulder, Mid: LeftElbow, Distal: LeftWrist}

// LimbForSide returns the arm for the given side
func LimbForSide(side Side) (Limb, error) {
	switch side {
	case SideRight, "":
		return RightArm, nil
	case SideLeft:
		return LeftArm, nil
	default:
		return Limb{}, fmt.Errorf("unknown limb side %q (expected left or right)", side)
	}
}

// Label is the human readable limb name used in feedback text
func (l Limb) Label() string {
	if l.Side == SideLeft {
		return "Left Arm"
	}
	return "Right Arm"
}

// JointObservation is the set of joint positions detected in one frame.
//
// Points are in normalized display space: both axes in [0,1], y increasing
// downward. The extractor's native y axis is flipped before a
// JointObservation is built (see pose.Normalize).
type JointObservation struct {
	Joints    map[JointName]r2.Point
	Timestamp time.Time
	FrameSeq  uint64
	TraceID   string
}

// Triple returns the proximal, mid and distal points of limb.
// ok is false if any of them is missing or not finite.
func (o JointObservation) Triple(limb Limb) (proximal, mid, distal r2.Point, ok bool) {
	if o.Joints == nil {
		return
	}
	var p, m, d r2.Point
	if p, ok = o.point(limb.Proximal); !ok {
		return
	}
	if m, ok = o.point(limb.Mid); !ok {
		return
	}
	if d, ok = o.point(limb.Distal); !ok {
		return
	}
	return p, m, d, true
}

func (o JointObservation) point(name JointName) (r2.Point, bool) {
	p, found := o.Joints[name]
	if !found || !finite(p.X) || !finite(p.Y) {
		return r2.Point{}, false
	}
	return p, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
