// Package geometry computes joint angles from normalized 2D joint positions.
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// JointAngle returns the angle at mid between the segments mid→proximal and
// mid→distal, in degrees, normalized to [0, 360).
//
// Only vector directions are used, so the result does not depend on limb
// length or on where the limb sits in the frame. A zero-length segment has
// direction 0 (atan2(0, 0) == 0).
func JointAngle(proximal, mid, distal r2.Point) float64 {
	v1 := proximal.Sub(mid)
	v2 := distal.Sub(mid)

	a1 := math.Atan2(v1.Y, v1.X)
	a2 := math.Atan2(v2.Y, v2.X)

	deg := (a1 - a2) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	// a1 == π and a2 == -π only happens on signed zeros; fold it back
	if deg >= 360 {
		deg -= 360
	}
	return deg
}
