package types

import "time"

// AngleSample is one computed joint angle, published once per processed frame
type AngleSample struct {
	// Degrees is the joint angle in [0, 360)
	Degrees float64 `json:"degrees"`
	// Seq counts samples within the session, starting at 1
	Seq       uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	// FrameSeq is the sequence number of the frame the sample was derived from
	FrameSeq uint64 `json:"frame_seq"`
}
