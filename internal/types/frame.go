package types

import "time"

// Frame represents a single captured camera frame
type Frame struct {
	// Seq is the monotonic sequence number assigned by the stream
	Seq uint64
	// Timestamp is when the frame was captured
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the encoded frame (JPEG for camera capture, raw RGB for the mock stream)
	Data []byte
	// Format describes Data ("jpeg", "rgb")
	Format string
	// SourceStream identifies the capture source (e.g. "front")
	SourceStream string
	// TraceID follows the frame through extraction and tracking
	TraceID string
}

// StreamStats contains frame source statistics
type StreamStats struct {
	FrameCount    uint64  `json:"frame_count"`
	FramesDropped uint64  `json:"frames_dropped"`
	FPSTarget     int     `json:"fps_target"`
	FPSReal       float64 `json:"fps_real"`
	SourceStream  string  `json:"source_stream"`
	Resolution    string  `json:"resolution"`
	Reconnects    uint32  `json:"reconnects"`
	IsConnected   bool    `json:"is_connected"`
}
