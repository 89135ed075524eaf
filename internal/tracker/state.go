package tracker

import "time"

// State is the tracker lifecycle state
type State int

const (
	// Idle: no active session, observations are ignored
	Idle State = iota
	// Active: session running, observations update SessionState
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear as a string in JSON payloads
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionState is the mutable per-session state owned by the tracker
type SessionState struct {
	CurrentAngle float64
	MaxAngle     float64
}

// SessionSnapshot is a read-only projection of the tracker's session
type SessionSnapshot struct {
	SessionID    string    `json:"session_id"`
	State        State     `json:"state"`
	Limb         string    `json:"limb"`
	CurrentAngle float64   `json:"current_angle"`
	MaxAngle     float64   `json:"max_angle"`
	Samples      uint64    `json:"samples"`
	Skipped      uint64    `json:"skipped"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
}

// Duration returns how long the session ran (or has been running)
func (s SessionSnapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.EndedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Stats counts observations across the tracker lifetime
type Stats struct {
	// Processed observations that produced a sample
	Processed uint64 `json:"processed"`
	// Skipped observations missing one of the tracked joints
	Skipped uint64 `json:"skipped"`
	// Ignored observations received while idle or captured before the session started
	Ignored  uint64 `json:"ignored"`
	Sessions uint64 `json:"sessions"`
}
