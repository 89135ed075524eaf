package feedback

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jitesh-kr/KineticCode/internal/tracker"
)

// Report summarizes a finished session for display
type Report struct {
	SessionID  string        `json:"session_id"`
	Limb       string        `json:"limb"`
	MaxAngle   float64       `json:"max_angle"`
	FinalAngle float64       `json:"final_angle"`
	Samples    uint64        `json:"samples"`
	Skipped    uint64        `json:"skipped"`
	Duration   time.Duration `json:"duration_ns"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	Headline   string        `json:"headline"`
	Detail     string        `json:"detail"`
}

// NewReport projects a session snapshot into a report. It only reads the snapshot.
func NewReport(s tracker.SessionSnapshot) Report {
	duration := s.Duration()

	return Report{
		SessionID:  s.SessionID,
		Limb:       s.Limb,
		MaxAngle:   s.MaxAngle,
		FinalAngle: s.CurrentAngle,
		Samples:    s.Samples,
		Skipped:    s.Skipped,
		Duration:   duration,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		Headline:   fmt.Sprintf("Session Complete! You reached %d° ROM", int(s.MaxAngle)),
		Detail: fmt.Sprintf("%s samples over %s",
			humanize.Comma(int64(s.Samples)),
			duration.Round(time.Second)),
	}
}
