package feedback

import (
	"testing"
	"time"

	"github.com/jitesh-kr/KineticCode/internal/tracker"
)

func TestNewReport(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := tracker.SessionSnapshot{
		SessionID:    "sess-1",
		State:        tracker.Idle,
		Limb:         "Right Arm",
		CurrentAngle: 90,
		MaxAngle:     120.7,
		Samples:      12345,
		Skipped:      3,
		StartedAt:    start,
		EndedAt:      start.Add(95 * time.Second),
	}
	before := snap

	r := NewReport(snap)

	if r.Headline != "Session Complete! You reached 120° ROM" {
		t.Errorf("Unexpected headline %q", r.Headline)
	}
	if r.Detail != "12,345 samples over 1m35s" {
		t.Errorf("Unexpected detail %q", r.Detail)
	}
	if r.MaxAngle != 120.7 || r.FinalAngle != 90 {
		t.Errorf("Expected max 120.7 / final 90, got %v / %v", r.MaxAngle, r.FinalAngle)
	}
	if r.Duration != 95*time.Second {
		t.Errorf("Expected 95s duration, got %v", r.Duration)
	}
	if snap != before {
		t.Error("NewReport modified the snapshot")
	}
}

func TestNewReportFromTracker(t *testing.T) {
	tr := tracker.New(tracker.Config{}, nil)
	tr.Start()
	final, ok := tr.End()
	if !ok {
		t.Fatal("Expected End to succeed")
	}

	r := NewReport(final)
	if r.Headline != "Session Complete! You reached 0° ROM" {
		t.Errorf("Unexpected headline %q", r.Headline)
	}

	// Reading the report leaves the tracker snapshot untouched
	if got := tr.Snapshot(); got != final {
		t.Errorf("Expected snapshot unchanged, got %+v", got)
	}
}
