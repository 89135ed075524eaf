package core

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jitesh-kr/KineticCode/internal/feedback"
	"github.com/jitesh-kr/KineticCode/internal/tracker"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrNoReport        = errors.New("no session has ended yet")
)

// StartSession begins a new exercise session, restarting any active one
func (k *Kinetic) StartSession() tracker.SessionSnapshot {
	return k.tracker.Start()
}

// EndSession stops angle accumulation immediately and publishes the
// session report to the presenter and, when configured, to MQTT
func (k *Kinetic) EndSession() (feedback.Report, error) {
	snap, ok := k.tracker.End()
	if !ok {
		return feedback.Report{}, ErrNoActiveSession
	}

	report := feedback.NewReport(snap)

	k.mu.Lock()
	k.lastReport = &report
	em := k.emitter
	k.mu.Unlock()

	k.presenter.Report(report)
	if em != nil {
		// failures are logged and counted by the emitter
		em.PublishReport(report)
	}

	slog.Info("session report", "session_id", report.SessionID, "headline", report.Headline, "detail", report.Detail)
	return report, nil
}

// Snapshot returns the current session state without mutating it
func (k *Kinetic) Snapshot() tracker.SessionSnapshot {
	return k.tracker.Snapshot()
}

// LastReport returns the report of the most recently ended session
func (k *Kinetic) LastReport() (feedback.Report, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.lastReport == nil {
		return feedback.Report{}, false
	}
	return *k.lastReport, true
}

// Control plane adapters

func (k *Kinetic) startSessionCommand() (map[string]interface{}, error) {
	return snapshotData(k.StartSession()), nil
}

func (k *Kinetic) endSessionCommand() (map[string]interface{}, error) {
	report, err := k.EndSession()
	if err != nil {
		return nil, err
	}
	return reportData(report), nil
}

func (k *Kinetic) getReportCommand() (map[string]interface{}, error) {
	report, ok := k.LastReport()
	if !ok {
		return nil, ErrNoReport
	}
	return reportData(report), nil
}

func snapshotData(s tracker.SessionSnapshot) map[string]interface{} {
	data := map[string]interface{}{
		"session_id":    s.SessionID,
		"state":         s.State.String(),
		"limb":          s.Limb,
		"current_angle": s.CurrentAngle,
		"max_angle":     s.MaxAngle,
		"samples":       s.Samples,
		"skipped":       s.Skipped,
	}
	if !s.StartedAt.IsZero() {
		data["started_at"] = s.StartedAt.UTC().Format(time.RFC3339Nano)
		data["duration_s"] = s.Duration().Seconds()
	}
	if !s.EndedAt.IsZero() {
		data["ended_at"] = s.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	return data
}

func reportData(r feedback.Report) map[string]interface{} {
	return map[string]interface{}{
		"session_id":  r.SessionID,
		"limb":        r.Limb,
		"max_angle":   r.MaxAngle,
		"final_angle": r.FinalAngle,
		"samples":     r.Samples,
		"skipped":     r.Skipped,
		"duration_s":  r.Duration.Seconds(),
		"headline":    r.Headline,
		"detail":      r.Detail,
	}
}
