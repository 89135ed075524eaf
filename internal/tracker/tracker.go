// Package tracker turns a stream of joint observations into joint angle
// samples and owns the exercise session state.
//
// The tracker is the single writer of SessionState. Observations may arrive
// from any goroutine; every mutation happens under one lock, in arrival order,
// and the resulting sample is handed to the Publisher before the lock is
// released so subscribers see samples in the same order the state changed.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jitesh-kr/KineticCode/internal/geometry"
	"github.com/jitesh-kr/KineticCode/internal/types"
)

// Publisher receives every computed sample. Publish must not block
// (anglebus.Bus satisfies this).
type Publisher interface {
	Publish(sample types.AngleSample)
}

// Config configures a Tracker
type Config struct {
	// Limb is the tracked limb (default RightArm)
	Limb types.Limb
	// Smoother filters raw angles (default Passthrough, i.e. unfiltered)
	Smoother Smoother
}

// Tracker computes the exercised-limb angle and tracks the session maximum
type Tracker struct {
	limb      types.Limb
	smoother  Smoother
	publisher Publisher

	mu        sync.Mutex
	state     State
	session   SessionState
	sessionID string
	seq       uint64
	skipped   uint64
	startedAt time.Time
	endedAt   time.Time
	stats     Stats
}

// New creates an idle tracker. publisher may be nil.
func New(cfg Config, publisher Publisher) *Tracker {
	limb := cfg.Limb
	if limb.Mid == "" {
		limb = types.RightArm
	}
	smoother := cfg.Smoother
	if smoother == nil {
		smoother = Passthrough{}
	}

	return &Tracker{
		limb:      limb,
		smoother:  smoother,
		publisher: publisher,
	}
}

// Start begins a new session (Idle → Active), resetting current and max angle to 0.
// Calling Start on an active session restarts it.
func (t *Tracker) Start() SessionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Active {
		slog.Info("tracker: restarting active session",
			"session_id", t.sessionID,
			"max_angle", t.session.MaxAngle,
		)
	}

	t.state = Active
	t.session = SessionState{}
	t.sessionID = uuid.New().String()
	t.seq = 0
	t.skipped = 0
	t.startedAt = time.Now()
	t.endedAt = time.Time{}
	t.smoother.Reset()
	t.stats.Sessions++

	slog.Info("tracker: session started",
		"session_id", t.sessionID,
		"limb", t.limb.Label(),
	)

	return t.snapshotLocked()
}

// End stops the active session (Active → Idle) and returns its final snapshot.
// ok is false if no session was active; the snapshot is then the last one.
func (t *Tracker) End() (snapshot SessionSnapshot, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Active {
		return t.snapshotLocked(), false
	}

	t.state = Idle
	t.endedAt = time.Now()

	snapshot = t.snapshotLocked()
	slog.Info("tracker: session ended",
		"session_id", snapshot.SessionID,
		"max_angle", snapshot.MaxAngle,
		"samples", snapshot.Samples,
		"duration", snapshot.Duration(),
	)
	return snapshot, true
}

// OnObservation computes the angle for one observation.
//
// It returns false without touching any state when the tracker is idle, when
// the observation was captured before the current session started, or when
// one of the tracked joints is missing.
func (t *Tracker) OnObservation(obs types.JointObservation) (types.AngleSample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Active {
		t.stats.Ignored++
		return types.AngleSample{}, false
	}
	if !obs.Timestamp.IsZero() && obs.Timestamp.Before(t.startedAt) {
		t.stats.Ignored++
		slog.Debug("tracker: dropping observation from before session start",
			"frame_seq", obs.FrameSeq,
			"trace_id", obs.TraceID,
		)
		return types.AngleSample{}, false
	}

	proximal, mid, distal, ok := obs.Triple(t.limb)
	if !ok {
		t.skipped++
		t.stats.Skipped++
		return types.AngleSample{}, false
	}

	deg := t.smoother.Apply(geometry.JointAngle(proximal, mid, distal))

	t.session.CurrentAngle = deg
	if deg > t.session.MaxAngle {
		t.session.MaxAngle = deg
	}
	t.seq++
	t.stats.Processed++

	ts := obs.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	sample := types.AngleSample{
		Degrees:   deg,
		Seq:       t.seq,
		SessionID: t.sessionID,
		Timestamp: ts,
		FrameSeq:  obs.FrameSeq,
	}

	if t.publisher != nil {
		t.publisher.Publish(sample)
	}

	return sample, true
}

// Run feeds observations from ch into OnObservation until ctx is cancelled
// or ch is closed.
func (t *Tracker) Run(ctx context.Context, ch <-chan types.JointObservation) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obs, ok := <-ch:
			if !ok {
				return nil
			}
			t.OnObservation(obs)
		}
	}
}

// Snapshot returns the current session projection without mutating anything
func (t *Tracker) Snapshot() SessionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// State returns the lifecycle state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Limb returns the tracked limb
func (t *Tracker) Limb() types.Limb {
	return t.limb
}

// Stats returns lifetime counters
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tracker) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		SessionID:    t.sessionID,
		State:        t.state,
		Limb:         t.limb.Label(),
		CurrentAngle: t.session.CurrentAngle,
		MaxAngle:     t.session.MaxAngle,
		Samples:      t.seq,
		Skipped:      t.skipped,
		StartedAt:    t.startedAt,
		EndedAt:      t.endedAt,
	}
}
