// Package feedback delivers joint angle samples to presentation consumers.
//
// The Presenter is the presentation context: it is the only goroutine that
// calls into sinks, so a sink never sees two samples concurrently and never
// needs its own locking for UI state. The tracker publishes onto the anglebus
// and never waits for a sink.
package feedback

import "github.com/jitesh-kr/KineticCode/internal/types"

// Sink consumes angle samples on the presentation goroutine
type Sink interface {
	OnAngle(sample types.AngleSample)
}

// ReportSink is a Sink that also wants the end-of-session summary
type ReportSink interface {
	Sink
	OnReport(report Report)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(sample types.AngleSample)

func (f SinkFunc) OnAngle(sample types.AngleSample) { f(sample) }
