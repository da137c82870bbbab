package metrics

import "time"

// OutcomeLabel enumerates per-file outcome categories for counters.
type OutcomeLabel string

const (
	OutcomeSkipped OutcomeLabel = "skipped"
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// RunOutcomeLabel enumerates whole-run results.
type RunOutcomeLabel string

const (
	RunSuccess  RunOutcomeLabel = "success"
	RunPartial  RunOutcomeLabel = "partial" // at least one file failed
	RunAborted  RunOutcomeLabel = "aborted" // configuration error or scan failure
	RunCanceled RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for transformation runs.
type Recorder interface {
	ObserveFileDuration(outcome OutcomeLabel, d time.Duration)
	IncFileOutcome(outcome OutcomeLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
	SetFilesDiscovered(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFileDuration(OutcomeLabel, time.Duration) {}
func (NoopRecorder) IncFileOutcome(OutcomeLabel)                     {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)                   {}
func (NoopRecorder) SetFilesDiscovered(int)                          {}
