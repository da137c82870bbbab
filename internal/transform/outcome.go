package transform

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/freshness"
	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// Status classifies the result of processing one input file.
type Status int

const (
	StatusSkipped Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) label() metrics.OutcomeLabel {
	switch s {
	case StatusSkipped:
		return metrics.OutcomeSkipped
	case StatusSuccess:
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeFailed
	}
}

// Outcome is the per-file result. Err is set only for StatusFailed.
type Outcome struct {
	Input    string // slash-separated, relative to the base directory
	Output   string // destination file path
	Status   Status
	Reason   freshness.Reason
	Err      error
	Duration time.Duration
}

// Report aggregates the outcomes of one run in dispatch order.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Count returns the number of outcomes with status s.
func (r *Report) Count(s Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Skipped() int   { return r.Count(StatusSkipped) }
func (r *Report) Succeeded() int { return r.Count(StatusSuccess) }
func (r *Report) Failed() int    { return r.Count(StatusFailed) }

// Err returns a build error listing how many files failed, or nil.
func (r *Report) Err() error {
	failed := r.Failed()
	if failed == 0 {
		return nil
	}
	first := ""
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			first = o.Input
			break
		}
	}
	return errors.BuildError(fmt.Sprintf("%d of %d files failed", failed, len(r.Outcomes))).
		WithContext("run_id", r.RunID).
		WithContext("first_failure", first).
		Build()
}
