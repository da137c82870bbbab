// Package ledger keeps a history of transformation runs and their per-file
// outcomes in SQLite.
package ledger

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docweave/internal/transform"
)

// Run is one recorded transformation run.
type Run struct {
	ID        string
	Started   time.Time
	Duration  time.Duration
	Skipped   int
	Succeeded int
	Failed    int
}

// Total returns the number of files the run handled.
func (r Run) Total() int { return r.Skipped + r.Succeeded + r.Failed }

// FileOutcome is one recorded per-file result.
type FileOutcome struct {
	Input    string
	Output   string
	Status   string
	Reason   string
	Error    string
	Duration time.Duration
}

// Store persists run history.
type Store interface {
	// Record stores a run summary and its outcomes.
	Record(ctx context.Context, run Run, outcomes []FileOutcome) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Outcomes returns the outcomes of one run in dispatch order.
	Outcomes(ctx context.Context, runID string) ([]FileOutcome, error)

	// Close releases the store.
	Close() error
}

// FromReport converts a run report into ledger records.
func FromReport(r *transform.Report) (Run, []FileOutcome) {
	run := Run{
		ID:        r.RunID,
		Started:   r.Started,
		Duration:  r.Duration,
		Skipped:   r.Skipped(),
		Succeeded: r.Succeeded(),
		Failed:    r.Failed(),
	}
	outcomes := make([]FileOutcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		fo := FileOutcome{
			Input:    o.Input,
			Output:   o.Output,
			Status:   o.Status.String(),
			Reason:   string(o.Reason),
			Duration: o.Duration,
		}
		if o.Err != nil {
			fo.Error = o.Err.Error()
		}
		outcomes = append(outcomes, fo)
	}
	return run, outcomes
}
