// Package freshness decides whether an output file must be regenerated.
//
// A generated file depends on three inputs: its source document, the shared
// stylesheet and the optional shared project document. The output is stale
// when any of them is newer than the output, or when the output does not exist.
package freshness

import (
	"os"
	"time"
)

// Stamp is a modification time that may be absent. An absent stamp orders
// before every present one.
type Stamp struct {
	t  time.Time
	ok bool
}

// At returns a present stamp.
func At(t time.Time) Stamp { return Stamp{t: t, ok: true} }

// Absent returns the stamp of something that does not exist.
func Absent() Stamp { return Stamp{} }

// Stat reads the modification time of path. Any stat failure yields Absent.
func Stat(path string) Stamp {
	if path == "" {
		return Absent()
	}
	info, err := os.Stat(path)
	if err != nil {
		return Absent()
	}
	return At(info.ModTime())
}

func (s Stamp) IsAbsent() bool { return !s.ok }

// After reports whether s is strictly newer than o.
func (s Stamp) After(o Stamp) bool {
	switch {
	case !s.ok:
		return false
	case !o.ok:
		return true
	default:
		return s.t.After(o.t)
	}
}

func (s Stamp) String() string {
	if !s.ok {
		return "absent"
	}
	return s.t.Format(time.RFC3339Nano)
}

// Reason explains a freshness decision.
type Reason string

const (
	ReasonUpToDate      Reason = "up-to-date"
	ReasonForced        Reason = "forced"
	ReasonOutputMissing Reason = "output-missing"
	ReasonSourceNewer   Reason = "source-newer"
	ReasonStyleNewer    Reason = "stylesheet-newer"
	ReasonProjectNewer  Reason = "project-newer"
)

// Inputs groups the timestamps consulted for one file.
type Inputs struct {
	Source     Stamp
	Output     Stamp
	Stylesheet Stamp
	Project    Stamp
}

// Evaluate returns why the output must be regenerated, or ReasonUpToDate.
func Evaluate(in Inputs, checkEnabled bool) Reason {
	switch {
	case !checkEnabled:
		return ReasonForced
	case in.Output.IsAbsent():
		return ReasonOutputMissing
	case in.Source.After(in.Output):
		return ReasonSourceNewer
	case in.Stylesheet.After(in.Output):
		return ReasonStyleNewer
	case in.Project.After(in.Output):
		return ReasonProjectNewer
	default:
		return ReasonUpToDate
	}
}

// NeedsRegeneration reports whether the output is stale.
func NeedsRegeneration(source, output, stylesheet, project Stamp, checkEnabled bool) bool {
	return Evaluate(Inputs{Source: source, Output: output, Stylesheet: stylesheet, Project: project}, checkEnabled) != ReasonUpToDate
}
