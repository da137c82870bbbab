package transform

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/etree"

	"git.home.luguber.info/inful/docweave/internal/document"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/freshness"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/pathmap"
)

// Stylesheet is a resolved template.
type Stylesheet interface {
	ID() string
	LastModified() freshness.Stamp
	Render(w io.Writer, bindings map[string]any) error
}

// ProjectData is the optional shared project document. A nil *ProjectData
// means no project file is in effect for the run.
type ProjectData struct {
	Path         string
	LastModified freshness.Stamp
	tree         *document.Tree
	err          error
}

// Root returns the project's root element, or nil.
func (p *ProjectData) Root() *etree.Element {
	if p == nil || p.tree == nil {
		return nil
	}
	return p.tree.Root()
}

func (p *ProjectData) stamp() freshness.Stamp {
	if p == nil {
		return freshness.Absent()
	}
	return p.LastModified
}

// Processor transforms single input files. It holds only read-only run state
// and may be shared by concurrent workers.
type Processor struct {
	baseDir      string
	destDir      string
	extension    string
	checkEnabled bool
	style        Stylesheet
	project      *ProjectData
	parser       document.Parser
	builder      *ContextBuilder
	logger       *slog.Logger
	recorder     metrics.Recorder
}

func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}

// Process runs the freshness check and, when stale, the parse, render and
// write steps for rel. It never returns an error: failures are reported
// in the Outcome and the output file is removed.
func (p *Processor) Process(rel string) Outcome {
	start := time.Now()
	out := p.process(rel)
	out.Duration = time.Since(start)

	if p.recorder != nil {
		p.recorder.ObserveFileDuration(out.Status.label(), out.Duration)
		p.recorder.IncFileOutcome(out.Status.label())
	}
	return out
}

func (p *Processor) process(rel string) Outcome {
	input := filepath.Join(p.baseDir, filepath.FromSlash(rel))
	output := pathmap.OutputFile(p.destDir, rel, p.extension)
	outcome := Outcome{Input: rel, Output: output}

	source := freshness.Stat(input)
	if source.IsAbsent() {
		return p.fail(outcome, errors.FileSystemError("input document not found").
			WithContext("input", rel).
			WithContext("path", input).
			Build())
	}

	outcome.Reason = freshness.Evaluate(freshness.Inputs{
		Source:     source,
		Output:     freshness.Stat(output),
		Stylesheet: p.style.LastModified(),
		Project:    p.project.stamp(),
	}, p.checkEnabled)
	if outcome.Reason == freshness.ReasonUpToDate {
		outcome.Status = StatusSkipped
		p.log().Debug("Up to date", logfields.Input(rel), logfields.Output(output))
		return outcome
	}

	p.log().Info("Transforming",
		logfields.Input(rel),
		logfields.Output(output),
		slog.String("reason", string(outcome.Reason)))

	if err := p.regenerate(rel, input, output); err != nil {
		return p.fail(outcome, err)
	}

	outcome.Status = StatusSuccess
	return outcome
}

// fail removes any output for the file and records err on the outcome.
func (p *Processor) fail(outcome Outcome, err error) Outcome {
	p.discard(outcome.Output)
	outcome.Status = StatusFailed
	outcome.Err = err
	p.log().Error("Failed to process",
		logfields.Input(outcome.Input),
		logfields.Output(outcome.Output),
		logfields.Error(err))
	return outcome
}

func (p *Processor) regenerate(rel, input, output string) error {
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "unable to create directory").
			WithContext("path", dir).
			WithContext("input", rel).
			Build()
	}

	tree, err := document.ParseFile(p.parser, input)
	if err != nil {
		return errors.WrapError(err, errors.CategoryParse, "parse input document").
			WithContext("input", rel).
			Build()
	}
	if p.project != nil && p.project.err != nil {
		return errors.WrapError(p.project.err, errors.CategoryParse, "parse project document").
			WithContext("input", rel).
			WithContext("project", p.project.Path).
			Build()
	}

	bindings := p.builder.Build(tree.Root(), p.project.Root(), pathmap.RelativePrefix(rel))
	return p.write(rel, output, bindings)
}

// write renders into a temporary sibling of output and renames it into place.
// The temporary file is flushed, closed and, on failure, removed on every path.
func (p *Processor) write(rel, output string, bindings RenderContext) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "open output").
			WithContext("input", rel).
			WithContext("output", output).
			Build()
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	renderErr := p.style.Render(w, bindings)
	flushErr := w.Flush()
	closeErr := tmp.Close()

	switch {
	case renderErr != nil:
		return errors.WrapError(renderErr, errors.CategoryRender, "render stylesheet").
			WithContext("input", rel).
			WithContext("stylesheet", p.style.ID()).
			Build()
	case flushErr != nil:
		return errors.WrapError(flushErr, errors.CategoryRender, "write output").
			WithContext("input", rel).
			WithContext("output", output).
			Build()
	case closeErr != nil:
		return errors.WrapError(closeErr, errors.CategoryRender, "close output").
			WithContext("input", rel).
			WithContext("output", output).
			Build()
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "set output permissions").
			WithContext("output", output).
			Build()
	}
	if err := os.Rename(tmpName, output); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "move output into place").
			WithContext("output", output).
			Build()
	}
	return nil
}

// discard removes a stale or partial output so a failed file never looks fresh.
func (p *Processor) discard(output string) {
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		p.log().Warn("Failed to remove output after failure", logfields.Output(output), logfields.Error(err))
	}
}
