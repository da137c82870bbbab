package transform

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/docweave/internal/document"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/freshness"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/scan"
	"git.home.luguber.info/inful/docweave/internal/stylesheet"
)

// DefaultExtension is the output extension used when none is configured.
const DefaultExtension = ".html"

// Options is the run-scoped configuration of a Runner.
type Options struct {
	BaseDir      string // defaults to "."
	DestDir      string // required
	Extension    string // defaults to DefaultExtension
	Style        string // required stylesheet identifier
	ProjectFile  string // optional, relative to BaseDir
	CheckEnabled bool
	Filters      scan.Filters
	// Files, when non-nil, replaces scanning: the given slash-separated paths
	// relative to BaseDir are processed in order.
	Files   []string
	Workers int
}

// Resolver resolves a stylesheet identifier once per run.
type Resolver interface {
	Resolve(id string) (Stylesheet, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(id string) (Stylesheet, error)

func (f ResolverFunc) Resolve(id string) (Stylesheet, error) { return f(id) }

// EngineResolver resolves stylesheets through a stylesheet.Engine.
func EngineResolver(e *stylesheet.Engine) Resolver {
	return ResolverFunc(func(id string) (Stylesheet, error) {
		t, err := e.Resolve(id)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}

// ScanFunc enumerates input files under baseDir.
type ScanFunc func(baseDir string, filters scan.Filters) ([]string, error)

// Runner drives one batch over a base directory.
type Runner struct {
	opts     Options
	resolver Resolver
	parser   document.Parser
	scan     ScanFunc
	builder  *ContextBuilder
	logger   *slog.Logger
	recorder metrics.Recorder
	newRunID func() string
}

// NewRunner returns a Runner with the XML parser, the filesystem scanner and no metrics.
func NewRunner(opts Options, resolver Resolver) *Runner {
	return &Runner{
		opts:     opts,
		resolver: resolver,
		parser:   document.NewXMLParser(),
		scan:     scan.Scan,
		builder:  NewContextBuilder(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		newRunID: uuid.NewString,
	}
}

func (r *Runner) WithLogger(l *slog.Logger) *Runner       { r.logger = l; return r }
func (r *Runner) WithRecorder(m metrics.Recorder) *Runner { r.recorder = m; return r }
func (r *Runner) WithParser(p document.Parser) *Runner    { r.parser = p; return r }
func (r *Runner) WithScanner(s ScanFunc) *Runner          { r.scan = s; return r }

// Options returns the effective options with defaults applied.
func (r *Runner) Options() Options {
	o := r.opts
	if o.BaseDir == "" {
		o.BaseDir = "."
	}
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// Validate checks the settings a run cannot start without.
func (o Options) Validate() error {
	if o.DestDir == "" {
		return errors.ConfigError("destination directory must be set").
			WithContext("setting", "dest_dir").
			Build()
	}
	if o.Style == "" {
		return errors.ConfigError("stylesheet must be set").
			WithContext("setting", "style").
			Build()
	}
	return nil
}

// Run processes every input file. It returns an error only when the run could
// not start (configuration, stylesheet resolution, scanning) or was canceled;
// per-file failures are in the report. On cancellation the report holds the
// outcomes of the files that were dispatched.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	opts := r.Options()
	report := &Report{RunID: r.newRunID(), Started: time.Now()}
	log := r.logger.With(logfields.RunID(report.RunID))

	fail := func(err error) (*Report, error) {
		report.Duration = time.Since(report.Started)
		r.recorder.IncRunOutcome(metrics.RunAborted)
		return report, err
	}

	if err := opts.Validate(); err != nil {
		return fail(err)
	}

	absDest, err := filepath.Abs(opts.DestDir)
	if err != nil {
		absDest = opts.DestDir
	}
	log.Info("Transforming into", logfields.DestDir(absDest), logfields.BaseDir(opts.BaseDir), logfields.Workers(opts.Workers))

	project := r.loadProject(log, opts)

	style, err := r.resolver.Resolve(opts.Style)
	if err != nil {
		category := errors.CategoryRender
		if stderrors.Is(err, stylesheet.ErrNotFound) {
			category = errors.CategoryConfig
		}
		return fail(errors.WrapError(err, category, "resolve stylesheet").
			Fatal().
			WithContext("style", opts.Style).
			Build())
	}
	log.Debug("Stylesheet resolved", logfields.Stylesheet(style.ID()), slog.String("last_modified", style.LastModified().String()))

	files, err := r.inputs(opts, project)
	if err != nil {
		return fail(errors.WrapError(err, errors.CategoryFileSystem, "scan base directory").
			Fatal().
			WithContext("base_dir", opts.BaseDir).
			Build())
	}
	r.recorder.SetFilesDiscovered(len(files))

	proc := &Processor{
		baseDir:      opts.BaseDir,
		destDir:      opts.DestDir,
		extension:    opts.Extension,
		checkEnabled: opts.CheckEnabled,
		style:        style,
		project:      project,
		parser:       r.parser,
		builder:      r.builder,
		logger:       log,
		recorder:     r.recorder,
	}

	report.Outcomes, err = r.dispatch(ctx, proc, files, opts.Workers)
	report.Duration = time.Since(report.Started)
	r.recorder.ObserveRunDuration(report.Duration)

	switch {
	case err != nil:
		r.recorder.IncRunOutcome(metrics.RunCanceled)
		log.Warn("Run canceled", slog.Int("dispatched", len(report.Outcomes)), slog.Int("total", len(files)))
	case report.Failed() > 0:
		r.recorder.IncRunOutcome(metrics.RunPartial)
	default:
		r.recorder.IncRunOutcome(metrics.RunSuccess)
	}

	log.Info("Transformation finished",
		slog.Int("files", len(report.Outcomes)),
		slog.Int("skipped", report.Skipped()),
		slog.Int("succeeded", report.Succeeded()),
		slog.Int("failed", report.Failed()),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000))
	return report, err
}

// loadProject resolves and parses the project file once. A configured but
// missing file is logged and treated as unconfigured. A parse failure is
// kept and reported by every file that needs rendering.
func (r *Runner) loadProject(log *slog.Logger, opts Options) *ProjectData {
	if opts.ProjectFile == "" {
		return nil
	}
	path := filepath.Join(opts.BaseDir, filepath.FromSlash(opts.ProjectFile))
	stamp := freshness.Stat(path)
	if stamp.IsAbsent() {
		log.Warn("Project file is defined, but could not be located", logfields.Project(path))
		return nil
	}
	project := &ProjectData{Path: path, LastModified: stamp}
	project.tree, project.err = document.ParseFile(r.parser, path)
	if project.err != nil {
		log.Error("Failed to parse project file", logfields.Project(path), logfields.Error(project.err))
	}
	return project
}

func (r *Runner) inputs(opts Options, project *ProjectData) ([]string, error) {
	if opts.Files != nil {
		return opts.Files, nil
	}
	filters := opts.Filters
	filters.ExcludePaths = append([]string(nil), filters.ExcludePaths...)
	if project != nil {
		if rel, ok := scan.Within(opts.BaseDir, project.Path); ok {
			filters.ExcludePaths = append(filters.ExcludePaths, rel)
		}
	}
	if rel, ok := scan.Within(opts.BaseDir, opts.DestDir); ok {
		filters.ExcludePaths = append(filters.ExcludePaths, rel)
	}
	return r.scan(opts.BaseDir, filters)
}

// dispatch processes files in order, or with a bounded pool when workers > 1.
// Outcomes keep input order. Cancellation stops dispatching; files already
// handed to a worker run to completion.
func (r *Runner) dispatch(ctx context.Context, proc *Processor, files []string, workers int) ([]Outcome, error) {
	if workers <= 1 {
		outcomes := make([]Outcome, 0, len(files))
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				return outcomes, err
			}
			outcomes = append(outcomes, proc.Process(rel))
		}
		return outcomes, nil
	}

	results := make([]Outcome, len(files))
	var g errgroup.Group
	g.SetLimit(workers)
	dispatched := 0
	var cancelErr error
	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		g.Go(func() error {
			results[i] = proc.Process(rel)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()
	return results[:dispatched], cancelErr
}
