package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/ledger"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/scan"
	"git.home.luguber.info/inful/docweave/internal/stylesheet"
	"git.home.luguber.info/inful/docweave/internal/transform"
)

// session owns what outlives a single run: metrics and run history.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	registry *prom.Registry
	recorder metrics.Recorder
	history  ledger.Store
}

func newSession(cfg *config.Config, logger *slog.Logger, out io.Writer) (*session, error) {
	s := &session{cfg: cfg, logger: logger, out: out, recorder: metrics.NoopRecorder{}}
	if cfg.MetricsFile != "" {
		s.registry = prom.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}
	if cfg.HistoryDB != "" {
		store, err := ledger.NewSQLiteStore(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		s.history = store
	}
	return s, nil
}

func (s *session) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

// runner builds a Runner for one run. force disables the freshness check.
func (s *session) runner(files []string, force bool) *transform.Runner {
	opts := transform.Options{
		BaseDir:      s.cfg.BaseDir,
		DestDir:      s.cfg.DestDir,
		Extension:    s.cfg.Extension,
		Style:        s.cfg.Style,
		ProjectFile:  s.cfg.ProjectFile,
		CheckEnabled: s.cfg.CheckEnabled() && !force,
		Filters: scan.Filters{
			Includes:           s.cfg.Includes,
			Excludes:           s.cfg.Excludes,
			UseDefaultExcludes: s.cfg.DefaultExcludes,
		},
		Files:   files,
		Workers: s.cfg.Workers,
	}
	engine := stylesheet.NewEngine(s.cfg.TemplatePath...)
	s.logger.Debug("Stylesheet search path", slog.Any("template_path", engine.SearchPath()))
	return transform.NewRunner(opts, transform.EngineResolver(engine)).
		WithLogger(s.logger).
		WithRecorder(s.recorder)
}

// run performs one transformation and its bookkeeping. With fail_on_error
// set, a run with failed files returns the report's build error.
func (s *session) run(ctx context.Context, files []string, force bool) (*transform.Report, error) {
	report, err := s.runner(files, force).Run(ctx)
	if report != nil && len(report.Outcomes) > 0 {
		s.record(report)
	}
	s.writeMetrics()
	if err != nil {
		if ctx.Err() != nil {
			return report, errors.WrapError(err, errors.CategoryRuntime, "run interrupted").Build()
		}
		return report, err
	}

	fmt.Fprintf(s.out, "Transformed %d files: %d succeeded, %d skipped, %d failed\n",
		len(report.Outcomes), report.Succeeded(), report.Skipped(), report.Failed())
	if s.cfg.FailOnError {
		return report, report.Err()
	}
	return report, nil
}

func (s *session) record(report *transform.Report) {
	if s.history == nil {
		return
	}
	run, outcomes := ledger.FromReport(report)
	if err := s.history.Record(context.Background(), run, outcomes); err != nil {
		s.logger.Warn("Failed to record run history", logfields.RunID(report.RunID), logfields.Error(err))
	}
}

func (s *session) writeMetrics() {
	if s.registry == nil {
		return
	}
	if err := metrics.WriteTextfile(s.cfg.MetricsFile, s.registry); err != nil {
		s.logger.Warn("Failed to write metrics file", logfields.Path(s.cfg.MetricsFile), logfields.Error(err))
	}
}
