package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docweave.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Transform TransformCmd `cmd:"" default:"withargs" help:"Transform stale documents into the destination directory"`
	Watch     WatchCmd     `cmd:"" help:"Transform, then re-run whenever sources, stylesheets or the project file change"`
	History   HistoryCmd   `cmd:"" help:"List recorded runs"`
	Init      InitCmd      `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// loadConfig loads the configuration file named by root. The default file
// may be absent so flags alone can describe a run.
func loadConfig(root *CLI, overrides ...config.Override) (*config.Config, error) {
	allowMissing := root.Config == config.DefaultPath
	cfg, err := config.Load(root.Config, allowMissing, overrides...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "load configuration").
			WithContext("path", root.Config).
			Build()
	}
	return cfg, nil
}

// RunFlags are the settings shared by transform and watch. Set flags win
// over the configuration file.
type RunFlags struct {
	BaseDir           string   `name:"base-dir" short:"b" help:"Directory holding the source documents (default .)"`
	DestDir           string   `name:"dest-dir" short:"d" help:"Destination directory for rendered output"`
	Style             string   `short:"s" help:"Stylesheet name, resolved against the template path"`
	Extension         string   `help:"Output file extension (default .html)"`
	ProjectFile       string   `name:"project" short:"p" help:"Shared project document, relative to the base directory"`
	TemplatePath      []string `name:"template-path" short:"t" help:"Directories searched for the stylesheet (default: base directory)"`
	LastModifiedCheck string   `name:"last-modified-check" help:"Set to false, no or off to regenerate every file"`
	Force             bool     `short:"f" help:"Regenerate every file regardless of timestamps"`
	Include           []string `help:"Glob of input files to include (repeatable)"`
	Exclude           []string `help:"Glob of input files to exclude (repeatable)"`
	Workers           int      `short:"w" help:"Files processed in parallel (negative: one per CPU)"`
	HistoryDB         string   `name:"history-db" help:"SQLite file recording run history"`
	MetricsFile       string   `name:"metrics-file" help:"Write Prometheus metrics in text format to this file after each run"`
}

func (f *RunFlags) override(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.BaseDir, f.BaseDir)
	set(&cfg.DestDir, f.DestDir)
	set(&cfg.Style, f.Style)
	set(&cfg.Extension, f.Extension)
	set(&cfg.ProjectFile, f.ProjectFile)
	set(&cfg.LastModifiedCheck, f.LastModifiedCheck)
	set(&cfg.HistoryDB, f.HistoryDB)
	set(&cfg.MetricsFile, f.MetricsFile)
	if f.Force {
		cfg.LastModifiedCheck = "false"
	}
	if len(f.TemplatePath) > 0 {
		cfg.TemplatePath = f.TemplatePath
	}
	if len(f.Include) > 0 {
		cfg.Includes = f.Include
	}
	if len(f.Exclude) > 0 {
		cfg.Excludes = append(cfg.Excludes, f.Exclude...)
	}
	if f.Workers != 0 {
		cfg.Workers = f.Workers
	}
}

// load resolves and validates the run configuration.
func (f *RunFlags) load(root *CLI) (*config.Config, error) {
	cfg, err := loadConfig(root, f.override)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
