package config

import "runtime"

// Defaults for omitted settings.
const (
	DefaultBaseDir   = "."
	DefaultExtension = ".html"
	DefaultInclude   = "**/*.xml"
)

// DefaultApplier applies defaults for one group of settings.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// PathDefaultApplier fills directory and naming defaults.
type PathDefaultApplier struct{}

func (PathDefaultApplier) Domain() string { return "paths" }

func (PathDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.BaseDir == "" {
		cfg.BaseDir = DefaultBaseDir
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	// Explicit template_path always wins; otherwise stylesheets resolve
	// against the base directory.
	if len(cfg.TemplatePath) == 0 {
		cfg.TemplatePath = []string{cfg.BaseDir}
	}
	return nil
}

// FilterDefaultApplier fills scan filter defaults.
type FilterDefaultApplier struct{}

func (FilterDefaultApplier) Domain() string { return "filters" }

func (FilterDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Includes) == 0 {
		cfg.Includes = []string{DefaultInclude}
	}
	if !cfg.defaultExcludesSpecified {
		cfg.DefaultExcludes = true
	}
	return nil
}

// RunDefaultApplier fills run behaviour defaults.
type RunDefaultApplier struct{}

func (RunDefaultApplier) Domain() string { return "run" }

func (RunDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Workers < 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if !cfg.failOnErrorSpecified {
		cfg.FailOnError = true
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{PathDefaultApplier{}, FilterDefaultApplier{}, RunDefaultApplier{}}
}

// ApplyDefaults runs every applier in order.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
