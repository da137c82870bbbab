// Package config loads the run configuration from YAML, the environment and
// .env files, applies defaults and validates the settings a run needs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/foundation/normalization"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "docweave.yaml"

// Config is the on-disk run configuration.
type Config struct {
	Version string `yaml:"version,omitempty"`

	BaseDir      string   `yaml:"base_dir"`
	DestDir      string   `yaml:"dest_dir"`
	Extension    string   `yaml:"extension"`
	Style        string   `yaml:"style"`
	ProjectFile  string   `yaml:"project_file,omitempty"`
	TemplatePath []string `yaml:"template_path,omitempty"`

	// LastModifiedCheck disables the freshness check when set to false, no
	// or off (any case). Anything else, including empty, leaves it on.
	LastModifiedCheck string `yaml:"last_modified_check,omitempty"`

	Includes        []string `yaml:"includes,omitempty"`
	Excludes        []string `yaml:"excludes,omitempty"`
	DefaultExcludes bool     `yaml:"default_excludes"`

	Workers     int    `yaml:"workers"` // negative means one per CPU
	FailOnError bool   `yaml:"fail_on_error"`
	HistoryDB   string `yaml:"history_db,omitempty"`
	MetricsFile string `yaml:"metrics_file,omitempty"`

	defaultExcludesSpecified bool
	failOnErrorSpecified     bool
}

// UnmarshalYAML records which boolean settings were given explicitly so
// defaults only fill omitted ones.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "default_excludes":
			c.defaultExcludesSpecified = true
		case "fail_on_error":
			c.failOnErrorSpecified = true
		}
	}
	return nil
}

// Override adjusts a loaded configuration before defaults are applied.
type Override func(cfg *Config)

// Load reads configPath, expands ${VAR} references, applies overrides, the
// environment and defaults. A missing file yields the defaults when
// allowMissing is set, so flags alone can drive a run. Validation is left to
// the caller.
func Load(configPath string, allowMissing bool, overrides ...Override) (*Config, error) {
	if _, err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(configPath) // #nosec G304 -- user-selected config path
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case os.IsNotExist(err) && allowMissing:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if cfg.Version != "" && cfg.Version != "1" {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1)", cfg.Version)
	}
	for _, o := range overrides {
		o(&cfg)
	}
	ApplyEnv(&cfg)
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Version:           "1",
		BaseDir:           "xdocs",
		DestDir:           "site",
		Extension:         DefaultExtension,
		Style:             "site.tmpl",
		ProjectFile:       "stylesheets/project.xml",
		TemplatePath:      []string{"xdocs/stylesheets"},
		LastModifiedCheck: "true",
		Includes:          []string{"**/*.xml"},
		Excludes:          []string{"stylesheets/**"},
		DefaultExcludes:   true,
		Workers:           1,
		FailOnError:       true,
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CheckEnabled interprets LastModifiedCheck.
func (c *Config) CheckEnabled() bool {
	return ParseLastModifiedCheck(c.LastModifiedCheck)
}

var lastModifiedCheck = normalization.NewNormalizer(map[string]bool{
	"false": false,
	"no":    false,
	"off":   false,
}, true)

// ParseLastModifiedCheck reports whether the freshness check stays enabled for
// the given toggle value. Only false, no and off (case-insensitive) disable it.
func ParseLastModifiedCheck(v string) bool {
	return lastModifiedCheck.Normalize(v)
}
