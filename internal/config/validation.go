package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Validate checks the settings a run cannot start without. The first
// problem is returned as a configuration error naming the setting.
func (c *Config) Validate() error {
	v := &validator{cfg: c}
	for _, check := range []func() error{v.required, v.extension, v.patterns, v.workers} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	cfg *Config
}

func (v *validator) required() error {
	if v.cfg.DestDir == "" {
		return missing("dest_dir", "destination directory must be set")
	}
	if v.cfg.Style == "" {
		return missing("style", "stylesheet must be set")
	}
	return nil
}

func (v *validator) extension() error {
	ext := v.cfg.Extension
	if ext != "" && ext[0] != '.' {
		return errors.ValidationError(fmt.Sprintf("extension %q must start with a dot", ext)).
			WithContext("setting", "extension").
			Build()
	}
	return nil
}

func (v *validator) patterns() error {
	for key, list := range map[string][]string{"includes": v.cfg.Includes, "excludes": v.cfg.Excludes} {
		for _, p := range list {
			if !doublestar.ValidatePattern(p) {
				return errors.ValidationError(fmt.Sprintf("invalid pattern %q", p)).
					WithContext("setting", key).
					Build()
			}
		}
	}
	return nil
}

func (v *validator) workers() error {
	if v.cfg.Workers < 1 {
		return errors.ValidationError("workers must be at least 1").
			WithContext("setting", "workers").
			Build()
	}
	return nil
}

func missing(setting, msg string) error {
	return errors.ConfigError(msg).WithContext("setting", setting).Build()
}
