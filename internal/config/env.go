package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables consulted after the file is loaded.
const (
	EnvForce = "DOCWEAVE_FORCE" // truthy value disables the freshness check
)

var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env and .env.local from the working directory without
// overriding variables already present in the process environment. It
// returns the files that were loaded.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

// ApplyEnv applies environment overrides to cfg.
func ApplyEnv(cfg *Config) {
	if force, err := strconv.ParseBool(os.Getenv(EnvForce)); err == nil && force {
		cfg.LastModifiedCheck = "false"
	}
}
