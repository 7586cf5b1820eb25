// Package config defines the build configuration model and its HCL loader.
package config

import (
	"fmt"

	"github.com/AceTheCreator/parcel/internal/model"
)

// Bundle names one logical build with its entry specifiers.
type Bundle struct {
	Name    string
	Entries []string
}

// Config is the loaded build configuration.
type Config struct {
	// Workers bounds build concurrency. Zero selects the default.
	Workers int

	// Exclude holds glob patterns for dependency specifiers that are
	// gated out of the walk.
	Exclude []string

	// Conditions orders package export condition matching.
	Conditions []string

	// Bundles are the configured builds, in file order.
	Bundles []Bundle

	// Targets apply to every entry. Empty means the default target.
	Targets []model.Target

	// Defines are compile-time substitutions for script sources.
	Defines map[string]string

	// Version fingerprints the configuration content. Two configs with
	// equal versions produce equal build cache keys.
	Version string
}

// Default returns the configuration used when no config file is given:
// a single bundle over the provided entries.
func Default(entries []string) *Config {
	cfg := &Config{
		Bundles: []Bundle{{Name: "default", Entries: entries}},
	}
	cfg.Version = cfg.fingerprint()
	return cfg
}

// Validate checks structural invariants after loading.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Bundles))
	for _, b := range c.Bundles {
		if b.Name == "" {
			return fmt.Errorf("config: bundle with empty name")
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("config: duplicate bundle %q", b.Name)
		}
		seen[b.Name] = struct{}{}
		if len(b.Entries) == 0 {
			return fmt.Errorf("config: bundle %q has no entries", b.Name)
		}
	}
	return nil
}

// fingerprint hashes every field that affects build output.
func (c *Config) fingerprint() string {
	return model.HashOf(c.Workers, c.Exclude, c.Conditions, c.Bundles, c.Targets, c.Defines)
}
