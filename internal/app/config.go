package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	// ConfigPath locates the HCL build configuration. Optional when
	// entries are given on the command line.
	ConfigPath string

	// ProjectRoot anchors entry discovery and path resolution.
	ProjectRoot string

	// Mode is the build mode, "development" or "production".
	Mode string

	// Entries are command-line entry specifiers. They form a bundle of
	// their own when no config file names one.
	Entries []string

	// GraphDot, when set, is a file path the final asset graph is
	// exported to in Graphviz format.
	GraphDot string

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" && len(cfg.Entries) == 0 {
		return nil, errors.New("either a config file or at least one entry is required")
	}
	if cfg.WorkerCount <= 0 {
		return nil, errors.New("WorkerCount must be positive")
	}
	return &cfg, nil
}
