package app

import (
	"errors"
	"fmt"
)

// Command selects what Run does with the loaded models.
type Command string

const (
	CommandBuild Command = "build"
	CommandCheck Command = "check"
	CommandEval  Command = "eval"
	CommandWatch Command = "watch"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command Command
	// ModelPaths are .iscad files, directories or doublestar patterns.
	ModelPaths []string
	// WorkbenchPath is the iscad.hcl file or directory. A missing path
	// leaves the defaults in place.
	WorkbenchPath string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int

	OutputDir string
	DryRun    bool
	// EvalSymbols are the names printed by the eval command.
	EvalSymbols []string
	JSON        bool
}

func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandBuild, CommandCheck, CommandWatch:
	case CommandEval:
		if len(cfg.EvalSymbols) == 0 {
			return nil, errors.New("eval needs at least one symbol name")
		}
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if len(cfg.ModelPaths) == 0 {
		return nil, errors.New("ModelPaths is a required configuration field and cannot be empty")
	}
	if _, ok := parseLevel(cfg.LogLevel); !ok {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
