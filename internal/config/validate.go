package config

import (
	"errors"
	"fmt"
)

// Validate checks the structural validity of a Config: the version
// field, the runner binary, and the internal consistency of the size
// and timing knobs. All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Runner.Binary == "" {
		errs = append(errs, errors.New("config: runner.binary is required"))
	}

	if cfg.Queue.PollInterval < 0 {
		errs = append(errs, errors.New("config: queue.poll_interval must not be negative"))
	}
	if cfg.Queue.ToolTimeout < 0 {
		errs = append(errs, errors.New("config: queue.tool_timeout must not be negative"))
	}
	if cfg.Queue.MaxContextChars < 0 || cfg.Queue.MaxPromptChars < 0 {
		errs = append(errs, errors.New("config: queue size guards must not be negative"))
	}
	if cfg.Queue.MaxContextChars > 0 && cfg.Queue.MaxPromptChars > 0 &&
		cfg.Queue.MaxContextChars >= cfg.Queue.MaxPromptChars {
		errs = append(errs, errors.New("config: queue.max_context_chars must be below queue.max_prompt_chars"))
	}

	if cfg.Relevance.MaxItems < 0 {
		errs = append(errs, errors.New("config: relevance.max_items must not be negative"))
	}

	if cfg.Archive.Enabled && cfg.Archive.Path == "" && cfg.DataDir == "" {
		errs = append(errs, errors.New("config: archive.path or data_dir required when the archive is enabled"))
	}

	return errors.Join(errs...)
}
