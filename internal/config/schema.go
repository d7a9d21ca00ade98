// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for engram.
package config

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir roots the memory store (memory/, conversations/) and the
	// archive database. Defaults to ~/.engram.
	DataDir string `yaml:"data_dir"`

	// Session names the logical session for this watcher instance.
	Session SessionConfig `yaml:"session"`

	Queue     QueueConfig     `yaml:"queue"`
	Runner    RunnerConfig    `yaml:"runner"`
	Relevance RelevanceConfig `yaml:"relevance"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Maintenance holds cron expressions for background jobs.
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// SessionConfig identifies the session.
type SessionConfig struct {
	// ID is the session identifier. Empty means "default".
	ID string `yaml:"id"`
}

// QueueConfig tunes the request lifecycle.
type QueueConfig struct {
	// Dir is the queue root. Defaults to <data_dir>/queue.
	Dir string `yaml:"dir"`

	// PollInterval is the input scan cadence (default 1s).
	PollInterval Duration `yaml:"poll_interval"`

	// ToolTimeout bounds one tool invocation (default 25s). Keep it
	// below the consumer's own wait budget.
	ToolTimeout Duration `yaml:"tool_timeout"`

	// MaxContextChars bounds the injected context block (default 50000).
	MaxContextChars int `yaml:"max_context_chars"`

	// MaxPromptChars bounds the total enriched prompt (default 80000).
	MaxPromptChars int `yaml:"max_prompt_chars"`

	// StaleThreshold ages out orphaned processing/ files (default 10m).
	StaleThreshold Duration `yaml:"stale_threshold"`
}

// RunnerConfig describes the external tool invocation.
type RunnerConfig struct {
	// Binary is the tool executable. Required.
	Binary string `yaml:"binary"`

	// Args are fixed arguments placed before the prompt.
	Args []string `yaml:"args,omitempty"`

	// ModelFlag passes a per-request model override (e.g. "--model").
	ModelFlag string `yaml:"model_flag,omitempty"`

	// CredentialEnv names the environment variable carrying the tool's
	// credential, resolved at start via ${...} expansion or process env.
	CredentialEnv string `yaml:"credential_env,omitempty"`
}

// RelevanceConfig tunes ranking.
type RelevanceConfig struct {
	// MaxItems bounds how many memory items are injected (default 8).
	MaxItems int `yaml:"max_items"`
}

// GatewayConfig controls the status HTTP server.
type GatewayConfig struct {
	// Addr is the listen address (e.g. "127.0.0.1:7600"). Empty
	// disables the gateway.
	Addr string `yaml:"addr,omitempty"`

	// AuthToken guards the non-health routes. Empty leaves only
	// /health mounted.
	AuthToken string `yaml:"auth_token,omitempty"`
}

// ArchiveConfig controls the SQLite conversation archive.
type ArchiveConfig struct {
	// Enabled turns the archive on.
	Enabled bool `yaml:"enabled"`

	// Path is the database file. Defaults to <data_dir>/archive.db.
	Path string `yaml:"path,omitempty"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector (e.g. "localhost:4318").
	// Empty disables export.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure uses plain HTTP to the collector.
	Insecure bool `yaml:"insecure,omitempty"`
}

// MaintenanceConfig holds cron expressions for background jobs. Empty
// expressions fall back to defaults; "off" disables a job.
type MaintenanceConfig struct {
	// RequeueStale sweeps processing/ (default "*/5 * * * *").
	RequeueStale string `yaml:"requeue_stale,omitempty"`

	// ArchiveMaintenance vacuums the archive (default "0 4 * * *").
	ArchiveMaintenance string `yaml:"archive_maintenance,omitempty"`
}
