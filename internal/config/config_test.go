package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/engramd/engram/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engram.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: "1"
data_dir: /var/lib/engram
session:
  id: desk-1
queue:
  poll_interval: 2s
  tool_timeout: 20s
  max_context_chars: 40000
  max_prompt_chars: 70000
runner:
  binary: /usr/local/bin/llm-tool
  args: ["--print"]
  model_flag: "--model"
gateway:
  addr: 127.0.0.1:7600
  auth_token: sekrit
archive:
  enabled: true
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Session.ID != "desk-1" {
		t.Errorf("session.id = %q", cfg.Session.ID)
	}
	if cfg.Queue.PollInterval.Std() != 2*time.Second {
		t.Errorf("poll_interval = %v", cfg.Queue.PollInterval)
	}
	if cfg.Runner.Binary != "/usr/local/bin/llm-tool" {
		t.Errorf("runner.binary = %q", cfg.Runner.Binary)
	}
	if !cfg.Archive.Enabled {
		t.Error("archive.enabled should be true")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ENGRAM_TEST_BINARY", "/opt/tool")

	path := writeConfig(t, `
version: "1"
runner:
  binary: ${ENGRAM_TEST_BINARY}
  credential_env: ${ENGRAM_TEST_MISSING:-API_KEY}
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runner.Binary != "/opt/tool" {
		t.Errorf("binary = %q, want expanded env value", cfg.Runner.Binary)
	}
	if cfg.Runner.CredentialEnv != "API_KEY" {
		t.Errorf("credential_env = %q, want default applied", cfg.Runner.CredentialEnv)
	}
}

func TestLoad_UnresolvedVariableFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: "1"
runner:
  binary: ${ENGRAM_DEFINITELY_UNSET_VAR}
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unresolved variable")
	}
}

func TestLoad_ReportsEveryUnresolvedVariable(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: "1"
data_dir: ${ENGRAM_UNSET_ONE}
runner:
  binary: ${ENGRAM_UNSET_TWO}
`)

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variables")
	}
	for _, name := range []string{"ENGRAM_UNSET_ONE", "ENGRAM_UNSET_TWO"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Version: "2",
		Queue: config.QueueConfig{
			MaxContextChars: 1000,
			MaxPromptChars:  500,
		},
	}

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"unsupported version", "runner.binary", "max_context_chars"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestValidate_MinimalValid(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Version: "1",
		Runner:  config.RunnerConfig{Binary: "llm-tool"},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("minimal config should validate: %v", err)
	}
}
