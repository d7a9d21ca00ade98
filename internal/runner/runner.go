// Package runner invokes the external command-line LLM tool. The tool is
// a black box: it receives a prompt and a working directory and yields
// text output, a success flag, and an error message. Binary discovery
// and credential resolution live behind the configuration, not here.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrNoBinary indicates the runner was built without a tool binary.
var ErrNoBinary = errors.New("runner: no tool binary configured")

// Request is one tool invocation.
type Request struct {
	Prompt           string
	WorkingDirectory string

	// Model optionally overrides the tool's default model.
	Model string
}

// Result is the collaborator contract: output text, a success flag, and
// a human-readable error when Success is false.
type Result struct {
	Success bool
	Output  string
	Error   string
}

// Runner executes prompts against the external tool. Implementations
// must honor ctx cancellation and deadlines; the queue processor relies
// on the deadline as its only abort mechanism.
type Runner interface {
	Run(ctx context.Context, req Request) Result
}

// Config describes how to invoke the tool binary.
type Config struct {
	// Binary is the tool executable (path or name on PATH).
	Binary string

	// Args are fixed arguments placed before the prompt.
	Args []string

	// ModelFlag is the flag used to pass Request.Model (e.g. "--model").
	// Ignored when empty or when the request carries no model.
	ModelFlag string

	// Env is extra environment entries ("KEY=value") appended to the
	// inherited environment. The credential variable goes here.
	Env []string
}

// CLI runs the tool as a subprocess. The context deadline is the
// timeout: when it fires, the process group is killed and the result
// reports a timeout. No manual timers are involved.
type CLI struct {
	config Config
	logger *slog.Logger
}

// NewCLI creates a subprocess-backed runner.
func NewCLI(cfg Config, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{config: cfg, logger: logger}
}

var _ Runner = (*CLI)(nil)

// Run executes the tool once. Non-zero exit, empty stdout, and deadline
// expiry all surface as Success=false with a descriptive Error; Run
// itself never panics and never blocks past the ctx deadline.
func (c *CLI) Run(ctx context.Context, req Request) Result {
	if c.config.Binary == "" {
		return Result{Error: ErrNoBinary.Error()}
	}

	args := append([]string(nil), c.config.Args...)
	if req.Model != "" && c.config.ModelFlag != "" {
		args = append(args, c.config.ModelFlag, req.Model)
	}

	cmd := exec.CommandContext(ctx, c.config.Binary, args...)
	cmd.Dir = req.WorkingDirectory
	cmd.Env = append(os.Environ(), c.config.Env...)
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		c.logger.Warn("runner: tool timed out", "binary", c.config.Binary)
		return Result{Error: fmt.Sprintf("tool execution timed out: %v", ctx.Err())}
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Result{Error: fmt.Sprintf("tool execution failed: %s", msg)}
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return Result{Error: "tool produced no output"}
	}

	return Result{Success: true, Output: unwrapOutput(output)}
}

// unwrapOutput opportunistically unwraps JSON-enveloped tool output
// ({"result": ...} or {"content": ...}). Anything that does not parse
// cleanly is returned as-is — a parse failure is not an error.
func unwrapOutput(output string) string {
	if !strings.HasPrefix(output, "{") {
		return output
	}

	var envelope struct {
		Result  string `json:"result"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(output), &envelope); err != nil {
		return output
	}
	if envelope.Result != "" {
		return envelope.Result
	}
	if envelope.Content != "" {
		return envelope.Content
	}
	return output
}
