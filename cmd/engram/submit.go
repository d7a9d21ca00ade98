package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/engramd/engram/internal/config"
	"github.com/engramd/engram/internal/queue"
	"github.com/engramd/engram/pkg/app"
)

const submitPollInterval = 200 * time.Millisecond

// submitCmd drops a request file into the queue and optionally waits
// for the matching response.
func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <prompt...>",
		Short: "Submit a request to a running daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			sessionID, _ := cmd.Flags().GetString("session")
			model, _ := cmd.Flags().GetString("model")
			workDir, _ := cmd.Flags().GetString("dir")
			wait, _ := cmd.Flags().GetBool("wait")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			queueDir, err := resolveQueueDir(cfgPath)
			if err != nil {
				return err
			}

			req := queue.Request{
				SessionID: sessionID,
				Prompt:    strings.Join(args, " "),
				Options: queue.RequestOptions{
					WorkingDirectory: workDir,
					Model:            model,
				},
			}
			data, err := json.MarshalIndent(req, "", "  ")
			if err != nil {
				return err
			}

			name := uuid.New().String() + ".json"
			inputPath := filepath.Join(queueDir, "input", name)

			// Write-then-rename so the watcher never sees a partial file.
			tmp := inputPath + ".tmp"
			if err := os.WriteFile(tmp, data, 0o644); err != nil {
				return err
			}
			if err := os.Rename(tmp, inputPath); err != nil {
				return err
			}

			if !wait {
				fmt.Printf("Submitted %s\n", name)
				return nil
			}

			resp, err := awaitResponse(queueDir, name, timeout)
			if err != nil {
				return err
			}
			if !resp.Success {
				if resp.Error != nil {
					return fmt.Errorf("request failed: %s", *resp.Error)
				}
				return fmt.Errorf("request failed")
			}
			fmt.Println(resp.Content)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().StringP("session", "s", "default", "Session id")
	cmd.Flags().String("model", "", "Model override")
	cmd.Flags().String("dir", "", "Working directory for the tool")
	cmd.Flags().BoolP("wait", "w", false, "Wait for the response and print it")
	cmd.Flags().Duration("timeout", 60*time.Second, "How long to wait with --wait")
	return cmd
}

// resolveQueueDir loads the config to find the queue root, falling
// back to the default data dir when no config file exists.
func resolveQueueDir(cfgPath string) (string, error) {
	dataDir := app.DefaultDataDir()
	var queueDir string

	if cfgPath == "" {
		cfgPath, _ = app.ResolveConfigPath()
	}
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return "", err
		}
		if cfg.DataDir != "" {
			dataDir = cfg.DataDir
		}
		queueDir = cfg.Queue.Dir
	}
	if queueDir == "" {
		queueDir = filepath.Join(dataDir, "queue")
	}

	if _, err := os.Stat(filepath.Join(queueDir, "input")); err != nil {
		return "", fmt.Errorf("queue not found at %s (is the daemon running?)", queueDir)
	}
	return queueDir, nil
}

// awaitResponse polls output/ for the response file. A file landing in
// failed/ means the request was dead-lettered without a response.
func awaitResponse(queueDir, name string, timeout time.Duration) (*queue.Response, error) {
	deadline := time.Now().Add(timeout)
	outputPath := filepath.Join(queueDir, "output", name)
	failedPath := filepath.Join(queueDir, "failed", name)

	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(outputPath); err == nil {
			var resp queue.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				return nil, fmt.Errorf("reading response %s: %w", outputPath, err)
			}
			return &resp, nil
		}
		if _, err := os.Stat(failedPath); err == nil {
			return nil, fmt.Errorf("request rejected as malformed (see %s)", failedPath)
		}
		time.Sleep(submitPollInterval)
	}
	return nil, fmt.Errorf("timed out waiting for response to %s", name)
}
