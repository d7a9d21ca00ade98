package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const configTemplate = `version: "1"
data_dir: %q

session:
  id: %q

queue:
  poll_interval: 1s
  tool_timeout: 25s

runner:
  binary: %q

gateway:
  addr: %q

archive:
  enabled: %t
`

// initCmd interactively writes a starter configuration file.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				base := os.Getenv("XDG_CONFIG_HOME")
				if base == "" {
					home, err := os.UserHomeDir()
					if err != nil {
						return err
					}
					base = filepath.Join(home, ".config")
				}
				out = filepath.Join(base, "engram", "engram.yaml")
			}

			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("refusing to overwrite existing config at %s", out)
			}

			home, _ := os.UserHomeDir()
			dataDir := filepath.Join(home, ".engram")
			sessionID := "default"
			binary := "claude"
			gatewayAddr := "127.0.0.1:7600"
			archiveEnabled := true

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Data directory").
						Description("Where memory tiers and the queue live.").
						Value(&dataDir),
					huh.NewInput().
						Title("Session id").
						Value(&sessionID),
					huh.NewInput().
						Title("Tool binary").
						Description("The CLI tool that answers requests.").
						Value(&binary),
					huh.NewInput().
						Title("Gateway address").
						Description("Status HTTP server; empty disables it.").
						Value(&gatewayAddr),
					huh.NewConfirm().
						Title("Enable the searchable conversation archive?").
						Value(&archiveEnabled),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			content := fmt.Sprintf(configTemplate, dataDir, sessionID, binary, gatewayAddr, archiveEnabled)

			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", out)
			fmt.Println("Start the daemon with: engram start")
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the config (default: XDG config dir)")
	return cmd
}
