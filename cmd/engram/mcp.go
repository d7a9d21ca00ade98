package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/engramd/engram/internal/archive"
	"github.com/engramd/engram/internal/config"
	"github.com/engramd/engram/internal/mcpserver"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/pkg/app"
)

// mcpCmd serves the memory tools over MCP stdio. Logs go to stderr so
// stdout stays clean for the protocol.
func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			dataDir := cfg.DataDir
			if dataDir == "" {
				dataDir = app.DefaultDataDir()
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			store := memory.NewStore(dataDir, logger)

			var arch *archive.Archive
			if cfg.Archive.Enabled {
				path := cfg.Archive.Path
				if path == "" {
					path = filepath.Join(dataDir, "archive.db")
				}
				arch, err = archive.Open(path)
				if err != nil {
					return fmt.Errorf("opening archive: %w", err)
				}
				defer arch.Close()
			}

			srv := mcpserver.New(version, mcpserver.Deps{Store: store, Archive: arch})
			return mcpserver.ServeStdio(srv)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
