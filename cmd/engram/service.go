package main

import (
	"fmt"
	"log/slog"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/engramd/engram/pkg/app"
)

// program adapts the daemon to the service manager lifecycle.
type program struct {
	params app.RunParams
	errCh  chan error
}

// Start implements service.Interface. Service managers expect Start to
// return promptly, so the daemon runs in the background.
func (p *program) Start(service.Service) error {
	p.errCh = make(chan error, 1)
	go func() {
		p.errCh <- app.Run(p.params)
	}()
	return nil
}

// Stop implements service.Interface. app.Run shuts down on the TERM
// signal the manager sends; nothing extra to do here.
func (p *program) Stop(service.Service) error {
	return nil
}

func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "engram",
		DisplayName: "engram memory daemon",
		Description: "Tiered memory store and request queue for desktop AI assistants.",
		Arguments:   args,
	}
}

// serviceCmd manages the daemon as a system service (launchd, systemd,
// or Windows SCM depending on the platform).
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run or manage engram as a system service",
	}

	var cfgPath string
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	newService := func() (service.Service, error) {
		prg := &program{params: app.RunParams{
			ConfigPath: cfgPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
			LogLevel:   slog.LevelInfo,
		}}
		return service.New(prg, serviceConfig(cfgPath))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager (used by install)",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the engram service", action),
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Printf("Service %s: done\n", action)
				return nil
			},
		})
	}

	return cmd
}
