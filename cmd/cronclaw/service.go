package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/cronclaw/internal/config"
	"github.com/flemzord/cronclaw/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// serviceStopTimeout bounds how long the service manager waits for Run to
// return after a stop request.
const serviceStopTimeout = 45 * time.Second

// program adapts app.Run to the service manager's Start/Stop callbacks.
type program struct {
	params app.RunParams
	run    func(context.Context, app.RunParams) error

	cancel context.CancelFunc
	done   chan error
}

func newProgram(params app.RunParams) *program {
	return &program{params: params, run: app.Run}
}

// Start must not block.
func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := p.run(ctx, p.params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cronclaw: %v\n", err)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(serviceStopTimeout):
		return errors.New("cronclaw: timed out waiting for shutdown")
	}
}

// serviceConfig describes the installed service. The configuration path is
// made absolute because service managers start from another directory.
func serviceConfig(params app.RunParams) (*service.Config, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		abs, err := filepath.Abs(params.DataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	return &service.Config{
		Name:        config.AppName,
		DisplayName: "cronclaw",
		Description: "Scheduled agent prompts for Discord channels",
		Arguments:   args,
	}, nil
}

func newService(cmd *cobra.Command) (service.Service, *program, error) {
	params := runParams(cmd)
	if cmd.Name() == "install" && params.ConfigPath == "" {
		// Pin the file found now so the service does not depend on
		// the service user's home directory.
		found, err := config.FindPath("")
		if err != nil {
			return nil, nil, err
		}
		params.ConfigPath = found
	}
	cfg, err := serviceConfig(params)
	if err != nil {
		return nil, nil, err
	}
	prg := newProgram(params)
	s, err := service.New(prg, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, prg, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control cronclaw as a system service",
	}
	for _, action := range []struct{ name, short string }{
		{"install", "Install the system service"},
		{"uninstall", "Remove the system service"},
		{"start", "Start the installed service"},
		{"stop", "Stop the running service"},
		{"restart", "Restart the service"},
	} {
		sub := &cobra.Command{
			Use:   action.name,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, _, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, cmd.Name()); err != nil {
					return fmt.Errorf("service %s: %w", cmd.Name(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service %s: done\n", cmd.Name())
				return nil
			},
		}
		addRunFlags(sub)
		cmd.AddCommand(sub)
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service status: %s\n", statusText(st, err))
			return nil
		},
	}
	addRunFlags(status)

	run := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
	addRunFlags(run)

	cmd.AddCommand(status, run)
	return cmd
}

func statusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
