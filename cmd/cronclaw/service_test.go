package main

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/flemzord/cronclaw/pkg/app"
	"github.com/kardianos/service"
)

func TestServiceConfig(t *testing.T) {
	t.Parallel()
	cfg, err := serviceConfig(app.RunParams{ConfigPath: "conf/cronclaw.yaml", DataDir: "/var/lib/cronclaw"})
	if err != nil {
		t.Fatalf("serviceConfig: %v", err)
	}
	if cfg.Name != "cronclaw" {
		t.Errorf("Name = %q", cfg.Name)
	}
	abs, _ := filepath.Abs("conf/cronclaw.yaml")
	want := []string{"service", "run", "--config", abs, "--data-dir", "/var/lib/cronclaw"}
	if !slices.Equal(cfg.Arguments, want) {
		t.Errorf("Arguments = %v, want %v", cfg.Arguments, want)
	}

	cfg, err = serviceConfig(app.RunParams{})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(cfg.Arguments, []string{"service", "run"}) {
		t.Errorf("Arguments = %v", cfg.Arguments)
	}
}

func TestProgram_StartStop(t *testing.T) {
	t.Parallel()
	runErr := errors.New("stopped")
	var got app.RunParams
	prg := &program{
		params: app.RunParams{ConfigPath: "x.yaml"},
		run: func(ctx context.Context, p app.RunParams) error {
			got = p
			<-ctx.Done()
			return runErr
		},
	}

	if err := prg.Stop(nil); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := prg.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- prg.Stop(nil) }()
	select {
	case err := <-done:
		if !errors.Is(err, runErr) {
			t.Errorf("Stop = %v, want run error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if got.ConfigPath != "x.yaml" {
		t.Errorf("params not passed: %+v", got)
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		st   service.Status
		err  error
		want string
	}{
		{service.StatusRunning, nil, "running"},
		{service.StatusStopped, nil, "stopped"},
		{service.StatusUnknown, nil, "unknown"},
		{service.StatusUnknown, service.ErrNotInstalled, "not installed"},
	}
	for _, tt := range tests {
		if got := statusText(tt.st, tt.err); got != tt.want {
			t.Errorf("statusText(%v, %v) = %q, want %q", tt.st, tt.err, got, tt.want)
		}
	}
}
