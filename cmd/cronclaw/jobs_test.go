package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDaemon serves the subset of the admin API used by the jobs commands.
type fakeDaemon struct {
	mu      sync.Mutex
	jobs    []jobView
	posted  []newJob
	paths   []string
	auth    []string
	removed []string
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths = append(d.paths, r.Method+" "+r.URL.Path)
	d.auth = append(d.auth, r.Header.Get("Authorization"))

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/jobs",
		r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/channels/"):
		_ = json.NewEncoder(w).Encode(d.jobs)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/channels/"):
		var req newJob
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad body"}`))
			return
		}
		d.posted = append(d.posted, req)
		next := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(jobView{
			ID:        "4b1c2d3e-0000-4000-8000-000000000001",
			ChannelID: strings.Split(r.URL.Path, "/")[3],
			Schedule:  req.Schedule,
			Prompt:    req.Prompt,
			NextRun:   &next,
		})
	case r.Method == http.MethodDelete && r.URL.Path == "/api/jobs/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"job not found"}`))
	case r.Method == http.MethodDelete:
		d.removed = append(d.removed, strings.TrimPrefix(r.URL.Path, "/api/jobs/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// snapshot returns copies of the recorded requests.
func (d *fakeDaemon) snapshot() (paths, auth, removed []string, posted []newJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.paths), slices.Clone(d.auth), slices.Clone(d.removed), slices.Clone(d.posted)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newFakeDaemon(t *testing.T) (*fakeDaemon, string) {
	t.Helper()
	d := &fakeDaemon{}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return d, srv.URL
}

func TestJobsList(t *testing.T) {
	t.Parallel()
	d, addr := newFakeDaemon(t)
	next := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	d.jobs = []jobView{
		{ID: "job-1", ChannelID: "42", Schedule: "0 9 * * *", Prompt: "daily digest", NextRun: &next},
		{ID: "job-2", ChannelID: "42", Schedule: "@hourly", Prompt: "ping", Description: "health ping"},
	}

	out, err := runCLI(t, "jobs", "list", "--addr", addr, "--token", "tok")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	for _, want := range []string{"job-1", "job-2", "0 9 * * *", "daily digest", "health ping", "NEXT RUN"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, auth, _, _ := d.snapshot(); auth[0] != "Bearer tok" {
		t.Errorf("Authorization = %q", auth[0])
	}

	if _, err := runCLI(t, "jobs", "list", "--addr", addr, "--channel", "42"); err != nil {
		t.Fatalf("jobs list --channel: %v", err)
	}
	paths, _, _, _ := d.snapshot()
	if got := paths[len(paths)-1]; got != "GET /api/channels/42/jobs" {
		t.Errorf("path = %q", got)
	}
}

func TestJobsList_Empty(t *testing.T) {
	t.Parallel()
	_, addr := newFakeDaemon(t)
	out, err := runCLI(t, "jobs", "list", "--addr", addr)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "No scheduled jobs.") {
		t.Errorf("output = %q", out)
	}
}

func TestJobsAdd(t *testing.T) {
	t.Parallel()
	d, addr := newFakeDaemon(t)
	out, err := runCLI(t, "jobs", "add", "--addr", addr,
		"--channel", "42", "--schedule", "0 9 * * 1-5", "--prompt", "standup notes", "--description", "weekday standup")
	if err != nil {
		t.Fatalf("jobs add: %v", err)
	}
	if !strings.Contains(out, "Scheduled job 4b1c2d3e-0000-4000-8000-000000000001 on channel 42") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Next run:") {
		t.Errorf("missing next run: %q", out)
	}
	want := newJob{Schedule: "0 9 * * 1-5", Prompt: "standup notes", Description: "weekday standup"}
	_, _, _, posted := d.snapshot()
	if len(posted) != 1 || posted[0] != want {
		t.Errorf("posted = %+v, want %+v", posted, want)
	}
}

func TestJobsAdd_InvalidInput(t *testing.T) {
	t.Parallel()
	d, addr := newFakeDaemon(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad channel", []string{"--channel", "general", "--schedule", "@daily", "--prompt", "x"}, "numeric"},
		{"bad schedule", []string{"--channel", "42", "--schedule", "every day", "--prompt", "x"}, "schedule"},
		{"missing with no input", []string{"--channel", "42", "--no-input"}, "required"},
	}
	for _, tt := range tests {
		args := append([]string{"jobs", "add", "--addr", addr}, tt.args...)
		_, err := runCLI(t, args...)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want containing %q", tt.name, err, tt.want)
		}
	}
	if _, _, _, posted := d.snapshot(); len(posted) != 0 {
		t.Errorf("invalid input reached the daemon: %+v", posted)
	}
}

func TestJobsRemove(t *testing.T) {
	t.Parallel()
	d, addr := newFakeDaemon(t)
	out, err := runCLI(t, "jobs", "rm", "--addr", addr, "job-9")
	if err != nil {
		t.Fatalf("jobs rm: %v", err)
	}
	_, _, removed, _ := d.snapshot()
	if !strings.Contains(out, "Removed job job-9") || len(removed) != 1 || removed[0] != "job-9" {
		t.Errorf("out = %q, removed = %v", out, removed)
	}

	_, err = runCLI(t, "jobs", "remove", "--addr", addr, "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestAPIClient_ErrorBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"scheduler not available"}`))
	}))
	defer srv.Close()

	c, err := newAPIClient(srv.URL, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.listJobs(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "503: scheduler not available") {
		t.Errorf("err = %v", err)
	}
}

func TestNewAPIClient_InvalidAddr(t *testing.T) {
	t.Parallel()
	for _, addr := range []string{"", "localhost:8080", "://x"} {
		if _, err := newAPIClient(addr, "", 0); err == nil {
			t.Errorf("newAPIClient(%q): expected error", addr)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a  multi\nline   prompt", 40); got != "a multi line prompt" {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}
