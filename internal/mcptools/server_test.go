package mcptools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/cron/crontest"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/security/securitytest"
	"github.com/mark3labs/mcp-go/mcp"
)

func newTestTools(t *testing.T, limiter *security.RateLimiter) (*Tools, *cron.Manager) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := cron.NewManager(cron.ManagerConfig{
		Dir:    t.TempDir(),
		Engine: &crontest.FakeEngine{Validate: cron.ValidateSchedule},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	audit, _ := securitytest.NewTestAuditLogger()
	_, tools := NewServer(Config{
		Jobs:    m,
		Audit:   audit,
		Limiter: limiter,
		Logger:  logger,
	})
	return tools, m
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestCronAdd(t *testing.T) {
	t.Parallel()

	tools, m := newTestTools(t, nil)
	res, err := tools.handleAdd(context.Background(), callRequest("cron_add", map[string]any{
		"channel_id":  "123456789012345678",
		"schedule":    "0 9 * * MON-FRI",
		"prompt":      "standup summary",
		"description": "weekday standup",
		"creator_id":  "42",
	}))
	if err != nil {
		t.Fatalf("handleAdd: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var view JobView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ChannelID != "123456789012345678" || view.Schedule != "0 9 * * MON-FRI" || view.CreatorID != "42" {
		t.Errorf("view = %+v", view)
	}

	jobs := m.JobsForChannel(123456789012345678)
	if len(jobs) != 1 || jobs[0].Prompt != "standup summary" || jobs[0].CreatorID != 42 {
		t.Errorf("stored jobs = %+v", jobs)
	}
}

func TestCronAdd_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing channel", map[string]any{"schedule": "@hourly", "prompt": "p"}, "channel_id"},
		{"bad channel", map[string]any{"channel_id": "abc", "schedule": "@hourly", "prompt": "p"}, "invalid channel_id"},
		{"missing prompt", map[string]any{"channel_id": "1", "schedule": "@hourly"}, "prompt"},
		{"bad schedule", map[string]any{"channel_id": "1", "schedule": "not cron", "prompt": "p"}, "invalid schedule"},
		{"bad creator", map[string]any{"channel_id": "1", "schedule": "@hourly", "prompt": "p", "creator_id": "x"}, "creator_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tools, m := newTestTools(t, nil)
			res, err := tools.handleAdd(context.Background(), callRequest("cron_add", tt.args))
			if err != nil {
				t.Fatalf("handleAdd: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected tool error")
			}
			if got := resultText(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to mention %q", got, tt.want)
			}
			if m.Len() != 0 {
				t.Errorf("jobs = %d, want 0", m.Len())
			}
		})
	}
}

func TestCronAdd_RateLimited(t *testing.T) {
	t.Parallel()

	tools, m := newTestTools(t, security.NewRateLimiter(security.RateLimitConfig{JobsPerHour: 1}))
	args := map[string]any{"channel_id": "5", "schedule": "@daily", "prompt": "p"}

	if res, _ := tools.handleAdd(context.Background(), callRequest("cron_add", args)); res.IsError {
		t.Fatalf("first add failed: %s", resultText(t, res))
	}
	res, _ := tools.handleAdd(context.Background(), callRequest("cron_add", args))
	if !res.IsError {
		t.Fatal("second add should be rate limited")
	}
	if m.Len() != 1 {
		t.Errorf("jobs = %d, want 1", m.Len())
	}
}

func TestCronList(t *testing.T) {
	t.Parallel()

	tools, m := newTestTools(t, nil)
	for _, ch := range []uint64{1, 1, 2} {
		if _, err := m.AddJob(cron.Job{ChannelID: ch, CronExpr: "@hourly", Prompt: "p"}); err != nil {
			t.Fatalf("AddJob: %v", err)
		}
	}

	tests := []struct {
		args map[string]any
		want int
	}{
		{map[string]any{}, 3},
		{map[string]any{"channel_id": "1"}, 2},
		{map[string]any{"channel_id": "2"}, 1},
		{map[string]any{"channel_id": "3"}, 0},
	}
	for _, tt := range tests {
		res, err := tools.handleList(context.Background(), callRequest("cron_list", tt.args))
		if err != nil || res.IsError {
			t.Fatalf("handleList(%v) = %v, %v", tt.args, res, err)
		}
		var views []JobView
		if err := json.Unmarshal([]byte(resultText(t, res)), &views); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(views) != tt.want {
			t.Errorf("handleList(%v) = %d jobs, want %d", tt.args, len(views), tt.want)
		}
	}
}

func TestCronRemove(t *testing.T) {
	t.Parallel()

	tools, m := newTestTools(t, nil)
	id, err := m.AddJob(cron.Job{ChannelID: 9, CronExpr: "@hourly", Prompt: "p"})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	res, err := tools.handleRemove(context.Background(), callRequest("cron_remove", map[string]any{"id": id.String()}))
	if err != nil || res.IsError {
		t.Fatalf("handleRemove = %v, %v", res, err)
	}
	if m.Len() != 0 {
		t.Errorf("jobs = %d, want 0", m.Len())
	}

	res, _ = tools.handleRemove(context.Background(), callRequest("cron_remove", map[string]any{"id": id.String()}))
	if !res.IsError {
		t.Error("removing a missing job should fail")
	}
	res, _ = tools.handleRemove(context.Background(), callRequest("cron_remove", map[string]any{"id": "nope"}))
	if !res.IsError {
		t.Error("invalid id should fail")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	s, _ := NewServer(Config{Jobs: nil})
	if Handler(s) == nil {
		t.Fatal("Handler returned nil")
	}
}
