// Package mcptools exposes cron job management as Model Context Protocol
// tools so agents and MCP clients can schedule prompts themselves.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Jobs is the cron manager surface the tools act on.
type Jobs interface {
	AddJob(job cron.Job) (uuid.UUID, error)
	RemoveJob(id uuid.UUID) error
	Job(id uuid.UUID) (cron.Job, bool)
	Jobs() []cron.Job
	JobsForChannel(channelID uint64) []cron.Job
	NextRun(id uuid.UUID) (time.Time, bool)
}

// Config configures the tool server. Audit and Limiter are optional.
type Config struct {
	Jobs    Jobs
	Audit   *security.AuditLogger
	Limiter *security.RateLimiter
	Logger  *slog.Logger

	// Version is reported to MCP clients.
	Version string
}

// Tools implements the cron_add, cron_list and cron_remove tools.
type Tools struct {
	jobs    Jobs
	audit   *security.AuditLogger
	limiter *security.RateLimiter
	logger  *slog.Logger
}

// JobView is the JSON shape returned by the tools.
type JobView struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channel_id"`
	Schedule    string     `json:"schedule"`
	Prompt      string     `json:"prompt"`
	Description string     `json:"description,omitempty"`
	CreatorID   string     `json:"creator_id,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// NewServer builds an MCP server with the cron tools registered.
func NewServer(cfg Config) (*server.MCPServer, *Tools) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	t := &Tools{jobs: cfg.Jobs, audit: cfg.Audit, limiter: cfg.Limiter, logger: logger}

	s := server.NewMCPServer("cronclaw", version, server.WithToolCapabilities(false))
	t.register(s)
	return s, t
}

// Handler serves s over streamable HTTP.
func Handler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

func (t *Tools) register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("cron_add",
		mcp.WithDescription("Schedule a recurring prompt for a chat channel"),
		mcp.WithString("channel_id",
			mcp.Required(),
			mcp.Description("Discord channel id"),
		),
		mcp.WithString("schedule",
			mcp.Required(),
			mcp.Description("Cron expression with optional seconds field, e.g. 0 9 * * MON-FRI"),
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Prompt sent to the channel's agent on each run"),
		),
		mcp.WithString("description",
			mcp.Description("Human readable description"),
		),
		mcp.WithString("creator_id",
			mcp.Description("User id recorded as the job's creator"),
		),
	), t.handleAdd)

	s.AddTool(mcp.NewTool("cron_list",
		mcp.WithDescription("List scheduled prompts, optionally for one channel"),
		mcp.WithString("channel_id",
			mcp.Description("Only list jobs of this channel"),
		),
	), t.handleList)

	s.AddTool(mcp.NewTool("cron_remove",
		mcp.WithDescription("Delete a scheduled prompt"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job id"),
		),
	), t.handleRemove)
}

func (t *Tools) handleAdd(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := parseChannel(req.GetString("channel_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schedule, err := req.RequireString("schedule")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var creator uint64
	if raw := strings.TrimSpace(req.GetString("creator_id", "")); raw != "" {
		if creator, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid creator_id %q", raw)), nil
		}
	}

	key := strconv.FormatUint(channelID, 10)
	if t.limiter != nil {
		if err := t.limiter.Allow(security.KindJobAdd, key); err != nil {
			t.audit.Log(security.AuditEvent{
				Type:      security.EventRateLimit,
				Source:    security.SourceMCP,
				ChannelID: key,
				Detail:    "cron_add",
			})
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	id, err := t.jobs.AddJob(cron.Job{
		ChannelID:   channelID,
		CronExpr:    schedule,
		Prompt:      prompt,
		CreatorID:   creator,
		Description: req.GetString("description", ""),
	})
	var perr *cron.PersistenceError
	if err != nil && !errors.As(err, &perr) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if perr != nil {
		t.logger.Warn("mcptools: job scheduled but not saved", "job", id.String(), "error", perr)
	}

	t.audit.Log(security.AuditEvent{
		Type:      security.EventJobAdd,
		Source:    security.SourceMCP,
		ChannelID: key,
		UserID:    strconv.FormatUint(creator, 10),
		JobID:     id.String(),
		Detail:    schedule,
	})

	job, _ := t.jobs.Job(id)
	return t.jsonResult(t.view(job))
}

func (t *Tools) handleList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var jobs []cron.Job
	if raw := strings.TrimSpace(req.GetString("channel_id", "")); raw != "" {
		channelID, err := parseChannel(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jobs = t.jobs.JobsForChannel(channelID)
	} else {
		jobs = t.jobs.Jobs()
	}

	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, t.view(j))
	}
	return t.jsonResult(views)
}

func (t *Tools) handleRemove(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid job id %q", raw)), nil
	}
	job, ok := t.jobs.Job(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job %s not found", id)), nil
	}

	var perr *cron.PersistenceError
	if err := t.jobs.RemoveJob(id); err != nil && !errors.As(err, &perr) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.audit.Log(security.AuditEvent{
		Type:      security.EventJobRemove,
		Source:    security.SourceMCP,
		ChannelID: strconv.FormatUint(job.ChannelID, 10),
		JobID:     id.String(),
	})
	return mcp.NewToolResultText("removed " + id.String()), nil
}

func (t *Tools) view(j cron.Job) JobView {
	v := JobView{
		ID:          j.ID.String(),
		ChannelID:   strconv.FormatUint(j.ChannelID, 10),
		Schedule:    j.CronExpr,
		Prompt:      j.Prompt,
		Description: j.Description,
	}
	if j.CreatorID != 0 {
		v.CreatorID = strconv.FormatUint(j.CreatorID, 10)
	}
	if next, ok := t.jobs.NextRun(j.ID); ok {
		v.NextRun = &next
	}
	return v
}

func (t *Tools) jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcptools: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseChannel parses a Discord channel id given as a decimal string.
func parseChannel(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("channel_id is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid channel_id %q", raw)
	}
	return id, nil
}
