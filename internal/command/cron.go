package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/google/uuid"
)

// shortID is the id prefix shown in listings and accepted by remove.
const shortID = 8

type cronCommand struct{ Deps }

func (c *cronCommand) Definition() Definition {
	return Definition{
		Name:    "cron",
		DescKey: "cmd_cron_desc",
		Subs: []Definition{
			{Name: "add", DescKey: "cmd_cron_add_desc", Options: []Option{
				{Name: "schedule", DescKey: "cmd_opt_schedule", Required: true},
				{Name: "prompt", DescKey: "cmd_opt_prompt", Required: true, Rest: true},
				{Name: "description", DescKey: "cmd_opt_description"},
			}},
			{Name: "list", DescKey: "cmd_cron_list_desc"},
			{Name: "remove", DescKey: "cmd_cron_remove_desc", Options: []Option{
				{Name: "id", DescKey: "cmd_opt_id", Required: true},
			}},
		},
	}
}

func (c *cronCommand) Run(ctx context.Context, req Request) Response {
	switch req.Sub {
	case "add":
		return c.add(req)
	case "list":
		return c.list(req)
	case "remove":
		return c.remove(req)
	default:
		return reply(c.Text.Get("cron_usage"))
	}
}

func (c *cronCommand) add(req Request) Response {
	schedule := strings.TrimSpace(req.Opt("schedule"))
	prompt := strings.TrimSpace(req.Opt("prompt"))
	if schedule == "" || prompt == "" {
		return reply(c.Text.Get("cron_usage"))
	}
	if err := cron.ValidateSchedule(schedule); err != nil {
		return reply(c.Text.Format("cron_invalid", err))
	}
	if c.Limiter != nil {
		if err := c.Limiter.Allow(security.KindJobAdd, req.channelKey()); err != nil {
			return reply(c.Text.Get("rate_limited"))
		}
	}

	id, err := c.Jobs.AddJob(cron.Job{
		ChannelID:   req.ChannelID,
		CronExpr:    schedule,
		Prompt:      prompt,
		CreatorID:   req.UserID,
		Description: strings.TrimSpace(req.Opt("description")),
	})
	var perr *cron.PersistenceError
	switch {
	case errors.As(err, &perr):
		c.Logger.Warn("command: job added but not saved", "job", id.String(), "error", err)
		c.auditJob(security.EventJobAdd, req, id, "unsaved")
		return reply(c.Text.Format("cron_added_unsaved", short(id), err))
	case err != nil:
		return reply(c.Text.Format("cron_invalid", err))
	}

	c.auditJob(security.EventJobAdd, req, id, schedule)
	next := "-"
	if t, ok := c.Jobs.NextRun(id); ok {
		next = t.In(c.Location).Format("2006-01-02 15:04 MST")
	}
	return reply(c.Text.Format("cron_added", short(id), schedule, next))
}

func (c *cronCommand) list(req Request) Response {
	jobs := c.Jobs.JobsForChannel(req.ChannelID)
	if len(jobs) == 0 {
		return reply(c.Text.Get("cron_list_empty"))
	}
	var b strings.Builder
	b.WriteString(c.Text.Get("cron_list_header"))
	for _, j := range jobs {
		label := j.Description
		if label == "" {
			label = truncate(j.Prompt, 60)
		}
		b.WriteString("\n")
		b.WriteString(c.Text.Format("cron_list_item", short(j.ID), j.CronExpr, label))
	}
	return reply(b.String())
}

func (c *cronCommand) remove(req Request) Response {
	arg := strings.TrimSpace(req.Opt("id"))
	job, ok := findJob(c.Jobs.JobsForChannel(req.ChannelID), arg)
	if !ok {
		return reply(c.Text.Format("cron_not_found", arg))
	}
	err := c.Jobs.RemoveJob(job.ID)
	var perr *cron.PersistenceError
	switch {
	case errors.As(err, &perr):
		c.Logger.Warn("command: job removed but not saved", "job", job.ID.String(), "error", err)
		c.auditJob(security.EventJobRemove, req, job.ID, "unsaved")
		return reply(c.Text.Format("cron_removed_unsaved", short(job.ID), err))
	case err != nil:
		return reply(c.Text.Format("error_generic", err))
	}
	c.auditJob(security.EventJobRemove, req, job.ID, "")
	return reply(c.Text.Format("cron_removed", short(job.ID)))
}

// findJob matches a full id or an unambiguous prefix of at least four
// characters among jobs.
func findJob(jobs []cron.Job, arg string) (cron.Job, bool) {
	arg = strings.ToLower(arg)
	if len(arg) < 4 {
		return cron.Job{}, false
	}
	var (
		found cron.Job
		n     int
	)
	for _, j := range jobs {
		if strings.HasPrefix(j.ID.String(), arg) {
			found = j
			n++
		}
	}
	return found, n == 1
}

func (c *cronCommand) auditJob(t security.EventType, req Request, id uuid.UUID, detail string) {
	c.Audit.Log(security.AuditEvent{
		Type:      t,
		Source:    security.SourceChat,
		ChannelID: req.channelKey(),
		UserID:    fmt.Sprint(req.UserID),
		JobID:     id.String(),
		Detail:    detail,
	})
}

func short(id uuid.UUID) string {
	return id.String()[:shortID]
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
