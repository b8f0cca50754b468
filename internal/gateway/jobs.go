package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxJobBody bounds POST bodies.
const maxJobBody = 64 << 10

// jobJSON is a serializable job. Snowflake ids are strings so JavaScript
// clients keep full precision.
type jobJSON struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channel_id"`
	Schedule    string     `json:"schedule"`
	Prompt      string     `json:"prompt"`
	Description string     `json:"description,omitempty"`
	CreatorID   string     `json:"creator_id,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`

	// Warning is set when the job is live but could not be saved.
	Warning string `json:"warning,omitempty"`
}

// createJobRequest is the body of POST /api/channels/{channelID}/jobs.
type createJobRequest struct {
	Schedule    string `json:"schedule"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	CreatorID   string `json:"creator_id"`
}

func (g *Gateway) toJobJSON(j cron.Job) jobJSON {
	out := jobJSON{
		ID:          j.ID.String(),
		ChannelID:   strconv.FormatUint(j.ChannelID, 10),
		Schedule:    j.CronExpr,
		Prompt:      j.Prompt,
		Description: j.Description,
	}
	if j.CreatorID != 0 {
		out.CreatorID = strconv.FormatUint(j.CreatorID, 10)
	}
	if next, ok := g.jobs.NextRun(j.ID); ok {
		out.NextRun = &next
	}
	return out
}

func (g *Gateway) writeJobs(w http.ResponseWriter, jobs []cron.Job) {
	out := make([]jobJSON, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, g.toJobJSON(j))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListJobs returns every stored job.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.jobs == nil {
			writeJSON(w, http.StatusOK, []jobJSON{})
			return
		}
		g.writeJobs(w, g.jobs.Jobs())
	}
}

// handleListChannelJobs returns the jobs of one channel.
func (g *Gateway) handleListChannelJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID, ok := channelParam(w, r)
		if !ok {
			return
		}
		if g.jobs == nil {
			writeJSON(w, http.StatusOK, []jobJSON{})
			return
		}
		g.writeJobs(w, g.jobs.JobsForChannel(channelID))
	}
}

// handleCreateJob schedules a job for a channel.
func (g *Gateway) handleCreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID, ok := channelParam(w, r)
		if !ok {
			return
		}
		if g.jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not available")
			return
		}

		var body createJobRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJobBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		var creator uint64
		if body.CreatorID != "" {
			var err error
			if creator, err = strconv.ParseUint(body.CreatorID, 10, 64); err != nil {
				writeError(w, http.StatusBadRequest, "invalid creator_id")
				return
			}
		}

		key := strconv.FormatUint(channelID, 10)
		if g.limiter != nil {
			if err := g.limiter.Allow(security.KindJobAdd, key); err != nil {
				g.audit.Log(security.AuditEvent{
					Type:      security.EventRateLimit,
					Source:    security.SourceHTTP,
					ChannelID: key,
					Remote:    r.RemoteAddr,
					Detail:    "job add",
				})
				writeError(w, http.StatusTooManyRequests, err.Error())
				return
			}
		}

		id, err := g.jobs.AddJob(cron.Job{
			ChannelID:   channelID,
			CronExpr:    body.Schedule,
			Prompt:      body.Prompt,
			CreatorID:   creator,
			Description: strings.TrimSpace(body.Description),
		})
		var perr *cron.PersistenceError
		switch {
		case errors.As(err, &perr):
			g.logger.Warn("gateway: job scheduled but not saved", "job", id.String(), "error", err)
		case errors.Is(err, cron.ErrDuplicateJob):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		g.audit.Log(security.AuditEvent{
			Type:      security.EventJobAdd,
			Source:    security.SourceHTTP,
			ChannelID: key,
			UserID:    body.CreatorID,
			JobID:     id.String(),
			Remote:    r.RemoteAddr,
			Detail:    body.Schedule,
		})

		job, _ := g.jobs.Job(id)
		out := g.toJobJSON(job)
		if perr != nil {
			out.Warning = perr.Error()
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// handleDeleteJob deletes a job by id.
func (g *Gateway) handleDeleteJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job id")
			return
		}
		if g.jobs == nil {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		job, ok := g.jobs.Job(id)
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}

		var perr *cron.PersistenceError
		if err := g.jobs.RemoveJob(id); err != nil {
			if !errors.As(err, &perr) {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			g.logger.Warn("gateway: job removed but snapshot not saved", "job", id.String(), "error", err)
		}

		g.audit.Log(security.AuditEvent{
			Type:      security.EventJobRemove,
			Source:    security.SourceHTTP,
			ChannelID: strconv.FormatUint(job.ChannelID, 10),
			JobID:     id.String(),
			Remote:    r.RemoteAddr,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// channelParam parses {channelID}, writing a 400 on failure.
func channelParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "channelID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return 0, false
	}
	return id, true
}
