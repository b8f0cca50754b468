package cron

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/flemzord/cronclaw/internal/turn"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// trigger is the body run by the engine on every fire. It carries a copy of
// the job payload and the shared host reference, nothing owned by the
// application.
type trigger struct {
	jobID     uuid.UUID
	channelID uint64
	prompt    string

	host    *hostRef
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func (m *Manager) newTrigger(job Job) *trigger {
	return &trigger{
		jobID:     job.ID,
		channelID: job.ChannelID,
		prompt:    job.Prompt,
		host:      m.host,
		timeout:   m.fireTimeout,
		logger:    m.logger,
		metrics:   m.metrics,
		tracer:    m.tracer,
	}
}

// fire resolves the runtime, picks the channel's backend, obtains a session
// and hands the prompt to the turn runner. Failures are logged once and the
// tick is dropped; the next scheduled fire tries again.
func (t *trigger) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	ctx, span := t.tracer.Start(ctx, "cron.fire",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cron.job_id", t.jobID.String()),
			attribute.String("cron.channel_id", strconv.FormatUint(t.channelID, 10)),
		),
	)
	defer span.End()

	logger := t.logger.With("job", t.jobID.String(), "channel", t.channelID)

	transport, rt, err := t.host.resolve()
	if err != nil {
		logger.Error("cron: job fired without application context", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.metrics.fire(OutcomeNoContext)
		return
	}

	backend := rt.defaultBackend()
	if rt.Channels != nil {
		b, err := rt.Channels.Backend(ctx, t.channelID)
		if err != nil {
			logger.Warn("cron: channel backend lookup failed, using default",
				"backend", string(backend), "error", err)
		} else {
			backend = b
		}
	}
	span.SetAttributes(attribute.String("agent.backend", string(backend)))

	sess, isNew, err := rt.Sessions.GetOrCreate(ctx, t.channelID, backend)
	if err != nil {
		serr := &SessionError{ChannelID: t.channelID, Backend: backend, Err: err}
		logger.Error("cron: session unavailable, dropping tick", "error", serr)
		span.RecordError(serr)
		span.SetStatus(codes.Error, serr.Error())
		t.metrics.fire(OutcomeSessionFail)
		return
	}

	rt.Turns.StartTurn(turn.Request{
		Agent:     sess,
		Transport: transport,
		ChannelID: t.channelID,
		Prompt:    t.prompt,
		IsNew:     isNew,
		Source:    turn.SourceCron,
	})
	t.metrics.fire(OutcomeStarted)
	logger.Info("cron: job fired, turn started", "backend", string(backend), "new_session", isNew)
}
