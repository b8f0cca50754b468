package turn

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/flemzord/cronclaw/internal/lane"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default values for Config.
const (
	DefaultTimeout          = 15 * time.Minute
	DefaultMaxMessageLength = 2000
)

// Config configures a Runner.
type Config struct {
	// Timeout bounds one turn, including the wait for the channel lane.
	Timeout time.Duration

	// Chunk controls how long replies are split.
	Chunk channel.ChunkConfig

	// Preamble is prepended to the first prompt of a new session. The
	// placeholder {assistant} is replaced by the channel's assistant name.
	Preamble string

	// Names resolves assistant names for the preamble. Optional.
	Names AssistantNamer

	// Touch is called at the start and end of every turn. Optional.
	Touch func(channelID uint64)

	Logger     *slog.Logger
	Tracer     trace.Tracer
	Registerer prometheus.Registerer
}

// AssistantNamer returns the display name configured for a channel.
type AssistantNamer interface {
	AssistantName(ctx context.Context, channelID uint64) (string, error)
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Chunk.MaxLength <= 0 {
		c.Chunk.MaxLength = DefaultMaxMessageLength
		c.Chunk.PreserveBlocks = true
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("github.com/flemzord/cronclaw/internal/turn")
	}
	return c
}

// Runner executes turns in the background. Turns for the same channel never
// overlap; turns for different channels run in parallel.
type Runner struct {
	config Config
	lanes  *lane.Lock[uint64]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool

	inFlight atomic.Int64
	turns    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewRunner creates a Runner ready to accept turns.
func NewRunner(cfg Config) *Runner {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		config: cfg,
		lanes:  lane.New[uint64](),
		ctx:    ctx,
		cancel: cancel,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronclaw",
			Subsystem: "turns",
			Name:      "total",
			Help:      "Agent turns by source and outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cronclaw",
			Subsystem: "turns",
			Name:      "duration_seconds",
			Help:      "Wall time of agent turns.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(r.turns, r.duration)
	}
	return r
}

// StartTurn schedules req and returns immediately. Turns submitted after
// Stop are dropped with a warning.
func (r *Runner) StartTurn(req Request) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.config.Logger.Warn("turn: runner stopped, dropping turn",
			"channel", req.ChannelID, "source", string(req.Source))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.inFlight.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Add(-1)
		r.run(req)
	}()
}

// InFlight returns the number of turns queued or running.
func (r *Runner) InFlight() int {
	return int(r.inFlight.Load())
}

// Stop refuses new turns, cancels running ones and waits for them to exit
// or for ctx to expire.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(req Request) {
	source := string(req.Source)
	if source == "" {
		source = "unknown"
	}
	logger := r.config.Logger.With("channel", req.ChannelID, "source", source)

	ctx, cancel := context.WithTimeout(r.ctx, r.config.Timeout)
	defer cancel()

	ctx, span := r.config.Tracer.Start(ctx, "turn.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("turn.source", source),
			attribute.String("turn.channel_id", strconv.FormatUint(req.ChannelID, 10)),
			attribute.Bool("turn.new_session", req.IsNew),
		),
	)
	defer span.End()

	if err := r.lanes.Acquire(ctx, req.ChannelID); err != nil {
		logger.Warn("turn: gave up waiting for channel", "error", err)
		r.record(source, "cancelled", span, err)
		return
	}
	defer r.lanes.Release(req.ChannelID)

	prompt := r.buildPrompt(ctx, req)
	if prompt == "" {
		r.record(source, "skipped", span, nil)
		return
	}

	r.touch(req.ChannelID)
	defer r.touch(req.ChannelID)

	start := time.Now()
	reply, err := req.Agent.Prompt(ctx, prompt)
	r.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, agent.ErrAborted) {
			logger.Info("turn: aborted")
			r.record(source, "aborted", span, nil)
			return
		}
		logger.Error("turn: agent failed", "backend", string(req.Agent.Backend()), "error", err)
		r.record(source, "agent_error", span, err)
		r.deliver(ctx, logger, req, "⚠️ "+err.Error())
		return
	}

	if strings.TrimSpace(reply) == "" {
		r.record(source, "empty", span, nil)
		return
	}
	if r.deliver(ctx, logger, req, reply) {
		r.record(source, "ok", span, nil)
	} else {
		r.record(source, "send_error", span, nil)
	}
}

// buildPrompt prefixes the preamble for a new session.
func (r *Runner) buildPrompt(ctx context.Context, req Request) string {
	prompt := req.Prompt
	if !req.IsNew || r.config.Preamble == "" {
		return prompt
	}

	name := "Assistant"
	if r.config.Names != nil {
		if n, err := r.config.Names.AssistantName(ctx, req.ChannelID); err == nil && n != "" {
			name = n
		}
	}
	preamble := strings.ReplaceAll(r.config.Preamble, "{assistant}", name)
	if prompt == "" {
		return preamble
	}
	return preamble + "\n\n" + prompt
}

func (r *Runner) deliver(ctx context.Context, logger *slog.Logger, req Request, text string) bool {
	if req.Transport == nil {
		logger.Error("turn: no transport to deliver reply")
		return false
	}
	if err := channel.SendChunked(ctx, req.Transport, req.ChannelID, text, r.config.Chunk); err != nil {
		logger.Error("turn: delivering reply failed", "error", err)
		return false
	}
	return true
}

func (r *Runner) touch(channelID uint64) {
	if r.config.Touch != nil {
		r.config.Touch(channelID)
	}
}

func (r *Runner) record(source, outcome string, span trace.Span, err error) {
	r.turns.WithLabelValues(source, outcome).Inc()
	span.SetAttributes(attribute.String("turn.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
