package cron

import "github.com/prometheus/client_golang/prometheus"

// Fire outcomes recorded by Metrics.
const (
	OutcomeStarted     = "started"
	OutcomeNoContext   = "context_unavailable"
	OutcomeSessionFail = "session_error"
)

// Metrics holds the scheduler's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	jobs          prometheus.Gauge
	fires         *prometheus.CounterVec
	persistErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cronclaw",
			Subsystem: "cron",
			Name:      "jobs",
			Help:      "Number of stored cron jobs.",
		}),
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronclaw",
			Subsystem: "cron",
			Name:      "fires_total",
			Help:      "Cron job fires by outcome.",
		}, []string{"outcome"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cronclaw",
			Subsystem: "cron",
			Name:      "persist_errors_total",
			Help:      "Failed writes of the job snapshot.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.fires, m.persistErrors)
	}
	return m
}

func (m *Metrics) setJobs(n int) {
	if m == nil {
		return
	}
	m.jobs.Set(float64(n))
}

func (m *Metrics) fire(outcome string) {
	if m == nil {
		return
	}
	m.fires.WithLabelValues(outcome).Inc()
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}
