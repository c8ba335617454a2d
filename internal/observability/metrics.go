// Package observability holds the Prometheus instruments shared by the bot,
// the account-link controller and the HTTP adapter.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the bot's instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LinkOutcomes    *prometheus.CounterVec
	LinkPolls       prometheus.Counter
	ActiveLinks     prometheus.Gauge
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
}

// NewMetrics registers the instruments with reg. Tests pass prometheus.NewRegistry();
// production passes prometheus.DefaultRegisterer so promhttp.Handler exposes them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinkOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "johnnycage_link_outcomes_total",
			Help: "Account-link attempts by terminal state and failure reason",
		}, []string{"state", "reason"}),
		LinkPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "johnnycage_link_polls_total",
			Help: "Total number of Plex PIN polls issued",
		}),
		ActiveLinks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "johnnycage_link_attempts_active",
			Help: "Account-link attempts currently in progress",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "johnnycage_commands_total",
			Help: "Chat commands handled by command name and result",
		}, []string{"command", "status"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "johnnycage_command_duration_seconds",
			Help:    "Time spent handling a chat command",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}
}

func (m *Metrics) LinkStarted() {
	if m == nil || m.ActiveLinks == nil {
		return
	}
	m.ActiveLinks.Inc()
}

// LinkFinished records the outcome of an attempt and releases its active slot.
func (m *Metrics) LinkFinished(state, reason string) {
	if m == nil {
		return
	}
	if m.ActiveLinks != nil {
		m.ActiveLinks.Dec()
	}
	if m.LinkOutcomes != nil {
		if reason == "" {
			reason = "none"
		}
		m.LinkOutcomes.WithLabelValues(state, reason).Inc()
	}
}

func (m *Metrics) RecordPoll() {
	if m == nil || m.LinkPolls == nil {
		return
	}
	m.LinkPolls.Inc()
}

// RecordCommand counts a handled command. status is "ok" or "error".
func (m *Metrics) RecordCommand(command, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if m.Commands != nil {
		m.Commands.WithLabelValues(command, status).Inc()
	}
	if m.CommandDuration != nil {
		m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}
