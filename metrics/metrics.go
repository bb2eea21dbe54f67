// Package metrics provides Prometheus metrics for the Relay workflow server.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels never carry session or correlation ids.

// Metrics groups the collectors updated by the engine and correlator.
type Metrics struct {
	// Events counts routed inbound events, by event type.
	Events *prometheus.CounterVec

	// ProtocolErrors counts dropped malformed messages.
	ProtocolErrors prometheus.Counter

	// CallbackErrors counts failed or panicking workflow callbacks, by event type.
	CallbackErrors *prometheus.CounterVec

	// Commands counts sent requests, by request type and whether a reply is expected.
	Commands *prometheus.CounterVec

	// CommandTimeouts counts requests that got no reply in time, by request type.
	CommandTimeouts *prometheus.CounterVec

	// CommandFailures counts requests failed by the server, by request type.
	CommandFailures *prometheus.CounterVec

	// Unclaimed counts responses with no matching outstanding request.
	Unclaimed prometheus.Counter

	// SessionsStarted counts started sessions, by workflow.
	SessionsStarted *prometheus.CounterVec

	// SessionsRejected counts refused sessions, by reason.
	SessionsRejected *prometheus.CounterVec

	reg prometheus.Registerer
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Total number of inbound events routed to workflows, by event type.",
		}, []string{"event"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_protocol_errors_total",
			Help: "Total number of malformed inbound messages dropped.",
		}),
		CallbackErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_callback_errors_total",
			Help: "Total number of workflow callbacks that failed, by event type.",
		}, []string{"event"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_commands_total",
			Help: "Total number of requests sent, by request type and reply expectation.",
		}, []string{"request", "reply"}),
		CommandTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_command_timeouts_total",
			Help: "Total number of requests that timed out waiting for a reply, by request type.",
		}, []string{"request"}),
		CommandFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_command_failures_total",
			Help: "Total number of requests failed by the server, by request type.",
		}, []string{"request"}),
		Unclaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_unclaimed_responses_total",
			Help: "Total number of responses with no matching outstanding request.",
		}),
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of sessions started, by workflow.",
		}, []string{"workflow"}),
		SessionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_rejected_total",
			Help: "Total number of sessions refused, by reason.",
		}, []string{"reason"}),
		reg: reg,
	}
}

// CommandSent records a sent request.
func (m *Metrics) CommandSent(request string, expectsReply bool) {
	m.Commands.WithLabelValues(request, strconv.FormatBool(expectsReply)).Inc()
}

// Gauges registers gauges that sample the live session and outstanding
// command counts on scrape. It is a no-op for unregistered metrics.
func (m *Metrics) Gauges(sessions, pending func() int) {
	if m.reg == nil {
		return
	}
	f := promauto.With(m.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Current number of live sessions.",
	}, func() float64 { return float64(sessions()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_commands_pending",
		Help: "Current number of requests awaiting a reply.",
	}, func() float64 { return float64(pending()) })
}
