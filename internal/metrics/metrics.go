// Package metrics defines the Prometheus instruments updated by the
// network side of the client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument. Build it once per registry.
type Metrics struct {
	// LinesReceived - raw protocol lines read from the transport.
	LinesReceived prometheus.Counter
	// ParseErrors - lines dropped because they did not parse.
	ParseErrors prometheus.Counter
	// Messages - chat lines appended to the scrollback.
	Messages prometheus.Counter
	// Reconnects - scheduled reconnect attempts.
	Reconnects prometheus.Counter
	// Evictions - lines dropped from the scrollback for capacity.
	Evictions prometheus.Counter

	// SessionPhase - numeric session phase.
	SessionPhase prometheus.Gauge
	// ScrollbackLines - lines currently held.
	ScrollbackLines prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		LinesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "chattui_lines_received_total",
			Help: "Total number of protocol lines received",
		}),
		ParseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "chattui_parse_errors_total",
			Help: "Total number of received lines that failed to parse",
		}),
		Messages: f.NewCounter(prometheus.CounterOpts{
			Name: "chattui_messages_total",
			Help: "Total number of chat messages added to the scrollback",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "chattui_reconnects_total",
			Help: "Total number of reconnect attempts scheduled",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "chattui_scrollback_evictions_total",
			Help: "Total number of lines evicted from the scrollback",
		}),
		SessionPhase: f.NewGauge(prometheus.GaugeOpts{
			Name: "chattui_session_phase",
			Help: "Current session phase (0 disconnected .. 6 terminated)",
		}),
		ScrollbackLines: f.NewGauge(prometheus.GaugeOpts{
			Name: "chattui_scrollback_lines",
			Help: "Number of lines currently held in the scrollback",
		}),
	}
}

// Discard returns instruments registered on a private registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
