// Package metrics exposes the agent's Prometheus registry: turn
// latency, tool dispatch counts, cron executions, and SSE connection
// gauges, served at /metrics by webui.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every metric this kernel emits.
type Registry struct {
	reg *prometheus.Registry

	TurnLatencySeconds *prometheus.HistogramVec
	ToolDispatchTotal  *prometheus.CounterVec
	CronExecutionTotal *prometheus.CounterVec
	SSEConnections     prometheus.Gauge
	LifecycleState     prometheus.Gauge
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		TurnLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teleton",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one agent turn, from dispatch to final reply.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chat_id"}),
		ToolDispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teleton",
			Name:      "tool_dispatch_total",
			Help:      "Count of tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		CronExecutionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teleton",
			Name:      "cron_execution_total",
			Help:      "Count of cron job executions by job id and outcome.",
		}, []string{"job", "outcome"}),
		SSEConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "teleton",
			Name:      "sse_connections",
			Help:      "Current number of open lifecycle event SSE connections.",
		}),
		LifecycleState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "teleton",
			Name:      "lifecycle_state",
			Help:      "Current lifecycle state as an integer: 0=stopped 1=starting 2=running 3=stopping.",
		}),
	}
}

// Registerer exposes the underlying registry for http.Handler wiring.
func (r *Registry) Registerer() *prometheus.Registry { return r.reg }
