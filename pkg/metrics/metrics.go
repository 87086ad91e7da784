// ABOUTME: Prometheus counters for interpreter intents, tool calls, and provider pushes
// ABOUTME: Each server owns its own registry so tests never collide

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "calendar_mcp"

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics records service counters
type Metrics struct {
	registry *prometheus.Registry

	intentsTotal   *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	pushesTotal    *prometheus.CounterVec
}

// New creates a Metrics instance registered on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Messages interpreted, by classified intent",
		}, []string{"intent"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "MCP tool invocations, by tool and result",
		}, []string{"tool", "result"}),
		pushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_pushes_total",
			Help:      "Events pushed to a calendar provider or .ics fallback",
		}, []string{"provider", "result"}),
	}

	m.registry.MustRegister(
		m.intentsTotal,
		m.toolCallsTotal,
		m.pushesTotal,
		collectors.NewGoCollector(),
	)
	return m
}

// RecordIntent counts one interpreted message
func (m *Metrics) RecordIntent(intent string) {
	m.intentsTotal.WithLabelValues(intent).Inc()
}

// RecordToolCall counts one tool invocation
func (m *Metrics) RecordToolCall(tool string, isError bool) {
	m.toolCallsTotal.WithLabelValues(tool, result(isError)).Inc()
}

// RecordPush counts one provider push
func (m *Metrics) RecordPush(provider string, err error) {
	m.pushesTotal.WithLabelValues(provider, result(err != nil)).Inc()
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(isError bool) string {
	if isError {
		return ResultError
	}
	return ResultSuccess
}
