// Package telemetry exposes the node's operational state as
// prometheus metrics. go.mod carries prometheus/client_golang; this
// package is where that dependency gets exercised, grouped
// the way other_examples' tbc.go service wires its own gauges
// (prometheus.Collector slice handed to an HTTP-served registry)
// adapted here to this module's own metric set instead of a cloned
// chain-sync subsystem.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

const subsystem = "p2p0mq"

// Hook is the collaborator handlers and workers report state changes
// through. A nil *Hook is never passed around; callers use NoOp()
// when metrics are disabled.
type Hook interface {
	QueueDepth(priority types.Priority, depth int)
	PeerCount(state types.PeerState, count int)
	MessageSent(command string)
	MessageDropped(command string)
	MessageRelayed(command string)
}

type noopHook struct{}

func (noopHook) QueueDepth(types.Priority, int)    {}
func (noopHook) PeerCount(types.PeerState, int)    {}
func (noopHook) MessageSent(string)                {}
func (noopHook) MessageDropped(string)             {}
func (noopHook) MessageRelayed(string)             {}

// NoOp returns a Hook that discards every observation, the default
// when no listen address is configured.
func NoOp() Hook { return noopHook{} }

// PrometheusHook is the real Hook implementation, registering gauges
// per priority lane and per peer state, plus counters for the three
// terminal outcomes a message can have.
type PrometheusHook struct {
	registry *prometheus.Registry

	queueDepth     *prometheus.GaugeVec
	peerCount      *prometheus.GaugeVec
	sentTotal      *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	relayedTotal   *prometheus.CounterVec
}

// NewPrometheusHook builds and registers every collector on a fresh
// registry.
func NewPrometheusHook() *PrometheusHook {
	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "outbound_queue_depth",
			Help:      "Number of messages waiting in the outbound queue, by priority lane.",
		}, []string{"priority"}),
		peerCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "peers",
			Help:      "Number of known peers, by state.",
		}, []string{"state"}),
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Messages successfully handed to the transport, by command.",
		}, []string{"command"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "messages_dropped_total",
			Help:      "Messages dropped (expired or unsendable), by command.",
		}, []string{"command"}),
		relayedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "messages_relayed_total",
			Help:      "Messages the router handed to the sender (forwarded routes and the discovery requests composed for them), by command.",
		}, []string{"command"}),
	}

	h.registry.MustRegister(h.queueDepth, h.peerCount, h.sentTotal, h.droppedTotal, h.relayedTotal)
	return h
}

func (h *PrometheusHook) QueueDepth(priority types.Priority, depth int) {
	h.queueDepth.WithLabelValues(priority.String()).Set(float64(depth))
}

func (h *PrometheusHook) PeerCount(state types.PeerState, count int) {
	h.peerCount.WithLabelValues(state.String()).Set(float64(count))
}

func (h *PrometheusHook) MessageSent(command string) { h.sentTotal.WithLabelValues(command).Inc() }

func (h *PrometheusHook) MessageDropped(command string) {
	h.droppedTotal.WithLabelValues(command).Inc()
}

func (h *PrometheusHook) MessageRelayed(command string) {
	h.relayedTotal.WithLabelValues(command).Inc()
}

// Handler returns the http.Handler serving this hook's registry in
// the usual /metrics exposition format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

var _ Hook = (*PrometheusHook)(nil)
