package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DatagramsIngress counts UDP datagrams received on the ingress socket.
	DatagramsIngress = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "datagrams_ingress_total",
			Help:      "Total number of UDP datagrams received on ingress",
		},
		[]string{"sender_class"},
	)

	// DatagramsEgress counts datagrams forwarded to the flight controller.
	DatagramsEgress = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "datagrams_egress_total",
			Help:      "Total number of datagrams forwarded to the flight controller",
		},
		[]string{},
	)

	// DatagramsDropped counts datagrams dropped at any pipeline stage.
	DatagramsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "datagrams_dropped_total",
			Help:      "Total number of datagrams dropped",
		},
		[]string{"stage", "reason"},
	)

	// DecisionsTotal counts Decision Engine outputs by state.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "decisions_total",
			Help:      "Total number of decisions by state",
		},
		[]string{"state", "severity"},
	)

	// DetectorTriggers counts each detector's positive (non-clean) verdicts.
	DetectorTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Name:      "detector_triggers_total",
			Help:      "Total number of non-clean detector verdicts",
		},
		[]string{"detector"},
	)

	// PipelineLatency observes end-to-end ingress-to-decision latency.
	PipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aegis",
			Name:      "pipeline_latency_seconds",
			Help:      "Ingress-to-decision pipeline latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent; safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(DatagramsIngress)
		prometheus.DefaultRegisterer.Register(DatagramsEgress)
		prometheus.DefaultRegisterer.Register(DatagramsDropped)
		prometheus.DefaultRegisterer.Register(DecisionsTotal)
		prometheus.DefaultRegisterer.Register(DetectorTriggers)
		prometheus.DefaultRegisterer.Register(PipelineLatency)
	})
}
