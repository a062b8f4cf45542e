package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "planner"
	metricsSubsystem = "kafka"
)

// Consume outcomes recorded in consumedTotal.
const (
	resultOK      = "ok"
	resultFailed  = "failed"
	resultInvalid = "invalid"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "published_total",
		Help:      "Events published, by topic.",
	}, []string{"topic"})

	publishErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "publish_errors_total",
		Help:      "Events the broker did not accept, by topic.",
	}, []string{"topic"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing one event to the broker.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"topic"})

	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "consumed_total",
		Help:      "Messages consumed, by topic and result (ok, failed, invalid).",
	}, []string{"topic", "result"})

	deadLetteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "dead_lettered_total",
		Help:      "Messages forwarded to a dead-letter topic, by source topic.",
	}, []string{"topic"})
)
