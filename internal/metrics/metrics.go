package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors, registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webstackd",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service starts.",
		}, []string{"kind"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webstackd",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of service stops (graceful or forced).",
		}, []string{"kind"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webstackd",
			Subsystem: "service",
			Name:      "state_transitions_total",
			Help:      "Number of lifecycle state transitions.",
		}, []string{"kind", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "webstackd",
			Subsystem: "service",
			Name:      "current_state",
			Help:      "Current lifecycle state per service (1 = active state, 0 = inactive).",
		}, []string{"kind", "state"},
	)
	healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webstackd",
			Subsystem: "health",
			Name:      "checks_total",
			Help:      "Number of health probe results by outcome.",
		}, []string{"kind", "healthy"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webstackd",
			Subsystem: "health",
			Name:      "probe_duration_seconds",
			Help:      "Wall time of individual health probes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webstackd",
			Subsystem: "notify",
			Name:      "emitted_total",
			Help:      "Number of emitted notifications after gating.",
		}, []string{"kind", "type"},
	)
	configGenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "webstackd",
			Subsystem: "httpdconf",
			Name:      "generations_total",
			Help:      "Number of web-server configuration regenerations.",
		},
	)
)

// Register registers all collectors with r. Safe to call multiple times;
// subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceStarts, serviceStops, stateTransitions, currentState,
		healthChecks, probeDuration, notifications, configGenerations,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer; the caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Recording helpers below no-op until Register has been called.

func IncStart(kind string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(kind).Inc()
	}
}

func IncStop(kind string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(kind).Inc()
	}
}

func RecordTransition(kind, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(kind, from, to).Inc()
	}
}

func SetCurrentState(kind, state string, active bool) {
	if regOK.Load() {
		v := 0.0
		if active {
			v = 1.0
		}
		currentState.WithLabelValues(kind, state).Set(v)
	}
}

func IncHealthCheck(kind string, healthy bool) {
	if regOK.Load() {
		h := "false"
		if healthy {
			h = "true"
		}
		healthChecks.WithLabelValues(kind, h).Inc()
	}
}

func ObserveProbeDuration(kind string, seconds float64) {
	if regOK.Load() {
		probeDuration.WithLabelValues(kind).Observe(seconds)
	}
}

func IncNotification(kind, typ string) {
	if regOK.Load() {
		notifications.WithLabelValues(kind, typ).Inc()
	}
}

func IncConfigGeneration() {
	if regOK.Load() {
		configGenerations.Inc()
	}
}
