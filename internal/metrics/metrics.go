// Package metrics counts sync requests and where the startup list came from.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "todosync"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Load sources.
const (
	SourceRemote = "remote"
	SourceMirror = "mirror"
	SourceEmpty  = "empty"
)

// Sync holds the collectors used by the sync controller. A nil *Sync is a
// valid no-op recorder.
type Sync struct {
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge
	loads    *prometheus.CounterVec
}

// NewSync creates the collectors and registers them on reg.
func NewSync(reg prometheus.Registerer) (*Sync, error) {
	s := &Sync{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "requests_total",
			Help:      "Remote sync requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "in_flight",
			Help:      "Remote sync requests started but not yet settled.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_source_total",
			Help:      "Startup loads by the source that supplied the list.",
		}, []string{"source"}),
	}
	for _, c := range []prometheus.Collector{s.requests, s.inFlight, s.loads} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return s, nil
}

// Started marks a request as in flight.
func (s *Sync) Started() {
	if s == nil {
		return
	}
	s.inFlight.Inc()
}

// Settled records the outcome of a request started with Started.
func (s *Sync) Settled(operation string, err error) {
	if s == nil {
		return
	}
	s.inFlight.Dec()
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	s.requests.WithLabelValues(operation, outcome).Inc()
}

// Loaded records which source supplied the startup list.
func (s *Sync) Loaded(source string) {
	if s == nil {
		return
	}
	s.loads.WithLabelValues(source).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
