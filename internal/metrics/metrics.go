package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tdh8316/rbxsniper/internal/checker"
)

const namespace = "sniper"

// Recorder counts pool events and proxy traffic in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	attempts prometheus.Counter
	outcomes *prometheus.CounterVec
	found    prometheus.Counter
	upstream *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Candidates generated and submitted for checking.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Check outcomes by classification.",
		}, []string{"status"}),
		found: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "found_total",
			Help:      "Available usernames recorded.",
		}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_upstream_responses_total",
			Help:      "Validation proxy responses by HTTP status code.",
		}, []string{"code"}),
	}
	r.registry.MustRegister(r.attempts, r.outcomes, r.found, r.upstream)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveAttempt() { r.attempts.Inc() }

func (r *Recorder) ObserveOutcome(status checker.Status) {
	r.outcomes.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) ObserveFound() { r.found.Inc() }

// ObserveProxyResponse counts one response written by the validation proxy.
func (r *Recorder) ObserveProxyResponse(code string) {
	r.upstream.WithLabelValues(code).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
