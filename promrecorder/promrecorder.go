// Package promrecorder adapts github.com/prometheus/client_golang to the
// distlimiter.MetricsRecorder contract, in the idiom of this corpus's
// other Prometheus-backed rate-limiting collaborators.
package promrecorder

import "github.com/prometheus/client_golang/prometheus"

// Recorder increments a CounterVec labeled {service_name, limited} on
// every admission decision.
type Recorder struct {
	counter *prometheus.CounterVec
}

// New registers (via reg) a rate_limiter_requests_total counter vector and
// returns a Recorder that increments it. Passing prometheus.DefaultRegisterer
// registers against the global default registry.
func New(reg prometheus.Registerer) (*Recorder, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limiter_requests_total",
		Help: "Admission decisions made by the distributed rate limiter, labeled by resource and outcome.",
	}, []string{"service_name", "limited"})

	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			counter = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &Recorder{counter: counter}, nil
}

// Observe increments the counter for resourceKey with the limited label
// set to "true" or "false".
func (r *Recorder) Observe(resourceKey string, limited bool) {
	label := "false"
	if limited {
		label = "true"
	}
	r.counter.WithLabelValues(resourceKey, label).Inc()
}
