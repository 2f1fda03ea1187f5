package distlimiter

// MetricsRecorder receives one Observe call per admission decision, with
// the resource key and whether the request was limited. The counter name
// and registry wiring are caller concerns; this package only defines the
// shape of the signal. promrecorder.New provides a Prometheus-backed
// implementation; NoopRecorder is the default when no metrics sink is
// configured.
type MetricsRecorder interface {
	Observe(resourceKey string, limited bool)
}

// NoopRecorder discards every observation. It is the default
// MetricsRecorder so this package is usable without forcing a metrics
// decision on callers.
type NoopRecorder struct{}

func (NoopRecorder) Observe(resourceKey string, limited bool) {}
