package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	transitions        *prom.CounterVec
	transitionDuration prom.Histogram
	activeSource       *prom.GaugeVec
	feedReconnects     *prom.CounterVec
	privilegedDuration prom.Histogram

	knownSources map[string]struct{}
}

// NewPrometheusRecorder constructs and registers the core metrics.
func NewPrometheusRecorder(reg *prom.Registry, sources []string) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "audiohub",
			Name:      "transitions_total",
			Help:      "Source transitions by outcome",
		}, []string{"outcome"}),
		transitionDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "audiohub",
			Name:      "transition_duration_seconds",
			Help:      "Duration of source transitions",
			Buckets:   prom.DefBuckets,
		}),
		activeSource: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "audiohub",
			Name:      "source_active",
			Help:      "1 for the current source, 0 otherwise",
		}, []string{"source"}),
		feedReconnects: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "audiohub",
			Name:      "feed_reconnects_total",
			Help:      "Failed feed connection attempts",
		}, []string{"source"}),
		privilegedDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "audiohub",
			Name:      "privileged_command_duration_seconds",
			Help:      "Duration of privileged command invocations",
			Buckets:   prom.DefBuckets,
		}),
		knownSources: make(map[string]struct{}, len(sources)+1),
	}

	for _, s := range append([]string{"none"}, sources...) {
		pr.knownSources[s] = struct{}{}
		pr.activeSource.WithLabelValues(s).Set(0)
	}

	reg.MustRegister(pr.transitions, pr.transitionDuration, pr.activeSource,
		pr.feedReconnects, pr.privilegedDuration)
	return pr
}

// TransitionCompleted implements Recorder.
func (pr *PrometheusRecorder) TransitionCompleted(outcome string, duration time.Duration) {
	pr.transitions.WithLabelValues(outcome).Inc()
	pr.transitionDuration.Observe(duration.Seconds())
}

// SourceActive implements Recorder.
func (pr *PrometheusRecorder) SourceActive(source string) {
	for s := range pr.knownSources {
		val := 0.0
		if s == source {
			val = 1.0
		}
		pr.activeSource.WithLabelValues(s).Set(val)
	}
}

// FeedReconnect implements Recorder.
func (pr *PrometheusRecorder) FeedReconnect(source string) {
	pr.feedReconnects.WithLabelValues(source).Inc()
}

// PrivilegedCommand implements Recorder.
func (pr *PrometheusRecorder) PrivilegedCommand(duration time.Duration) {
	pr.privilegedDuration.Observe(duration.Seconds())
}
