package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_TransitionsAndActiveSource(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, []string{"spotify", "bluetooth"})

	pr.TransitionCompleted("success", 100*time.Millisecond)
	pr.TransitionCompleted("start_failed", 50*time.Millisecond)
	pr.SourceActive("spotify")

	require.Equal(t, 1.0, testutil.ToFloat64(pr.transitions.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(pr.transitions.WithLabelValues("start_failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(pr.activeSource.WithLabelValues("spotify")))
	require.Equal(t, 0.0, testutil.ToFloat64(pr.activeSource.WithLabelValues("bluetooth")))
	require.Equal(t, 0.0, testutil.ToFloat64(pr.activeSource.WithLabelValues("none")))

	pr.SourceActive("none")
	require.Equal(t, 0.0, testutil.ToFloat64(pr.activeSource.WithLabelValues("spotify")))
	require.Equal(t, 1.0, testutil.ToFloat64(pr.activeSource.WithLabelValues("none")))
}

func TestPrometheusRecorder_FeedReconnects(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, []string{"spotify"})

	pr.FeedReconnect("spotify")
	pr.FeedReconnect("spotify")
	require.Equal(t, 2.0, testutil.ToFloat64(pr.feedReconnects.WithLabelValues("spotify")))
}

func TestNoopRecorder_DoesNothing(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.TransitionCompleted("success", time.Second)
	r.SourceActive("spotify")
	r.FeedReconnect("spotify")
	r.PrivilegedCommand(time.Millisecond)
}
