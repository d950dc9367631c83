package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"git.home.luguber.info/inful/audiohub/internal/services"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the Prometheus registry over HTTP.
type MetricsServer struct {
	listen string
	server *http.Server

	errCh chan error
}

// NewMetricsServer creates the /metrics endpoint server.
func NewMetricsServer(listen string, reg *prom.Registry) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &MetricsServer{
		listen: listen,
		server: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		errCh: make(chan error, 1),
	}
}

// Name implements services.ManagedService.
func (m *MetricsServer) Name() string { return "metrics-server" }

// Dependencies implements services.ManagedService.
func (m *MetricsServer) Dependencies() []string { return nil }

// Health implements services.ManagedService.
func (m *MetricsServer) Health() services.HealthStatus {
	select {
	case err := <-m.errCh:
		return services.Unhealthy(err.Error())
	default:
		return services.Healthy()
	}
}

// Start implements services.ManagedService.
func (m *MetricsServer) Start(_ context.Context) error {
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
			select {
			case m.errCh <- err:
			default:
			}
		}
	}()

	slog.Info("Metrics server started", "listen", m.listen)
	return nil
}

// Stop implements services.ManagedService.
func (m *MetricsServer) Stop(ctx context.Context) error {
	if err := m.server.Shutdown(ctx); err != nil {
		return ferrors.DaemonError("metrics server shutdown failed").
			WithCause(err).
			Build()
	}
	return nil
}
