package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewPrometheusHandler creates an exporter bound to its own registry and the handler serving it at endpoint
func NewPrometheusHandler(endpoint string) (sdkmetric.Reader, *http.ServeMux, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return exporter, mux, nil
}

// startPrometheus serves metrics on a dedicated port and registers its shutdown
func (om *ObservabilityManager) startPrometheus() (sdkmetric.Reader, error) {
	cfg := om.config.Prometheus

	reader, mux, err := NewPrometheusHandler(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		om.logger.Info("Starting Prometheus metrics server", "addr", server.Addr, "endpoint", cfg.Endpoint)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			om.logger.LogError(err, "Prometheus server error", "addr", server.Addr)
		}
	}()

	om.shutdownFuncs = append(om.shutdownFuncs, func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	return reader, nil
}
