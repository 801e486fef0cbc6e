package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InitMeterProvider registers a Prometheus-backed meter provider as the
// global one. The returned handler serves /metrics from registry.
func InitMeterProvider(res *resource.Resource, registry *prometheus.Registry) (http.Handler, func(context.Context) error, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}), mp.Shutdown, nil
}
