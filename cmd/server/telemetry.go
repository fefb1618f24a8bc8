package main

import (
	"fmt"
	"io"

	"github.com/phrazzld/scry-studio/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// setupTelemetry creates a meter provider periodically exporting task
// metrics to w. It returns nil when telemetry is disabled.
func setupTelemetry(cfg config.TelemetryConfig, w io.Writer) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval))),
	)
	otel.SetMeterProvider(provider)
	return provider, nil
}
