// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry wires the global OpenTelemetry tracer and meter
// providers every other package's otel.Tracer/otel.Meter calls resolve
// against. Traces go to an OTLP collector when configured, falling back
// to stdout; metrics feed a Prometheus exporter so they surface on the
// operational /metrics endpoint (§6).
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Shutdown flushes and releases both providers. Errors are logged, not
// returned, matching the rest of the orchestrator's best-effort cleanup.
type Shutdown func(ctx context.Context)

// Init sets the global tracer and meter providers for serviceName. When
// OTEL_EXPORTER_OTLP_ENDPOINT is set, traces are batched to that OTLP
// collector over gRPC; otherwise they're written to stdout, which is
// enough to confirm spans are flowing during local development. Metrics
// always go through the Prometheus exporter, registered against the
// default registry the /metrics handler serves.
func Init(ctx context.Context, serviceName string, logger *slog.Logger) (Shutdown, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}

	tracerProvider, traceShutdown, err := newTracerProvider(ctx, res, logger)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	meterProvider, meterShutdown, err := newMeterProvider(res, logger)
	if err != nil {
		traceShutdown(ctx)
		return nil, err
	}
	otel.SetMeterProvider(meterProvider)

	return func(shutdownCtx context.Context) {
		traceShutdown(shutdownCtx)
		meterShutdown(shutdownCtx)
	}, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, logger *slog.Logger) (*sdktrace.TracerProvider, Shutdown, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, err
		}
		provider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
		return provider, shutdownFunc(provider, "tracer provider", logger), nil
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	return provider, shutdownFunc(provider, "tracer provider", logger), nil
}

func newMeterProvider(res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, Shutdown, error) {
	promExporter, err := otelprom.New()
	if err != nil {
		return nil, nil, err
	}
	readers := []sdkmetric.Option{sdkmetric.WithReader(promExporter), sdkmetric.WithResource(res)}

	if os.Getenv("SERENAD_DEBUG_METRICS") != "" {
		debugExporter, err := stdoutmetric.New()
		if err == nil {
			readers = append(readers, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(debugExporter, sdkmetric.WithInterval(30*time.Second))))
		}
	}

	provider := sdkmetric.NewMeterProvider(readers...)
	return provider, shutdownFunc(provider, "meter provider", logger), nil
}

type shutdownable interface {
	Shutdown(ctx context.Context) error
}

func shutdownFunc(p shutdownable, name string, logger *slog.Logger) Shutdown {
	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown error", slog.String("component", name), slog.Any("error", err))
		}
	}
}
