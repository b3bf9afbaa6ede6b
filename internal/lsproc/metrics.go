// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lsproc

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("serenad.lsproc")
	meter  = otel.Meter("serenad.lsproc")

	operationLatency metric.Float64Histogram
	operationTotal   metric.Int64Counter
	serverSpawns     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		operationLatency, err = meter.Float64Histogram(
			"serenad.lsproc.operation.latency",
			metric.WithDescription("Language Server operation latency in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		operationTotal, err = meter.Int64Counter(
			"serenad.lsproc.operation.total",
			metric.WithDescription("Language Server operations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		serverSpawns, err = meter.Int64Counter(
			"serenad.lsproc.server.spawns",
			metric.WithDescription("Language Server subprocess spawn attempts by outcome"),
		)
		metricsErr = err
	})
	return metricsErr
}

func startOperationSpan(ctx context.Context, operation, language, filePath string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lsproc."+operation,
		trace.WithAttributes(
			attribute.String("lsproc.operation", operation),
			attribute.String("lsproc.language", language),
			attribute.String("lsproc.file_path", filePath),
		),
	)
}

func recordOperationMetrics(ctx context.Context, operation, language string, duration time.Duration, success bool) {
	if initMetrics() != nil {
		return
	}
	attrs := attribute.NewSet(
		attribute.String("operation", operation),
		attribute.String("language", language),
		attribute.Bool("success", success),
	)
	operationLatency.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attrs))
	operationTotal.Add(ctx, 1, metric.WithAttributeSet(attrs))
}

func recordServerSpawn(ctx context.Context, language string, success bool) {
	if initMetrics() != nil {
		return
	}
	serverSpawns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	))
}
