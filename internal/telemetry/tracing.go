// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry wires the tracer and Prometheus metrics every analysis
// run reports through.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// analysisTracer is the shared OTel tracer for every internal package that
// spans analysis phases.
var analysisTracer = otel.Tracer("faultline.analysis")

// Tracer returns the package-level analysis tracer, mirroring the teacher's
// own package-level `otel.Tracer(name)` convention instead of passing a
// tracer instance through every call.
func Tracer() trace.Tracer { return analysisTracer }

// NewTracerProvider builds an SDK TracerProvider with a stdouttrace exporter
// writing to w (so the tool runs standalone with no collector dependency)
// and installs it as the global provider. The returned shutdown func must
// be called before process exit to flush pending spans.
func NewTracerProvider(w io.Writer, prettyPrint bool) (shutdown func(context.Context) error, err error) {
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if prettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}

	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
