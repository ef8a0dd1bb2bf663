// Package tracing wires OpenTelemetry spans around scheduler node dispatch
// and LLM provider calls, exported via OTLP/HTTP the same way a Jaeger or
// Grafana Tempo collector would ingest them.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls where spans are exported. Endpoint empty disables
// tracing: NewProvider then returns a no-op provider so callers never need
// to nil-check.
type Config struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// NewProvider builds an OTLP/HTTP-exporting TracerProvider and installs it
// as the global provider, or returns a no-op provider when cfg.Endpoint is
// unset. The caller must Shutdown the returned provider on exit to flush
// buffered spans.
func NewProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if cfg.Endpoint == "" {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: new otlp exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "duragraph"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// NodeSpanCallback returns an execdomain.Callbacks.OnNodeSpan implementation
// that opens one span per node dispatch, named after the node kind, and
// records the dispatch error (if any) on close.
func NodeSpanCallback(tracerName string) func(ctx context.Context, nodeID, nodeKind string) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName)
	return func(ctx context.Context, nodeID, nodeKind string) (context.Context, func(error)) {
		spanCtx, span := tracer.Start(ctx, "node."+nodeKind, trace.WithAttributes(
			attribute.String("duragraph.node_id", nodeID),
			attribute.String("duragraph.node_kind", nodeKind),
		))
		start := time.Now()
		return spanCtx, func(err error) {
			span.SetAttributes(attribute.Int64("duragraph.duration_ms", time.Since(start).Milliseconds()))
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			}
			span.End()
		}
	}
}

// ProviderSpan wraps a single LLM provider call in a child span, for use
// around llm.Provider.Chat call sites.
func ProviderSpan(ctx context.Context, tracerName, model string) (context.Context, func(err error, promptTokens, completionTokens int)) {
	tracer := otel.Tracer(tracerName)
	spanCtx, span := tracer.Start(ctx, "llm.chat", trace.WithAttributes(
		attribute.String("duragraph.llm.model", model),
	))
	return spanCtx, func(err error, promptTokens, completionTokens int) {
		span.SetAttributes(
			attribute.Int("duragraph.llm.tokens_in", promptTokens),
			attribute.Int("duragraph.llm.tokens_out", completionTokens),
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}
}
