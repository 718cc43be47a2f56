package util

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "retail-order-service"

// Span attribute keys shared by the order and catalog operations
const (
	AttrBillID    = attribute.Key("order.bill_id")
	AttrShopID    = attribute.Key("order.shop_id")
	AttrLineCount = attribute.Key("order.line_count")
	AttrErrorCode = attribute.Key("error.code")
	attrNodeID    = attribute.Key("service.node_id")
)

var tracer trace.Tracer

// TracerOptions describe the process in exported spans
type TracerOptions struct {
	Endpoint string
	Env      string
	NodeID   int64
}

// InitTracer initializes OpenTelemetry tracing with Jaeger
func InitTracer(opts TracerOptions) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(serviceAttributes(opts)...),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(opts.Env)),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(serviceName)

	GetLogger().Info("Tracer initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.String("env", opts.Env),
		zap.Int64("node_id", opts.NodeID))
	return tp, nil
}

func serviceAttributes(opts TracerOptions) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		attrNodeID.Int64(opts.NodeID),
	}
	if opts.Env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Env))
	}
	return attrs
}

// samplerFor keeps every trace outside production and a tenth of root traces in it
func samplerFor(env string) sdktrace.Sampler {
	if env == "production" {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))
	}
	return sdktrace.AlwaysSample()
}

// GetTracer returns the global tracer
func GetTracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.Tracer(serviceName)
	}
	return tracer
}

// StartSpan starts a new span
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// EndSpan records err with its error code on span, if any, and ends it.
func EndSpan(span trace.Span, err error, code string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code != "" {
			span.SetAttributes(AttrErrorCode.String(code))
		}
	}
	span.End()
}
