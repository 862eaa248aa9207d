// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tracing provides a pipeline policy which records an
// OpenTelemetry client span for every physical attempt and propagates
// the trace context to the server in request headers.
package tracing

import (
	"net/http"
	"strconv"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

// PolicyName is the name under which a tracing Policy is registered in
// a pipeline.
const PolicyName = "tracing"

// ScopeName is the instrumentation scope of the spans a Policy
// records.
const ScopeName = "github.com/gogama/pipeline/tracing"

// RequestIDKey is the span attribute holding the request id.
const RequestIDKey = attribute.Key("pipeline.request.id")

// A Policy starts a span named "HTTP <METHOD>" around each attempt.
// The span ends in error status if the attempt fails or the server
// responds with a 5xx status code.
type Policy struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// An Option configures a Policy.
type Option func(*Policy)

// WithTracerProvider sets the provider of the policy's tracer. The
// default is the global provider, otel.GetTracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Policy) {
		p.tracer = tp.Tracer(ScopeName)
	}
}

// WithPropagator sets the propagator which writes the trace context
// into request headers. The default is the global propagator,
// otel.GetTextMapPropagator.
func WithPropagator(tmp propagation.TextMapPropagator) Option {
	return func(p *Policy) {
		p.propagator = tmp
	}
}

// New constructs a tracing policy.
func New(opts ...Option) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.GetTracerProvider().Tracer(ScopeName)
	}
	if p.propagator == nil {
		p.propagator = otel.GetTextMapPropagator()
	}
	return p
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sends r to next inside a client span.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	method := r.Method
	if method == "" {
		method = "GET"
	}
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.URLFull(fault.RedactURL(r.URL)),
		RequestIDKey.String(r.RequestID),
	}
	if r.URL != nil {
		attrs = append(attrs, semconv.ServerAddress(r.URL.Hostname()))
		if port, err := strconv.Atoi(r.URL.Port()); err == nil {
			attrs = append(attrs, semconv.ServerPort(port))
		}
	}
	if r.RetryCount > 0 {
		attrs = append(attrs, semconv.HTTPRequestResendCount(r.RetryCount))
	}
	ctx, span := p.tracer.Start(r.Context(), "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	defer span.End()

	if r.Header == nil {
		r.Header = make(http.Header)
	}
	p.propagator.Inject(ctx, propagation.HeaderCarrier(r.Header))
	resp, err := next.Send(r.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}
