// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"os"
	"time"

	"github.com/gogama/pipeline/config"
	"github.com/gogama/pipeline/decompress"
	"github.com/gogama/pipeline/form"
	"github.com/gogama/pipeline/logging"
	"github.com/gogama/pipeline/metrics"
	"github.com/gogama/pipeline/proxy"
	"github.com/gogama/pipeline/redirect"
	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/requestid"
	"github.com/gogama/pipeline/retry"
	"github.com/gogama/pipeline/timeout"
	"github.com/gogama/pipeline/tlscert"
	"github.com/gogama/pipeline/tracing"
	"github.com/gogama/pipeline/useragent"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// A DefaultOption customizes the pipeline built by NewDefault.
type DefaultOption func(*defaults)

type defaults struct {
	transport request.Sender
	logger    logrus.FieldLogger
	tracer    trace.TracerProvider
	metrics   *metrics.Collector
}

// WithTransport sets the transport of the default pipeline. The
// default is transport.Default.
func WithTransport(t request.Sender) DefaultOption {
	return func(d *defaults) {
		d.transport = t
	}
}

// WithLogger sets the logger used by the logging and retry policies.
// The default is a new logrus logger writing to standard error at the
// configured level.
func WithLogger(l logrus.FieldLogger) DefaultOption {
	return func(d *defaults) {
		d.logger = l
	}
}

// WithTracerProvider sets the tracer provider of the tracing policy.
// The default is the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) DefaultOption {
	return func(d *defaults) {
		d.tracer = tp
	}
}

// WithMetrics adds c to the default pipeline as a per-attempt policy.
// Registering c with a Prometheus registry is up to the caller.
func WithMetrics(c *metrics.Collector) DefaultOption {
	return func(d *defaults) {
		d.metrics = c
	}
}

// NewDefault builds the standard pipeline described by cfg. From the
// outside in, its policies are:
//
// • in Serialize: form-data then multipart, which turn structured
// bodies into bytes;
//
// • in NoPhase: tls (only if cfg.TLS is not empty), decompress,
// user-agent and request-id;
//
// • in Retry: retry, with the throttling, transport-failure and
// exponential strategies; and
//
// • after Retry, once per attempt: timeout, tracing, redirect, proxy,
// logging, and metrics if WithMetrics is given. The proxy policy sits
// inside the redirect policy so every hop gets its own proxy.
//
// The returned error, if any, is a *fault.ConfigurationError reporting
// an invalid cfg, proxy URL or TLS material.
func NewDefault(cfg config.Config, opts ...DefaultOption) (*Pipeline, error) {
	var d defaults
	for _, opt := range opts {
		opt(&d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.logger == nil {
		lvl, _ := cfg.Level()
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lvl)
		d.logger = l
	}

	p := New(d.transport)
	add := func(pol Policy, opts ...AddOption) {
		if err := p.AddPolicy(pol, opts...); err != nil {
			panic(err)
		}
	}

	add(form.FormData(), InPhase(Serialize))
	add(form.Multipart(), InPhase(Serialize), After(form.FormDataPolicyName))

	if !cfg.TLS.Empty() {
		t, err := tlscert.New(tlscert.Options(cfg.TLS))
		if err != nil {
			return nil, err
		}
		add(t)
	}
	px, err := proxy.New(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	add(decompress.New())
	add(useragent.New(cfg.UserAgent))
	add(requestid.New(cfg.RequestIDHeader))

	add(retryPolicy(cfg).WithLogger(d.logger), InPhase(Retry))

	add(timeout.Fixed(cfg.Timeout), AfterPhase(Retry))
	var tracingOpts []tracing.Option
	if d.tracer != nil {
		tracingOpts = append(tracingOpts, tracing.WithTracerProvider(d.tracer))
	}
	add(tracing.New(tracingOpts...), AfterPhase(Retry))
	rd := redirect.New(cfg.MaxRedirects)
	rd.ForwardCredentials = cfg.ForwardCredentials
	add(rd, AfterPhase(Retry))
	add(px, AfterPhase(Retry), After(redirect.PolicyName))
	add(logging.New(d.logger, logging.NewSanitizer(cfg.LogHeaders, cfg.LogQueryParams)), AfterPhase(Retry))
	if d.metrics != nil {
		add(d.metrics, AfterPhase(Retry))
	}
	return p, nil
}

func retryPolicy(cfg config.Config) *retry.Policy {
	var jitter interface{} = time.Now()
	if cfg.NoJitter {
		jitter = nil
	}
	w := retry.NewExpWaiter(cfg.RetryBase, cfg.RetryCap, jitter)
	return retry.NewPolicy(cfg.MaxRetries,
		retry.Throttling(),
		retry.TransportFailure(w),
		retry.Exponential(retry.DefaultStatusCodes, w),
	)
}
