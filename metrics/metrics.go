// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics provides a pipeline policy which exports Prometheus
// metrics about physical request attempts.
//
// A Collector is both a pipeline policy and a prometheus.Collector, so
// it is registered in two places:
//
//	c := metrics.NewCollector("myapp")
//	prometheus.MustRegister(c)
//	err := p.AddPolicy(c, pipeline.AfterPhase(pipeline.Retry))
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gogama/pipeline/request"
	"github.com/prometheus/client_golang/prometheus"
)

// PolicyName is the name under which a Collector is registered in a
// pipeline.
const PolicyName = "metrics"

// ErrorCode is the value of the code label for attempts which ended
// without an HTTP response.
const ErrorCode = "error"

// DefaultBuckets are the histogram buckets, in seconds, of the attempt
// duration metric.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// A Collector counts and times physical attempts.
type Collector struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewCollector constructs a Collector whose metric names are prefixed
// with namespace. An empty namespace means "pipeline".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "pipeline"
	}
	return &Collector{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of physical HTTP request attempts.",
			},
			[]string{"method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of physical HTTP request attempts until response headers.",
				Buckets:   DefaultBuckets,
			},
			[]string{"method"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "attempts_in_flight",
				Help:      "Number of physical HTTP request attempts in progress.",
			},
		),
	}
}

// MustRegister registers the collector with reg and returns it. It
// panics if registration fails.
func (c *Collector) MustRegister(reg prometheus.Registerer) *Collector {
	reg.MustRegister(c)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.attempts.Describe(ch)
	c.duration.Describe(ch)
	c.inFlight.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.attempts.Collect(ch)
	c.duration.Collect(ch)
	c.inFlight.Collect(ch)
}

// Name returns PolicyName.
func (c *Collector) Name() string {
	return PolicyName
}

// Send sends r to next and records the attempt.
func (c *Collector) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = "GET"
	}
	c.inFlight.Inc()
	start := time.Now()
	resp, err := next.Send(r)
	c.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	c.inFlight.Dec()
	code := ErrorCode
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	c.attempts.WithLabelValues(method, code).Inc()
	return resp, err
}
