// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogama/pipeline/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(code int) request.Sender {
	return request.SenderFunc(func(*request.Request) (*request.Response, error) {
		return &request.Response{StatusCode: code}, nil
	})
}

func send(t *testing.T, c *Collector, method string, next request.Sender) {
	r, err := request.New(method, "http://example.test/", nil)
	require.NoError(t, err)
	_, _ = c.Send(r, next)
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollector("").MustRegister(reg)
	assert.Equal(t, "metrics", c.Name())

	send(t, c, "GET", status(200))
	send(t, c, "GET", status(200))
	send(t, c, "POST", status(503))
	send(t, c, "GET", request.SenderFunc(func(*request.Request) (*request.Response, error) {
		return nil, errors.New("connection refused")
	}))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.attempts.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("POST", "503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("GET", ErrorCode)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))

	expected := `
# HELP pipeline_attempts_total Total number of physical HTTP request attempts.
# TYPE pipeline_attempts_total counter
pipeline_attempts_total{code="200",method="GET"} 2
pipeline_attempts_total{code="503",method="POST"} 1
pipeline_attempts_total{code="error",method="GET"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pipeline_attempts_total"))
}

func TestCollectorInFlight(t *testing.T) {
	c := NewCollector("app")
	var during float64
	send(t, c, "GET", request.SenderFunc(func(*request.Request) (*request.Response, error) {
		during = testutil.ToFloat64(c.inFlight)
		return &request.Response{StatusCode: 204}, nil
	}))
	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
}

func TestCollectorNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("app").MustRegister(reg)
	send(t, c, "GET", status(200))
	n, err := testutil.GatherAndCount(reg, "app_attempts_total", "app_attempt_duration_seconds", "app_attempts_in_flight")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Panics(t, func() { c.MustRegister(reg) })
}
