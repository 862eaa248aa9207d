// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogama/pipeline/config"
	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/metrics"
	"github.com/gogama/pipeline/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.RetryBase = time.Millisecond
	cfg.RetryCap = 2 * time.Millisecond
	cfg.NoJitter = true
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestNewDefaultPolicies(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		p, err := NewDefault(config.Default())
		require.NoError(t, err)
		assert.Equal(t, []string{
			"form-data", "multipart", "decompress", "user-agent", "request-id",
			"retry", "timeout", "tracing", "redirect", "proxy", "logging",
		}, names(p.Policies()))
	})
	t.Run("tls and metrics", func(t *testing.T) {
		cfg := config.Default()
		cfg.TLS.InsecureSkipVerify = true
		p, err := NewDefault(cfg, WithMetrics(metrics.NewCollector("")))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"form-data", "multipart", "tls", "decompress", "user-agent", "request-id",
			"retry", "timeout", "tracing", "redirect", "proxy", "logging", "metrics",
		}, names(p.Policies()))
	})
}

func TestNewDefaultErrors(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"negative retries", func(c *config.Config) { c.MaxRetries = -1 }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"bad proxy", func(c *config.Config) { c.Proxy.HTTPSProxy = "https://[::1%zz]:80" }},
		{"missing CA", func(c *config.Config) { c.TLS.CAFile = filepath.Join(t.TempDir(), "nope.pem") }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := config.Default()
			testCase.modify(&cfg)
			p, err := NewDefault(cfg)
			assert.Nil(t, p)
			assert.True(t, fault.IsConfiguration(err), "error %v", err)
		})
	}
}

func TestNewDefaultEndToEnd(t *testing.T) {
	var starts int32
	var lock sync.Mutex
	var final http.Header
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&starts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		final = r.Header.Clone()
		lock.Unlock()
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("hello, pipeline"))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	spans := tracetest.NewSpanRecorder()
	reg := prometheus.NewRegistry()
	cfg := fastConfig()
	cfg.UserAgent = "test-agent"
	p, err := NewDefault(cfg,
		WithLogger(logger),
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
		WithMetrics(metrics.NewCollector("").MustRegister(reg)),
	)
	require.NoError(t, err)
	defer p.CloseIdleConnections()

	r, err := request.New("GET", s.URL+"/start", nil)
	require.NoError(t, err)
	resp, err := p.SendRequest(r)
	require.NoError(t, err)
	b, err := resp.Bytes()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Uncompressed)
	assert.Equal(t, "hello, pipeline", string(b))
	assert.Equal(t, "/final", resp.Request.URL.Path)
	assert.Equal(t, int32(2), atomic.LoadInt32(&starts))

	lock.Lock()
	defer lock.Unlock()
	require.NotNil(t, final)
	assert.True(t, strings.HasPrefix(final.Get("User-Agent"), "test-agent pipeline/"), final.Get("User-Agent"))
	assert.Equal(t, r.RequestID, final.Get("X-Request-Id"))
	assert.Equal(t, "gzip, deflate, br, zstd", final.Get("Accept-Encoding"))

	var retried, serverError bool
	for _, e := range hook.AllEntries() {
		retried = retried || strings.HasPrefix(e.Message, "pipeline/retry: retrying in")
		serverError = serverError || (e.Level == logrus.WarnLevel && e.Message == "pipeline: server error response")
	}
	assert.True(t, retried)
	assert.True(t, serverError)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "HTTP GET", ended[1].Name())

	expected := `
# HELP pipeline_attempts_total Total number of physical HTTP request attempts.
# TYPE pipeline_attempts_total counter
pipeline_attempts_total{code="200",method="GET"} 1
pipeline_attempts_total{code="302",method="GET"} 1
pipeline_attempts_total{code="503",method="GET"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pipeline_attempts_total"))
}

func TestNewDefaultProxyPerRedirectHop(t *testing.T) {
	testCases := []struct {
		name  string
		start string
		loc   string
		hops  []string
	}{
		{
			name:  "proxied to no-proxy host",
			start: "http://public.example.com/a",
			loc:   "http://internal.corp/x",
			hops:  []string{"public.example.com via http://proxy.example:3128", "internal.corp direct"},
		},
		{
			name:  "no-proxy to proxied host",
			start: "http://internal.corp/a",
			loc:   "http://public.example.com/x",
			hops:  []string{"internal.corp direct", "public.example.com via http://proxy.example:3128"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var hops []string
			tr := request.SenderFunc(func(r *request.Request) (*request.Response, error) {
				via := "direct"
				if r.Proxy != nil {
					via = "via " + r.Proxy.String()
				}
				hops = append(hops, r.URL.Host+" "+via)
				resp := &request.Response{
					StatusCode: http.StatusOK,
					Status:     "200 OK",
					Header:     make(http.Header),
					Body:       io.NopCloser(strings.NewReader("")),
					Request:    r,
				}
				if len(hops) == 1 {
					resp.StatusCode, resp.Status = http.StatusFound, "302 Found"
					resp.Header.Set("Location", testCase.loc)
				}
				return resp, nil
			})
			logger, _ := test.NewNullLogger()
			cfg := fastConfig()
			cfg.Proxy = config.Proxy{HTTPProxy: "http://proxy.example:3128", NoProxy: "internal.corp"}
			p, err := NewDefault(cfg, WithLogger(logger), WithTransport(tr))
			require.NoError(t, err)

			r, err := request.New("GET", testCase.start, nil)
			require.NoError(t, err)
			resp, err := p.SendRequest(r)
			require.NoError(t, err)
			require.NoError(t, resp.Discard())
			assert.Equal(t, testCase.hops, hops)
		})
	}
}

func TestNewDefaultForm(t *testing.T) {
	type result struct {
		name, file, contentType string
	}
	got := make(chan result, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var file string
		if fhs := r.MultipartForm.File["upload"]; len(fhs) == 1 {
			f, err := fhs[0].Open()
			if err == nil {
				var buf bytes.Buffer
				_, _ = buf.ReadFrom(f)
				_ = f.Close()
				file = buf.String()
			}
		}
		got <- result{r.FormValue("name"), file, r.Header.Get("Content-Type")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer s.Close()

	logger, _ := test.NewNullLogger()
	p, err := NewDefault(fastConfig(), WithLogger(logger))
	require.NoError(t, err)

	r, err := request.New("POST", s.URL, nil)
	require.NoError(t, err)
	r.Form = &request.Form{
		Values: url.Values{"name": {"gopher"}},
		Files:  []request.File{{Field: "upload", Name: "a.txt", ContentType: "text/plain", Data: []byte("file body")}},
	}
	resp, err := p.SendRequest(r)
	require.NoError(t, err)
	require.NoError(t, resp.Discard())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	res := <-got
	assert.Equal(t, "gopher", res.name)
	assert.Equal(t, "file body", res.file)
	assert.True(t, strings.HasPrefix(res.contentType, "multipart/form-data; boundary="), res.contentType)
	assert.NotNil(t, r.Form, "caller's request keeps its form")
}
