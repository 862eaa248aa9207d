// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/gogama/pipeline/fault"
	"github.com/sirupsen/logrus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 800*time.Millisecond, c.RetryBase)
	assert.Equal(t, time.Minute, c.RetryCap)
	assert.Equal(t, 20, c.MaxRedirects)
	assert.Equal(t, "X-Request-Id", c.RequestIDHeader)
	assert.True(t, c.TLS.Empty())
	assert.NoError(t, c.Validate())
}

func TestFromEnv(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}
	t.Run("empty", func(t *testing.T) {
		c, err := Default().FromEnv(env(nil))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})
	t.Run("all", func(t *testing.T) {
		c, err := Default().FromEnv(env(map[string]string{
			"HTTPS_PROXY":          "http://secure.proxy:3128",
			"https_proxy":          "http://ignored:1",
			"http_proxy":           "http://plain.proxy:3128",
			"no_proxy":             "localhost,.internal",
			"PIPELINE_LOG_LEVEL":   "debug",
			"PIPELINE_MAX_RETRIES": " 7 ",
			"PIPELINE_USER_AGENT":  "tool/1.0",
		}))
		require.NoError(t, err)
		assert.Equal(t, Proxy{
			HTTPProxy:  "http://plain.proxy:3128",
			HTTPSProxy: "http://secure.proxy:3128",
			NoProxy:    "localhost,.internal",
		}, c.Proxy)
		assert.Equal(t, "debug", c.LogLevel)
		assert.Equal(t, 7, c.MaxRetries)
		assert.Equal(t, "tool/1.0", c.UserAgent)
	})
	t.Run("bad retries", func(t *testing.T) {
		_, err := Default().FromEnv(env(map[string]string{"PIPELINE_MAX_RETRIES": "many"}))
		assert.True(t, fault.IsConfiguration(err))
		assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
	})
}

func TestLoad(t *testing.T) {
	t.Run("overlay", func(t *testing.T) {
		c, err := Default().Load([]byte(`
maxRetries: 5
retryBase: 100ms
timeout: 2s
logQueryParams: [api-version]
proxy:
  httpsProxy: http://proxy.example:8080
tls:
  caFile: /etc/ca.pem
`))
		require.NoError(t, err)
		assert.Equal(t, 5, c.MaxRetries)
		assert.Equal(t, 100*time.Millisecond, c.RetryBase)
		assert.Equal(t, time.Minute, c.RetryCap)
		assert.Equal(t, 2*time.Second, c.Timeout)
		assert.Equal(t, []string{"api-version"}, c.LogQueryParams)
		assert.Equal(t, "http://proxy.example:8080", c.Proxy.HTTPSProxy)
		assert.Equal(t, "/etc/ca.pem", c.TLS.CAFile)
		assert.Equal(t, Default().LogHeaders, c.LogHeaders)
	})
	t.Run("invalid", func(t *testing.T) {
		base := Default()
		c, err := base.Load([]byte("maxRetries: [oops"))
		assert.True(t, fault.IsConfiguration(err))
		assert.Equal(t, base, c)
	})
	t.Run("file", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "pipeline.yaml")
		require.NoError(t, os.WriteFile(name, []byte("userAgent: file/2\n"), 0o600))
		c, err := Default().LoadFile(name)
		require.NoError(t, err)
		assert.Equal(t, "file/2", c.UserAgent)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Default().LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.True(t, fault.IsConfiguration(err))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLevel(t *testing.T) {
	lvl, err := Config{}.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lvl)
	lvl, err = Config{LogLevel: "warn"}.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, lvl)
	_, err = Config{LogLevel: "loud"}.Level()
	assert.True(t, fault.IsConfiguration(err))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero base", func(c *Config) { c.RetryBase = 0 }},
		{"cap below base", func(c *Config) { c.RetryCap = c.RetryBase - 1 }},
		{"negative redirects", func(c *Config) { c.MaxRedirects = -1 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"cert without key", func(c *Config) { c.TLS.CertFile = "cert.pem" }},
		{"key without cert", func(c *Config) { c.TLS.KeyFile = "key.pem" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad proxy", func(c *Config) { c.Proxy.HTTPSProxy = "http://%zz" }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			c := Default()
			testCase.mutate(&c)
			err := c.Validate()
			assert.True(t, fault.IsConfiguration(err), "got %v", err)
		})
	}
	t.Run("scheme-less proxy", func(t *testing.T) {
		c := Default()
		c.Proxy.HTTPProxy = "proxy.example:3128"
		assert.NoError(t, c.Validate())
	})
}
