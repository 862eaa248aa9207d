// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/logging"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const op = "config"

// Config holds the settings for a default pipeline.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"maxRetries"`
	// RetryBase is the base delay of exponential backoff.
	RetryBase time.Duration `yaml:"retryBase"`
	// RetryCap is the largest backoff delay before jitter.
	RetryCap time.Duration `yaml:"retryCap"`
	// NoJitter disables backoff jitter.
	NoJitter bool `yaml:"noJitter"`
	// MaxRedirects is the number of redirects followed per request.
	// Zero disables redirect following.
	MaxRedirects int `yaml:"maxRedirects"`
	// ForwardCredentials keeps credential headers on cross-origin
	// redirects.
	ForwardCredentials bool `yaml:"forwardCredentials"`
	// Timeout bounds each physical attempt. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent is prepended to the pipeline's User-Agent value.
	UserAgent string `yaml:"userAgent"`
	// RequestIDHeader is the header carrying the request id.
	RequestIDHeader string `yaml:"requestIdHeader"`
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"logLevel"`
	// LogHeaders lists the header names logged unredacted.
	LogHeaders []string `yaml:"logHeaders"`
	// LogQueryParams lists the query parameter names logged
	// unredacted.
	LogQueryParams []string `yaml:"logQueryParams"`
	// Proxy selects the proxy for outgoing requests.
	Proxy Proxy `yaml:"proxy"`
	// TLS holds client certificate material.
	TLS TLS `yaml:"tls"`
}

// Proxy holds proxy settings in the same form as the conventional
// environment variables.
type Proxy struct {
	// HTTPProxy is the proxy URL for http requests.
	HTTPProxy string `yaml:"httpProxy"`
	// HTTPSProxy is the proxy URL for https requests.
	HTTPSProxy string `yaml:"httpsProxy"`
	// NoProxy is a comma-separated list of hosts which bypass the
	// proxy. Entries may be exact host names, domain suffixes with a
	// leading ".", IP addresses, CIDR blocks, or "*".
	NoProxy string `yaml:"noProxy"`
}

// TLS holds paths to PEM-encoded client TLS material.
type TLS struct {
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// Empty reports whether no TLS material is configured.
func (t TLS) Empty() bool {
	return t.CAFile == "" && t.CertFile == "" && t.KeyFile == "" && !t.InsecureSkipVerify
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxRetries:      3,
		RetryBase:       800 * time.Millisecond,
		RetryCap:        time.Minute,
		MaxRedirects:    20,
		RequestIDHeader: "X-Request-Id",
		LogLevel:        "info",
		LogHeaders:      append([]string(nil), logging.DefaultHeaders...),
	}
}

// FromEnv returns c overlaid with settings from the environment, as
// looked up by getenv. A nil getenv means os.Getenv.
//
// The variables consulted are HTTPS_PROXY, HTTP_PROXY and NO_PROXY
// (upper case taking precedence over lower case), PIPELINE_LOG_LEVEL,
// PIPELINE_MAX_RETRIES, and PIPELINE_USER_AGENT. Unset variables leave
// the corresponding setting unchanged.
func (c Config) FromEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	either := func(names ...string) string {
		for _, name := range names {
			if v := getenv(name); v != "" {
				return v
			}
		}
		return ""
	}
	if v := either("HTTPS_PROXY", "https_proxy"); v != "" {
		c.Proxy.HTTPSProxy = v
	}
	if v := either("HTTP_PROXY", "http_proxy"); v != "" {
		c.Proxy.HTTPProxy = v
	}
	if v := either("NO_PROXY", "no_proxy"); v != "" {
		c.Proxy.NoProxy = v
	}
	if v := getenv("PIPELINE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("PIPELINE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return c, &fault.ConfigurationError{Op: op, Msg: "invalid PIPELINE_MAX_RETRIES", Err: err}
		}
		c.MaxRetries = n
	}
	if v := getenv("PIPELINE_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	return c, nil
}

// LoadFile returns c overlaid with the YAML document in the named
// file. Keys absent from the document leave the corresponding setting
// unchanged. Durations are written in time.ParseDuration form, for
// example "800ms".
func (c Config) LoadFile(name string) (Config, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return c, &fault.ConfigurationError{Op: op, Msg: "cannot read " + name, Err: err}
	}
	return c.Load(b)
}

// Load returns c overlaid with the YAML document b.
func (c Config) Load(b []byte) (Config, error) {
	next := c
	next.LogHeaders = append([]string(nil), c.LogHeaders...)
	next.LogQueryParams = append([]string(nil), c.LogQueryParams...)
	if err := yaml.Unmarshal(b, &next); err != nil {
		return c, &fault.ConfigurationError{Op: op, Msg: "invalid YAML", Err: err}
	}
	return next, nil
}

// Level returns the parsed LogLevel. An empty LogLevel means info.
func (c Config) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, &fault.ConfigurationError{Op: op, Msg: "invalid log level", Err: err}
	}
	return lvl, nil
}

// Validate checks c for settings which cannot be used to build a
// pipeline. The returned error, if any, is a *fault.ConfigurationError.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return fault.Configf(op, "maxRetries must not be negative, got %d", c.MaxRetries)
	case c.RetryBase <= 0:
		return fault.Configf(op, "retryBase must be positive, got %s", c.RetryBase)
	case c.RetryCap < c.RetryBase:
		return fault.Configf(op, "retryCap %s is less than retryBase %s", c.RetryCap, c.RetryBase)
	case c.MaxRedirects < 0:
		return fault.Configf(op, "maxRedirects must not be negative, got %d", c.MaxRedirects)
	case c.Timeout < 0:
		return fault.Configf(op, "timeout must not be negative, got %s", c.Timeout)
	case (c.TLS.CertFile == "") != (c.TLS.KeyFile == ""):
		return fault.Configf(op, "tls certFile and keyFile must be set together")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"httpProxy":  c.Proxy.HTTPProxy,
		"httpsProxy": c.Proxy.HTTPSProxy,
	} {
		if err := validProxyURL(v); err != nil {
			return &fault.ConfigurationError{Op: op, Msg: "invalid " + name, Err: err}
		}
	}
	return nil
}

func validProxyURL(v string) error {
	if v == "" {
		return nil
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		// Scheme-less values such as "proxy.example:3128" are accepted
		// the way net/http accepts them.
		if u, err = url.Parse("http://" + v); err != nil {
			return err
		}
	}
	if u.Host == "" {
		return fault.Configf(op, "proxy URL %q has no host", v)
	}
	return nil
}
