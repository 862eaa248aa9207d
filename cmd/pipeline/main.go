// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command pipeline sends one HTTP request through the default pipeline
// and writes the response body to standard output.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/gogama/pipeline"
	"github.com/gogama/pipeline/config"
	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/useragent"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	getenv     func(string) string
	configFile string
	retries    int
	redirects  int
	timeout    time.Duration
	proxy      string
	noProxy    string
	caFile     string
	certFile   string
	keyFile    string
	insecure   bool
	userAgent  string
	logLevel   string
	headers    []string
	include    bool
}

func newRootCommand(getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Send HTTP requests through a retrying policy pipeline.",
		Version:       useragent.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newGetCommand(getenv))
	return cmd
}

func newGetCommand(getenv func(string) string) *cobra.Command {
	opts := options{getenv: getenv}

	cmd := &cobra.Command{
		Use:   "get [OPTIONS] URL",
		Short: "Issue a GET and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runGet(ctx, cmd, cfg, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flags.IntVar(&opts.retries, "retries", 0, "Maximum number of retries")
	flags.IntVar(&opts.redirects, "max-redirects", 0, "Maximum number of redirects to follow")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Timeout for each attempt")
	flags.StringVar(&opts.proxy, "proxy", "", "Proxy URL for http and https requests")
	flags.StringVar(&opts.noProxy, "no-proxy", "", "Comma-separated hosts which bypass the proxy")
	flags.StringVar(&opts.caFile, "cacert", "", "Trust only CAs from this PEM file")
	flags.StringVar(&opts.certFile, "cert", "", "Client certificate PEM file")
	flags.StringVar(&opts.keyFile, "key", "", "Client private key PEM file")
	flags.BoolVarP(&opts.insecure, "insecure", "k", false, "Skip server certificate verification")
	flags.StringVarP(&opts.userAgent, "user-agent", "A", "", "User-Agent prefix")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", `Log level ("debug"|"info"|"warn"|"error")`)
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `Request header as "Name: value" (repeatable)`)
	flags.BoolVarP(&opts.include, "include", "i", false, "Print the status line and response headers")
	return cmd
}

// config layers the configuration file, the environment and the
// explicitly set flags over the defaults, in that order.
func (o *options) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	var err error
	if o.configFile != "" {
		if cfg, err = cfg.LoadFile(o.configFile); err != nil {
			return cfg, err
		}
	}
	if cfg, err = cfg.FromEnv(o.getenv); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("retries") {
		cfg.MaxRetries = o.retries
	}
	if flags.Changed("max-redirects") {
		cfg.MaxRedirects = o.redirects
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("proxy") {
		cfg.Proxy.HTTPProxy = o.proxy
		cfg.Proxy.HTTPSProxy = o.proxy
	}
	if flags.Changed("no-proxy") {
		cfg.Proxy.NoProxy = o.noProxy
	}
	if flags.Changed("cacert") {
		cfg.TLS.CAFile = o.caFile
	}
	if flags.Changed("cert") {
		cfg.TLS.CertFile = o.certFile
	}
	if flags.Changed("key") {
		cfg.TLS.KeyFile = o.keyFile
	}
	if flags.Changed("insecure") {
		cfg.TLS.InsecureSkipVerify = o.insecure
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = o.userAgent
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

func runGet(ctx context.Context, cmd *cobra.Command, cfg config.Config, opts options, url string) error {
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(lvl)

	p, err := pipeline.NewDefault(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}
	defer p.CloseIdleConnections()

	r, err := request.NewWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		r.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := p.SendRequest(r)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	out := cmd.OutOrStdout()
	if opts.include {
		writeHead(out, resp)
	}
	if _, err = io.Copy(out, resp.Body); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"requestId": r.RequestID,
		"status":    resp.StatusCode,
	}).Debug("pipeline: done")
	return nil
}

func writeHead(w io.Writer, resp *request.Response) {
	_, _ = fmt.Fprintln(w, resp.Status)
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			_, _ = fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
	_, _ = fmt.Fprintln(w)
}

func main() {
	logrus.SetOutput(os.Stderr)

	cmd := newRootCommand(os.Getenv)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
