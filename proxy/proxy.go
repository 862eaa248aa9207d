// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package proxy provides a pipeline policy which routes requests
// through an HTTP proxy.
package proxy

import (
	"net/url"

	"github.com/gogama/pipeline/config"
	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"golang.org/x/net/http/httpproxy"
)

// PolicyName is the name under which a proxy Policy is registered in
// a pipeline.
const PolicyName = "proxy"

// A Policy chooses the proxy for each request and records it in the
// request's Proxy field for the transport to use. A request whose
// Proxy was set by someone else is left alone.
//
// A proxy the policy chose itself is chosen again on every pass, so a
// Policy placed after the redirect policy routes each hop by the hop's
// own URL.
type Policy struct {
	proxyFunc func(*url.URL) (*url.URL, error)
}

// New constructs a proxy policy from c.
//
// Requests with scheme https use c.HTTPSProxy and requests with scheme
// http use c.HTTPProxy. Hosts matching an entry of c.NoProxy, and
// loopback hosts, are never proxied; no-proxy entries win over the
// configured proxies. An error is returned if either proxy URL is
// invalid.
func New(c config.Proxy) (*Policy, error) {
	for _, v := range []string{c.HTTPProxy, c.HTTPSProxy} {
		if _, err := parse(v); err != nil {
			return nil, &fault.ConfigurationError{Op: "proxy.New", Msg: "invalid proxy URL", Err: err}
		}
	}
	cfg := httpproxy.Config{
		HTTPProxy:  c.HTTPProxy,
		HTTPSProxy: c.HTTPSProxy,
		NoProxy:    c.NoProxy,
	}
	return &Policy{proxyFunc: cfg.ProxyFunc()}, nil
}

// FromFunc constructs a proxy policy which asks f for the proxy of
// each request URL. The function f follows the conventions of
// http.Transport.Proxy: a nil URL and nil error mean no proxy.
func FromFunc(f func(*url.URL) (*url.URL, error)) *Policy {
	if f == nil {
		panic("pipeline/proxy: nil proxy func")
	}
	return &Policy{proxyFunc: f}
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

type selectedKey struct{}

// Send sets r.Proxy, unless it was set outside the policy, and
// forwards r to next.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	if r.URL != nil && (r.Proxy == nil || r.Value(selectedKey{}) == r.Proxy) {
		u, err := p.proxyFunc(r.URL)
		if err != nil {
			return nil, &fault.ConfigurationError{Op: PolicyName, Msg: "cannot select proxy", Err: err}
		}
		r.Proxy = u
		if u != nil {
			r.SetValue(selectedKey{}, u)
		}
	}
	return next.Send(r)
}

// parse mirrors the proxy URL parsing of net/http, which accepts a
// bare "host:port" as an http proxy.
func parse(v string) (*url.URL, error) {
	if v == "" {
		return nil, nil
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if u2, err2 := url.Parse("http://" + v); err2 == nil && u2.Host != "" {
			return u2, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fault.Configf("proxy.New", "proxy URL %q has no host", v)
	}
	return u, nil
}
