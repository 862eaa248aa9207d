// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
)

// Default is the transport used by pipelines which are not given one.
var Default = New(nil)

// HTTP is a Sender which performs HTTP exchanges using a net/http
// Transport.
//
// Requests without a proxy or TLS override share the base transport's
// connection pool. Each distinct proxy/TLS combination gets its own
// clone of the base transport, created on first use and reused after
// that, so a retried attempt may go out on any pooled connection.
//
// HTTP is safe for concurrent use by multiple goroutines.
type HTTP struct {
	base     *http.Transport
	lock     sync.Mutex
	variants map[variant]*http.Transport
}

type variant struct {
	proxy string
	tls   *tls.Config
}

// New returns an HTTP transport built on base.
//
// If base is nil, a clone of http.DefaultTransport is used with its
// environment proxy lookup and automatic gzip handling disabled, since
// the proxy and decompression policies own those concerns.
func New(base *http.Transport) *HTTP {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
		base.Proxy = nil
		base.DisableCompression = true
	}
	return &HTTP{
		base:     base,
		variants: make(map[variant]*http.Transport),
	}
}

// Send performs one HTTP exchange for r.
//
// On success the returned Response body must be closed by the caller.
// Closing it also releases the attempt timeout, if any.
func (t *HTTP) Send(r *request.Request) (*request.Response, error) {
	return exchange(r, t.roundTripper(r).RoundTrip)
}

// CloseIdleConnections closes idle connections on the base transport and
// on every proxy/TLS variant.
func (t *HTTP) CloseIdleConnections() {
	t.base.CloseIdleConnections()
	t.lock.Lock()
	defer t.lock.Unlock()
	for _, v := range t.variants {
		v.CloseIdleConnections()
	}
}

func (t *HTTP) roundTripper(r *request.Request) http.RoundTripper {
	if r.Proxy == nil && r.TLS == nil {
		return t.base
	}

	key := variant{tls: r.TLS}
	if r.Proxy != nil {
		key.proxy = r.Proxy.String()
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if v, ok := t.variants[key]; ok {
		return v
	}
	v := t.base.Clone()
	if r.Proxy != nil {
		v.Proxy = http.ProxyURL(r.Proxy)
	}
	if r.TLS != nil {
		v.TLSClientConfig = r.TLS.Clone()
	}
	t.variants[key] = v
	return v
}

// cancelBody releases the attempt context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// exchange runs one attempt of r through do, translating failures into
// the pipeline's error types.
func exchange(r *request.Request, do func(*http.Request) (*http.Response, error)) (*request.Response, error) {
	parent := r.Context()
	if err := parent.Err(); err != nil {
		return nil, fault.Abort(err)
	}

	ctx, cancel := parent, context.CancelFunc(func() {})
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, r.Timeout)
	}

	req, err := r.HTTPRequest(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := do(req)
	if err != nil {
		cancel()
		if ctxErr := parent.Err(); ctxErr != nil {
			return nil, fault.Abort(ctxErr)
		}
		// An http.Client wraps failures in a *url.Error which carries
		// the unredacted URL.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, &fault.TransportError{
			Op:  fault.Op(r.Method),
			URL: fault.RedactURL(r.URL),
			Err: err,
		}
	}

	return &request.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        resp.Header,
		Body:          &cancelBody{ReadCloser: resp.Body, cancel: cancel},
		ContentLength: resp.ContentLength,
		Request:       r,
	}, nil
}
