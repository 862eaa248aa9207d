// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"net/http"

	"github.com/gogama/pipeline/request"
)

// An HTTPDoer implements a Do method in the same manner as the GoLang
// standard library http.Client from the net/http package.
type HTTPDoer interface {
	// Do sends an HTTP request and returns an HTTP response following
	// policy (such as redirects, cookies, auth) configured on the
	// HTTPDoer.
	Do(r *http.Request) (*http.Response, error)
}

// FromDoer adapts an HTTPDoer, such as an *http.Client, into a
// transport.
//
// The HTTPDoer's own policies stay in effect underneath the pipeline.
// In particular an http.Client follows redirects by itself unless its
// CheckRedirect function returns http.ErrUseLastResponse, and it
// ignores Request.Proxy and Request.TLS, which only the HTTP transport
// honors.
func FromDoer(d HTTPDoer) request.Sender {
	if d == nil {
		panic("pipeline/transport: nil doer")
	}
	return doer{d}
}

type doer struct {
	d HTTPDoer
}

func (d doer) Send(r *request.Request) (*request.Response, error) {
	return exchange(r, d.d.Do)
}

// CloseIdleConnections forwards to the HTTPDoer if it supports it.
func (d doer) CloseIdleConnections() {
	if ic, ok := d.d.(interface{ CloseIdleConnections() }); ok {
		ic.CloseIdleConnections()
	}
}
