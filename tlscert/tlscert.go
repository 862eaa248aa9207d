// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tlscert provides a pipeline policy which attaches client TLS
// settings, such as a client certificate and trusted CAs, to requests.
//
// The policy only configures the connection. It has no effect on
// responses.
package tlscert

import (
	"crypto/tls"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/gogama/pipeline/config"
	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
)

// PolicyName is the name under which a TLS Policy is registered in a
// pipeline.
const PolicyName = "tls"

// A Policy sets the TLS client configuration of each request which
// does not already carry one.
type Policy struct {
	config *tls.Config
}

// New loads the CA, certificate and key files named in o and
// constructs a policy using the resulting configuration. Loading
// happens once, here, and any failure is returned as a
// *fault.ConfigurationError.
func New(o tlsconfig.Options) (*Policy, error) {
	c, err := tlsconfig.Client(o)
	if err != nil {
		return nil, &fault.ConfigurationError{Op: "tlscert.New", Msg: "cannot load TLS material", Err: err}
	}
	return &Policy{config: c}, nil
}

// FromConfig constructs a policy using c, which must not be modified
// afterward.
func FromConfig(c *tls.Config) *Policy {
	if c == nil {
		panic("pipeline/tlscert: nil config")
	}
	return &Policy{config: c}
}

// Options converts the TLS section of a pipeline configuration into
// options for New. A configured CA file is used as the exclusive root
// pool.
func Options(c config.TLS) tlsconfig.Options {
	return tlsconfig.Options{
		CAFile:             c.CAFile,
		CertFile:           c.CertFile,
		KeyFile:            c.KeyFile,
		InsecureSkipVerify: c.InsecureSkipVerify,
		ExclusiveRootPools: c.CAFile != "",
	}
}

// Config returns the TLS client configuration p attaches.
func (p *Policy) Config() *tls.Config {
	return p.config
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sets r.TLS, if it is unset, and forwards r to next.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	if r.TLS == nil {
		r.TLS = p.config
	}
	return next.Send(r)
}
