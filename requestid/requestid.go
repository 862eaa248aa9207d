// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package requestid provides a pipeline policy which sends the
// logical request id in a header, so client and server logs can be
// correlated.
package requestid

import (
	"net/http"

	"github.com/gogama/pipeline/request"
	"github.com/google/uuid"
)

// PolicyName is the name under which a request id Policy is
// registered in a pipeline.
const PolicyName = "request-id"

// DefaultHeader is the header used by a Policy with an empty header
// name.
const DefaultHeader = "X-Request-Id"

// A Policy sets a header to the request's RequestID, unless the header
// is already present. A request without a RequestID is given a new
// random one first.
type Policy struct {
	header string
}

// New constructs a request id policy using the named header. An empty
// name means DefaultHeader.
func New(header string) *Policy {
	if header == "" {
		header = DefaultHeader
	}
	return &Policy{header: http.CanonicalHeaderKey(header)}
}

// Header returns the header name p sets.
func (p *Policy) Header() string {
	return p.header
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sets the request id header of r and forwards r to next.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Header.Get(p.header) == "" {
		r.Header.Set(p.header, r.RequestID)
	}
	return next.Send(r)
}
