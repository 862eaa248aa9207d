// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package useragent provides a pipeline policy which identifies the
// pipeline, and optionally the application using it, in the
// User-Agent header.
package useragent

import (
	"runtime"
	"strings"

	"github.com/gogama/pipeline/request"
)

// PolicyName is the name under which a user agent Policy is
// registered in a pipeline.
const PolicyName = "user-agent"

// Version is the pipeline version reported in the User-Agent header.
const Version = "1.0.0"

// A Policy prepends its value to the User-Agent header of each
// request. A User-Agent set by the caller is kept after the policy's
// value. Sending the same request again does not repeat the value.
type Policy struct {
	value string
}

// New constructs a user agent policy. The value sent is
//
//	prefix pipeline/<Version> (<go version>; <os>; <arch>)
//
// where the prefix and its separating space are omitted if prefix is
// empty.
func New(prefix string) *Policy {
	return &Policy{value: Value(prefix)}
}

// Value returns the User-Agent value a policy constructed with the
// given prefix sends.
func Value(prefix string) string {
	var b strings.Builder
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(' ')
	}
	b.WriteString("pipeline/")
	b.WriteString(Version)
	b.WriteString(" (")
	b.WriteString(runtime.Version())
	b.WriteString("; ")
	b.WriteString(runtime.GOOS)
	b.WriteString("; ")
	b.WriteString(runtime.GOARCH)
	b.WriteByte(')')
	return b.String()
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sets the User-Agent header of r and forwards r to next.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	ua := r.Header.Get("User-Agent")
	switch {
	case ua == "":
		ua = p.value
	case !strings.HasPrefix(ua, p.value):
		ua = p.value + " " + ua
	}
	r.Header.Set("User-Agent", ua)
	return next.Send(r)
}
