// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gogama/pipeline/fault"
)

// DefaultHeaders lists the headers a Sanitizer constructed with no
// header allowlist logs unredacted.
var DefaultHeaders = []string{
	"Accept",
	"Accept-Encoding",
	"Content-Encoding",
	"Content-Length",
	"Content-Type",
	"Location",
	"Retry-After",
	"User-Agent",
	"X-Request-Id",
}

// urlHeaders hold URLs whose query parameters are redacted even when
// the header itself is allowed.
var urlHeaders = map[string]bool{
	"Content-Location": true,
	"Location":         true,
	"Referer":          true,
}

// A Sanitizer redacts header and query parameter values which are not
// on its allowlists, so requests and responses can be logged without
// leaking credentials.
type Sanitizer struct {
	headers map[string]bool
	query   []string
}

// NewSanitizer constructs a Sanitizer. A nil headers list means
// DefaultHeaders. Header names are matched case-insensitively, as are
// query parameter names.
func NewSanitizer(headers, queryParams []string) *Sanitizer {
	if headers == nil {
		headers = DefaultHeaders
	}
	s := &Sanitizer{
		headers: make(map[string]bool, len(headers)),
		query:   append([]string(nil), queryParams...),
	}
	for _, h := range headers {
		s.headers[http.CanonicalHeaderKey(h)] = true
	}
	return s
}

// Header returns a loggable copy of h. Multiple values of one header
// are joined with ", ". Allowed headers carrying a URL, such as
// Location, have the URL sanitized like a request URL.
func (s *Sanitizer) Header(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		ck := http.CanonicalHeaderKey(k)
		if !s.headers[ck] {
			out[ck] = fault.Redacted
			continue
		}
		if urlHeaders[ck] {
			vs = s.urls(vs)
		}
		out[ck] = strings.Join(vs, ", ")
	}
	return out
}

func (s *Sanitizer) urls(vs []string) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		u, err := url.Parse(v)
		if err != nil {
			out[i] = fault.Redacted
			continue
		}
		out[i] = s.URL(u)
	}
	return out
}

// URL returns a loggable form of u.
func (s *Sanitizer) URL(u *url.URL) string {
	return fault.RedactURL(u, s.query...)
}
