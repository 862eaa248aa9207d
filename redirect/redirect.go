// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
)

// PolicyName is the name under which a redirect Policy is registered
// in a pipeline.
const PolicyName = "redirect"

// DefaultMaxRedirects is the number of redirects followed by a Policy
// constructed with New(DefaultMaxRedirects).
const DefaultMaxRedirects = 20

var sensitiveHeaders = []string{"Authorization", "Cookie", "Proxy-Authorization"}

// A Policy follows redirect responses by re-issuing the request to the
// URL in the Location header.
//
// Responses with status 300, 301, 302, 303, 307 or 308 and a non-empty
// Location header are followed. A 303 (See Other) is followed with GET
// and no body, unless the original method was HEAD. A 301 or 302 in
// response to a POST is followed with GET and no body, as browsers do.
// All other redirects preserve the method and body.
//
// Each hop sends a clone of the previous request, so the caller's
// request is never modified. Bodies of the redirect responses are
// drained and closed.
type Policy struct {
	// MaxRedirects is the number of redirects which may be followed
	// for one request. When a response would need one more, Send
	// returns an *fault.TooManyRedirectsError. Zero disables following,
	// and redirect responses are returned unchanged.
	MaxRedirects int
	// ForwardCredentials, if true, keeps the Authorization, Cookie and
	// Proxy-Authorization headers when a redirect leads to a different
	// origin. By default they are removed.
	ForwardCredentials bool
}

// New constructs a redirect policy following at most maxRedirects
// redirects per request.
func New(maxRedirects int) *Policy {
	if maxRedirects < 0 {
		panic("pipeline/redirect: negative maxRedirects")
	}
	return &Policy{MaxRedirects: maxRedirects}
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sends r through next and follows any redirects.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	resp, err := next.Send(r)
	if err != nil || p.MaxRedirects == 0 {
		return resp, err
	}
	for hops := 0; ; hops++ {
		loc := location(r.URL, resp)
		if loc == nil {
			return resp, nil
		}
		_ = resp.Discard()
		if hops >= p.MaxRedirects {
			return nil, &fault.TooManyRedirectsError{
				Max: p.MaxRedirects,
				URL: fault.RedactURL(loc),
			}
		}
		if err = r.Context().Err(); err != nil {
			return nil, fault.Abort(err)
		}
		r = p.follow(r, resp.StatusCode, loc)
		if resp, err = next.Send(r); err != nil {
			return nil, err
		}
	}
}

func (p *Policy) follow(r *request.Request, code int, loc *url.URL) *request.Request {
	r2 := r.Clone()
	r2.URL = loc
	r2.Host = ""
	if changesToGet(r.Method, code) {
		r2.Method = http.MethodGet
		r2.Body = nil
		r2.GetBody = nil
		r2.ContentLength = 0
		r2.Form = nil
		r2.Multipart = nil
		r2.Header.Del("Content-Type")
		r2.Header.Del("Content-Length")
	}
	if !p.ForwardCredentials && !sameOrigin(r.URL, loc) {
		for _, h := range sensitiveHeaders {
			r2.Header.Del(h)
		}
	}
	return r2
}

func changesToGet(method string, code int) bool {
	switch code {
	case http.StatusSeeOther:
		return method != http.MethodHead
	case http.StatusMovedPermanently, http.StatusFound:
		return method == http.MethodPost
	}
	return false
}

func location(base *url.URL, resp *request.Response) *url.URL {
	switch resp.StatusCode {
	case http.StatusMultipleChoices, http.StatusMovedPermanently, http.StatusFound,
		http.StatusSeeOther, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil
	}
	v := resp.Header.Get("Location")
	if v == "" {
		return nil
	}
	u, err := base.Parse(v)
	if err != nil {
		return nil
	}
	return u
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		port(a) == port(b)
}

func port(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
