// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"
)

var (
	template, _ = http.NewRequest("GET", "", nil)
)

const (
	nilCtxMsg = "pipeline/request: nil context"
)

// A Sender sends a Request and returns the Response.
//
// Transports implement Sender to perform a single HTTP exchange. The
// pipeline also hands every policy a Sender representing the rest of
// the policy chain, so the policy can forward the request onward.
//
// Send must return either a non-nil Response or a non-nil error, never
// both and never neither. The caller owns the returned Response and
// must close its Body.
type Sender interface {
	Send(r *Request) (*Response, error)
}

// The SenderFunc type is an adapter to allow the use of ordinary
// functions as a Sender.
type SenderFunc func(r *Request) (*Response, error)

// Send calls f(r).
func (f SenderFunc) Send(r *Request) (*Response, error) {
	return f(r)
}

// A Request is a logical HTTP request which may be sent through a
// pipeline one or more times.
//
// The field structure mirrors http.Request, minus server-only fields,
// plus metadata and transport parameters which pipeline policies read
// and write as the request passes through them.
type Request struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string
	// URL specifies the URL to access.
	URL *urlpkg.URL
	// Header contains the request header fields to be sent.
	//
	// Lookups are case-insensitive because keys are kept in canonical
	// form. For further details, see http.Header.
	Header http.Header
	// Body is the pre-buffered request body. A nil or empty Body with
	// a nil GetBody indicates no request body.
	Body []byte
	// GetBody, if non-nil, returns a fresh reader over a streamed
	// request body. It is called once per physical attempt and takes
	// precedence over Body.
	GetBody func() (io.ReadCloser, error)
	// ContentLength is the length of the body returned by GetBody, or
	// zero if unknown. It is ignored if GetBody is nil.
	ContentLength int64
	// Form is a structured form body awaiting serialization by the
	// form-data policy.
	Form *Form
	// Multipart is a structured multipart body awaiting serialization
	// by the multipart policy.
	Multipart *Multipart
	// Timeout bounds a single physical attempt, including reading the
	// response body. Zero means no attempt timeout; the request
	// context still applies.
	Timeout time.Duration
	// RequestID uniquely identifies the logical request. New assigns a
	// random UUID.
	RequestID string
	// RetryCount is the zero-based number of the current physical
	// attempt. It is maintained by the retry policy.
	RetryCount int
	// Proxy, if non-nil, is the proxy URL the transport must send the
	// request through. It is normally set by the proxy policy.
	Proxy *urlpkg.URL
	// TLS, if non-nil, is the TLS client configuration the transport
	// must use for the connection. It is normally set by the TLS
	// policy.
	TLS *tls.Config
	// Close stipulates whether to close the connection after each
	// physical attempt, preventing connection re-use.
	Close bool
	// Host optionally overrides the Host header to send.
	Host string

	ctx    context.Context
	values context.Context
}

// New wraps NewWithContext using the background context.
func New(method, url string, body interface{}) (*Request, error) {
	return NewWithContext(context.Background(), method, url, body)
}

// NewWithContext returns a new Request given a method, URL, and
// optional body.
//
// The context is the request's abort signal: cancelling it ends the
// in-flight attempt, any pending retry wait, and all further attempts.
//
// Parameter body may be nil (empty body), or it may be a string,
// []byte, io.Reader, or io.ReadCloser. Readers are read to the end and
// buffered. For streamed bodies, set GetBody on the returned request.
func NewWithContext(ctx context.Context, method, url string, body interface{}) (*Request, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("pipeline/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	u.Host = removeEmptyPort(u.Host)
	b, err := BodyBytes(body)
	if err != nil {
		return nil, err
	}
	return &Request{
		ctx:       ctx,
		Method:    method,
		URL:       u,
		Header:    make(http.Header),
		Body:      b,
		RequestID: uuid.NewString(),
	}, nil
}

// Context returns the request's context. The returned context is
// always non-nil; it defaults to the background context.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to
// ctx, which must be non-nil.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// Clone returns a copy of r which may be modified without affecting r.
//
// The URL, header, and structured bodies are deep-copied. The buffered
// Body slice and any values set with SetValue are shared.
func (r *Request) Clone() *Request {
	r2 := new(Request)
	*r2 = *r
	if r.URL != nil {
		u := *r.URL
		r2.URL = &u
	}
	r2.Header = r.Header.Clone()
	if r.Form != nil {
		r2.Form = r.Form.clone()
	}
	if r.Multipart != nil {
		r2.Multipart = r.Multipart.clone()
	}
	return r2
}

// HasBody reports whether the request carries a body to send.
func (r *Request) HasBody() bool {
	return r.GetBody != nil || len(r.Body) > 0 || r.Form != nil || r.Multipart != nil
}

// SetValue allows policies to store arbitrary per-request data.
//
// The key must follow the same rules as the key parameter in
// context.WithValue: it may not be nil, it must be comparable, and it
// should not be of a built-in type.
func (r *Request) SetValue(key, value interface{}) {
	ctx := r.values
	if ctx == nil {
		ctx = context.Background()
	}
	r.values = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this request for key,
// or nil if there is no value associated with key.
func (r *Request) Value(key interface{}) interface{} {
	if r.values == nil {
		return nil
	}
	return r.values.Value(key)
}

// AddCookie adds a cookie to the request. Per RFC 6265 section 5.4,
// AddCookie does not attach more than one Cookie header field.
func (r *Request) AddCookie(c *http.Cookie) {
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	s := c2.String()
	if h := r.Header.Get("Cookie"); h != "" {
		r.Header.Set("Cookie", h+"; "+s)
	} else {
		r.Header.Set("Cookie", s)
	}
}

// SetBasicAuth sets the request's Authorization header to use HTTP
// Basic Authentication with the provided username and password.
func (r *Request) SetBasicAuth(username, password string) {
	auth := username + ":" + password
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
}

// HTTPRequest creates the lower-level http.Request for one physical
// attempt. The context of the new request is set to ctx, which may not
// be nil.
//
// An error is returned if a structured Form or Multipart body is still
// pending serialization, or if GetBody fails.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if r.Form != nil || r.Multipart != nil {
		return nil, errors.New("pipeline/request: structured body was not serialized")
	}
	h := template.WithContext(ctx)
	h.Method = r.Method
	if h.Method == "" {
		h.Method = "GET"
	}
	h.URL = r.URL
	h.Header = r.Header
	if h.Header == nil {
		h.Header = make(http.Header)
	}
	switch {
	case r.GetBody != nil:
		body, err := r.GetBody()
		if err != nil {
			return nil, err
		}
		h.Body = body
		h.GetBody = r.GetBody
		h.ContentLength = r.ContentLength
	case len(r.Body) > 0:
		b := r.Body
		h.Body = io.NopCloser(bytes.NewReader(b))
		h.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
		h.ContentLength = int64(len(b))
	}
	h.Close = r.Close
	h.Host = r.Host
	return h, nil
}

func validMethod(method string) bool {
	// RFC 7230 defines a method as a token, which is the same grammar
	// as a header field name.
	return httpguts.ValidHeaderFieldName(method)
}

// removeEmptyPort strips the empty port in ":port" to "" as mandated by
// RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if strings.LastIndex(host, ":") > strings.LastIndex(host, "]") {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
