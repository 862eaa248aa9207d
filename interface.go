// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"net/url"

	"github.com/gogama/pipeline/request"
)

// Doer is the interface that wraps the basic Do method.
//
// Do sends a request and returns the final response (and error, if
// any). Pipeline implements the Doer interface, and any other Doer
// implementation must behave substantially the same as Pipeline.Do.
//
// Any Doer can be converted into an Executor via the Inflate function.
type Doer interface {
	Do(r *request.Request) (*request.Response, error)
}

// Getter is the interface that wraps the basic Get method.
//
// Get issues a GET to the specified URL. Any Doer can be used to
// emulate a Getter via the Get function.
type Getter interface {
	Get(ctx context.Context, url string) (*request.Response, error)
}

// Header is the interface that wraps the basic Head method.
//
// Head issues a HEAD to the specified URL. Any Doer can be used to
// emulate a Header via the Head function.
type Header interface {
	Head(ctx context.Context, url string) (*request.Response, error)
}

// Poster is the interface that wraps the basic Post method.
//
// Post issues a POST to the specified URL. The body parameter may be
// nil for an empty body, or may be any of the types supported by
// request.BodyBytes, namely: string; []byte; io.Reader; and
// io.ReadCloser.
//
// Any Doer can be used to emulate a Poster via the Post function.
type Poster interface {
	Post(ctx context.Context, url, contentType string, body interface{}) (*request.Response, error)
}

// FormPoster is the interface that wraps the basic PostForm method.
//
// PostForm issues a POST to the specified URL with data's keys and
// values URL-encoded as the request body, and the content type set to
// application/x-www-form-urlencoded.
//
// Any Doer can be used to emulate a FormPoster via the PostForm
// function.
type FormPoster interface {
	PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error)
}

// IdleCloser is the interface that wraps the basic CloseIdleConnections
// method.
//
// If the underlying implementation supports it, CloseIdleConnections
// closes any connections which were previously connected from previous
// requests but are now sitting idle in a "keep-alive" state. It does
// not interrupt any connections currently in use.
//
// If the underlying implementation does not support this ability,
// CloseIdleConnections does nothing.
type IdleCloser interface {
	CloseIdleConnections()
}

// Executor is the interface that groups the basic Do, Get, Head, Post,
// PostForm, and CloseIdleConnections methods.
//
// Any Doer can be converted into an Executor via the Inflate function.
type Executor interface {
	Doer
	Getter
	Header
	Poster
	FormPoster
	IdleCloser
}

// Get uses the specified Doer to issue a GET to the specified URL.
//
// To send a request with custom headers, use request.NewWithContext
// and d.Do.
func Get(ctx context.Context, d Doer, url string) (*request.Response, error) {
	r, err := request.NewWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	return d.Do(r)
}

// Head uses the specified Doer to issue a HEAD to the specified URL.
func Head(ctx context.Context, d Doer, url string) (*request.Response, error) {
	r, err := request.NewWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return nil, err
	}
	return d.Do(r)
}

// Post uses the specified Doer to issue a POST to the specified URL.
//
// The body parameter may be nil for an empty body, or may be any of the
// types supported by request.BodyBytes, namely: string; []byte;
// io.Reader; and io.ReadCloser.
func Post(ctx context.Context, d Doer, url, contentType string, body interface{}) (*request.Response, error) {
	b, err := request.BodyBytes(body)
	if err != nil {
		return nil, err
	}
	r, err := request.NewWithContext(ctx, "POST", url, b)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", contentType)
	return d.Do(r)
}

// PostForm uses the specified Doer to issue a POST to the specified URL,
// with data's keys and values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
// To send structured form data with files, set request.Request.Form and
// install the form-data policy.
func PostForm(ctx context.Context, d Doer, url string, data url.Values) (*request.Response, error) {
	return Post(ctx, d, url, "application/x-www-form-urlencoded", data.Encode())
}

// Inflate converts any non-nil Doer into an Executor. This may be
// helpful for interop across library boundaries, i.e. if code that only
// has access to a Doer needs to call a function that requires an
// Executor.
func Inflate(d Doer) Executor {
	if d == nil {
		panic("pipeline: nil doer")
	}

	if e, ok := d.(Executor); ok {
		return e
	}

	return inflated{d}
}

type inflated struct {
	doer Doer
}

func (i inflated) Do(r *request.Request) (*request.Response, error) {
	return i.doer.Do(r)
}

func (i inflated) Get(ctx context.Context, url string) (*request.Response, error) {
	return Get(ctx, i.doer, url)
}

func (i inflated) Head(ctx context.Context, url string) (*request.Response, error) {
	return Head(ctx, i.doer, url)
}

func (i inflated) Post(ctx context.Context, url, contentType string, body interface{}) (*request.Response, error) {
	return Post(ctx, i.doer, url, contentType, body)
}

func (i inflated) PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error) {
	return PostForm(ctx, i.doer, url, data)
}

func (i inflated) CloseIdleConnections() {
	if ic, ok := i.doer.(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}
