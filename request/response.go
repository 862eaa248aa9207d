// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"io"
	"net/http"
)

// maxDrain bounds how much of an unwanted body Discard reads so the
// connection can be reused.
const maxDrain = 64 << 10

// A Response is the response to a Request.
//
// The receiver of the final Response owns it and must fully read and
// close Body.
type Response struct {
	// StatusCode is the HTTP status code, e.g. 200.
	StatusCode int
	// Status is the status line text, e.g. "200 OK".
	Status string
	// Header holds the response header fields.
	Header http.Header
	// Body streams the response body. It is never nil.
	Body io.ReadCloser
	// ContentLength records the length of the body, or -1 if unknown.
	ContentLength int64
	// Request is the request which produced this response. After a
	// redirect it is the request sent to the final location.
	Request *Request
	// Uncompressed reports whether Body was transparently decompressed
	// by the pipeline.
	Uncompressed bool
}

// Bytes reads Body to the end and closes it.
func (r *Response) Bytes() ([]byte, error) {
	defer func() {
		_ = r.Body.Close()
	}()
	return io.ReadAll(r.Body)
}

// Discard reads and throws away a bounded amount of Body, so the
// underlying connection may be reused, then closes it.
func (r *Response) Discard() error {
	if r.Body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxDrain))
	return r.Body.Close()
}
