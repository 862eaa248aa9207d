// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package decompress provides a pipeline policy which transparently
// decodes compressed response bodies.
//
// The supported content codings are gzip, deflate (zlib-wrapped or
// raw), br and zstd.
package decompress

import (
	"bufio"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gogama/pipeline/request"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// PolicyName is the name under which a decompression Policy is
// registered in a pipeline.
const PolicyName = "decompress"

// AcceptEncoding is the Accept-Encoding value sent on requests which
// do not set their own.
const AcceptEncoding = "gzip, deflate, br, zstd"

// A Policy advertises the supported content codings on outgoing
// requests and decodes the bodies of responses which use them.
//
// A decoded response has its Content-Encoding and Content-Length
// headers removed, ContentLength set to -1, and Uncompressed set to
// true. A response using a coding the policy does not support, or no
// coding at all, is returned untouched.
type Policy struct{}

// New constructs a decompression policy.
func New() *Policy {
	return &Policy{}
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sets Accept-Encoding on r unless it is already set or r is a
// HEAD request, forwards r to next, and decodes the response.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	head := r.Method == http.MethodHead
	if !head && r.Header.Get("Accept-Encoding") == "" {
		r.Header.Set("Accept-Encoding", AcceptEncoding)
	}
	resp, err := next.Send(r)
	if err != nil || head {
		return resp, err
	}
	return Decode(resp), nil
}

// Decode replaces the body of resp with a decoding reader if resp has
// a Content-Encoding made up entirely of supported codings, and
// returns resp.
//
// Decoding starts on the first read, so a malformed body surfaces as
// a read error.
func Decode(resp *request.Response) *request.Response {
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return resp
	}
	codings := parse(resp.Header.Values("Content-Encoding"))
	if len(codings) == 0 {
		return resp
	}
	for _, c := range codings {
		if !supported(c) {
			return resp
		}
	}
	resp.Body = &body{rc: resp.Body, codings: codings}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp
}

func parse(values []string) []string {
	var codings []string
	for _, v := range values {
		for _, c := range strings.Split(v, ",") {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" && c != "identity" {
				codings = append(codings, c)
			}
		}
	}
	return codings
}

func supported(coding string) bool {
	switch coding {
	case "gzip", "x-gzip", "deflate", "br", "zstd":
		return true
	}
	return false
}

type body struct {
	rc      io.ReadCloser
	codings []string
	r       io.Reader
	err     error
	closers []func()
}

func (b *body) Read(p []byte) (int, error) {
	if b.r == nil && b.err == nil {
		b.r, b.err = b.open()
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.r.Read(p)
}

func (b *body) Close() error {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
	return b.rc.Close()
}

// open stacks the decoders. Codings are listed in the order they were
// applied, so they are undone from last to first.
func (b *body) open() (io.Reader, error) {
	var r io.Reader = b.rc
	for i := len(b.codings) - 1; i >= 0; i-- {
		switch b.codings[i] {
		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			b.closers = append(b.closers, func() { _ = zr.Close() })
			r = zr
		case "deflate":
			dr, err := deflateReader(r)
			if err != nil {
				return nil, err
			}
			b.closers = append(b.closers, func() { _ = dr.Close() })
			r = dr
		case "br":
			r = brotli.NewReader(r)
		case "zstd":
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			b.closers = append(b.closers, zr.Close)
			r = zr
		}
	}
	return r, nil
}

// deflateReader accepts both the zlib stream format required by RFC
// 9110 and the raw deflate stream some servers send instead.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	h, err := br.Peek(2)
	if err == nil && isZlibHeader(h[0], h[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
