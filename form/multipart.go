// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package form

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"github.com/google/uuid"
)

// MultipartPolicyName is the name under which a MultipartPolicy is
// registered in a pipeline.
const MultipartPolicyName = "multipart"

// BoundaryPrefix starts every generated multipart boundary.
const BoundaryPrefix = "----PipelineFormBoundary"

const defaultMultipart = "multipart/mixed"

// A MultipartPolicy serializes the Multipart of each request which has
// one.
//
// The boundary is taken from the part set if it has one, else from
// the boundary parameter of the request's Content-Type, else it is
// generated. The request's Content-Type must be a multipart media type
// if it is set; if it is not set, multipart/mixed is used. Either way
// the Content-Type is rewritten to carry the boundary.
//
// If every part is buffered the serialized body is buffered too, and
// ContentLength is known. If any part is streamed, the request gets a
// GetBody function which writes the parts afresh on each attempt.
type MultipartPolicy struct{}

// Multipart constructs a multipart policy.
func Multipart() *MultipartPolicy {
	return &MultipartPolicy{}
}

// Name returns MultipartPolicyName.
func (p *MultipartPolicy) Name() string {
	return MultipartPolicyName
}

// Send serializes r.Multipart and forwards r to next.
func (p *MultipartPolicy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	if r.Multipart == nil {
		return next.Send(r)
	}
	if r.GetBody != nil || len(r.Body) > 0 || r.Form != nil {
		return nil, fault.Configf(MultipartPolicyName, "request has both multipart parts and another body")
	}
	mt, boundary, err := contentType(r.Header.Get("Content-Type"), r.Multipart.Boundary)
	if err != nil {
		return nil, err
	}
	if err = validBoundary(boundary); err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", mime.FormatMediaType(mt, map[string]string{"boundary": boundary}))

	parts := r.Multipart.Parts
	if streamed(parts) {
		r.GetBody = func() (io.ReadCloser, error) {
			pr, pw := io.Pipe()
			go func() {
				_ = pw.CloseWithError(write(pw, boundary, parts))
			}()
			return pr, nil
		}
		r.ContentLength = 0
	} else {
		var buf bytes.Buffer
		if err = write(&buf, boundary, parts); err != nil {
			return nil, err
		}
		r.Body = buf.Bytes()
	}
	r.Multipart = nil
	return next.Send(r)
}

func contentType(ct, boundary string) (string, string, error) {
	if ct == "" {
		return defaultMultipart, orGenerated(boundary), nil
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", "", &fault.ConfigurationError{Op: MultipartPolicyName, Msg: "invalid Content-Type", Err: err}
	}
	if !strings.HasPrefix(mt, "multipart/") {
		return "", "", fault.Configf(MultipartPolicyName, "Content-Type %s is not multipart", mt)
	}
	if b := params["boundary"]; b != "" {
		if boundary != "" && boundary != b {
			return "", "", fault.Configf(MultipartPolicyName, "boundary %q conflicts with Content-Type boundary %q", boundary, b)
		}
		boundary = b
	}
	return mt, orGenerated(boundary), nil
}

func orGenerated(boundary string) string {
	if boundary != "" {
		return boundary
	}
	return BoundaryPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validBoundary applies the boundary grammar of RFC 2046 section 5.1.1.
func validBoundary(b string) error {
	if len(b) < 1 || len(b) > 70 {
		return fault.Configf(MultipartPolicyName, "boundary must be 1 to 70 characters, got %d", len(b))
	}
	for i, c := range b {
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			continue
		case strings.ContainsRune("'()+_,-./:=?", c):
			continue
		case c == ' ' && i != len(b)-1:
			continue
		}
		return fault.Configf(MultipartPolicyName, "invalid boundary character %q", c)
	}
	return nil
}

func streamed(parts []request.Part) bool {
	for _, p := range parts {
		if p.Open != nil {
			return true
		}
	}
	return false
}

func write(w io.Writer, boundary string, parts []request.Part) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	for _, p := range parts {
		pw, err := mw.CreatePart(textproto.MIMEHeader(p.Header))
		if err != nil {
			return err
		}
		if err = writeBody(pw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeBody(w io.Writer, p request.Part) error {
	if p.Open == nil {
		_, err := w.Write(p.Body)
		return err
	}
	rc, err := p.Open()
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	return err
}
