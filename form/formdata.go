// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package form

import (
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
)

// FormDataPolicyName is the name under which a FormDataPolicy is
// registered in a pipeline.
const FormDataPolicyName = "form-data"

const (
	urlEncoded = "application/x-www-form-urlencoded"
	formData   = "multipart/form-data"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// A FormDataPolicy serializes the Form of each request which has one.
//
// If the request's Content-Type is application/x-www-form-urlencoded,
// the form values are URL-encoded into the request Body. Files cannot
// be sent this way. Otherwise the request's Content-Type is set to
// multipart/form-data, if it is not already, and the form becomes a
// Multipart part set with one part per value and one per file, for
// the Multipart policy to serialize.
type FormDataPolicy struct{}

// FormData constructs a form-data policy.
func FormData() *FormDataPolicy {
	return &FormDataPolicy{}
}

// Name returns FormDataPolicyName.
func (p *FormDataPolicy) Name() string {
	return FormDataPolicyName
}

// Send serializes r.Form and forwards r to next.
func (p *FormDataPolicy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	if r.Form == nil {
		return next.Send(r)
	}
	if r.GetBody != nil || len(r.Body) > 0 || r.Multipart != nil {
		return nil, fault.Configf(FormDataPolicyName, "request has both a form and another body")
	}
	mt := mediaType(r.Header.Get("Content-Type"))
	switch mt {
	case urlEncoded:
		if len(r.Form.Files) > 0 {
			return nil, fault.Configf(FormDataPolicyName, "files cannot be sent as %s", urlEncoded)
		}
		r.Body = []byte(r.Form.Values.Encode())
	case "", formData:
		if mt == "" {
			r.Header.Set("Content-Type", formData)
		}
		r.Multipart = &request.Multipart{Parts: parts(r.Form)}
	default:
		return nil, fault.Configf(FormDataPolicyName, "form cannot be sent as %s", mt)
	}
	r.Form = nil
	return next.Send(r)
}

func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt
}

func parts(f *request.Form) []request.Part {
	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var ps []request.Part
	for _, k := range keys {
		for _, v := range f.Values[k] {
			h := make(http.Header)
			h.Set("Content-Disposition", `form-data; name="`+quoteEscaper.Replace(k)+`"`)
			ps = append(ps, request.Part{Header: h, Body: []byte(v)})
		}
	}
	for _, file := range f.Files {
		h := make(http.Header)
		h.Set("Content-Disposition", `form-data; name="`+quoteEscaper.Replace(file.Field)+
			`"; filename="`+quoteEscaper.Replace(file.Name)+`"`)
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		ps = append(ps, request.Part{Header: h, Body: file.Data})
	}
	return ps
}
