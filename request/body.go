// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"io"
	"net/http"
	"net/url"
)

const badBodyTypeMsg = "pipeline/request: invalid type (for body use nil, " +
	"string, []byte, io.Reader or io.ReadCloser)"

// BodyBytes converts a generic body parameter to a byte slice for use
// as a buffered request body.
//
// The body parameter may be nil, or it may be a string, []byte,
// io.Reader, or io.ReadCloser. Readers are read to the end, and closed
// if they implement io.Closer. Any other type results in an error.
func BodyBytes(body interface{}) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case io.ReadCloser:
		b, err := io.ReadAll(x)
		if err != nil {
			return nil, err
		}
		err = x.Close()
		if err != nil {
			return nil, err
		}
		return b, nil
	case io.Reader:
		return BodyBytes(io.NopCloser(x))
	default:
		return nil, errors.New(badBodyTypeMsg)
	}
}

// A Form is a structured form body. The form-data policy serializes it
// either as application/x-www-form-urlencoded or as multipart/form-data
// depending on the request's Content-Type.
type Form struct {
	// Values holds the plain text form fields.
	Values url.Values
	// Files holds file fields. A form with files can only be sent as
	// multipart/form-data.
	Files []File
}

// A File is a file field in a Form.
type File struct {
	// Field is the form field name.
	Field string
	// Name is the file name reported to the server.
	Name string
	// ContentType is the media type of Data. If empty,
	// application/octet-stream is used.
	ContentType string
	// Data is the file content.
	Data []byte
}

func (f *Form) clone() *Form {
	f2 := &Form{}
	if f.Values != nil {
		f2.Values = make(url.Values, len(f.Values))
		for k, v := range f.Values {
			f2.Values[k] = append([]string(nil), v...)
		}
	}
	f2.Files = append([]File(nil), f.Files...)
	return f2
}

// A Multipart is a structured multipart body. The multipart policy
// serializes it into a single byte stream.
type Multipart struct {
	// Boundary is the multipart boundary. If empty, the boundary is
	// taken from the Content-Type header, or generated.
	Boundary string
	// Parts are the body parts in order.
	Parts []Part
}

// A Part is one part of a Multipart body. Exactly one of Body and Open
// should be set; if Open is set, Body is ignored.
type Part struct {
	// Header holds the part headers, such as Content-Disposition and
	// Content-Type.
	Header http.Header
	// Body is the buffered part content.
	Body []byte
	// Open, if non-nil, returns a fresh reader over streamed part
	// content. It is called once per physical attempt.
	Open func() (io.ReadCloser, error)
}

func (m *Multipart) clone() *Multipart {
	m2 := &Multipart{Boundary: m.Boundary, Parts: make([]Part, len(m.Parts))}
	for i, p := range m.Parts {
		m2.Parts[i] = Part{Header: p.Header.Clone(), Body: p.Body, Open: p.Open}
	}
	return m2
}
