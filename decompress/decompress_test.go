// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package decompress

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/transport"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plain = "the quick brown fox jumps over the lazy dog, again and again and again"

func encode(t *testing.T, coding string, data []byte) []byte {
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch coding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "rawdeflate":
		w, err = flate.NewWriter(&buf, flate.DefaultCompression)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		w, err = zstd.NewWriter(&buf)
	default:
		t.Fatalf("unknown coding %s", coding)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestPolicySend(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Accept-Encoding", r.Header.Get("Accept-Encoding"))
		codings := r.URL.Query()["c"]
		data := []byte(plain)
		var applied []string
		for _, c := range codings {
			data = encode(t, c, data)
			if c == "rawdeflate" {
				c = "deflate"
			}
			applied = append(applied, c)
		}
		if len(applied) > 0 {
			w.Header().Set("Content-Encoding", strings.Join(applied, ", "))
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(s.Close)
	p := New()
	assert.Equal(t, "decompress", p.Name())
	tr := transport.New(nil)

	get := func(t *testing.T, method, query string) *request.Response {
		r, err := request.New(method, s.URL+"/?"+query, nil)
		require.NoError(t, err)
		resp, err := p.Send(r, tr)
		require.NoError(t, err)
		return resp
	}

	testCases := []struct {
		name  string
		query string
	}{
		{"gzip", "c=gzip"},
		{"deflate zlib", "c=deflate"},
		{"deflate raw", "c=rawdeflate"},
		{"br", "c=br"},
		{"zstd", "c=zstd"},
		{"gzip then br", "c=gzip&c=br"},
		{"zstd then gzip then deflate", "c=zstd&c=gzip&c=deflate"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp := get(t, "GET", testCase.query)
			assert.Equal(t, AcceptEncoding, resp.Header.Get("X-Accept-Encoding"))
			assert.True(t, resp.Uncompressed)
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			assert.Empty(t, resp.Header.Get("Content-Length"))
			assert.Equal(t, int64(-1), resp.ContentLength)
			b, err := resp.Bytes()
			require.NoError(t, err)
			assert.Equal(t, plain, string(b))
		})
	}
	t.Run("identity", func(t *testing.T) {
		resp := get(t, "GET", "")
		assert.False(t, resp.Uncompressed)
		b, err := resp.Bytes()
		require.NoError(t, err)
		assert.Equal(t, plain, string(b))
	})
	t.Run("HEAD", func(t *testing.T) {
		resp := get(t, "HEAD", "c=gzip")
		assert.Empty(t, resp.Header.Get("X-Accept-Encoding"))
		assert.False(t, resp.Uncompressed)
		_ = resp.Body.Close()
	})
	t.Run("caller Accept-Encoding kept", func(t *testing.T) {
		r, err := request.New("GET", s.URL+"/?c=gzip", nil)
		require.NoError(t, err)
		r.Header.Set("Accept-Encoding", "gzip")
		resp, err := p.Send(r, tr)
		require.NoError(t, err)
		assert.Equal(t, "gzip", resp.Header.Get("X-Accept-Encoding"))
		b, err := resp.Bytes()
		require.NoError(t, err)
		assert.Equal(t, plain, string(b))
	})
}

func TestDecode(t *testing.T) {
	response := func(body []byte, codings ...string) *request.Response {
		h := http.Header{}
		for _, c := range codings {
			h.Add("Content-Encoding", c)
		}
		h.Set("Content-Length", "99")
		return &request.Response{
			StatusCode:    200,
			Header:        h,
			Body:          io.NopCloser(bytes.NewReader(body)),
			ContentLength: 99,
		}
	}
	t.Run("unknown coding untouched", func(t *testing.T) {
		resp := Decode(response([]byte("abc"), "gzip, compress"))
		assert.False(t, resp.Uncompressed)
		assert.Equal(t, "gzip, compress", resp.Header.Get("Content-Encoding"))
		assert.Equal(t, int64(99), resp.ContentLength)
	})
	t.Run("idempotent", func(t *testing.T) {
		resp := Decode(response(encode(t, "gzip", []byte(plain)), "gzip"))
		assert.True(t, resp.Uncompressed)
		again := Decode(resp)
		assert.Same(t, resp, again)
		b, err := again.Bytes()
		require.NoError(t, err)
		assert.Equal(t, plain, string(b))
	})
	t.Run("multiple header lines", func(t *testing.T) {
		data := encode(t, "br", encode(t, "gzip", []byte(plain)))
		resp := Decode(response(data, "gzip", "identity", "BR"))
		b, err := resp.Bytes()
		require.NoError(t, err)
		assert.Equal(t, plain, string(b))
	})
	t.Run("no content", func(t *testing.T) {
		resp := response(nil, "gzip")
		resp.StatusCode = http.StatusNoContent
		assert.False(t, Decode(resp).Uncompressed)
	})
	t.Run("corrupt body", func(t *testing.T) {
		resp := Decode(response([]byte("not gzip at all"), "gzip"))
		_, err := resp.Bytes()
		assert.Error(t, err)
	})
	t.Run("close without read", func(t *testing.T) {
		c := &closeTracker{Reader: bytes.NewReader(nil)}
		resp := response(nil, "zstd")
		resp.Body = c
		require.NoError(t, Decode(resp).Body.Close())
		assert.True(t, c.closed)
	})
}

func TestIsZlibHeader(t *testing.T) {
	z := encode(t, "deflate", []byte(plain))
	assert.True(t, isZlibHeader(z[0], z[1]))
	assert.False(t, isZlibHeader(0x00, 0x00))
	assert.False(t, isZlibHeader(0x78, 0x00))
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
