// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package redirect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.PanicsWithValue(t, "pipeline/redirect: negative maxRedirects", func() { New(-1) })
	p := New(DefaultMaxRedirects)
	assert.Equal(t, 20, p.MaxRedirects)
	assert.False(t, p.ForwardCredentials)
	assert.Equal(t, "redirect", p.Name())
}

type echo struct {
	Method string
	Body   string
	Auth   string
	Cookie string
}

func newServer(t *testing.T, hits *int32) *httptest.Server {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/code/"):
			code, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/code/"))
			w.Header().Set("Location", "/final")
			w.WriteHeader(code)
			_, _ = io.WriteString(w, "redirecting")
		case strings.HasPrefix(r.URL.Path, "/loop/"):
			n, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/loop/"))
			if n == 0 {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.Header().Set("Location", fmt.Sprintf("/loop/%d", n-1))
			w.WriteHeader(http.StatusFound)
		case r.URL.Path == "/away":
			w.Header().Set("Location", r.URL.Query().Get("to"))
			w.WriteHeader(http.StatusTemporaryRedirect)
		case r.URL.Path == "/nolocation":
			w.WriteHeader(http.StatusFound)
		case r.URL.Path == "/notmodified":
			w.Header().Set("Location", "/final")
			w.WriteHeader(http.StatusNotModified)
		default:
			b, _ := io.ReadAll(r.Body)
			w.Header().Set("X-Method", r.Method)
			w.Header().Set("X-Body", string(b))
			w.Header().Set("X-Auth", r.Header.Get("Authorization"))
			w.Header().Set("X-Cookie", r.Header.Get("Cookie"))
			w.Header().Set("X-Path", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func send(t *testing.T, p *Policy, method, url, body string) (*request.Response, error) {
	r, err := request.New(method, url, body)
	require.NoError(t, err)
	return p.Send(r, transport.New(nil))
}

func TestPolicySend(t *testing.T) {
	var hits int32
	s := newServer(t, &hits)
	p := New(DefaultMaxRedirects)

	t.Run("method rewriting", func(t *testing.T) {
		testCases := []struct {
			method, code, wantMethod, wantBody string
		}{
			{"GET", "301", "GET", ""},
			{"POST", "301", "GET", ""},
			{"PUT", "301", "PUT", "payload"},
			{"POST", "302", "GET", ""},
			{"DELETE", "302", "DELETE", "payload"},
			{"POST", "303", "GET", ""},
			{"PUT", "303", "GET", ""},
			{"HEAD", "303", "HEAD", ""},
			{"POST", "307", "POST", "payload"},
			{"PATCH", "308", "PATCH", "payload"},
			{"POST", "300", "POST", "payload"},
		}
		for _, testCase := range testCases {
			t.Run(testCase.method+" "+testCase.code, func(t *testing.T) {
				body := "payload"
				if testCase.method == "GET" || testCase.method == "HEAD" {
					body = ""
				}
				resp, err := send(t, p, testCase.method, s.URL+"/code/"+testCase.code, body)
				require.NoError(t, err)
				defer func() { _ = resp.Body.Close() }()
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, "/final", resp.Header.Get("X-Path"))
				assert.Equal(t, testCase.wantMethod, resp.Header.Get("X-Method"))
				assert.Equal(t, testCase.wantBody, resp.Header.Get("X-Body"))
				assert.Equal(t, s.URL+"/final", resp.Request.URL.String())
			})
		}
	})
	t.Run("not followed", func(t *testing.T) {
		for path, code := range map[string]int{"/nolocation": 302, "/notmodified": 304} {
			resp, err := send(t, p, "GET", s.URL+path, "")
			require.NoError(t, err)
			assert.Equal(t, code, resp.StatusCode, path)
			_ = resp.Body.Close()
		}
	})
	t.Run("disabled", func(t *testing.T) {
		resp, err := send(t, New(0), "GET", s.URL+"/code/302", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		b, err := resp.Bytes()
		require.NoError(t, err)
		assert.Equal(t, "redirecting", string(b))
	})
	t.Run("exactly max follows", func(t *testing.T) {
		atomic.StoreInt32(&hits, 0)
		resp, err := send(t, p, "GET", s.URL+"/loop/25", "")
		assert.Nil(t, resp)
		var tmr *fault.TooManyRedirectsError
		require.ErrorAs(t, err, &tmr)
		assert.Equal(t, 20, tmr.Max)
		assert.Equal(t, s.URL+"/loop/4", tmr.URL)
		assert.Equal(t, int32(21), atomic.LoadInt32(&hits))
	})
	t.Run("loop within budget", func(t *testing.T) {
		atomic.StoreInt32(&hits, 0)
		resp, err := send(t, p, "GET", s.URL+"/loop/20", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(21), atomic.LoadInt32(&hits))
		_ = resp.Body.Close()
	})
	t.Run("caller request untouched", func(t *testing.T) {
		r, err := request.New("POST", s.URL+"/code/303", "payload")
		require.NoError(t, err)
		r.Header.Set("Content-Type", "text/plain")
		resp, err := p.Send(r, transport.New(nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/code/303", r.URL.Path)
		assert.Equal(t, "payload", string(r.Body))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, "", resp.Request.Header.Get("Content-Type"))
	})
}

func TestPolicySendCredentials(t *testing.T) {
	var hits int32
	a := newServer(t, &hits)
	b := newServer(t, &hits)
	testCases := []struct {
		name    string
		to      string
		forward bool
		keep    bool
	}{
		{"same origin", a.URL + "/final", false, true},
		{"cross origin", b.URL + "/final", false, false},
		{"cross origin forwarded", b.URL + "/final", true, true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			p := New(5)
			p.ForwardCredentials = testCase.forward
			r, err := request.New("GET", a.URL+"/away?to="+testCase.to, nil)
			require.NoError(t, err)
			r.SetBasicAuth("user", "pass")
			r.AddCookie(&http.Cookie{Name: "session", Value: "s3cr3t"})
			resp, err := p.Send(r, transport.New(nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			if testCase.keep {
				assert.NotEmpty(t, resp.Header.Get("X-Auth"))
				assert.Equal(t, "session=s3cr3t", resp.Header.Get("X-Cookie"))
			} else {
				assert.Empty(t, resp.Header.Get("X-Auth"))
				assert.Empty(t, resp.Header.Get("X-Cookie"))
			}
			assert.NotEmpty(t, r.Header.Get("Authorization"))
		})
	}
}

func TestPolicySendFake(t *testing.T) {
	t.Run("redirect bodies closed", func(t *testing.T) {
		var bodies []*closeTracker
		next := request.SenderFunc(func(r *request.Request) (*request.Response, error) {
			b := &closeTracker{Reader: strings.NewReader("x")}
			bodies = append(bodies, b)
			resp := &request.Response{StatusCode: 200, Header: http.Header{}, Body: b, Request: r}
			if r.URL.Path == "/start" {
				resp.StatusCode = 301
				resp.Header.Set("Location", "/end")
			}
			return resp, nil
		})
		r, err := request.New("GET", "http://example.test/start", nil)
		require.NoError(t, err)
		resp, err := New(3).Send(r, next)
		require.NoError(t, err)
		require.Len(t, bodies, 2)
		assert.True(t, bodies[0].closed)
		assert.False(t, bodies[1].closed)
		assert.Equal(t, "/end", resp.Request.URL.Path)
	})
	t.Run("error on follow", func(t *testing.T) {
		calls := 0
		next := request.SenderFunc(func(r *request.Request) (*request.Response, error) {
			calls++
			if calls > 1 {
				return nil, io.ErrUnexpectedEOF
			}
			h := http.Header{}
			h.Set("Location", "/elsewhere")
			return &request.Response{StatusCode: 302, Header: h, Body: io.NopCloser(strings.NewReader(""))}, nil
		})
		r, err := request.New("GET", "http://example.test/", nil)
		require.NoError(t, err)
		resp, err := New(3).Send(r, next)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
	t.Run("abort between hops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		next := request.SenderFunc(func(r *request.Request) (*request.Response, error) {
			calls++
			cancel()
			h := http.Header{}
			h.Set("Location", "/elsewhere")
			return &request.Response{StatusCode: 302, Header: h, Body: io.NopCloser(strings.NewReader(""))}, nil
		})
		r, err := request.NewWithContext(ctx, "GET", "http://example.test/", nil)
		require.NoError(t, err)
		_, err = New(3).Send(r, next)
		assert.True(t, fault.IsAbort(err))
		assert.Equal(t, 1, calls)
	})
	t.Run("initial error passes through", func(t *testing.T) {
		next := request.SenderFunc(func(r *request.Request) (*request.Response, error) {
			return nil, io.EOF
		})
		r, err := request.New("GET", "http://example.test/", nil)
		require.NoError(t, err)
		_, err = New(3).Send(r, next)
		assert.Same(t, io.EOF, err)
	})
}

func TestSameOrigin(t *testing.T) {
	parse := func(s string) *request.Request {
		r, err := request.New("GET", s, nil)
		require.NoError(t, err)
		return r
	}
	assert.True(t, sameOrigin(parse("http://a.test/x").URL, parse("HTTP://A.test:80/y").URL))
	assert.True(t, sameOrigin(parse("https://a.test/x").URL, parse("https://a.test:443/").URL))
	assert.False(t, sameOrigin(parse("http://a.test/").URL, parse("https://a.test/").URL))
	assert.False(t, sameOrigin(parse("http://a.test/").URL, parse("http://b.test/").URL))
	assert.False(t, sameOrigin(parse("http://a.test:8080/").URL, parse("http://a.test/").URL))
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
