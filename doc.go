// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package pipeline sends HTTP requests through an ordered chain of
policies in front of a transport.

Build the standard pipeline from a configuration to begin making
requests.

	cfg, err := config.Default().FromEnv(nil)
	...
	p, err := pipeline.NewDefault(cfg)
	...
	resp, err := p.Get(ctx, "https://www.example.com")
	...
	resp, err := p.Post(ctx, "https://www.example.com/upload",
		"application/json", &buf)
	...
	resp, err := p.PostForm(ctx, "http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

Each policy sees the request on the way out and the response on the way
back in, and passes the request on by calling next:

	logRequests := pipeline.PolicyFunc("log-requests",
		func(r *request.Request, next request.Sender) (*request.Response, error) {
			log.Printf("%s %s", r.Method, r.URL)
			return next.Send(r)
		})
	err := p.AddPolicy(logRequests, pipeline.AfterPhase(pipeline.Retry))

Policies are ordered by Phase, and within a phase by registration order
refined with Before and After. Policies placed after the Retry phase run
once per physical attempt; policies before it run once per logical
request.

For control over the retry decisions and timing, build a retry policy
from components in package retry:

	w := retry.NewExpWaiter(250*time.Millisecond, 5*time.Second, time.Now())
	rp := retry.NewPolicy(5, retry.Throttling(), retry.TransportFailure(w))
	p := pipeline.New(nil)
	err := p.AddPolicy(rp, pipeline.InPhase(pipeline.Retry))

Errors returned by a pipeline are classified by package fault. An
HTTP response with an error status code is not an error.

Package pipeline provides basic interfaces for each request method
(Doer, Getter, Header, Poster, FormPoster, and IdleCloser); a combined
interface that composes all the basic methods (Executor); and utility
functions for working with a Doer (Inflate, Get, Head, Post, and
PostForm).
*/
package pipeline
