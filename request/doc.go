// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the data model which flows through the HTTP
request pipeline: the logical Request sent by a caller, the Response
that comes back, and the Sender interface implemented by transports and
by the continuation handed to each pipeline policy.

A Request differs from the lower-level http.Request (net/http) in that
it is suitable for being sent many times. The retry policy re-drives the
same Request through the remainder of the pipeline on each attempt, and
the redirect policy re-issues clones of it, so the body is either
pre-buffered (Body), re-openable (GetBody), or a structured form or
multipart payload that a serialization policy turns into one of the
first two.

Use New or NewWithContext to create a Request, then hand it to a
pipeline:

	r, err := request.New("GET", "https://example.com", nil)
	if err != nil {
		...
	}
	resp, err := p.SendRequest(r)
	if err != nil {
		...
	}
	defer resp.Body.Close()

A Request is owned by the call that created it until it is handed to
the pipeline, and must not be shared across concurrent sends.
*/
package request
