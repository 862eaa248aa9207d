// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"net/http"
	"time"

	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/transient"
)

// State is the retry state of one logical request as it passes
// through a retry Policy. A new State is created for every logical
// request and is discarded when the request reaches a terminal
// outcome.
//
// State is shared between the strategies, deciders and waiters
// consulted after each attempt. They may read it but should not
// modify it.
type State struct {
	// Request is the logical request being retried.
	Request *request.Request
	// Attempt is the zero-based index of the most recent physical
	// attempt. It only ever increases.
	Attempt int
	// Start is the time the first attempt started.
	Start time.Time
	// Response is the response to the most recent attempt, or nil if
	// the attempt failed with an error.
	Response *request.Response
	// Err is the error from the most recent attempt, or nil if the
	// attempt produced a response.
	Err error
	// Delay is the wait chosen by the strategy which claimed the most
	// recent attempt for retry. It is zero until a strategy claims an
	// attempt.
	Delay time.Duration
}

// StatusCode returns the status code of the most recent response, or
// zero if the most recent attempt did not produce a response.
func (s *State) StatusCode() int {
	if s.Response != nil {
		return s.Response.StatusCode
	}
	return 0
}

// Header returns the header of the most recent response, or nil if
// the most recent attempt did not produce a response.
func (s *State) Header() http.Header {
	if s.Response != nil {
		return s.Response.Header
	}
	return nil
}

// Duration returns the time elapsed since the first attempt started.
func (s *State) Duration() time.Duration {
	return time.Since(s.Start)
}

// Timeout reports whether the most recent attempt ended in a timeout
// error.
func (s *State) Timeout() bool {
	return transient.Categorize(s.Err) == transient.Timeout
}
