// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"strings"
	"time"

	"github.com/gogama/pipeline/transient"
)

// A Decider decides if the most recent attempt is eligible for retry.
// Deciders select attempts for the Exponential strategy, which in turn
// picks the delay.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors StatusCode, Method, and Before, and the
// built-in decider TransientErr; or implement your Decider. Use
// DeciderFunc to convert an ordinary function into a Decider, and to
// compose deciders logically using DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(s *State) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(s *State) bool

// DefaultStatusCodes is the decider used by the default Exponential
// strategy. It selects responses with the following status codes: 408
// (Request Timeout); 500 (Internal Server Error); 502 (Bad Gateway);
// 503 (Service Unavailable); or 504 (Gateway Timeout).
var DefaultStatusCodes = StatusCode(408, 500, 502, 503, 504)

// TransientErr is a decider that selects attempts whose error is
// transient according to transient.Categorize.
//
// TransientErr only looks at the error, so it will always return false
// if a valid HTTP response is returned.
var TransientErr DeciderFunc = transientErr

// Decide returns true if the attempt is selected for retry, and false
// otherwise.
func (f DeciderFunc) Decide(s *State) bool {
	return f(s)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(s *State) bool {
		return f(s) && g(s)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(s *State) bool {
		return f(s) || g(s)
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the first attempt started. The
// returned decider returns true while the elapsed time is less than d,
// and false afterward.
func Before(d time.Duration) DeciderFunc {
	return func(s *State) bool {
		return s.Duration() < d
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code. If the most recent attempt received a
// valid HTTP response, and the response status code is contained in
// the list ss, the decider returns true. Otherwise, it returns false.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(s *State) bool {
		code := s.StatusCode()
		for _, c := range ss2 {
			if code == c {
				return true
			}
		}
		return false
	}
}

// Method constructs a retry decider which returns true if the request
// method is contained in the list ms. Comparison is case-insensitive.
//
// Method is useful for restricting status-code based retries to
// idempotent methods.
func Method(ms ...string) DeciderFunc {
	ms2 := make([]string, len(ms))
	copy(ms2, ms)
	return func(s *State) bool {
		if s.Request == nil {
			return false
		}
		for _, m := range ms2 {
			if strings.EqualFold(s.Request.Method, m) {
				return true
			}
		}
		return false
	}
}

func transientErr(s *State) bool {
	return transient.Categorize(s.Err) != transient.Not
}
