// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/transient"
)

// PolicyName is the name under which a timeout Policy is registered in
// a pipeline.
const PolicyName = "timeout"

// DefaultPolicy is the default timeout policy. It sets a fixed timeout
// of 5 seconds on each attempt.
var DefaultPolicy = Fixed(5 * time.Second)

// Infinite is a built-in timeout policy which never sets an attempt
// timeout. Attempts are still bounded by the request context.
var Infinite = Fixed(0)

// A Policy sets the Timeout field of the request before each attempt.
// A Timeout set by the caller is overwritten.
//
// The policy counts the attempts of each logical request which ended
// in a timeout, keeping the count with the request. Policies are safe
// for concurrent use by multiple goroutines.
type Policy struct {
	ladder []time.Duration
}

type statsKey struct{}

type stats struct {
	timeouts     int
	lastTimedOut bool
}

// Fixed constructs a timeout policy that uses the same value to set
// every attempt timeout. Zero means no attempt timeout.
//
// Use Fixed to create the typical timeout behavior supported by most
// retrying HTTP client software.
func Fixed(d time.Duration) *Policy {
	return Adaptive(d)
}

// Adaptive constructs a timeout policy that varies the next timeout
// value if the previous attempt timed out.
//
// Use Adaptive if you find the remote service often exhibits one-off slow
// response times that can be cured by quickly timing out and retrying,
// but you also need to protect your application (and the remote service)
// from retry storms and failure if the remote service goes through a
// burst of slowness where most response times during the burst are
// slower than your usual quick timeout.
//
// Parameter usual represents the timeout value the policy will use for
// an initial attempt and for any retry where the immediately preceding
// attempt did not time out.
//
// Parameter after contains timeout values the policy will use if the
// previous attempt timed out. If this was the first timeout of the
// logical request, after[0] is used; if the second, after[1], and so
// on. If more attempts have timed out than after has elements, then
// the last element of after is used.
//
// Consider the following timeout policy:
//
//	p := Adaptive(200*time.Millisecond, time.Second, 10*time.Second)
//
// The policy p will use 200 milliseconds as the usual timeout but if
// the preceding attempt timed out and was the first timeout of the
// request, it will use 1 second; and if the previous attempt timed out
// and was not the first timeout, it will use 10 seconds.
func Adaptive(usual time.Duration, after ...time.Duration) *Policy {
	if usual < 0 {
		panic("pipeline/timeout: negative timeout")
	}
	ladder := make([]time.Duration, 1, 1+len(after))
	ladder[0] = usual
	for _, d := range after {
		if d < 0 {
			panic("pipeline/timeout: negative timeout")
		}
		ladder = append(ladder, d)
	}
	return &Policy{ladder: ladder}
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sets r.Timeout for the next attempt, forwards r to next, and
// records whether the attempt timed out.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	s, _ := r.Value(statsKey{}).(*stats)
	if s == nil {
		s = &stats{}
		r.SetValue(statsKey{}, s)
	}
	r.Timeout = p.next(s)
	resp, err := next.Send(r)
	s.lastTimedOut = err != nil && !fault.IsAbort(err) && transient.Categorize(err) == transient.Timeout
	if s.lastTimedOut {
		s.timeouts++
	}
	return resp, err
}

func (p *Policy) next(s *stats) time.Duration {
	if !s.lastTimedOut {
		return p.ladder[0]
	}
	i := s.timeouts
	if i > len(p.ladder)-1 {
		i = len(p.ladder) - 1
	}
	return p.ladder[i]
}

// Timeouts returns the number of attempts of r which timed out, as
// counted by a timeout Policy.
func Timeouts(r *request.Request) int {
	if s, ok := r.Value(statsKey{}).(*stats); ok {
		return s.timeouts
	}
	return 0
}
