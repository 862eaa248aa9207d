// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/pipeline/transient"
)

// A Verdict is a strategy's ruling on the most recent attempt.
type Verdict int

const (
	// Pass means the strategy does not govern the attempt's outcome,
	// and the next strategy should be consulted.
	Pass Verdict = iota
	// Retry means the attempt should be retried after the decision's
	// Delay.
	Retry
	// Stop means the outcome is terminal and must be returned to the
	// caller without consulting further strategies.
	Stop
)

var verdictNames = []string{"Pass", "Retry", "Stop"}

// String returns the name of the verdict.
func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictNames) {
		return "Verdict(" + strconv.Itoa(int(v)) + ")"
	}
	return verdictNames[v]
}

// A Decision is the result of consulting a Strategy.
type Decision struct {
	Verdict Verdict
	// Delay is the wait before the next attempt. It is only meaningful
	// when Verdict is Retry.
	Delay time.Duration
}

// A Strategy classifies the outcome of an attempt and, if it governs
// that outcome, decides whether to retry and how long to wait.
//
// Implementations of Strategy must be safe for concurrent use by
// multiple goroutines.
type Strategy interface {
	// Name identifies the strategy in log output.
	Name() string
	// Decide inspects the state after an attempt and returns the
	// strategy's decision.
	Decide(s *State) Decision
}

// The StrategyFunc type is an adapter to allow the use of ordinary
// functions as retry strategies. Its name is "func"; use Named to give
// a function strategy a more useful name.
type StrategyFunc func(s *State) Decision

// Name returns "func".
func (f StrategyFunc) Name() string {
	return "func"
}

// Decide calls f(s).
func (f StrategyFunc) Decide(s *State) Decision {
	return f(s)
}

// Named returns a Strategy with the given name which decides using f.
func Named(name string, f StrategyFunc) Strategy {
	if f == nil {
		panic("pipeline/retry: nil strategy func")
	}
	return &named{name, f}
}

type named struct {
	name string
	f    StrategyFunc
}

func (n *named) Name() string {
	return n.name
}

func (n *named) Decide(s *State) Decision {
	return n.f(s)
}

// Throttling returns a strategy which honours server throttling. It
// claims responses with status 429 (Too Many Requests) or 503 (Service
// Unavailable) which carry a retry delay header, and retries after
// exactly the delay the server asked for, without jitter.
//
// See RetryAfter for the recognized headers.
func Throttling() Strategy {
	return throttling{}
}

type throttling struct{}

func (throttling) Name() string {
	return "throttling"
}

func (throttling) Decide(s *State) Decision {
	if s.Response == nil {
		return Decision{}
	}
	if s.Response.StatusCode != http.StatusTooManyRequests &&
		s.Response.StatusCode != http.StatusServiceUnavailable {
		return Decision{}
	}
	d, ok := RetryAfter(s.Response.Header, time.Now())
	if !ok {
		return Decision{}
	}
	return Decision{Verdict: Retry, Delay: d}
}

var retryAfterMillis = []string{"Retry-After-Ms", "X-Ms-Retry-After-Ms"}

// RetryAfter extracts the server-requested retry delay from a response
// header. The headers retry-after-ms and x-ms-retry-after-ms, in
// milliseconds, take precedence over Retry-After, which may hold either
// a number of seconds or an HTTP-date. A date is converted to a delay
// relative to now, and a date in the past yields zero.
//
// The boolean result is false if no recognized header holds a valid
// value.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	for _, name := range retryAfterMillis {
		if ms, ok := parseNumber(h.Get(name)); ok {
			return time.Duration(ms * float64(time.Millisecond)), true
		}
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if sec, ok := parseNumber(v); ok {
		return time.Duration(sec * float64(time.Second)), true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	d := t.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

func parseNumber(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	// Clamp to keep the later Duration conversion in range.
	if f > float64(math.MaxInt64/int64(time.Second)) {
		f = float64(math.MaxInt64 / int64(time.Second))
	}
	return f, true
}

// TransportFailure returns a strategy which retries attempts that
// failed with a network-level error, as categorized by the transient
// package, waiting as long as w says.
//
// The request method is not considered: a non-idempotent request whose
// connection failed mid-exchange is retried even though the server may
// have acted on it. Callers needing strict idempotency should use a
// custom strategy built on TransientErr and Method.
func TransportFailure(w Waiter) Strategy {
	if w == nil {
		panic("pipeline/retry: nil waiter")
	}
	return &transportFailure{w}
}

type transportFailure struct {
	w Waiter
}

func (*transportFailure) Name() string {
	return "transport-failure"
}

func (t *transportFailure) Decide(s *State) Decision {
	if s.Err == nil || transient.Categorize(s.Err) == transient.Not {
		return Decision{}
	}
	return Decision{Verdict: Retry, Delay: t.w.Wait(s)}
}

// Exponential returns a strategy which retries responses selected by
// d, waiting as long as w says. Errors are never claimed by
// Exponential; see TransportFailure.
func Exponential(d Decider, w Waiter) Strategy {
	if d == nil {
		panic("pipeline/retry: nil decider")
	}
	if w == nil {
		panic("pipeline/retry: nil waiter")
	}
	return &exponential{d, w}
}

type exponential struct {
	d Decider
	w Waiter
}

func (*exponential) Name() string {
	return "exponential"
}

func (e *exponential) Decide(s *State) Decision {
	if s.Response == nil || !e.d.Decide(s) {
		return Decision{}
	}
	return Decision{Verdict: Retry, Delay: e.w.Wait(s)}
}

// DefaultStrategies returns the strategies used by DefaultPolicy, in
// order: Throttling; TransportFailure using DefaultWaiter; and
// Exponential using DefaultStatusCodes and DefaultWaiter.
func DefaultStrategies() []Strategy {
	return []Strategy{
		Throttling(),
		TransportFailure(DefaultWaiter),
		Exponential(DefaultStatusCodes, DefaultWaiter),
	}
}
