// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"errors"
	"time"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"github.com/sirupsen/logrus"
)

// PolicyName is the name under which a retry Policy is registered in a
// pipeline.
const PolicyName = "retry"

// DefaultMaxRetries is the number of retries done by DefaultPolicy,
// for up to four attempts in total.
const DefaultMaxRetries = 3

// DefaultPolicy is a general-purpose retry policy suitable for common
// use cases. It allows up to DefaultMaxRetries retries using the
// strategies returned by DefaultStrategies.
var DefaultPolicy = NewPolicy(DefaultMaxRetries, DefaultStrategies()...)

// Never is a policy that never retries. It is useful if you want the
// other features of a pipeline but do not want retries.
var Never = NewPolicy(0)

// A Policy is a pipeline policy which sends a logical request as one
// or more sequential physical attempts.
//
// After every attempt the policy classifies the outcome. Abort,
// configuration and too-many-redirects errors are always terminal.
// Otherwise the strategies are consulted in order and the first one
// which does not Pass decides: Stop makes the outcome terminal, and
// Retry schedules another attempt after the decision's delay, unless
// the retry budget is spent. If every strategy passes, the outcome is
// terminal.
//
// The request's context is checked before each attempt and during
// each wait. Once it is done, Send returns an *fault.AbortError
// without starting another attempt.
//
// Policy is safe for concurrent use by multiple goroutines. Each call
// to Send keeps its own State.
type Policy struct {
	maxRetries int
	strategies []Strategy
	logger     logrus.FieldLogger
	sleep      func(ctx context.Context, d time.Duration) error
}

type outcome int

const (
	success outcome = iota
	retryable
	fatal
)

// NewPolicy constructs a retry policy allowing up to maxRetries
// retries, so at most maxRetries+1 attempts, and consulting the given
// strategies in order after each attempt.
func NewPolicy(maxRetries int, strategies ...Strategy) *Policy {
	if maxRetries < 0 {
		panic("pipeline/retry: negative maxRetries")
	}
	ss := make([]Strategy, len(strategies))
	for i, s := range strategies {
		if s == nil {
			panic("pipeline/retry: nil strategy")
		}
		ss[i] = s
	}
	return &Policy{
		maxRetries: maxRetries,
		strategies: ss,
		logger:     logrus.StandardLogger(),
		sleep:      sleep,
	}
}

// WithLogger returns a copy of p which logs retry diagnostics to l.
func (p *Policy) WithLogger(l logrus.FieldLogger) *Policy {
	if l == nil {
		panic("pipeline/retry: nil logger")
	}
	q := *p
	q.logger = l
	return &q
}

// MaxRetries returns the maximum number of retries p allows.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send sends r through next, retrying according to p, and returns the
// terminal outcome. Responses to attempts which are retried have their
// bodies drained and closed.
//
// If the terminal outcome is a *fault.TransportError, its Attempts and
// Elapsed fields are set before it is returned.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	ctx := r.Context()
	s := &State{
		Request: r,
		Start:   time.Now(),
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fault.Abort(err)
		}

		r.RetryCount = s.Attempt
		s.Response, s.Err = next.Send(r)
		s.Delay = 0

		var by string
		if p.classify(ctx, s, &by) != retryable {
			return p.terminal(s)
		}

		log := p.logger.WithFields(logrus.Fields{
			"requestId": r.RequestID,
			"attempt":   s.Attempt,
			"strategy":  by,
			"status":    s.StatusCode(),
		})
		if s.Err != nil {
			log = log.WithError(s.Err)
		}
		if s.Attempt >= p.maxRetries {
			log.Warnf("pipeline/retry: giving up after %d attempts", s.Attempt+1)
			return p.terminal(s)
		}
		log.Debugf("pipeline/retry: retrying in %s", s.Delay)

		if s.Response != nil {
			_ = s.Response.Discard()
			s.Response = nil
		}
		if err := p.sleep(ctx, s.Delay); err != nil {
			return nil, fault.Abort(err)
		}
		s.Attempt++
	}
}

func (p *Policy) classify(ctx context.Context, s *State, by *string) outcome {
	if s.Err != nil {
		if err := ctx.Err(); err != nil && !fault.IsAbort(s.Err) {
			s.Err = fault.Abort(err)
		}
		if fault.IsAbort(s.Err) || fault.IsConfiguration(s.Err) || fault.IsTooManyRedirects(s.Err) {
			return fatal
		}
	}
	for _, strategy := range p.strategies {
		d := strategy.Decide(s)
		switch d.Verdict {
		case Pass:
			continue
		case Retry:
			*by = strategy.Name()
			s.Delay = d.Delay
			if s.Delay < 0 {
				s.Delay = 0
			}
			return retryable
		default:
			return fatal
		}
	}
	return success
}

func (p *Policy) terminal(s *State) (*request.Response, error) {
	var te *fault.TransportError
	if errors.As(s.Err, &te) {
		te.Attempts = s.Attempt + 1
		te.Elapsed = s.Duration()
	}
	return s.Response, s.Err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
