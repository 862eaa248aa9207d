// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/gogama/pipeline/request"
)

// A Policy is one link in a pipeline. Install policies in a Pipeline
// to extend it with custom functionality.
//
// Send receives the request on its way out and must either return a
// result of its own or pass the request, possibly modified, to next.
// It sees the result of next on the way back in and may replace it.
// A policy which calls next more than once, as the retry and redirect
// policies do, owns the decision of how those calls are sequenced.
//
// A Policy must be safe for concurrent use by multiple goroutines.
// Per-request state belongs on the request, not on the policy.
type Policy interface {
	// Name identifies the policy within a pipeline. Names are unique
	// per pipeline and are the targets of Before and After.
	Name() string
	// Send sends r through the rest of the pipeline via next.
	Send(r *request.Request, next request.Sender) (*request.Response, error)
}

// PolicyFunc adapts an ordinary function into a Policy with the given
// name.
func PolicyFunc(name string, f func(r *request.Request, next request.Sender) (*request.Response, error)) Policy {
	if f == nil {
		panic("pipeline: nil policy func")
	}
	return &policyFunc{name: name, f: f}
}

type policyFunc struct {
	name string
	f    func(*request.Request, request.Sender) (*request.Response, error)
}

func (p *policyFunc) Name() string {
	return p.name
}

func (p *policyFunc) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	return p.f(r, next)
}

// link binds a policy to the continuation after it.
type link struct {
	policy Policy
	next   request.Sender
}

func (l link) Send(r *request.Request) (*request.Response, error) {
	return l.policy.Send(r, l.next)
}

// compose folds policies right to left around t, so that policies[0]
// is the outermost link of the returned chain.
func compose(policies []Policy, t request.Sender) request.Sender {
	s := t
	for i := len(policies) - 1; i >= 0; i-- {
		s = link{policy: policies[i], next: s}
	}
	return s
}
