// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/gogama/pipeline/fault"
	"github.com/gogama/pipeline/request"
	"github.com/gogama/pipeline/transport"
)

const addOp = "AddPolicy"

// A Pipeline is an ordered chain of policies in front of a transport.
// Its zero value is an empty pipeline which sends requests through
// transport.Default.
//
// A Pipeline is safe for concurrent use by multiple goroutines, and
// policies may be added or removed while requests are in flight.
// Requests already in flight finish with the chain they started with.
//
// On top of the transport, a Pipeline adds the following:
//
// • SendRequest clones the caller's request, so policies may modify
// the request they are given without side effects on the caller;
//
// • the request's context is checked before anything is sent, and a
// cancelled context yields a *fault.AbortError; and
//
// • the Pipeline implements the Executor interface.
type Pipeline struct {
	transport request.Sender

	lock     sync.RWMutex
	entries  []*entry
	seq      int
	policies []Policy
	chain    request.Sender
}

type entry struct {
	policy Policy
	name   string
	slot   int
	seq    int
	before []string
	after  []string
}

// New returns an empty pipeline which sends requests through t. If t
// is nil, transport.Default is used.
func New(t request.Sender) *Pipeline {
	return &Pipeline{transport: t}
}

// An AddOption constrains where AddPolicy places a policy.
type AddOption func(*addOptions)

type addOptions struct {
	in, after      *Phase
	before, afterP []string
}

// InPhase places the policy in phase ph.
func InPhase(ph Phase) AddOption {
	return func(o *addOptions) {
		o.in = &ph
	}
}

// AfterPhase places the policy after every policy in phase ph and
// before every policy in the next phase. AfterPhase(Sign) is invalid.
func AfterPhase(ph Phase) AddOption {
	return func(o *addOptions) {
		o.after = &ph
	}
}

// Before places the policy before each of the named policies, which
// must already be in the pipeline.
func Before(names ...string) AddOption {
	return func(o *addOptions) {
		o.before = append(o.before, names...)
	}
}

// After places the policy after each of the named policies, which
// must already be in the pipeline.
func After(names ...string) AddOption {
	return func(o *addOptions) {
		o.afterP = append(o.afterP, names...)
	}
}

// AddPolicy inserts policy p into the pipeline. Without options, p is
// placed in NoPhase after the policies already there.
//
// The returned error, if any, is a *fault.ConfigurationError, and the
// pipeline is left unchanged. AddPolicy fails if p is nil or has an
// empty name, if a policy with the same name is already present, if
// both InPhase and AfterPhase are given, if a phase is invalid or is
// AfterPhase(Sign), if Before or After names a policy which is not
// present, or if the constraints cannot all be satisfied.
//
// Constraints are kept after the call. If a policy named by Before or
// After is later removed, the constraint is ignored while it is
// absent.
func (p *Pipeline) AddPolicy(pol Policy, opts ...AddOption) error {
	if pol == nil {
		return fault.Configf(addOp, "nil policy")
	}
	name := pol.Name()
	if name == "" {
		return fault.Configf(addOp, "policy has an empty name")
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	ph, after := NoPhase, false
	switch {
	case o.in != nil && o.after != nil:
		return fault.Configf(addOp, "policy %q: both InPhase and AfterPhase given", name)
	case o.in != nil:
		ph = *o.in
	case o.after != nil:
		ph, after = *o.after, true
	}
	if !ph.valid() {
		return fault.Configf(addOp, "policy %q: invalid phase %s", name, ph)
	}
	if after && ph == Sign {
		return fault.Configf(addOp, "policy %q: nothing may be added after phase Sign", name)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if p.index(name) >= 0 {
		return fault.Configf(addOp, "duplicate policy name %q", name)
	}
	for _, ref := range append(append([]string(nil), o.before...), o.afterP...) {
		if ref == name {
			return fault.Configf(addOp, "policy %q cannot be ordered relative to itself", name)
		}
		if p.index(ref) < 0 {
			return fault.Configf(addOp, "policy %q: no policy named %q", name, ref)
		}
	}

	e := &entry{
		policy: pol,
		name:   name,
		slot:   ph.slot(after),
		seq:    p.seq,
		before: o.before,
		after:  o.afterP,
	}
	entries := make([]*entry, len(p.entries), len(p.entries)+1)
	copy(entries, p.entries)
	entries = append(entries, e)
	policies, err := order(entries)
	if err != nil {
		return err
	}

	p.entries = entries
	p.seq++
	p.install(policies)
	return nil
}

// RemovePolicy removes the named policy from the pipeline and returns
// it. The boolean result is false if no such policy is present.
func (p *Pipeline) RemovePolicy(name string) (Policy, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	i := p.index(name)
	if i < 0 {
		return nil, false
	}
	removed := p.entries[i].policy
	entries := make([]*entry, 0, len(p.entries)-1)
	entries = append(entries, p.entries[:i]...)
	entries = append(entries, p.entries[i+1:]...)
	// Removing a node from a valid ordering cannot create a conflict.
	policies, _ := order(entries)
	p.entries = entries
	p.install(policies)
	return removed, true
}

// Policies returns the pipeline's policies in the order a request
// meets them, outermost first.
func (p *Pipeline) Policies() []Policy {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return append([]Policy(nil), p.policies...)
}

// Clone returns a copy of the pipeline which shares its transport and
// policy instances but may be modified independently.
func (p *Pipeline) Clone() *Pipeline {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return &Pipeline{
		transport: p.transport,
		entries:   append([]*entry(nil), p.entries...),
		seq:       p.seq,
		policies:  append([]Policy(nil), p.policies...),
		chain:     p.chain,
	}
}

// SendRequest sends a clone of r through the pipeline's policies and
// transport and returns the final result.
//
// A non-2XX status code is not an error. Errors are the ones produced
// by the policies and transport, most commonly a *fault.AbortError,
// *fault.TransportError, *fault.TooManyRedirectsError or
// *fault.ConfigurationError.
//
// On success the caller owns the response and must close its body.
func (p *Pipeline) SendRequest(r *request.Request) (*request.Response, error) {
	if r == nil {
		panic("pipeline: nil request")
	}
	if err := r.Context().Err(); err != nil {
		return nil, fault.Abort(err)
	}
	return p.sender().Send(r.Clone())
}

// Do is equivalent to SendRequest.
func (p *Pipeline) Do(r *request.Request) (*request.Response, error) {
	return p.SendRequest(r)
}

// Get issues a GET to the specified URL.
func (p *Pipeline) Get(ctx context.Context, url string) (*request.Response, error) {
	return Get(ctx, p, url)
}

// Head issues a HEAD to the specified URL.
func (p *Pipeline) Head(ctx context.Context, url string) (*request.Response, error) {
	return Head(ctx, p, url)
}

// Post issues a POST to the specified URL with the given content type
// and body. The body may be any type supported by request.BodyBytes.
func (p *Pipeline) Post(ctx context.Context, url, contentType string, body interface{}) (*request.Response, error) {
	return Post(ctx, p, url, contentType, body)
}

// PostForm issues a POST to the specified URL with data's keys and
// values URL-encoded as the request body.
func (p *Pipeline) PostForm(ctx context.Context, url string, data url.Values) (*request.Response, error) {
	return PostForm(ctx, p, url, data)
}

// CloseIdleConnections closes idle connections in the transport, if
// the transport supports it.
func (p *Pipeline) CloseIdleConnections() {
	if ic, ok := p.sendTransport().(IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}

func (p *Pipeline) sendTransport() request.Sender {
	if p.transport == nil {
		return transport.Default
	}
	return p.transport
}

func (p *Pipeline) sender() request.Sender {
	p.lock.RLock()
	c := p.chain
	p.lock.RUnlock()
	if c == nil {
		return p.sendTransport()
	}
	return c
}

func (p *Pipeline) install(policies []Policy) {
	p.policies = policies
	p.chain = compose(policies, p.sendTransport())
}

func (p *Pipeline) index(name string) int {
	for i, e := range p.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

// order sorts entries topologically. Every entry runs after all entries
// in lower slots and after the entries it is constrained to follow.
// Ties are broken by slot, then rank, then registration sequence.
func order(entries []*entry) ([]Policy, error) {
	n := len(entries)
	byName := make(map[string]int, n)
	for i, e := range entries {
		byName[e.name] = i
	}

	succ := make([][]int, n)
	indeg := make([]int, n)
	edge := func(from, to int) error {
		if entries[from].slot > entries[to].slot {
			return fault.Configf(addOp, "policy %q cannot run before %q: ordering conflicts with phases",
				entries[from].name, entries[to].name)
		}
		succ[from] = append(succ[from], to)
		indeg[to]++
		return nil
	}
	for i, e := range entries {
		for _, name := range e.before {
			if j, ok := byName[name]; ok {
				if err := edge(i, j); err != nil {
					return nil, err
				}
			}
		}
		for _, name := range e.after {
			if j, ok := byName[name]; ok {
				if err := edge(j, i); err != nil {
					return nil, err
				}
			}
		}
	}

	// A policy ranks no later than the earliest policy in its slot
	// that it must precede, so Before pulls it forward to just ahead
	// of its target rather than letting unrelated policies pass.
	rank := make([]int, n)
	state := make([]int8, n)
	var visit func(i int) int
	visit = func(i int) int {
		switch state[i] {
		case 1:
			return entries[i].seq
		case 2:
			return rank[i]
		}
		state[i] = 1
		k := entries[i].seq
		for _, j := range succ[i] {
			if entries[j].slot == entries[i].slot {
				if kj := visit(j); kj < k {
					k = kj
				}
			}
		}
		rank[i], state[i] = k, 2
		return k
	}
	for i := range entries {
		visit(i)
	}
	less := func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.slot != b.slot:
			return a.slot < b.slot
		case rank[i] != rank[j]:
			return rank[i] < rank[j]
		}
		return a.seq < b.seq
	}

	done := make([]bool, n)
	policies := make([]Policy, 0, n)
	for len(policies) < n {
		next := -1
		for i := range entries {
			if !done[i] && indeg[i] == 0 && (next < 0 || less(i, next)) {
				next = i
			}
		}
		if next < 0 {
			var stuck []string
			for i, e := range entries {
				if !done[i] {
					stuck = append(stuck, e.name)
				}
			}
			return nil, fault.Configf(addOp, "ordering constraints form a cycle among %s",
				strings.Join(stuck, ", "))
		}
		done[next] = true
		policies = append(policies, entries[next].policy)
		for _, j := range succ[next] {
			indeg[j]--
		}
	}
	return policies, nil
}
