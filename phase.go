// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "strconv"

// A Phase identifies a coarse position in a pipeline's policy order.
// Phases are listed outermost first: a policy in an earlier phase sees
// the request before, and the response after, a policy in a later
// phase.
//
// Within each phase, and in the gap just after it (see AfterPhase),
// policies run in registration order unless refined with Before and
// After.
type Phase int

const (
	// Serialize is the phase for policies which turn a structured
	// request into bytes on the wire, such as form encoding.
	Serialize Phase = iota
	// NoPhase is the phase of a policy added without InPhase or
	// AfterPhase.
	NoPhase
	// Deserialize is the phase for policies which turn response bytes
	// back into a structured result.
	Deserialize
	// Retry is the phase of the retry policy. Policies after it run
	// once per physical attempt.
	Retry
	// Sign is the innermost phase, adjacent to the transport, for
	// policies which must see the final bytes of each attempt.
	// Nothing may be added after it.
	Sign
	phaseSentinel
)

var phaseNames = []string{
	"Serialize",
	"NoPhase",
	"Deserialize",
	"Retry",
	"Sign",
}

// Phases returns all phases in order, outermost first.
func Phases() []Phase {
	return []Phase{
		Serialize,
		NoPhase,
		Deserialize,
		Retry,
		Sign,
	}
}

// String returns the name of the phase.
func (ph Phase) String() string {
	if !ph.valid() {
		return "Phase(" + strconv.Itoa(int(ph)) + ")"
	}
	return phaseNames[ph]
}

func (ph Phase) valid() bool {
	return ph >= Serialize && ph < phaseSentinel
}

// slot orders policies across phases. A policy in phase ph occupies
// slot 2*ph and a policy after phase ph occupies slot 2*ph+1.
func (ph Phase) slot(after bool) int {
	s := 2 * int(ph)
	if after {
		s++
	}
	return s
}
