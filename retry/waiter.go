// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"
)

// A Waiter specifies how long to wait before retrying a failed
// attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// This package provides two Waiter implementations, using the
// constructor functions NewExpWaiter and NewFixedWaiter. In addition it
// provides a concrete instance suitable for many typical use cases,
// DefaultWaiter.
type Waiter interface {
	Wait(s *State) time.Duration
}

const (
	// DefaultBase is the base delay used by DefaultWaiter.
	DefaultBase = 800 * time.Millisecond
	// DefaultCap is the largest pre-jitter delay used by DefaultWaiter.
	DefaultCap = time.Minute
)

// DefaultWaiter is the default retry wait policy. It uses a jittered
// exponential backoff formula with a base wait of DefaultBase and a
// pre-jitter cap of DefaultCap.
var DefaultWaiter = NewExpWaiter(DefaultBase, DefaultCap, time.Now())

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
//
// Use NewFixedWaiter to obtain a constant retry backoff.
func NewFixedWaiter(d time.Duration) Waiter {
	if d < 0 {
		panic("pipeline/retry: negative fixed wait")
	}
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *State) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter constructs a Waiter implementing an exponential backoff
// formula with optional additive jitter.
//
// Parameters base and cap control the exponential calculation of the
// ceiling:
//
//	ceil := min(base * 2**attempt, cap)
//
// Base and cap must be positive values, and cap must be at least equal
// to base. The returned wait is ceil plus a random jitter in the range
// [0, ceil), so successive waits never shrink below the ceiling while
// concurrent clients still spread out.
//
// Parameter jitter is used to generate the random jitter. To make a
// waiter that does not jitter and simply returns ceil on each attempt,
// pass nil for jitter. Otherwise you may specify either a random number
// generator seed value (as a time.Time, int, or int64) or a random
// number generator (as a rand.Source). If a seed value is specified, it
// is used to seed a random number generator for calculating jitter. If
// a rand.Source is specified, it is used to calculate jitter.
func NewExpWaiter(base, cap time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("pipeline/retry: base must be positive")
	}
	if cap < base {
		panic("pipeline/retry: cap must be at least base")
	}
	r := jitterToRand(jitter)
	return &jitterExpWaiter{
		base: base,
		cap:  cap,
		rand: r,
	}
}

type jitterExpWaiter struct {
	base time.Duration
	cap  time.Duration
	rand *rand.Rand
	lock sync.Mutex
}

func (w *jitterExpWaiter) Wait(s *State) time.Duration {
	ceil := int64(w.cap)
	if s.Attempt < 63 {
		exp := int64(1) << s.Attempt
		if c := int64(w.base) * exp; c/exp == int64(w.base) && c < ceil {
			ceil = c
		}
	}

	duration := ceil
	if w.rand != nil {
		w.lock.Lock()
		j := w.rand.Int63n(ceil)
		w.lock.Unlock()
		if duration+j > duration {
			duration += j
		}
	}

	return time.Duration(duration)
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("pipeline/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("pipeline/retry: invalid jitter type")
	}
	return rand.New(s)
}
