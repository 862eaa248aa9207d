// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides the pipeline policy which re-sends failed
// attempts of a logical request, and the strategies which decide
// whether, and after how long, a failed attempt is retried.
//
// A Policy is constructed using NewPolicy by providing the maximum
// number of retries and an ordered list of strategies. After each
// attempt the strategies are consulted in order, and the first one
// which does not Pass decides the outcome. The built-in strategies
// cover server throttling (Throttling), network-level failures
// (TransportFailure), and retryable status codes (Exponential):
//
//	waiter := retry.NewExpWaiter(100*time.Millisecond, 5*time.Second, time.Now())
//	policy := retry.NewPolicy(3,
//		retry.Throttling(),
//		retry.TransportFailure(waiter),
//		retry.Exponential(retry.StatusCode(500, 503).And(retry.Method("GET")), waiter))
//
// Deciders and Waiters have constructors for common use cases, and
// compose using DeciderFunc.And and DeciderFunc.Or. If the built-in
// functionality is insufficient, fully custom strategies can be
// created by implementing Strategy, or by using StrategyFunc.
package retry
