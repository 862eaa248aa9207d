// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout provides a pipeline policy which sets the timeout of
// each physical attempt, including retries.
//
// Register the policy after the retry policy so that it sees every
// attempt. Fixed gives every attempt the same timeout, while Adaptive
// lengthens the timeout after attempts which timed out.
package timeout
