// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transient classifies low-level network errors which are likely
to go away if the same request is attempted again.

The retry package consults Categorize to decide whether a transport
failure is eligible for a retry.
*/
package transient
