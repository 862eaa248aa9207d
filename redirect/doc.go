// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package redirect provides a pipeline policy which follows HTTP
// redirect responses.
//
// The transport never follows redirects itself, so a pipeline without
// a redirect policy returns 3xx responses to the caller unchanged.
package redirect
