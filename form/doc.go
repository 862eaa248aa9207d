// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package form provides the pipeline policies which serialize
// structured request bodies.
//
// The FormData policy turns a request.Form into either a URL-encoded
// body or a multipart part set. The Multipart policy turns a
// request.Multipart into the final multipart byte stream. A pipeline
// using both must place FormData before Multipart, so that
// multipart/form-data forms reach the Multipart policy as parts.
package form
