// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package fault defines the typed errors surfaced by the HTTP request
pipeline.

There are four kinds of pipeline error, each with its own type:

• ConfigurationError reports an invalid pipeline or policy setup, such
as a duplicate policy name or an unparseable proxy URL. It is returned
at construction time and is never retried.

• AbortError reports that the request's context was cancelled or its
deadline passed. No further attempts are made once it is observed.

• TooManyRedirectsError reports that the redirect policy exhausted its
budget of redirect follows.

• TransportError reports a low-level failure to speak HTTP (DNS
failure, connection reset, attempt timeout and the like).

An HTTP response with a 4XX or 5XX status code is never converted into
an error by the pipeline. It is returned to the caller as a normal
response.

Every error type also satisfies the matching classifier from package
github.com/containerd/errdefs (IsInvalidArgument, IsCanceled,
IsResourceExhausted, IsUnavailable), so callers that already classify
errors that way need no special handling.
*/
package fault
