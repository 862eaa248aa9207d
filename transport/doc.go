// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transport provides the terminal Sender of an HTTP request
pipeline: the component that performs one physical HTTP exchange.

The HTTP transport sends requests with a net/http round tripper. It
never follows redirects, never retries, and never decompresses bodies on
its own; those concerns belong to pipeline policies. It does honor the
transport parameters that policies attach to a request:

• Request.Proxy selects a proxy for the connection;

• Request.TLS selects the TLS client configuration; and

• Request.Timeout bounds the attempt, including reading the body.

Cancelling the request context aborts the exchange promptly and is
reported as a *fault.AbortError. Any other failure to complete the
exchange is reported as a *fault.TransportError, never as a synthetic
HTTP status.
*/
package transport
