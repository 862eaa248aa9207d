// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// A Category is a category of transient error.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout. The server may be going
	// through a temporary period of slowness, or the client may succeed
	// on a future attempt waiting longer (increasing its timeout).
	//
	// Function Categorize() will return Timeout if the error or any of
	// its wrapped causes has a Timeout() function that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection, and
	// corresponds to the POSIX error code ECONNREFUSED.
	//
	// Although connection refusal may be a permanent condition, it is
	// classified as transient because it can happen if the service
	// running on the remote host is in the process of starting or
	// restarting.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error code ECONNRESET.
	//
	// Connection reset is not uncommon if a service on the remote host
	// comes down while it is still responding to a request, or if the
	// remote host is a load balancer recycling connections.
	ConnReset
	// ConnAborted indicates the local end abandoned a connection, and
	// corresponds to the POSIX error codes ECONNABORTED and EPIPE.
	ConnAborted
	// DNS indicates a failure to resolve the remote host name. Resolver
	// outages and propagation delays make this worth retrying.
	//
	// Function Categorize() will return DNS if the error or any of its
	// wrapped causes is a *net.DNSError that is not a timeout.
	DNS
	// UnexpectedEOF indicates the remote host closed the connection in
	// the middle of an exchange, which commonly happens when a pooled
	// keep-alive connection is closed by the server just as it is
	// reused.
	UnexpectedEOF
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"ConnAborted",
	"DNS",
	"UnexpectedEOF",
}

// String returns the name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Categorize returns the category of transient error err belongs to, or
// Not if err is nil or not transient.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET:
			return ConnReset
		case syscall.ECONNREFUSED:
			return ConnRefused
		case syscall.ECONNABORTED, syscall.EPIPE:
			return ConnAborted
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNS
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return UnexpectedEOF
	}

	return Not
}

type hasTimeout interface {
	Timeout() bool
}
