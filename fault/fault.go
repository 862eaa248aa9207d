// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package fault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// A ConfigurationError indicates an invalid pipeline or policy setup.
type ConfigurationError struct {
	// Op names the operation that rejected the configuration, for
	// example "AddPolicy" or "proxy.New".
	Op string
	// Msg describes what is wrong with the configuration.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

// Configf returns a ConfigurationError for operation op whose message
// is formatted from format and args.
func Configf(op, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("pipeline: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is errdefs.ErrInvalidArgument.
func (e *ConfigurationError) Is(target error) bool {
	return target == errdefs.ErrInvalidArgument
}

// An AbortError indicates that a request was cancelled through its
// context before the pipeline produced a final outcome.
type AbortError struct {
	// Err is the context error which caused the abort, either
	// context.Canceled or context.DeadlineExceeded.
	Err error
}

// Abort wraps err, which should be a context error, in an AbortError.
// If err is already an AbortError it is returned unchanged.
func Abort(err error) error {
	var ae *AbortError
	if errors.As(err, &ae) {
		return err
	}
	return &AbortError{Err: err}
}

func (e *AbortError) Error() string {
	return "pipeline: request aborted: " + e.Err.Error()
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the abort was caused by the request context's
// deadline passing rather than by explicit cancellation.
func (e *AbortError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// A TooManyRedirectsError indicates the redirect policy followed its
// maximum number of redirects and was asked to follow another.
type TooManyRedirectsError struct {
	// Max is the redirect limit which was reached.
	Max int
	// URL is the redacted URL of the last redirect response.
	URL string
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("pipeline: stopped after %d redirects (last %q)", e.Max, e.URL)
}

// Is reports whether target is errdefs.ErrResourceExhausted.
func (e *TooManyRedirectsError) Is(target error) bool {
	return target == errdefs.ErrResourceExhausted
}

// A TransportError indicates a low-level failure to complete an HTTP
// exchange, as opposed to an HTTP response with an error status code.
//
// The URL is always redacted (see RedactURL) so a TransportError may be
// safely logged.
type TransportError struct {
	// Op is the capitalized HTTP method, following the url.Error
	// convention ("Get", "Post", ...).
	Op string
	// URL is the redacted request URL.
	URL string
	// Err is the underlying network error.
	Err error
	// Attempts is the number of physical attempts made by the retry
	// policy before this error was surfaced. It is zero if the error
	// did not pass through a retry policy.
	Attempts int
	// Elapsed is the time spent by the retry policy across all
	// attempts. It is zero if Attempts is zero.
	Elapsed time.Duration
}

func (e *TransportError) Error() string {
	s := fmt.Sprintf("%s %q: %s", e.Op, e.URL, e.Err)
	if e.Attempts > 0 {
		s += fmt.Sprintf(" (%d attempts in %s)", e.Attempts, e.Elapsed)
	}
	return s
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is errdefs.ErrUnavailable.
func (e *TransportError) Is(target error) bool {
	return target == errdefs.ErrUnavailable
}

// Timeout reports whether the underlying error was a timeout.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// Op converts an HTTP method into the operation name used by
// TransportError, following net/http's url.Error convention.
func Op(method string) string {
	if method == "" {
		return "Get"
	}
	return strings.ToUpper(method[:1]) + strings.ToLower(method[1:])
}

// IsAbort reports whether err is or wraps an AbortError.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsTooManyRedirects reports whether err is or wraps a
// TooManyRedirectsError.
func IsTooManyRedirects(err error) bool {
	var re *TooManyRedirectsError
	return errors.As(err, &re)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
