// Copyright 2021 The pipeline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package logging provides a pipeline policy which writes a structured
// log entry for every physical attempt, with secrets redacted.
package logging

import (
	"time"

	"github.com/gogama/pipeline/request"
	"github.com/sirupsen/logrus"
)

// PolicyName is the name under which a logging Policy is registered in
// a pipeline.
const PolicyName = "logging"

// A Policy logs each request before it is sent, at debug level, and
// its outcome afterward. Successful responses are logged at info
// level, server errors and transport failures at warn level.
//
// Header values and query parameters pass through the policy's
// Sanitizer first.
type Policy struct {
	logger    logrus.FieldLogger
	sanitizer *Sanitizer
}

// New constructs a logging policy. A nil logger means the logrus
// standard logger, and a nil sanitizer means NewSanitizer(nil, nil).
func New(logger logrus.FieldLogger, s *Sanitizer) *Policy {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if s == nil {
		s = NewSanitizer(nil, nil)
	}
	return &Policy{logger: logger, sanitizer: s}
}

// Name returns PolicyName.
func (p *Policy) Name() string {
	return PolicyName
}

// Send logs r, forwards it to next, and logs the outcome.
func (p *Policy) Send(r *request.Request, next request.Sender) (*request.Response, error) {
	log := p.logger.WithFields(logrus.Fields{
		"requestId": r.RequestID,
		"method":    r.Method,
		"url":       p.sanitizer.URL(r.URL),
		"attempt":   r.RetryCount,
	})
	log.WithField("headers", p.sanitizer.Header(r.Header)).Debug("pipeline: sending request")

	start := time.Now()
	resp, err := next.Send(r)
	log = log.WithField("duration", time.Since(start))
	if err != nil {
		log.WithError(err).Warn("pipeline: request failed")
		return resp, err
	}

	log = log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"headers": p.sanitizer.Header(resp.Header),
	})
	if resp.StatusCode >= 500 {
		log.Warn("pipeline: server error response")
	} else {
		log.Info("pipeline: response received")
	}
	return resp, nil
}
