// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgerror attaches PostgreSQL SQLSTATE codes and severities to
// errors and flattens error chains into the fields a client receives.
package pgerror

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/lib/pq"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
)

// Error is the flattened, client-facing form of an error.
type Error struct {
	Code     string
	Message  string
	Detail   string
	Hint     string
	Severity string
}

func (pg *Error) Error() string { return pg.Message }

// New creates an error with a code.
func New(code pgcode.Code, msg string) error {
	err := errors.NewWithDepth(1, msg)
	err = WithCandidateCode(err, code)
	return err
}

// NewWithDepthf creates an error with a pg code and extracts the context
// information at the specified depth level.
func NewWithDepthf(depth int, code pgcode.Code, format string, args ...interface{}) error {
	err := errors.NewWithDepthf(1+depth, format, args...)
	err = WithCandidateCode(err, code)
	return err
}

// Newf creates an Error with a format string.
func Newf(code pgcode.Code, format string, args ...interface{}) error {
	return NewWithDepthf(1, code, format, args...)
}

// WithCandidateCode decorates the error with a candidate postgres
// error code. It is called "candidate" because the code is only used
// by GetPGCode() below conditionally.
// The code is considered PII-free and is thus reportable.
func WithCandidateCode(err error, code pgcode.Code) error {
	if err == nil {
		return nil
	}
	return &withCandidateCode{cause: err, code: code.String()}
}

// HasCandidateCode returns true iff there's at least one code annotation
// in the causal chain.
func HasCandidateCode(err error) bool {
	return errors.HasType(err, (*withCandidateCode)(nil))
}

// GetPGCode retrieves a code for the error. It operates by combining
// the innermost (cause) code with the outer wrappers: the innermost
// annotation wins, since the outer layers only add context.
// A *pq.Error anywhere in the chain provides its own code. Errors
// that carry no code but were caused by context cancellation report
// QueryCanceled.
func GetPGCode(err error) pgcode.Code {
	if err == nil {
		return pgcode.SuccessfulCompletion
	}
	code := pgcode.Uncategorized
	for c := err; c != nil; c = errors.UnwrapOnce(c) {
		switch e := c.(type) {
		case *withCandidateCode:
			code = pgcode.MakeCode(e.code)
		case *pq.Error:
			code = pgcode.MakeCode(string(e.Code))
		}
	}
	if code == pgcode.Uncategorized {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pgcode.QueryCanceled
		}
		if errors.IsAssertionFailure(err) {
			return pgcode.Internal
		}
	}
	return code
}

// withCandidateCode is the wrapper type that carries a pg code.
type withCandidateCode struct {
	cause error
	code  string
}

var _ error = (*withCandidateCode)(nil)
var _ errors.SafeFormatter = (*withCandidateCode)(nil)
var _ fmt.Formatter = (*withCandidateCode)(nil)

func (w *withCandidateCode) Error() string { return w.cause.Error() }
func (w *withCandidateCode) Cause() error  { return w.cause }
func (w *withCandidateCode) Unwrap() error { return w.cause }

func (w *withCandidateCode) Format(s fmt.State, verb rune) { errors.FormatError(w, s, verb) }

func (w *withCandidateCode) SafeFormatError(p errors.Printer) (next error) {
	if p.Detail() {
		p.Printf("candidate pg code: %s", redact.SafeString(w.code))
	}
	return w.cause
}
