// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgerror

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// DefaultSeverity is the default severity for decorating errors.
const DefaultSeverity = "ERROR"

// WithSeverity decorates the error with a severity.
func WithSeverity(err error, severity string) error {
	if err == nil {
		return nil
	}
	return &withSeverity{cause: err, severity: severity}
}

// GetSeverity attempts to unwrap and find a Severity. The outermost
// annotation wins.
func GetSeverity(err error) string {
	if c := (*withSeverity)(nil); errors.As(err, &c) {
		return c.severity
	}
	return DefaultSeverity
}

type withSeverity struct {
	cause    error
	severity string
}

var _ error = (*withSeverity)(nil)
var _ errors.SafeFormatter = (*withSeverity)(nil)
var _ fmt.Formatter = (*withSeverity)(nil)

func (w *withSeverity) Error() string { return w.cause.Error() }
func (w *withSeverity) Cause() error  { return w.cause }
func (w *withSeverity) Unwrap() error { return w.cause }

func (w *withSeverity) Format(s fmt.State, verb rune) { errors.FormatError(w, s, verb) }

func (w *withSeverity) SafeFormatError(p errors.Printer) (next error) {
	if p.Detail() {
		p.Printf("severity: %s", redact.SafeString(w.severity))
	}
	return w.cause
}
