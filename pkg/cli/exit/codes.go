// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package exit defines the process exit codes of the mppdb binary.
package exit

import (
	"fmt"
	"os"
)

// Code represents an exit code.
type Code struct {
	code int
}

// String implements fmt.Stringer.
func (c Code) String() string { return fmt.Sprintf("exit code %d", c.code) }

// Int returns the numeric value of the code.
func (c Code) Int() int { return c.code }

// WithCode terminates the process with the given code.
func WithCode(code Code) {
	os.Exit(code.code)
}

// Success (0) represents a normal process termination.
func Success() Code { return Code{0} }

// UnspecifiedError (1) indicates the process has terminated with an
// error condition. The specific cause of the error can be found in
// the logging output.
func UnspecifiedError() Code { return Code{1} }

// UnspecifiedGoPanic (2) indicates the process has terminated due to
// an uncaught Go panic or some other error in the Go runtime.
func UnspecifiedGoPanic() Code { return Code{2} }

// Interrupted (3) indicates the process was interrupted with Ctrl+C /
// SIGINT.
func Interrupted() Code { return Code{3} }

// CommandLineFlagError (4) indicates there was an error in the
// command-line parameters.
func CommandLineFlagError() Code { return Code{4} }

// Command-specific exit codes are allocated down from 125.

// InvalidData (124) indicates that a load stopped on input it could not
// accept: a malformed row without single row error handling, or a
// segment reject limit that was reached.
func InvalidData() Code { return Code{124} }

// InvalidCostScenario (125) indicates that the 'cost' command could not
// make sense of its scenario file.
func InvalidCostScenario() Code { return Code{125} }
