// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, true /* brackets */, &buf)
	renderArgs(false, &buf, format, args...)
	return buf.String()
}

// addStructured creates a structured log entry and writes it to the
// configured output.
func addStructured(
	ctx context.Context, sev Severity, depth int, format string, args []interface{},
) {
	if sev == Severity_FATAL && !logging.hideFatalStack() {
		// The stack of the fatal call site is attached so that the crash can
		// be located from the log alone.
		err := errors.NewWithDepthf(depth+1, format, args...)
		format, args = "%+v", []interface{}{err}
	}
	entry := makeEntry(ctx, sev, depth+1, format, args)
	logging.outputLogEntry(entry)
}
