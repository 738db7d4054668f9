// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log implements context-aware, severity-leveled logging. Every
// entry carries the logtags attached to its context and is rendered
// through redact, so that values passed as arguments are marked unsafe
// unless they implement redact.SafeValue.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// loggingT collects all the global state of the logging setup.
type loggingT struct {
	mu struct {
		sync.Mutex
		out          io.Writer
		exitOverride struct {
			f         func(int)
			hideStack bool
		}
	}

	// verbosity is the V level; VEventf and V compare against it.
	verbosity atomic.Int32
	// redactable, when set, keeps the redaction markers in the output so
	// that log files can later be redacted.
	redactable atomic.Bool
	// threshold is the minimum severity that is written.
	threshold atomic.Int32
}

var logging = func() *loggingT {
	l := &loggingT{}
	l.mu.out = os.Stderr
	l.threshold.Store(int32(Severity_INFO))
	return l
}()

// SetOutput redirects all log output to w. The returned function restores
// the previous destination.
func SetOutput(w io.Writer) (restore func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.mu.out
	logging.mu.out = w
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.mu.out = prev
	}
}

// SetVerbosity sets the V level and returns the previous one.
func SetVerbosity(level int32) int32 {
	return logging.verbosity.Swap(level)
}

// SetThreshold sets the minimum severity written to the output.
func SetThreshold(sev Severity) {
	logging.threshold.Store(int32(sev))
}

// SetRedactable controls whether redaction markers are kept in the output.
func SetRedactable(redactable bool) {
	logging.redactable.Store(redactable)
}

// V returns true if the logging verbosity is at or above the given level.
func V(level int32) bool {
	return logging.verbosity.Load() >= level
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, 1, format, args)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, 1, format, args)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, 1, format, args)
}

// Fatalf logs to the FATAL severity and then terminates the process, or
// calls the function installed with SetExitFunc.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_FATAL, 1, format, args)
	exit(255)
}

// VEventf logs to the INFO severity if the verbosity is at or above level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_INFO, 1, format, args)
	}
}

// VWarningf logs to the WARNING severity if the verbosity is at or above
// level.
func VWarningf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_WARNING, 1, format, args)
	}
}

// Redact returns a redacted version of the supplied item that is safe to use
// in reports.
func Redact(r interface{}) string {
	return string(redact.Sprint(r).Redact())
}

// logEntry is one rendered log line before formatting.
type logEntry struct {
	sev     Severity
	time    time.Time
	file    string
	line    int
	tags    string
	payload redact.RedactableString
}

func makeEntry(
	ctx context.Context, sev Severity, depth int, format string, args []interface{},
) logEntry {
	e := logEntry{
		sev:  sev,
		time: time.Now(),
		file: "???",
	}
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		e.file = filepath.Base(file)
		e.line = line
	}
	var tb strings.Builder
	formatTags(ctx, false /* brackets */, &tb)
	e.tags = tb.String()
	if len(args) == 0 {
		e.payload = redact.Sprint(redact.Safe(format))
	} else {
		e.payload = redact.Sprintf(format, args...)
	}
	return e
}

// format renders the entry as
//
//	I250102 15:04:05.000000 file.go:123 [tags] message
func (e logEntry) format(redactable bool) []byte {
	var b strings.Builder
	b.WriteByte(e.sev.letter())
	b.WriteString(e.time.UTC().Format("060102 15:04:05.000000"))
	fmt.Fprintf(&b, " %s:%d ", e.file, e.line)
	if e.tags != "" {
		b.WriteByte('[')
		b.WriteString(e.tags)
		b.WriteString("] ")
	}
	if redactable {
		b.WriteString(string(e.payload))
	} else {
		b.WriteString(e.payload.StripMarkers())
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func (l *loggingT) outputLogEntry(e logEntry) {
	if int32(e.sev) < l.threshold.Load() {
		return
	}
	buf := e.format(l.redactable.Load())
	l.mu.Lock()
	defer l.mu.Unlock()
	// Errors writing the log are dropped; there is nowhere left to report
	// them.
	_, _ = l.mu.out.Write(buf)
}

// formatTags appends the tags stored in the context to buf. Single-letter
// keys are concatenated with their value (n1), longer keys use key=value.
func formatTags(ctx context.Context, brackets bool, buf *strings.Builder) bool {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return false
	}
	if brackets {
		buf.WriteByte('[')
	}
	for i, t := range tags.Get() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(t.Key())
		if v := t.Value(); v != nil {
			if len(t.Key()) > 1 {
				buf.WriteByte('=')
			}
			fmt.Fprint(buf, v)
		}
	}
	if brackets {
		buf.WriteString("] ")
	}
	return true
}

func renderArgs(redactable bool, buf *strings.Builder, format string, args ...interface{}) {
	var s redact.RedactableString
	if len(args) == 0 {
		s = redact.Sprint(redact.Safe(format))
	} else {
		s = redact.Sprintf(format, args...)
	}
	if redactable {
		buf.WriteString(string(s))
	} else {
		buf.WriteString(s.StripMarkers())
	}
}
