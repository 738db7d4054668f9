// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"sync"
	"testing"
)

// TestLogScope captures the log output of a test. The captured output is
// replayed through t.Log when the test fails, and discarded otherwise.
type TestLogScope struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	restore func()
}

// Scope redirects logging to an in-memory buffer for the duration of a test.
// It should be called as:
//
//	defer log.Scope(t).Close(t)
func Scope(t testing.TB) *TestLogScope {
	sc := &TestLogScope{}
	sc.restore = SetOutput(sc)
	return sc
}

// Write implements io.Writer.
func (sc *TestLogScope) Write(p []byte) (int, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.buf.Write(p)
}

// String returns everything logged so far.
func (sc *TestLogScope) String() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.buf.String()
}

// Close restores the previous log destination.
func (sc *TestLogScope) Close(t testing.TB) {
	sc.restore()
	if t.Failed() {
		t.Logf("captured logs:\n%s", sc.String())
	}
}
