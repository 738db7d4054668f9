// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "strings"

// Severity identifies the importance of a log entry.
type Severity int32

// Severity values, in increasing order of importance.
const (
	Severity_UNKNOWN Severity = iota
	Severity_INFO
	Severity_WARNING
	Severity_ERROR
	Severity_FATAL
)

var severityNames = [...]string{
	Severity_UNKNOWN: "UNKNOWN",
	Severity_INFO:    "INFO",
	Severity_WARNING: "WARNING",
	Severity_ERROR:   "ERROR",
	Severity_FATAL:   "FATAL",
}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return severityNames[Severity_UNKNOWN]
	}
	return severityNames[s]
}

// letter returns the single-character prefix used on every log line.
func (s Severity) letter() byte {
	return s.String()[0]
}

// SeverityByName looks up a severity by its case-insensitive name.
func SeverityByName(name string) (Severity, bool) {
	for i, n := range severityNames {
		if i == int(Severity_UNKNOWN) {
			continue
		}
		if strings.EqualFold(n, name) {
			return Severity(i), true
		}
	}
	return Severity_UNKNOWN, false
}
