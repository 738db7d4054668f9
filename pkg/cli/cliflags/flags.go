// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cliflags holds the names and descriptions of the command line
// flags of the mppdb binary.
package cliflags

import "strings"

// FlagInfo contains the static information for a CLI flag.
type FlagInfo struct {
	// Name of the flag as used on the command line.
	Name string

	// Shorthand is the short form of the flag (optional).
	Shorthand string

	// EnvVar is the name of the environment variable through which the
	// flag value can be controlled (optional).
	EnvVar string

	// Description of the flag.
	Description string
}

// Usage returns the description of the flag, followed by the environment
// variable that sets it, if any.
func (f FlagInfo) Usage() string {
	s := strings.TrimSpace(f.Description)
	if f.EnvVar != "" {
		s += "\nEnvironment variable: " + f.EnvVar
	}
	return s
}

var (
	SettingsFile = FlagInfo{
		Name:   "settings",
		EnvVar: "MPPDB_SETTINGS",
		Description: `
YAML file of setting overrides, one "key: value" per line, for example
"sql.opt.work_mem: 64MiB". Unknown keys are an error.`,
	}

	Verbosity = FlagInfo{
		Name:        "v",
		Description: `Log verbosity. Higher values log more.`,
	}

	Segments = FlagInfo{
		Name:        "segments",
		Description: `Number of segments of the in-process cluster.`,
	}

	Table = FlagInfo{
		Name:        "table",
		Description: `Name of the target table.`,
	}

	Columns = FlagInfo{
		Name: "columns",
		Description: `
Comma-separated column definitions of the target table, each "name type"
optionally followed by "not null". For example "a int, b text not null".`,
	}

	DistKey = FlagInfo{
		Name: "distributed-by",
		Description: `
Distribution key columns of a hash distributed table. Defaults to the first
column.`,
	}

	Distribution = FlagInfo{
		Name:        "distribution",
		Description: `Distribution policy: hash, random, replicated or entry.`,
	}

	CopyOptions = FlagInfo{
		Name:      "with",
		Shorthand: "o",
		Description: `
A COPY option as name or name=value, for example "format=csv", "header" or
"force_not_null=(a,b)". May be repeated.`,
	}

	CopyColumns = FlagInfo{
		Name:        "copy-columns",
		Description: `Column list of the COPY statement. Defaults to every column.`,
	}

	OnSegment = FlagInfo{
		Name: "on-segment",
		Description: `
Have every segment read its own file. The file name must contain <SEGID>,
which is replaced by the segment number.`,
	}

	Program = FlagInfo{
		Name:        "program",
		Description: `Treat the source as a shell command whose output is loaded.`,
	}

	Output = FlagInfo{
		Name: "output",
		Description: `
After loading, copy the table back out to this file (or "-" for standard
output) using the same options.`,
	}

	Wire = FlagInfo{
		Name: "wire",
		Description: `
With "-", speak the COPY sub-protocol of the PostgreSQL wire protocol on
standard input and output: CopyData, CopyDone and CopyFail messages are read,
and CopyInResponse, CommandComplete, ReadyForQuery or ErrorResponse are
written back. With --output -, the table is then copied out as CopyData.`,
	}

	PrintMetrics = FlagInfo{
		Name:        "metrics",
		Description: `Print the load metrics in Prometheus text format when done.`,
	}

	TableFormat = FlagInfo{
		Name: "format",
		Description: `
Output format of result tables: table or tsv.`,
	}
)
