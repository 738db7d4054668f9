// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"os"
	"strings"

	"github.com/mppdb/mppdb/pkg/cli/cliflags"
	"github.com/mppdb/mppdb/pkg/sql/copy"
	"github.com/spf13/pflag"
)

// envFlags are the flags that take their value from the environment when
// it sets one. They are re-applied whenever the defaults are reset.
var envFlags []struct {
	f    *pflag.FlagSet
	info cliflags.FlagInfo
}

func setFlagFromEnv(f *pflag.FlagSet, flagInfo cliflags.FlagInfo) {
	if flagInfo.EnvVar == "" {
		return
	}
	if value, set := os.LookupEnv(flagInfo.EnvVar); set {
		if err := f.Set(flagInfo.Name, value); err != nil {
			panic(err)
		}
	}
}

func registerEnvFlag(f *pflag.FlagSet, flagInfo cliflags.FlagInfo) {
	if flagInfo.EnvVar == "" {
		return
	}
	envFlags = append(envFlags, struct {
		f    *pflag.FlagSet
		info cliflags.FlagInfo
	}{f, flagInfo})
	setFlagFromEnv(f, flagInfo)
}

// StringFlag creates a string flag and registers it with the FlagSet.
func StringFlag(f *pflag.FlagSet, valPtr *string, flagInfo cliflags.FlagInfo, defaultVal string) {
	f.StringVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	registerEnvFlag(f, flagInfo)
}

// IntFlag creates an int flag and registers it with the FlagSet.
func IntFlag(f *pflag.FlagSet, valPtr *int, flagInfo cliflags.FlagInfo, defaultVal int) {
	f.IntVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	registerEnvFlag(f, flagInfo)
}

// BoolFlag creates a bool flag and registers it with the FlagSet.
func BoolFlag(f *pflag.FlagSet, valPtr *bool, flagInfo cliflags.FlagInfo, defaultVal bool) {
	f.BoolVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, defaultVal, flagInfo.Usage())

	registerEnvFlag(f, flagInfo)
}

// VarFlag creates a custom-variable flag and registers it with the FlagSet.
func VarFlag(f *pflag.FlagSet, value pflag.Value, flagInfo cliflags.FlagInfo) {
	f.VarP(value, flagInfo.Name, flagInfo.Shorthand, flagInfo.Usage())

	registerEnvFlag(f, flagInfo)
}

// optionList collects repeated --with flags.
type optionList []copy.Option

var _ pflag.Value = (*optionList)(nil)

func (l *optionList) String() string {
	s := make([]string, len(*l))
	for i, o := range *l {
		s[i] = o.Name
		if o.HasValue {
			s[i] += "=..."
		}
	}
	return strings.Join(s, ",")
}

func (l *optionList) Set(v string) error {
	*l = append(*l, copy.ParseOption(v))
	return nil
}

func (l *optionList) Type() string { return "option" }

// splitList splits a comma-separated flag value, dropping empty elements.
func splitList(s string) []string {
	var res []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			res = append(res, e)
		}
	}
	return res
}

// initCLIDefaults sets the flag variables to their defaults.
func initCLIDefaults() {
	cliCtx.settingsFile = ""
	cliCtx.verbosity = 0
	cliCtx.tableFormat = "table"
	cliCtx.sv = nil

	copyCtx.segments = 3
	copyCtx.table = "t"
	copyCtx.columns = ""
	copyCtx.distKey = ""
	copyCtx.distribution = "hash"
	copyCtx.options = nil
	copyCtx.copyColumns = ""
	copyCtx.onSegment = false
	copyCtx.program = false
	copyCtx.output = ""
	copyCtx.wire = false
	copyCtx.printMetrics = false
}

// resetFlags restores the defaults between two runs in the same process.
func resetFlags() {
	initCLIDefaults()
	for _, e := range envFlags {
		setFlagFromEnv(e.f, e.info)
	}
}

func init() {
	initCLIDefaults()

	pf := mppdbCmd.PersistentFlags()
	StringFlag(pf, &cliCtx.settingsFile, cliflags.SettingsFile, cliCtx.settingsFile)
	IntFlag(pf, &cliCtx.verbosity, cliflags.Verbosity, cliCtx.verbosity)
	StringFlag(pf, &cliCtx.tableFormat, cliflags.TableFormat, cliCtx.tableFormat)

	{
		f := copyCmd.Flags()
		IntFlag(f, &copyCtx.segments, cliflags.Segments, copyCtx.segments)
		StringFlag(f, &copyCtx.table, cliflags.Table, copyCtx.table)
		StringFlag(f, &copyCtx.columns, cliflags.Columns, copyCtx.columns)
		StringFlag(f, &copyCtx.distKey, cliflags.DistKey, copyCtx.distKey)
		StringFlag(f, &copyCtx.distribution, cliflags.Distribution, copyCtx.distribution)
		VarFlag(f, &copyCtx.options, cliflags.CopyOptions)
		StringFlag(f, &copyCtx.copyColumns, cliflags.CopyColumns, copyCtx.copyColumns)
		BoolFlag(f, &copyCtx.onSegment, cliflags.OnSegment, copyCtx.onSegment)
		BoolFlag(f, &copyCtx.program, cliflags.Program, copyCtx.program)
		StringFlag(f, &copyCtx.output, cliflags.Output, copyCtx.output)
		BoolFlag(f, &copyCtx.wire, cliflags.Wire, copyCtx.wire)
		BoolFlag(f, &copyCtx.printMetrics, cliflags.PrintMetrics, copyCtx.printMetrics)
	}
}
