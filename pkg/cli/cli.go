// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cli implements the mppdb command line: loading files into an
// in-process cluster with COPY, costing plan fragments and listing
// settings.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/cli/exit"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/spf13/cobra"
)

// Proxy to allow overrides in tests.
var osStderr io.Writer = os.Stderr

var mppdbCmd = &cobra.Command{
	Use:   "mppdb [command] (flags)",
	Short: "segmented COPY engine and cost model",
	Long: `
Load data into an in-process cluster of segments with COPY, estimate the
cost of plan fragments, and inspect the settings both use.
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupContext,
}

// cliCtx holds the state shared by all commands. It is reset before each
// command runs.
var cliCtx struct {
	settingsFile string
	verbosity    int
	tableFormat  string

	// sv holds the setting values after --settings is applied.
	sv *settings.Values
}

func init() {
	cobra.EnableCommandSorting = false

	mppdbCmd.AddCommand(
		copyCmd,
		costCmd,
		settingsCmd,
	)
	mppdbCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Mark(err, errInvalidFlag)
	})
}

var errInvalidFlag = errors.New("invalid command line flag")

// setupContext applies the global flags.
func setupContext(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	log.SetVerbosity(int32(cliCtx.verbosity))
	switch cliCtx.tableFormat {
	case "table", "tsv":
	default:
		return errors.Mark(
			errors.Newf("unknown table format %q", cliCtx.tableFormat), errInvalidFlag)
	}

	cliCtx.sv = settings.MakeValues()
	if cliCtx.settingsFile == "" {
		return nil
	}
	f, err := os.Open(cliCtx.settingsFile)
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}
	defer f.Close()
	if err := settings.LoadYAML(ctx, cliCtx.sv, f); err != nil {
		return errors.Wrapf(err, "loading %s", cliCtx.settingsFile)
	}
	log.VEventf(ctx, 1, "applied settings from %s", cliCtx.settingsFile)
	return nil
}

// Main is the entry point of the mppdb binary.
func Main() {
	if err := Run(os.Args[1:]); err != nil {
		printError(osStderr, err)
		exit.WithCode(errorCode(err))
	}
	exit.WithCode(exit.Success())
}

// Run executes the command line given by args.
func Run(args []string) error {
	resetFlags()
	mppdbCmd.SetArgs(args)
	return mppdbCmd.Execute()
}

// printError reports err the way a client reports a server error: the
// message, then the SQLSTATE, detail and hint when there are any.
func printError(w io.Writer, err error) {
	pgErr := pgerror.Flatten(err)
	fmt.Fprintf(w, "ERROR: %s\n", pgErr.Message)
	if pgErr.Code != pgcode.Uncategorized.String() {
		fmt.Fprintf(w, "SQLSTATE: %s\n", pgErr.Code)
	}
	if pgErr.Detail != "" {
		fmt.Fprintf(w, "DETAIL: %s\n", pgErr.Detail)
	}
	if pgErr.Hint != "" {
		fmt.Fprintf(w, "HINT: %s\n", pgErr.Hint)
	}
}

// errorCode maps err to the exit code of the process.
func errorCode(err error) exit.Code {
	if errors.Is(err, errInvalidFlag) {
		return exit.CommandLineFlagError()
	}
	if errors.Is(err, errInvalidScenario) {
		return exit.InvalidCostScenario()
	}
	switch pgerror.GetPGCode(err).Class() {
	case pgcode.DataException, pgcode.IntegrityConstraintViolation:
		return exit.InvalidData()
	}
	if pgerror.GetPGCode(err) == pgcode.ProgramLimitExceeded {
		return exit.InvalidData()
	}
	return exit.UnspecifiedError()
}

func mustUsage(cmd *cobra.Command) {
	if err := cmd.Usage(); err != nil {
		panic(err)
	}
}
