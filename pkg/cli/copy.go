// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/copy"
	"github.com/mppdb/mppdb/pkg/sql/pgwire"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/humanizeutil"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/mppdb/mppdb/pkg/util/metric"
	"github.com/spf13/cobra"
)

// firstTableID is the id given to the table created by the copy command.
const firstTableID = oid.Oid(16384)

var copyCtx struct {
	segments     int
	table        string
	columns      string
	distKey      string
	distribution string
	options      optionList
	copyColumns  string
	onSegment    bool
	program      bool
	output       string
	wire         bool
	printMetrics bool
}

var copyCmd = &cobra.Command{
	Use:   "copy [flags] <file>",
	Short: "load a file into an in-process cluster",
	Long: `
Create a table in an in-process cluster of segments and load a file into it
with COPY FROM. The file is read by the coordinator and its rows are
dispatched to the segments that own them, or, with --on-segment, read by
every segment directly. Use "-" to read standard input.

Prints the rows stored on each segment and the rows rejected by single row
error handling.
`,
	Example: `  mppdb copy --columns "a int, b text" --with format=csv --with header data.csv
  mppdb copy --columns "a int, b text" --with segment_reject_limit=10 data.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runCopy,
}

// parseColumns parses the --columns flag.
func parseColumns(s string) ([]catalog.Column, error) {
	var cols []catalog.Column
	for _, def := range splitList(s) {
		fields := strings.Fields(def)
		if len(fields) < 2 {
			return nil, errors.Newf("column definition %q needs a name and a type", def)
		}
		nullable := true
		typ := fields[1:]
		if n := len(typ); n >= 3 &&
			strings.EqualFold(typ[n-2], "not") && strings.EqualFold(typ[n-1], "null") {
			nullable = false
			typ = typ[:n-2]
		}
		t, ok := types.TypeForName(strings.Join(typ, " "))
		if !ok {
			return nil, errors.Newf("unknown type %q for column %s", strings.Join(typ, " "), fields[0])
		}
		cols = append(cols, catalog.Column{Name: fields[0], Type: t, Nullable: nullable})
	}
	if len(cols) == 0 {
		return nil, errors.New("no columns given; use --columns")
	}
	return cols, nil
}

// makeTableDescriptor builds the descriptor of the target table from the
// flags.
func makeTableDescriptor() (*catalog.TableDescriptor, error) {
	cols, err := parseColumns(copyCtx.columns)
	if err != nil {
		return nil, errors.Mark(err, errInvalidFlag)
	}
	desc := &catalog.TableDescriptor{
		ID:      firstTableID,
		Name:    copyCtx.table,
		Columns: cols,
	}
	p := catalog.DistributionPolicy{NumSegments: copyCtx.segments}
	switch strings.ToLower(copyCtx.distribution) {
	case "hash":
		p.Kind = catalog.PolicyHash
		keys := splitList(copyCtx.distKey)
		if len(keys) == 0 {
			keys = []string{cols[0].Name}
		}
		for _, k := range keys {
			id, ok := columnID(cols, k)
			if !ok {
				return nil, errors.Mark(
					errors.Newf("distribution key %q is not a column of %s", k, desc.Name), errInvalidFlag)
			}
			p.KeyColumns = append(p.KeyColumns, id)
		}
	case "random":
		p.Kind = catalog.PolicyRandom
	case "replicated":
		p.Kind = catalog.PolicyReplicated
	case "entry":
		p.Kind = catalog.PolicyEntry
	default:
		return nil, errors.Mark(
			errors.Newf("unknown distribution %q", copyCtx.distribution), errInvalidFlag)
	}
	desc.Policy = p
	return desc, nil
}

func columnID(cols []catalog.Column, name string) (catalog.ColumnID, bool) {
	for i := range cols {
		if cols[i].Name == name {
			return catalog.ColumnID(i + 1), true
		}
	}
	return 0, false
}

// copyFromOnly are the options that have no meaning for COPY TO.
var copyFromOnly = map[string]struct{}{
	"fill_missing_fields":  {},
	"force_not_null":       {},
	"force_null":           {},
	"segment_reject_limit": {},
	"reject_limit_type":    {},
	"log_errors":           {},
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if copyCtx.segments < 1 {
		return errors.Mark(errors.Newf("--%s must be at least 1", "segments"), errInvalidFlag)
	}
	if copyCtx.wire && (args[0] != "-" || copyCtx.onSegment || copyCtx.program) {
		return errors.Mark(
			errors.New("--wire needs standard input (\"-\") as the source"), errInvalidFlag)
	}
	desc, err := makeTableDescriptor()
	if err != nil {
		return err
	}
	c := copy.NewLocalCluster(cliCtx.sv, copyCtx.segments)
	if err := c.CreateTable(desc); err != nil {
		return err
	}
	opts, err := copy.ParseOptions(copy.From, copyCtx.options)
	if err != nil {
		return err
	}
	stmt := &copy.Statement{
		Table:    desc,
		Columns:  splitList(copyCtx.copyColumns),
		Options:  opts,
		FileName: args[0],
	}
	loc := copy.Location{Name: args[0], Program: copyCtx.program}

	log.Infof(ctx, "loading %s into %s across %d segments", loc, desc.Name, c.NumSegments())
	if copyCtx.wire {
		stmt.FileName = "STDIN"
		return copyOverWire(ctx, cmd, c, stmt)
	}
	var tally copy.Tally
	switch {
	case copyCtx.onSegment:
		tally, err = c.CopyFromSegments(ctx, stmt, loc)
	case args[0] == "-" && !copyCtx.program:
		stmt.FileName = "STDIN"
		tally, err = c.CopyFrom(ctx, stmt, os.Stdin)
	default:
		var src io.ReadCloser
		src, err = copy.OpenSource(ctx, loc)
		if err != nil {
			return err
		}
		tally, err = c.CopyFrom(ctx, stmt, src)
		if closeErr := src.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "COPY %d\n", tally.Completed)
	if msg := sreh.Summary(tally.Rejected); msg != "" {
		fmt.Fprintf(w, "NOTICE: %s\n", msg)
	}
	if err := printDistribution(w, c, desc); err != nil {
		return err
	}
	if err := printRejects(w, c); err != nil {
		return err
	}
	if copyCtx.output != "" {
		if err := unload(ctx, w, c, stmt); err != nil {
			return err
		}
	}
	if copyCtx.printMetrics {
		r := metric.NewRegistry()
		r.AddMetricStruct(c.Metrics)
		r.AddMetricStruct(c.SREHMetrics)
		return r.PrintAsText(w)
	}
	return nil
}

// printDistribution shows how many rows each node stores.
func printDistribution(w io.Writer, c *copy.LocalCluster, desc *catalog.TableDescriptor) error {
	var rows [][]string
	if desc.Policy.Kind == catalog.PolicyEntry {
		n := int64(c.Coordinator().Count(desc.ID))
		rows = append(rows, []string{"coordinator", strconv.FormatInt(n, 10), humanizeutil.Count(n)})
	} else {
		for i := 0; i < c.NumSegments(); i++ {
			n := int64(c.Segment(i).Count(desc.ID))
			rows = append(rows, []string{strconv.Itoa(i), strconv.FormatInt(n, 10), humanizeutil.Count(n)})
		}
	}
	return printTable(w, []string{"segment", "rows", "approx"}, rows)
}

// printRejects lists the rows logged by single row error handling.
func printRejects(w io.Writer, c *copy.LocalCluster) error {
	ml, ok := c.ErrorLog.(*sreh.MemLog)
	if !ok {
		return nil
	}
	rejected := ml.Rows()
	if len(rejected) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(rejected))
	for _, r := range rejected {
		rows = append(rows, []string{
			strconv.Itoa(r.Segment), strconv.FormatInt(r.LineNo, 10), r.ErrMsg, r.RawData,
		})
	}
	return printTable(w, []string{"segment", "line", "error", "data"}, rows)
}

// copyOverWire serves the load as a COPY FROM STDIN of a PostgreSQL client
// connected to standard input and output. Nothing but protocol messages is
// written to standard output.
func copyOverWire(
	ctx context.Context, cmd *cobra.Command, c *copy.LocalCluster, stmt *copy.Statement,
) error {
	conn := pgwire.NewCopyConn(struct {
		io.Reader
		io.Writer
	}{cmd.InOrStdin(), cmd.OutOrStdout()}, c)
	if err := conn.CopyIn(ctx, stmt); err != nil {
		return err
	}
	if copyCtx.output != "-" {
		return nil
	}
	to, err := unloadStatement(stmt)
	if err != nil {
		return err
	}
	return conn.CopyOut(ctx, to)
}

// unloadStatement is the COPY TO that copies the table back out with the
// format options of the load.
func unloadStatement(from *copy.Statement) (*copy.Statement, error) {
	var raw []copy.Option
	for _, o := range copyCtx.options {
		if _, ok := copyFromOnly[o.Name]; !ok {
			raw = append(raw, o)
		}
	}
	opts, err := copy.ParseOptions(copy.To, raw)
	if err != nil {
		return nil, err
	}
	return &copy.Statement{Table: from.Table, Columns: from.Columns, Options: opts}, nil
}

// unload copies the table back out with the format options of the load.
func unload(ctx context.Context, w io.Writer, c *copy.LocalCluster, from *copy.Statement) error {
	stmt, err := unloadStatement(from)
	if err != nil {
		return err
	}

	var n int64
	if copyCtx.output == "-" {
		n, err = c.CopyTo(ctx, stmt, w)
	} else {
		var dst io.WriteCloser
		dst, err = copy.OpenSink(ctx, copy.Location{Name: copyCtx.output})
		if err != nil {
			return err
		}
		n, err = c.CopyTo(ctx, stmt, dst)
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "COPY %d\n", n)
	return nil
}
