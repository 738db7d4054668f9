// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/rowflow"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const testSegments = 3

// makeTestTable returns t(a int8 not null, b text, c int8), hash
// distributed on a.
func makeTestTable(id oid.Oid) *catalog.TableDescriptor {
	return &catalog.TableDescriptor{
		ID:   id,
		Name: "t",
		Columns: []catalog.Column{
			{Name: "a", Type: types.Int},
			{Name: "b", Type: types.String, Nullable: true},
			{Name: "c", Type: types.Int, Nullable: true},
		},
		Policy: catalog.MakeHashPolicy(testSegments, 1),
	}
}

func makeStatement(
	t *testing.T, table *catalog.TableDescriptor, dir Direction, opts ...string,
) *Statement {
	var raw []Option
	for _, s := range opts {
		raw = append(raw, ParseOption(s))
	}
	o, err := ParseOptions(dir, raw)
	require.NoError(t, err)
	return &Statement{Table: table, Options: o, FileName: "STDIN"}
}

// allRows returns the rows of a relation on every segment, sorted.
func allRows(t *testing.T, c *LocalCluster, table *catalog.TableDescriptor) []string {
	ctx := context.Background()
	var out []string
	for seg := 0; seg < c.NumSegments(); seg++ {
		for _, leaf := range table.Leaves() {
			rows, err := c.Segment(seg).Rows(ctx, leaf.ID)
			require.NoError(t, err)
			for _, row := range rows {
				out = append(out, row.String())
			}
		}
	}
	sort.Strings(out)
	return out
}

func numberedLines(n int, format string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, format, i, i)
	}
	return b.String()
}

func TestCopyFromDistributed(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)
	tbl := makeTestTable(100)
	require.NoError(t, c.CreateTable(tbl))

	for _, version := range []int64{1, 2} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			protocolVersion.Override(ctx, c.Settings, version)
			for seg := 0; seg < testSegments; seg++ {
				require.NoError(t, c.Segment(seg).Truncate(tbl.ID))
			}
			data := numberedLines(100, "%d|name%d|\\N\n")
			tally, err := c.CopyFrom(ctx, makeStatement(t, tbl, From, "delimiter=|"), strings.NewReader(data))
			require.NoError(t, err)
			require.Equal(t, Tally{Completed: 100}, tally)

			// Every row is on the segment its key hashes to.
			r, err := rowflow.MakeRouter(ctx, c.Settings, tbl, rowflow.Seed{})
			require.NoError(t, err)
			total := 0
			for seg := 0; seg < testSegments; seg++ {
				rows, err := c.Segment(seg).Rows(ctx, tbl.ID)
				require.NoError(t, err)
				for _, row := range rows {
					dest, err := r.Route(row)
					require.NoError(t, err)
					require.Equal(t, seg, dest.Segment, "row %s", row)
					require.Equal(t, tree.DNull, row[2])
				}
				total += len(rows)
			}
			require.Equal(t, 100, total)
		})
	}
	require.Zero(t, c.Metrics.ActiveLoads.Value())
	require.EqualValues(t, 200, c.Metrics.RowsDispatched.Count())
}

func TestCopyFromColumnListAndDefaults(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)

	t.Run("constant", func(t *testing.T) {
		tbl := makeTestTable(101)
		tbl.Columns[2].Default = catalog.ConstDefault{Datum: tree.NewDInt(7)}
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From, "format=csv")
		stmt.Columns = []string{"b", "a"}
		tally, err := c.CopyFrom(ctx, stmt, strings.NewReader("x,1\n\"y,z\",2\n,3\n"))
		require.NoError(t, err)
		require.Equal(t, Tally{Completed: 3}, tally)
		require.Equal(t, []string{"(1, x, 7)", "(2, y,z, 7)", "(3, NULL, 7)"}, allRows(t, c, tbl))
	})

	t.Run("volatile", func(t *testing.T) {
		tbl := makeTestTable(102)
		tbl.Columns[2].Default = catalog.NewSequenceDefault("t_c_seq", 1)
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From)
		stmt.Columns = []string{"a"}
		tally, err := c.CopyFrom(ctx, stmt, strings.NewReader(strings.Repeat("1\n", 20)))
		require.NoError(t, err)
		require.Equal(t, Tally{Completed: 20}, tally)
		seen := map[string]bool{}
		for _, row := range allRows(t, c, tbl) {
			seen[row[strings.LastIndex(row, " ")+1:]] = true
		}
		require.Len(t, seen, 20, "every row draws its own value")
	})

	t.Run("unknown column", func(t *testing.T) {
		stmt := makeStatement(t, makeTestTable(100), From)
		stmt.Columns = []string{"a", "nope"}
		_, err := c.CopyFrom(ctx, stmt, strings.NewReader(""))
		require.Equal(t, pgcode.UndefinedColumn, pgerror.GetPGCode(err))
	})

	t.Run("duplicate column", func(t *testing.T) {
		stmt := makeStatement(t, makeTestTable(100), From)
		stmt.Columns = []string{"a", "a"}
		_, err := c.CopyFrom(ctx, stmt, strings.NewReader(""))
		require.Equal(t, pgcode.DuplicateColumn, pgerror.GetPGCode(err))
	})
}

func TestCopyFromReplicatedAndEntry(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)

	rep := makeTestTable(110)
	rep.Policy = catalog.DistributionPolicy{Kind: catalog.PolicyReplicated, NumSegments: testSegments}
	require.NoError(t, c.CreateTable(rep))
	tally, err := c.CopyFrom(ctx, makeStatement(t, rep, From, "delimiter=,"),
		strings.NewReader(numberedLines(10, "%d,r%d,\\N\n")))
	require.NoError(t, err)
	require.Equal(t, Tally{Completed: 10}, tally)
	for seg := 0; seg < testSegments; seg++ {
		require.Equal(t, 10, c.Segment(seg).Count(rep.ID))
	}

	entry := makeTestTable(111)
	entry.Policy = catalog.DistributionPolicy{Kind: catalog.PolicyEntry}
	require.NoError(t, c.CreateTable(entry))
	tally, err = c.CopyFrom(ctx, makeStatement(t, entry, From, "delimiter=,"),
		strings.NewReader(numberedLines(5, "%d,e%d,\\N\n")))
	require.NoError(t, err)
	require.Equal(t, Tally{Completed: 5}, tally)
	require.Equal(t, 5, c.Coordinator().Count(entry.ID))
}

func makePartitionedTable() *catalog.TableDescriptor {
	leaf := func(id oid.Oid, name string) *catalog.TableDescriptor {
		l := makeTestTable(id)
		l.Name = name
		return l
	}
	parent := makeTestTable(120)
	parent.Partitioning = &catalog.Partitioning{
		KeyColumn: 3,
		Partitions: []catalog.Partition{
			{Upper: tree.NewDInt(10), Table: leaf(121, "t_low")},
			{Lower: tree.NewDInt(10), Upper: tree.NewDInt(20), Table: leaf(122, "t_high")},
		},
	}
	return parent
}

func TestCopyFromPartitioned(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)
	tbl := makePartitionedTable()
	require.NoError(t, c.CreateTable(tbl))
	require.Equal(t, 3, firstResidualField(mustPlan(t, makeStatement(t, tbl, From))))

	// c=25 has no partition and is rejected.
	data := "1|a|5\n2|b|15\n3|c|25\n4|d|9\n"
	stmt := makeStatement(t, tbl, From, "delimiter=|", "segment_reject_limit=10")
	tally, err := c.CopyFrom(ctx, stmt, strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, Tally{Completed: 3, Rejected: 1}, tally)

	count := func(rel oid.Oid) (n int) {
		for seg := 0; seg < testSegments; seg++ {
			n += c.Segment(seg).Count(rel)
		}
		return n
	}
	require.Equal(t, 2, count(121))
	require.Equal(t, 1, count(122))

	_, err = c.CopyFrom(ctx, makeStatement(t, tbl, From, "delimiter=|"), strings.NewReader(data))
	require.Equal(t, pgcode.CheckViolation, pgerror.GetPGCode(err))
	require.Contains(t, errors.FlattenDetails(err), "line 3")
}

func mustPlan(t *testing.T, stmt *Statement) *plan {
	p, err := newPlan(stmt, From)
	require.NoError(t, err)
	return p
}

func TestCopyFromSingleRowErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	// Line 3 fails in the distribution key, which the dispatcher parses;
	// line 7 fails in column c, which the segment parses.
	var b strings.Builder
	for i := 1; i <= 20; i++ {
		switch i {
		case 3:
			b.WriteString("bad|x|1\n")
		case 7:
			b.WriteString("7|x|zz\n")
		default:
			fmt.Fprintf(&b, "%d|x|%d\n", i, i)
		}
	}
	data := b.String()

	t.Run("log errors", func(t *testing.T) {
		c := NewLocalCluster(nil, testSegments)
		tbl := makeTestTable(130)
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From, "delimiter=|", "segment_reject_limit=5", "log_errors")
		tally, err := c.CopyFrom(ctx, stmt, strings.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, Tally{Completed: 18, Rejected: 2}, tally)

		logged := c.ErrorLog.(*sreh.MemLog).Rows()
		require.Len(t, logged, 2)
		sort.Slice(logged, func(i, j int) bool { return logged[i].LineNo < logged[j].LineNo })
		require.EqualValues(t, 3, logged[0].LineNo)
		require.Equal(t, "bad|x|1", logged[0].RawData)
		require.Contains(t, logged[0].ErrMsg, "column a")
		require.EqualValues(t, 7, logged[1].LineNo)
		require.Contains(t, logged[1].ErrMsg, "column c")
		for _, row := range logged {
			require.Equal(t, "t", row.RelName)
			require.NotEqual(t, CoordinatorID, row.Segment, "rows are logged by segments")
		}
		require.EqualValues(t, 2, c.SREHMetrics.RowsRejected.Count())
	})

	t.Run("count only", func(t *testing.T) {
		c := NewLocalCluster(nil, testSegments)
		tbl := makeTestTable(131)
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From, "delimiter=|", "segment_reject_limit=5")
		tally, err := c.CopyFrom(ctx, stmt, strings.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, Tally{Completed: 18, Rejected: 2}, tally)
		require.Empty(t, c.ErrorLog.(*sreh.MemLog).Rows())
	})

	t.Run("limit exceeded", func(t *testing.T) {
		c := NewLocalCluster(nil, testSegments)
		tbl := makeTestTable(132)
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From, "delimiter=|", "segment_reject_limit=1")
		_, err := c.CopyFrom(ctx, stmt,
			strings.NewReader("1|a|1\n2|a|2\n3|a|3\n4|a|4\n5|a|5\nx|a|1\ny|a|1\n6|a|6\n"))
		require.Equal(t, pgcode.ProgramLimitExceeded, pgerror.GetPGCode(err))
		require.True(t, sreh.IsRejectLimit(err))
		require.Contains(t, errors.FlattenDetails(err), "Last error was")
		require.ErrorContains(t, err, "2 rows rejected, limit is 1 ROWS")
		// The rows read before the second rejection stay stored.
		require.Equal(t, []string{"(1, a, 1)", "(2, a, 2)", "(3, a, 3)", "(4, a, 4)", "(5, a, 5)"},
			allRows(t, c, tbl))
	})

	t.Run("limit exceeded on a segment", func(t *testing.T) {
		c := NewLocalCluster(nil, 1)
		tbl := makeTestTable(135)
		tbl.Policy = catalog.MakeHashPolicy(1, 1)
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From, "delimiter=|", "segment_reject_limit=1")
		// Column c is parsed by the segment.
		_, err := c.CopyFrom(ctx, stmt,
			strings.NewReader("1|a|1\n2|a|2\n3|a|zz\n4|a|4\n5|a|zz\n6|a|6\n"))
		require.True(t, sreh.IsRejectLimit(err), "%+v", err)
		require.Equal(t, []string{"(1, a, 1)", "(2, a, 2)", "(4, a, 4)"}, allRows(t, c, tbl))
	})

	t.Run("all or nothing", func(t *testing.T) {
		c := NewLocalCluster(nil, testSegments)
		tbl := makeTestTable(133)
		require.NoError(t, c.CreateTable(tbl))
		_, err := c.CopyFrom(ctx, makeStatement(t, tbl, From, "delimiter=|"), strings.NewReader(data))
		require.Equal(t, pgcode.InvalidTextRepresentation, pgerror.GetPGCode(err))
		require.Contains(t, errors.FlattenDetails(err), "COPY t, line 3, column a")
	})

	t.Run("corrupt input", func(t *testing.T) {
		c := NewLocalCluster(nil, testSegments)
		tbl := makeTestTable(134)
		require.NoError(t, c.CreateTable(tbl))
		stmt := makeStatement(t, tbl, From, "delimiter=|", "segment_reject_limit=5")
		_, err := c.CopyFrom(ctx, stmt, strings.NewReader("1|a|1\n\\.x\n"))
		require.True(t, errors.Is(err, ErrProtocol))
		require.Equal(t, pgcode.BadCopyFileFormat, pgerror.GetPGCode(err))
	})
}

func TestCopyFromFieldCount(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	testCases := []struct {
		data string
		opts []string
		err  string
		rows []string
	}{
		{data: "1|a|2|3\n", err: "extra data after last expected column"},
		{data: "1|a\n", err: `missing data for column "c"`},
		{data: "1\n", err: `missing data for column "b"`},
		{data: "1|a\n", opts: []string{"fill_missing_fields"}, rows: []string{"(1, a, NULL)"}},
		{data: "1\n", opts: []string{"fill_missing_fields"}, rows: []string{"(1, NULL, NULL)"}},
		{data: "\n", opts: []string{"fill_missing_fields"},
			err: `missing data for column "b", found empty data line`},
		{data: "\\N|a|1\n", err: `null value in column "a" violates not-null constraint`},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			c := NewLocalCluster(nil, testSegments)
			tbl := makeTestTable(140)
			require.NoError(t, c.CreateTable(tbl))
			stmt := makeStatement(t, tbl, From, append([]string{"delimiter=|"}, tc.opts...)...)
			_, err := c.CopyFrom(ctx, stmt, strings.NewReader(tc.data))
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.rows, allRows(t, c, tbl))
		})
	}
}

func TestCopyToDistributed(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)
	tbl := makeTestTable(150)
	require.NoError(t, c.CreateTable(tbl))
	_, err := c.CopyFrom(ctx, makeStatement(t, tbl, From, "format=csv"),
		strings.NewReader("1,plain,10\n2,\"with,comma\",\n3,,30\n"))
	require.NoError(t, err)

	t.Run("csv", func(t *testing.T) {
		var out bytes.Buffer
		stmt := makeStatement(t, tbl, To, "format=csv", "header", "force_quote=(b)")
		stmt.Columns = []string{"a", "b"}
		n, err := c.CopyTo(ctx, stmt, &out)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		require.Equal(t, "a,b", lines[0])
		body := lines[1:]
		sort.Strings(body)
		require.Equal(t, []string{`1,"plain"`, `2,"with,comma"`, `3,`}, body)
	})

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		n, err := c.CopyTo(ctx, makeStatement(t, tbl, To), &out)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		sort.Strings(lines)
		require.Equal(t, []string{"1\tplain\t10", "2\twith,comma\t\\N", "3\t\\N\t30"}, lines)
	})

	t.Run("round trip", func(t *testing.T) {
		var out bytes.Buffer
		_, err := c.CopyTo(ctx, makeStatement(t, tbl, To), &out)
		require.NoError(t, err)
		dst := makeTestTable(151)
		require.NoError(t, c.CreateTable(dst))
		_, err = c.CopyFrom(ctx, makeStatement(t, dst, From), &out)
		require.NoError(t, err)
		require.Equal(t, allRows(t, c, tbl), allRows(t, c, dst))
	})
}

func TestCopyToReplicated(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)
	tbl := makeTestTable(155)
	tbl.Policy = catalog.DistributionPolicy{Kind: catalog.PolicyReplicated, NumSegments: testSegments}
	require.NoError(t, c.CreateTable(tbl))
	_, err := c.CopyFrom(ctx, makeStatement(t, tbl, From), strings.NewReader(numberedLines(4, "%d\tr%d\t\\N\n")))
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := c.CopyTo(ctx, makeStatement(t, tbl, To), &out)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.Equal(t, 4, strings.Count(out.String(), "\n"))
}

func makeBinaryTable(id oid.Oid) *catalog.TableDescriptor {
	return &catalog.TableDescriptor{
		ID:   id,
		Name: "bin",
		Columns: []catalog.Column{
			{Name: "id", Type: types.Int},
			{Name: "b", Type: types.Bytes, Nullable: true},
			{Name: "u", Type: types.Uuid, Nullable: true},
			{Name: "s", Type: types.String, Nullable: true},
			{Name: "f", Type: types.Float, Nullable: true},
		},
		Policy: catalog.MakeHashPolicy(testSegments, 1),
	}
}

func TestCopyBinaryRoundTrip(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)
	src := makeBinaryTable(160)
	require.NoError(t, c.CreateTable(src))
	data := "1,\\x0102,6ba7b810-9dad-11d1-80b4-00c04fd430c8,hello,1.5\n" +
		"2,\\x,,\"\",\n" +
		"3,,,,\n"
	_, err := c.CopyFrom(ctx, makeStatement(t, src, From, "format=csv"), strings.NewReader(data))
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := c.CopyTo(ctx, makeStatement(t, src, To, "format=binary"), &out)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.True(t, bytes.HasPrefix(out.Bytes(), binarySignature))

	dst := makeBinaryTable(161)
	require.NoError(t, c.CreateTable(dst))
	tally, err := c.CopyFrom(ctx, makeStatement(t, dst, From, "format=binary"), &out)
	require.NoError(t, err)
	require.Equal(t, Tally{Completed: 3}, tally)
	require.Equal(t, allRows(t, c, src), allRows(t, c, dst))
	require.Equal(t, []string{
		`(1, \x0102, 6ba7b810-9dad-11d1-80b4-00c04fd430c8, hello, 1.5)`,
		`(2, \x, NULL, , NULL)`,
		`(3, NULL, NULL, NULL, NULL)`,
	}, allRows(t, c, dst))
}

func TestCopyOnSegment(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewLocalCluster(nil, testSegments)
	tbl := makeTestTable(170)
	require.NoError(t, c.CreateTable(tbl))
	_, err := c.CopyFrom(ctx, makeStatement(t, tbl, From), strings.NewReader(numberedLines(50, "%d\tv%d\t\\N\n")))
	require.NoError(t, err)

	dir := t.TempDir()
	for _, ext := range []string{".txt", ".txt.gz", ".txt.zst", ".txt.lz4", ".txt.sz"} {
		t.Run(ext, func(t *testing.T) {
			loc := Location{Name: filepath.Join(dir, "part<SEGID>"+ext)}
			n, err := c.CopyToSegments(ctx, makeStatement(t, tbl, To, "on_segment"), loc)
			require.NoError(t, err)
			require.EqualValues(t, 50, n)

			dst := makeTestTable(171)
			require.NoError(t, c.CreateTable(dst))
			for seg := 0; seg < testSegments; seg++ {
				require.NoError(t, c.Segment(seg).Truncate(dst.ID))
			}
			tally, err := c.CopyFromSegments(ctx, makeStatement(t, dst, From, "on_segment"), loc)
			require.NoError(t, err)
			require.Equal(t, Tally{Completed: 50}, tally)
			for seg := 0; seg < testSegments; seg++ {
				require.Equal(t, c.Segment(seg).Count(tbl.ID), c.Segment(seg).Count(dst.ID))
			}
		})
	}

	t.Run("placeholder required", func(t *testing.T) {
		_, err := c.CopyFromSegments(ctx, makeStatement(t, tbl, From, "on_segment"),
			Location{Name: filepath.Join(dir, "part.txt")})
		require.Equal(t, pgcode.InvalidParameterValue, pgerror.GetPGCode(err))
	})

	t.Run("wrong segment", func(t *testing.T) {
		// Feed every segment the rows of segment 0.
		loc := Location{Name: filepath.Join(dir, "part<SEGID>.txt")}
		_, err := c.CopyToSegments(ctx, makeStatement(t, tbl, To, "on_segment"), loc)
		require.NoError(t, err)
		same := Location{Name: "cat " + filepath.Join(dir, "part0.txt") + " # <SEGID>", Program: true}
		dst := makeTestTable(172)
		require.NoError(t, c.CreateTable(dst))
		_, err = c.CopyFromSegments(ctx, makeStatement(t, dst, From, "on_segment"), same)
		require.Equal(t, pgcode.IntegrityConstraintViolation, pgerror.GetPGCode(err))
		require.ErrorContains(t, err, "doesn't belong to segment with ID")
	})
}
