// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgproto3/v2"
	"github.com/mppdb/mppdb/pkg/cli/exit"
	"github.com/mppdb/mppdb/pkg/util/humanizeutil"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

// runCLI runs the command line args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	mppdbCmd.SetOut(&buf)
	defer mppdbCmd.SetOut(nil)
	err := Run(args)
	return buf.String(), err
}

// runCLIWithInput is runCLI with the given standard input.
func runCLIWithInput(t *testing.T, in []byte, args ...string) (string, error) {
	t.Helper()
	mppdbCmd.SetIn(bytes.NewReader(in))
	defer mppdbCmd.SetIn(nil)
	return runCLI(t, args...)
}

// copyInMessages encodes what a client sends for a COPY FROM STDIN.
func copyInMessages(t *testing.T, chunks ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	fe := pgproto3.NewFrontend(pgproto3.NewChunkReader(&bytes.Buffer{}), &buf)
	for _, c := range chunks {
		require.NoError(t, fe.Send(&pgproto3.CopyData{Data: []byte(c)}))
	}
	require.NoError(t, fe.Send(&pgproto3.CopyDone{}))
	return buf.Bytes()
}

// backendMessages decodes everything the server wrote.
func backendMessages(t *testing.T, out string) []pgproto3.BackendMessage {
	t.Helper()
	fe := pgproto3.NewFrontend(pgproto3.NewChunkReader(strings.NewReader(out)), io.Discard)
	var msgs []pgproto3.BackendMessage
	for {
		msg, err := fe.Receive()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return msgs
		}
		require.NoError(t, err)
		// The frontend reuses its message structs between calls.
		switch m := msg.(type) {
		case *pgproto3.CopyData:
			msgs = append(msgs, &pgproto3.CopyData{Data: append([]byte(nil), m.Data...)})
		case *pgproto3.CommandComplete:
			msgs = append(msgs, &pgproto3.CommandComplete{CommandTag: append([]byte(nil), m.CommandTag...)})
		case *pgproto3.ErrorResponse:
			c := *m
			msgs = append(msgs, &c)
		default:
			msgs = append(msgs, msg)
		}
	}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestCopyCommand(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	t.Run("csv", func(t *testing.T) {
		data := writeFile(t, "data.csv", "a,b\n1,x\n2,y\n3,z\n")
		out, err := runCLI(t, "--format", "tsv", "copy",
			"--segments", "2", "--columns", "a int8 not null, b text",
			"--with", "format=csv", "--with", "header", data)
		require.NoError(t, err)
		require.Contains(t, out, "COPY 3\n")
		require.Contains(t, out, "2 rows\nsegment\trows\tapprox\n")
	})

	t.Run("single row errors", func(t *testing.T) {
		data := writeFile(t, "data.txt", "1|a\nbad|b\n3|c\n")
		out, err := runCLI(t, "--format", "tsv", "copy",
			"--columns", "a int8, b text",
			"-o", "delimiter=|", "-o", "segment_reject_limit=10", "-o", "log_errors",
			"--output", "-", data)
		require.NoError(t, err)
		require.Contains(t, out, "COPY 2\n")
		require.Contains(t, out, "NOTICE: found 1 data formatting errors")
		require.Contains(t, out, "bad|b")
		// The table is copied back out without the reject limit.
		require.Contains(t, out, "1|a\n")
		require.Contains(t, out, "3|c\n")
	})

	t.Run("unload to file", func(t *testing.T) {
		data := writeFile(t, "data.txt", "1\tx\n2\ty\n")
		dst := filepath.Join(t.TempDir(), "out.txt")
		out, err := runCLI(t, "copy", "--columns", "a int8, b text",
			"--distribution", "replicated", "--output", dst, data)
		require.NoError(t, err)
		require.Contains(t, out, "COPY 2\n")
		b, err := os.ReadFile(dst)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"1\tx", "2\ty"}, strings.Split(strings.TrimSpace(string(b)), "\n"))
	})

	t.Run("metrics", func(t *testing.T) {
		data := writeFile(t, "data.txt", "1\n2\n")
		out, err := runCLI(t, "copy", "--columns", "a int8", "--metrics", data)
		require.NoError(t, err)
		require.Contains(t, out, "# TYPE")
	})

	t.Run("bad data", func(t *testing.T) {
		data := writeFile(t, "data.txt", "1\nx\n")
		_, err := runCLI(t, "copy", "--columns", "a int8", data)
		require.Error(t, err)
		require.Equal(t, exit.InvalidData(), errorCode(err))

		var buf bytes.Buffer
		printError(&buf, err)
		require.Contains(t, buf.String(), "SQLSTATE: 22P02")
	})

	t.Run("flag errors", func(t *testing.T) {
		for _, args := range [][]string{
			{"copy", "--segments", "many", "f"},
			{"copy", "--columns", "a", "f"},
			{"copy", "--columns", "a int8", "--distribution", "sideways", "f"},
			{"copy", "--columns", "a int8", "--distributed-by", "b", "f"},
			{"--format", "html", "settings"},
			{"copy", "--columns", "a int8", "--wire", "f"},
			{"copy", "--columns", "a int8", "--wire", "--on-segment", "-"},
		} {
			_, err := runCLI(t, args...)
			require.Error(t, err, "%v", args)
			require.Equal(t, exit.CommandLineFlagError(), errorCode(err), "%v: %v", args, err)
		}
	})
}

func TestCopyCommandWire(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	t.Run("copy in and out", func(t *testing.T) {
		in := copyInMessages(t, "1|a\n2|", "b\n3|c\n")
		out, err := runCLIWithInput(t, in, "copy", "--columns", "a int8, b text",
			"-o", "delimiter=|", "--wire", "--output", "-", "-")
		require.NoError(t, err)

		msgs := backendMessages(t, out)
		require.IsType(t, &pgproto3.CopyInResponse{}, msgs[0])
		require.Equal(t, "COPY 3", string(msgs[1].(*pgproto3.CommandComplete).CommandTag))
		require.IsType(t, &pgproto3.ReadyForQuery{}, msgs[2])
		require.IsType(t, &pgproto3.CopyOutResponse{}, msgs[3])

		var unloaded strings.Builder
		rest := msgs[4:]
		for len(rest) > 0 {
			cd, ok := rest[0].(*pgproto3.CopyData)
			if !ok {
				break
			}
			unloaded.Write(cd.Data)
			rest = rest[1:]
		}
		require.ElementsMatch(t, []string{"1|a", "2|b", "3|c"},
			strings.Split(strings.TrimSpace(unloaded.String()), "\n"))
		require.Len(t, rest, 3)
		require.IsType(t, &pgproto3.CopyDone{}, rest[0])
		require.Equal(t, "COPY 3", string(rest[1].(*pgproto3.CommandComplete).CommandTag))
		require.IsType(t, &pgproto3.ReadyForQuery{}, rest[2])
		// Nothing but protocol messages on standard output.
		require.NotContains(t, out, "segment")
	})

	t.Run("bad data", func(t *testing.T) {
		in := copyInMessages(t, "1\n", "x\n", "3\n")
		out, err := runCLIWithInput(t, in, "copy", "--columns", "a int8", "--wire", "-")
		require.Error(t, err)
		require.Equal(t, exit.InvalidData(), errorCode(err))

		msgs := backendMessages(t, out)
		require.Len(t, msgs, 3)
		require.IsType(t, &pgproto3.CopyInResponse{}, msgs[0])
		require.Equal(t, "22P02", msgs[1].(*pgproto3.ErrorResponse).Code)
		require.IsType(t, &pgproto3.ReadyForQuery{}, msgs[2])
	})
}

const testScenario = `
relations:
- {name: orders, rows: 1000, pages: 10, width: 32, segments: 1,
   indexes: [{name: orders_pkey, pages: 4, correlation: 1}]}
- {name: customers, rows: 100, pages: 1, width: 16, segments: 1}
paths:
- {op: seqscan, rel: orders}
- {op: indexscan, rel: orders, index: orders_pkey, eq: 7}
- {name: top ten, op: sort, rel: orders, limit: 10}
- {op: hashjoin, outer: orders, inner: customers, join: left}
- {op: nestloop, outer: orders, inner: customers, join: semi}
- {op: mergejoin, outer: orders, inner: customers}
`

func TestCostCommand(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	path := writeFile(t, "scenario.yaml", testScenario)
	out, err := runCLI(t, "--format", "tsv", "cost", path)
	require.NoError(t, err)
	require.Contains(t, out, "6 rows\npath\tstartup\ttotal\trows\n")
	require.Contains(t, out, "seqscan orders\t0.00\t20.00\t1000\n")
	require.Contains(t, out, "indexscan orders using orders_pkey\t")
	require.Contains(t, out, "top ten\t")
	require.Contains(t, out, "hashjoin left (orders, customers)\t")
	require.Contains(t, out, "nestloop semi (orders, customers)\t")
	require.Contains(t, out, "mergejoin inner (orders, customers)\t")

	// Settings change the cost constants.
	settingsFile := writeFile(t, "settings.yaml", "sql.opt.cost.seq_page_cost: 2\n")
	out, err = runCLI(t, "--format", "tsv", "--settings", settingsFile, "cost", path)
	require.NoError(t, err)
	require.Contains(t, out, "seqscan orders\t0.00\t30.00\t1000\n")

	for _, bad := range []string{
		"paths: [{op: teleport, rel: orders}]\nrelations: [{name: orders, rows: 1}]\n",
		"paths: [{op: seqscan, rel: nowhere}]\n",
		"relations: [{name: t, rows: 1, colour: blue}]\n",
		"relations: [{name: t, rows: 1}, {name: t, rows: 2}]\n",
	} {
		_, err := runCLI(t, "cost", writeFile(t, "bad.yaml", bad))
		require.Error(t, err, "%s", bad)
		require.Equal(t, exit.InvalidCostScenario(), errorCode(err), "%s: %v", bad, err)
	}
}

func TestSettingsCommand(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	out, err := runCLI(t, "--format", "tsv", "settings", "sql.opt.work_mem")
	require.NoError(t, err)
	require.Contains(t, out, "sql.opt.work_mem\tbyte size\tsession\t"+humanizeutil.IBytes(32<<20)+"\t")

	settingsFile := writeFile(t, "settings.yaml", "sql.opt.work_mem: 64MiB\nsql.opt.segment_count: 8\n")
	out, err = runCLI(t, "--format", "tsv", "--settings", settingsFile, "settings", "sql.opt.")
	require.NoError(t, err)
	require.Contains(t, out, "sql.opt.work_mem\tbyte size\tsession\t"+humanizeutil.IBytes(64<<20)+"\t")
	require.Contains(t, out, "sql.opt.segment_count\tinteger\tcluster\t8\t")

	out, err = runCLI(t, "settings", "sql.opt.enable_hashjoin")
	require.NoError(t, err)
	require.Contains(t, out, "(1 row)")

	_, err = runCLI(t, "--settings", writeFile(t, "bad.yaml", "no.such.setting: 1\n"), "settings")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown setting "no.such.setting"`)
}
