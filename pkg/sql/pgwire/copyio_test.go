// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwire

import (
	"context"
	"net"
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgproto3/v2"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	sqlcopy "github.com/mppdb/mppdb/pkg/sql/copy"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func makeStatement(
	t *testing.T, table *catalog.TableDescriptor, dir sqlcopy.Direction, opts ...string,
) *sqlcopy.Statement {
	var raw []sqlcopy.Option
	for _, s := range opts {
		raw = append(raw, sqlcopy.ParseOption(s))
	}
	o, err := sqlcopy.ParseOptions(dir, raw)
	require.NoError(t, err)
	name := "STDIN"
	if dir == sqlcopy.To {
		name = "STDOUT"
	}
	return &sqlcopy.Statement{Table: table, Options: o, FileName: name}
}

// testConn is the client end of a connection served by a CopyConn.
type testConn struct {
	fe   *pgproto3.Frontend
	done chan error
}

func startCopy(
	t *testing.T, fn func(c *CopyConn) error, cluster Cluster,
) *testConn {
	srv, cli := net.Pipe()
	t.Cleanup(func() {
		_ = cli.Close()
		_ = srv.Close()
	})
	tc := &testConn{
		fe:   pgproto3.NewFrontend(pgproto3.NewChunkReader(cli), cli),
		done: make(chan error, 1),
	}
	go func() {
		tc.done <- fn(NewCopyConn(srv, cluster))
	}()
	return tc
}

func (tc *testConn) receive(t *testing.T) pgproto3.BackendMessage {
	msg, err := tc.fe.Receive()
	require.NoError(t, err)
	return msg
}

// expectComplete reads the end of a successful statement.
func (tc *testConn) expectComplete(t *testing.T, tag string) {
	cc, ok := tc.receive(t).(*pgproto3.CommandComplete)
	require.True(t, ok)
	require.Equal(t, tag, string(cc.CommandTag))
	_, ok = tc.receive(t).(*pgproto3.ReadyForQuery)
	require.True(t, ok)
	require.NoError(t, <-tc.done)
}

// expectError reads the end of a failed statement and returns the code
// and message the client saw.
func (tc *testConn) expectError(t *testing.T) (code, msg string) {
	er, ok := tc.receive(t).(*pgproto3.ErrorResponse)
	require.True(t, ok)
	code, msg = er.Code, er.Message
	_, ok = tc.receive(t).(*pgproto3.ReadyForQuery)
	require.True(t, ok)
	err := <-tc.done
	require.Error(t, err)
	require.Equal(t, code, pgerror.GetPGCode(err).String())
	return code, msg
}

func makeTable() *catalog.TableDescriptor {
	return &catalog.TableDescriptor{
		ID:   200,
		Name: "t",
		Columns: []catalog.Column{
			{Name: "a", Type: types.Int},
			{Name: "b", Type: types.String, Nullable: true},
			{Name: "c", Type: types.Int, Nullable: true},
		},
		Policy: catalog.MakeHashPolicy(3, 1),
	}
}

func TestCopyIn(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := sqlcopy.NewLocalCluster(nil, 3)
	tbl := makeTable()
	require.NoError(t, c.CreateTable(tbl))

	t.Run("ok", func(t *testing.T) {
		stmt := makeStatement(t, tbl, sqlcopy.From, "delimiter=|")
		tc := startCopy(t, func(cc *CopyConn) error { return cc.CopyIn(ctx, stmt) }, c)
		resp, ok := tc.receive(t).(*pgproto3.CopyInResponse)
		require.True(t, ok)
		require.Equal(t, byte(0), resp.OverallFormat)
		require.Len(t, resp.ColumnFormatCodes, 3)

		// Messages need not end on a line boundary.
		for _, chunk := range []string{"1|a|", "2\n2|b|3\n3|", "c|\\N\n"} {
			require.NoError(t, tc.fe.Send(&pgproto3.CopyData{Data: []byte(chunk)}))
		}
		require.NoError(t, tc.fe.Send(&pgproto3.CopyDone{}))
		tc.expectComplete(t, "COPY 3")
	})

	t.Run("bad data", func(t *testing.T) {
		stmt := makeStatement(t, tbl, sqlcopy.From, "delimiter=|")
		tc := startCopy(t, func(cc *CopyConn) error { return cc.CopyIn(ctx, stmt) }, c)
		_, ok := tc.receive(t).(*pgproto3.CopyInResponse)
		require.True(t, ok)
		require.NoError(t, tc.fe.Send(&pgproto3.CopyData{Data: []byte("x|a|2\n")}))
		require.NoError(t, tc.fe.Send(&pgproto3.CopyData{Data: []byte("4|d|5\n")}))
		require.NoError(t, tc.fe.Send(&pgproto3.CopyDone{}))
		code, _ := tc.expectError(t)
		require.Equal(t, pgcode.InvalidTextRepresentation.String(), code)
	})

	t.Run("client fails", func(t *testing.T) {
		stmt := makeStatement(t, tbl, sqlcopy.From, "delimiter=|")
		tc := startCopy(t, func(cc *CopyConn) error { return cc.CopyIn(ctx, stmt) }, c)
		_, ok := tc.receive(t).(*pgproto3.CopyInResponse)
		require.True(t, ok)
		require.NoError(t, tc.fe.Send(&pgproto3.CopyData{Data: []byte("5|e|6\n")}))
		require.NoError(t, tc.fe.Send(&pgproto3.CopyFail{Message: "client gave up"}))
		code, msg := tc.expectError(t)
		require.Equal(t, pgcode.QueryCanceled.String(), code)
		require.Equal(t, "COPY from stdin failed: client gave up", msg)
	})

	t.Run("unexpected message", func(t *testing.T) {
		stmt := makeStatement(t, tbl, sqlcopy.From, "delimiter=|")
		tc := startCopy(t, func(cc *CopyConn) error { return cc.CopyIn(ctx, stmt) }, c)
		_, ok := tc.receive(t).(*pgproto3.CopyInResponse)
		require.True(t, ok)
		require.NoError(t, tc.fe.Send(&pgproto3.Query{String: "SELECT 1"}))
		code, msg := tc.expectError(t)
		require.Equal(t, pgcode.ProtocolViolation.String(), code)
		require.Contains(t, msg, "during COPY from stdin")
	})
}

func TestCopyOut(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := sqlcopy.NewLocalCluster(nil, 3)
	tbl := makeTable()
	require.NoError(t, c.CreateTable(tbl))
	_, err := c.CopyFrom(ctx, makeStatement(t, tbl, sqlcopy.From, "format=csv"),
		strings.NewReader("1,one,10\n2,two,\n3,\"th,ree\",30\n"))
	require.NoError(t, err)

	stmt := makeStatement(t, tbl, sqlcopy.To, "format=csv", "header")
	tc := startCopy(t, func(cc *CopyConn) error { return cc.CopyOut(ctx, stmt) }, c)
	resp, ok := tc.receive(t).(*pgproto3.CopyOutResponse)
	require.True(t, ok)
	require.Len(t, resp.ColumnFormatCodes, 3)

	var out strings.Builder
	for {
		msg := tc.receive(t)
		if _, ok := msg.(*pgproto3.CopyDone); ok {
			break
		}
		cd, ok := msg.(*pgproto3.CopyData)
		require.True(t, ok, "unexpected %T", msg)
		out.Write(cd.Data)
	}
	tc.expectComplete(t, "COPY 3")

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Equal(t, "a,b,c", lines[0])
	rows := lines[1:]
	sort.Strings(rows)
	require.Equal(t, []string{"1,one,10", "2,two,", `3,"th,ree",30`}, rows)
}
