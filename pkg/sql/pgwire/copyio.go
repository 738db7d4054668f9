// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgwire serves COPY statements over the PostgreSQL wire protocol.
package pgwire

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgproto3/v2"
	sqlcopy "github.com/mppdb/mppdb/pkg/sql/copy"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// maxCopyDataSize bounds the payload of the CopyData messages sent to a
// client.
const maxCopyDataSize = 64 << 10

// Cluster runs COPY statements.
type Cluster interface {
	CopyFrom(ctx context.Context, stmt *sqlcopy.Statement, src io.Reader) (sqlcopy.Tally, error)
	CopyTo(ctx context.Context, stmt *sqlcopy.Statement, dst io.Writer) (int64, error)
}

var _ Cluster = &sqlcopy.LocalCluster{}

// CopyConn runs COPY FROM STDIN and COPY TO STDOUT for one client
// connection. The startup and query phases of the connection are handled
// elsewhere; CopyConn is handed the connection once a COPY statement is
// parsed.
type CopyConn struct {
	be      *pgproto3.Backend
	cluster Cluster
}

// NewCopyConn wraps the connection to a client.
func NewCopyConn(rw io.ReadWriter, cluster Cluster) *CopyConn {
	return &CopyConn{
		be:      pgproto3.NewBackend(pgproto3.NewChunkReader(rw), rw),
		cluster: cluster,
	}
}

// columnFormats returns the overall format and the format code of every
// column sent or received.
func columnFormats(stmt *sqlcopy.Statement) (byte, []uint16) {
	n := len(stmt.Columns)
	if n == 0 {
		n = len(stmt.Table.LiveColumns())
	}
	var format byte
	codes := make([]uint16, n)
	if stmt.Options.Binary() {
		format = 1
		for i := range codes {
			codes[i] = 1
		}
	}
	return format, codes
}

// CopyIn runs a COPY FROM STDIN. Errors are reported to the client; the
// returned error is the one reported, or a failure of the connection.
func (c *CopyConn) CopyIn(ctx context.Context, stmt *sqlcopy.Statement) error {
	format, codes := columnFormats(stmt)
	if err := c.be.Send(&pgproto3.CopyInResponse{OverallFormat: format, ColumnFormatCodes: codes}); err != nil {
		return err
	}
	in := &copyInReader{be: c.be}
	tally, err := c.cluster.CopyFrom(ctx, stmt, in)
	if err != nil {
		// The client keeps sending until it learns about the error, which
		// it does only after the end of its data.
		if drainErr := in.drain(); drainErr != nil && in.broken {
			return errors.CombineErrors(err, drainErr)
		}
		return c.sendError(err)
	}
	if err := in.drain(); err != nil {
		if in.broken {
			return err
		}
		return c.sendError(err)
	}
	log.VEventf(ctx, 2, "COPY FROM STDIN stored %d rows, rejected %d", tally.Completed, tally.Rejected)
	return c.complete(tally.Completed)
}

// CopyOut runs a COPY TO STDOUT.
func (c *CopyConn) CopyOut(ctx context.Context, stmt *sqlcopy.Statement) error {
	format, codes := columnFormats(stmt)
	if err := c.be.Send(&pgproto3.CopyOutResponse{OverallFormat: format, ColumnFormatCodes: codes}); err != nil {
		return err
	}
	out := &copyOutWriter{be: c.be}
	n, err := c.cluster.CopyTo(ctx, stmt, out)
	if err != nil {
		if out.err != nil {
			return out.err
		}
		return c.sendError(err)
	}
	if err := c.be.Send(&pgproto3.CopyDone{}); err != nil {
		return err
	}
	return c.complete(n)
}

func (c *CopyConn) complete(n int64) error {
	tag := []byte(fmt.Sprintf("COPY %d", n))
	if err := c.be.Send(&pgproto3.CommandComplete{CommandTag: tag}); err != nil {
		return err
	}
	return c.be.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
}

// sendError reports err to the client and returns it.
func (c *CopyConn) sendError(err error) error {
	pgErr := pgerror.Flatten(err)
	if sendErr := c.be.Send(&pgproto3.ErrorResponse{
		Severity: pgErr.Severity,
		Code:     pgErr.Code,
		Message:  pgErr.Message,
		Detail:   pgErr.Detail,
		Hint:     pgErr.Hint,
	}); sendErr != nil {
		return errors.CombineErrors(err, sendErr)
	}
	if sendErr := c.be.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'}); sendErr != nil {
		return errors.CombineErrors(err, sendErr)
	}
	return err
}

// copyInReader reads the payload of the CopyData messages of a client
// until CopyDone.
type copyInReader struct {
	be   *pgproto3.Backend
	buf  []byte
	done bool
	err  error
	// broken is set when the connection failed.
	broken bool
}

func (r *copyInReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		r.err = r.receive()
	}
	// The payload belongs to the backend until the next Receive.
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *copyInReader) receive() error {
	msg, err := r.be.Receive()
	if err != nil {
		r.broken = true
		return err
	}
	switch m := msg.(type) {
	case *pgproto3.CopyData:
		r.buf = m.Data
	case *pgproto3.CopyDone:
		r.done = true
	case *pgproto3.CopyFail:
		r.done = true
		return pgerror.Newf(pgcode.QueryCanceled, "COPY from stdin failed: %s", m.Message)
	case *pgproto3.Flush, *pgproto3.Sync:
	default:
		r.done = true
		return pgerror.Newf(pgcode.ProtocolViolation,
			"unexpected message type %T during COPY from stdin", msg)
	}
	return nil
}

// drain discards the data the client still sends.
func (r *copyInReader) drain() error {
	r.buf = nil
	for !r.done && r.err == nil {
		r.err = r.receive()
		r.buf = nil
	}
	return r.err
}

// copyOutWriter sends everything written to it as CopyData messages.
type copyOutWriter struct {
	be *pgproto3.Backend
	// err is a failure of the connection.
	err error
}

func (w *copyOutWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxCopyDataSize {
			n = maxCopyDataSize
		}
		if err := w.be.Send(&pgproto3.CopyData{Data: p[:n]}); err != nil {
			w.err = err
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}
