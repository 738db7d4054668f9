// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/util/log"
	"golang.org/x/sync/errgroup"
)

// SegmentSource produces the rows a segment holds for a COPY TO.
type SegmentSource interface {
	CopyTo(ctx context.Context, w io.Writer) (int64, error)
}

// writeRows encodes every row of the relation held by store, flushing to
// out whenever flushAt bytes are buffered. The last partial buffer is left
// to the caller.
func writeRows(
	ctx context.Context,
	p *plan,
	store Storage,
	enc rowEncoder,
	buf *pgwirebase.WriteBuffer,
	out io.Writer,
	flushAt int,
) (int64, error) {
	var n int64
	var vals tree.Datums
	for _, leaf := range p.table.Leaves() {
		err := store.Scan(ctx, leaf.ID, func(row tree.Datums) error {
			vals = p.projection(row, vals)
			if err := enc.encode(buf, vals); err != nil {
				return err
			}
			n++
			if buf.Len() >= flushAt {
				return buf.FlushTo(out)
			}
			return buf.Err()
		})
		if err != nil {
			return n, errors.Wrapf(err, "reading relation %s", leaf.Name)
		}
	}
	return n, nil
}

// CopyTo writes the rows of this segment to w, without the header and
// trailer of the format. The text is in the server encoding.
func (s *Segment) CopyTo(ctx context.Context, w io.Writer) (int64, error) {
	ctx = s.cfg.annotate(ctx, "segment")
	p, err := newPlan(s.stmt, To)
	if err != nil {
		return 0, err
	}
	enc := makeEncoder(p.opts, p.names, p.types, p.forceQuote)
	buf := pgwirebase.MakeWriteBuffer(nil)
	n, err := writeRows(ctx, p, s.store, enc, &buf, w, int(frameBufferSize.Get(s.cfg.Settings)))
	if err != nil {
		return n, err
	}
	if err := buf.FlushTo(w); err != nil {
		return n, err
	}
	s.cfg.Metrics.RowsWritten.Inc(n)
	log.VEventf(ctx, 2, "wrote %d rows", n)
	return n, nil
}

// CopyTo gathers the rows of every segment into dst. Segments run
// concurrently; their output is concatenated in segment order between one
// header and one trailer. Replicated relations are read from the first
// segment only.
func (d *Dispatcher) CopyTo(ctx context.Context, dst io.Writer, segs []SegmentSource) (int64, error) {
	ctx = d.cfg.annotate(ctx, "dispatcher")
	p, err := newPlan(d.stmt, To)
	if err != nil {
		return 0, err
	}
	if p.table.Policy.Kind == catalog.PolicyReplicated && len(segs) > 1 {
		segs = segs[:1]
	}
	out := encodeWriter(dst, p.opts.Encoding)
	enc := makeEncoder(p.opts, p.names, p.types, p.forceQuote)
	buf := pgwirebase.MakeWriteBuffer(nil)
	enc.header(&buf)
	if err := buf.FlushTo(out); err != nil {
		return 0, err
	}

	readers := make([]*io.PipeReader, len(segs))
	counts := make([]int64, len(segs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, seg := range segs {
		i, seg := i, seg
		pr, pw := io.Pipe()
		readers[i] = pr
		g.Go(func() error {
			n, err := seg.CopyTo(gCtx, pw)
			counts[i] = n
			_ = pw.CloseWithError(err)
			return err
		})
	}
	g.Go(func() error {
		for i, pr := range readers {
			if _, err := io.Copy(out, pr); err != nil {
				// Unblock the segments still writing.
				for _, r := range readers[i:] {
					_ = r.CloseWithError(err)
				}
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	enc.trailer(&buf)
	if err := buf.FlushTo(out); err != nil {
		return total, err
	}
	log.VEventf(ctx, 1, "unloaded %d rows from %d segments", total, len(segs))
	return total, out.Close()
}
