// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/util"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// SegmentConn is the dispatcher's end of the stream to one segment.
type SegmentConn interface {
	io.Writer
	// Finish ends the stream and waits for the segment to store its rows.
	Finish(ctx context.Context) (Tally, error)
	// Abort ends the stream with cause and waits for the segment to stop.
	Abort(cause error)
}

type dispatchState int

const (
	dispatchInit dispatchState = iota
	dispatchHeaderSent
	dispatchStreaming
	dispatchDraining
	dispatchDone
	dispatchError
)

func (s dispatchState) String() string {
	switch s {
	case dispatchInit:
		return "INIT"
	case dispatchHeaderSent:
		return "HEADER_SENT"
	case dispatchStreaming:
		return "STREAMING"
	case dispatchDraining:
		return "DRAINING"
	case dispatchDone:
		return "DONE"
	case dispatchError:
		return "ERROR"
	}
	return "unknown"
}

// Dispatcher is the coordinator side of a distributed COPY FROM. It reads
// the data, parses as much of every row as it needs to find the owning
// segment and streams the row there.
type Dispatcher struct {
	cfg   Config
	stmt  *Statement
	state dispatchState
}

// NewDispatcher creates the dispatcher role.
func NewDispatcher(cfg Config, stmt *Statement) *Dispatcher {
	cfg.init()
	cfg.Segment = CoordinatorID
	return &Dispatcher{cfg: cfg, stmt: stmt}
}

func (d *Dispatcher) transition(ctx context.Context, to dispatchState) {
	log.VEventf(ctx, 2, "%s -> %s", d.state, to)
	d.state = to
}

// segmentOut buffers the frames of one segment.
type segmentOut struct {
	conn SegmentConn
	buf  pgwirebase.WriteBuffer
}

func (o *segmentOut) maybeFlush(limit int) error {
	if o.buf.Len() < limit {
		return o.buf.Err()
	}
	return o.buf.FlushTo(o.conn)
}

// firstResidualField is the number of leading column list entries the
// dispatcher parses: enough to cover the distribution keys of the relation
// and its partitions and the partition key. Binary rows are always parsed
// completely.
func firstResidualField(p *plan) int {
	if p.opts.Binary() {
		return len(p.attnums)
	}
	var need util.FastIntSet
	need.UnionWith(p.table.Policy.KeySet())
	if part := p.table.Partitioning; part != nil {
		need.Add(int(part.KeyColumn))
		for _, leaf := range p.table.Leaves() {
			need.UnionWith(leaf.Policy.KeySet())
		}
	}
	first := 0
	for i, id := range p.attnums {
		if need.Contains(int(id)) {
			first = i + 1
		}
	}
	return first
}

// CopyFrom loads src into the relation, whose segments are reached through
// segs. Rows rejected here are either forwarded to a segment's error log
// or only counted.
func (d *Dispatcher) CopyFrom(
	ctx context.Context, src io.Reader, segs []SegmentConn,
) (_ Tally, retErr error) {
	ctx = d.cfg.annotate(ctx, "dispatcher")
	var outs []*segmentOut
	drained := false
	defer func() {
		if retErr == nil || drained {
			return
		}
		d.transition(ctx, dispatchError)
		if sreh.IsRejectLimit(retErr) && outs != nil {
			// The rows sent before the limit was crossed are still stored.
			if _, err := d.drain(ctx, outs); err != nil && !sreh.IsRejectLimit(err) {
				log.Warningf(ctx, "draining segments after reject limit: %v", err)
			}
			return
		}
		for _, c := range segs {
			c.Abort(retErr)
		}
	}()
	p, err := newPlan(d.stmt, From)
	if err != nil {
		return Tally{}, err
	}
	if n := p.table.Policy.NumSegments; n != len(segs) {
		return Tally{}, errors.AssertionFailedf("relation %s spans %d segments, got %d connections",
			p.table.Name, n, len(segs))
	}
	m := d.cfg.Metrics
	m.ActiveLoads.Inc(1)
	defer m.ActiveLoads.Dec(1)

	outs = make([]*segmentOut, len(segs))
	for i, c := range segs {
		outs[i] = &segmentOut{conn: c, buf: pgwirebase.MakeWriteBuffer(m.BytesDispatched)}
	}

	first := firstResidualField(p)
	codec := makeFrameCodec(int(protocolVersion.Get(d.cfg.Settings)), p.table)
	flushAt := int(frameBufferSize.Get(d.cfg.Settings))
	for _, o := range outs {
		codec.encodeHeader(&o.buf, first)
		if err := o.buf.FlushTo(o.conn); err != nil {
			return Tally{}, err
		}
	}
	d.transition(ctx, dispatchHeaderSent)
	log.VEventf(ctx, 1, "dispatching to %d segments with protocol v%d, segments parse from field %d",
		len(outs), codec.version, first)

	next := 0
	forward := func(ctx context.Context, row sreh.RejectedRow) error {
		o := outs[next%len(outs)]
		next++
		codec.encodeError(&o.buf, &errorFrame{
			lineNo:    row.LineNo,
			errMsg:    row.ErrMsg,
			line:      []byte(row.RawData),
			converted: row.RawConverted,
		})
		m.FramesSent.Inc(1)
		return o.maybeFlush(flushAt)
	}
	mode := sreh.LogNone
	if p.opts.LogErrors {
		mode = sreh.LogForward
	}
	sink, err := d.cfg.newSink(p, mode, forward)
	if err != nil {
		return Tally{}, err
	}

	d.transition(ctx, dispatchStreaming)
	routers := makeRouterCache(d.cfg.Settings, d.cfg.Seed)
	in := newInput(p, src, m)
	split := fieldSplitter{opts: p.opts}
	var frame rowFrame
	for {
		if err := ctx.Err(); err != nil {
			return Tally{}, err
		}
		row := p.newRow()
		var origin rowOrigin
		frame = rowFrame{values: frame.values[:0]}
		parsed := len(p.attnums)
		if p.opts.Binary() {
			ok, err := in.nextTuple(row)
			if err != nil {
				return Tally{}, err
			}
			if !ok {
				break
			}
			origin.lineNo = in.lineNo()
		} else {
			line, ok, err := in.nextLine()
			if err != nil {
				return Tally{}, err
			}
			if !ok {
				break
			}
			origin = rowOrigin{lineNo: in.lineNo(), raw: line, converted: true}
			frame.line = line
			var column string
			parsed, column, err = d.parsePrefix(p, &split, first, &frame, row)
			if err != nil {
				if err := rejectRow(ctx, sink, p, origin, column, err); err != nil {
					return Tally{}, err
				}
				continue
			}
		}
		m.RowsRead.Inc(1)
		frame.lineNo = origin.lineNo
		if column, err := p.fillDefaults(ctx, row); err != nil {
			if err := rejectRow(ctx, sink, p, origin, column, err); err != nil {
				return Tally{}, err
			}
			continue
		}
		leaf, err := p.table.RouteRow(row)
		if err != nil {
			if err := rejectRow(ctx, sink, p, origin, "", err); err != nil {
				return Tally{}, err
			}
			continue
		}
		r, err := routers.get(ctx, leaf)
		if err != nil {
			return Tally{}, err
		}
		dest, err := r.Route(row)
		if err != nil {
			return Tally{}, err
		}
		frame.relID = leaf.ID
		for _, id := range p.attnums[:parsed] {
			if row[id-1] != tree.DNull {
				frame.values = append(frame.values, frameValue{attnum: id, datum: row[id-1]})
			}
		}
		for _, id := range p.defaults {
			if row[id-1] != tree.DNull {
				frame.values = append(frame.values, frameValue{attnum: id, datum: row[id-1]})
			}
		}
		send := func(o *segmentOut) error {
			if err := codec.encodeRow(&o.buf, &frame); err != nil {
				return err
			}
			m.FramesSent.Inc(1)
			return o.maybeFlush(flushAt)
		}
		if dest.Broadcast {
			for _, o := range outs {
				if err := send(o); err != nil {
					return Tally{}, err
				}
			}
		} else if err := send(outs[dest.Segment]); err != nil {
			return Tally{}, err
		}
		sink.RowProcessed()
		m.RowsDispatched.Inc(1)
	}

	d.transition(ctx, dispatchDraining)
	total, err := d.drain(ctx, outs)
	drained = err == nil || sreh.IsRejectLimit(err)
	if err != nil {
		return Tally{}, err
	}
	if p.table.Policy.Kind == catalog.PolicyReplicated {
		total.Completed /= int64(len(outs))
	}
	if !sink.Logging() {
		// Forwarded rows are counted by the segments that logged them.
		total.Rejected += sink.Rejected()
	}
	d.transition(ctx, dispatchDone)
	sreh.Report(ctx, total.Rejected)
	return total, nil
}

// drain ends the stream of every segment and waits for them to store their
// rows. A segment that stopped at its reject limit does not keep the others
// from finishing; any other failure is returned at once and the remaining
// segments are left to be aborted.
func (d *Dispatcher) drain(ctx context.Context, outs []*segmentOut) (Tally, error) {
	flushErrs := make([]error, len(outs))
	for i, o := range outs {
		flushErrs[i] = o.buf.FlushTo(o.conn)
	}
	var total Tally
	var limitErr error
	for i, o := range outs {
		t, err := o.conn.Finish(ctx)
		if err == nil {
			err = flushErrs[i]
		}
		if err != nil {
			if !sreh.IsRejectLimit(err) {
				return Tally{}, err
			}
			if limitErr == nil {
				limitErr = err
			}
			continue
		}
		log.VEventf(ctx, 2, "segment %d stored %d rows, rejected %d", i, t.Completed, t.Rejected)
		total.add(t)
	}
	return total, limitErr
}

// parsePrefix parses the fields the dispatcher needs and records in frame
// where the segment resumes. It returns the number of column list entries
// parsed.
func (d *Dispatcher) parsePrefix(
	p *plan, split *fieldSplitter, first int, frame *rowFrame, row tree.Datums,
) (parsed int, column string, err error) {
	if err := checkEncoding(frame.line); err != nil {
		return 0, "", err
	}
	if err := p.checkEmptyLine(frame.line); err != nil {
		return 0, "", err
	}
	if first == 0 {
		frame.residualOff, frame.delimSeenAtEnd = 0, true
		return 0, "", nil
	}
	fields, cursor, atDelim, err := split.split(frame.line, 0, first)
	if err != nil {
		return 0, "", err
	}
	if len(fields) < first && !p.opts.FillMissing {
		return 0, "", pgerror.Newf(pgcode.BadCopyFileFormat,
			"missing data for column %s", pq.QuoteIdentifier(p.names[len(fields)]))
	}
	frame.residualOff, frame.delimSeenAtEnd = cursor, atDelim
	column, err = p.convert(fields, 0, row)
	return len(fields), column, err
}
