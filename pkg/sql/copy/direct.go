// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"

	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/rowflow"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// Direct runs a statement entirely on one node: it reads the data, routes
// rows to partitions and stores them. It serves relations that live on the
// coordinator and the segments of ON SEGMENT statements.
type Direct struct {
	cfg   Config
	stmt  *Statement
	store Storage
}

// NewDirect creates the direct role.
func NewDirect(cfg Config, stmt *Statement, store Storage) *Direct {
	cfg.init()
	return &Direct{cfg: cfg, stmt: stmt, store: store}
}

// CopyFrom loads src.
func (d *Direct) CopyFrom(ctx context.Context, src io.Reader) (Tally, error) {
	ctx = d.cfg.annotate(ctx, "direct")
	p, err := newPlan(d.stmt, From)
	if err != nil {
		return Tally{}, err
	}
	sink, err := d.cfg.newSink(p, localLogMode(p.opts), nil)
	if err != nil {
		return Tally{}, err
	}
	m := d.cfg.Metrics
	m.ActiveLoads.Inc(1)
	defer m.ActiveLoads.Dec(1)

	l := newLoader(d.cfg.Settings, p, d.store, sink, m, d.cfg.FlushSem)
	routers := makeRouterCache(d.cfg.Settings, d.cfg.Seed)
	in := newInput(p, src, m)
	split := fieldSplitter{opts: p.opts}
	for {
		if err := ctx.Err(); err != nil {
			return Tally{}, err
		}
		row := p.newRow()
		var origin rowOrigin
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
			if column, err := parseLine(p, &split, line, row); err != nil {
				if err := rejectRow(ctx, sink, p, origin, column, err); err != nil {
					return Tally{}, l.stop(ctx, err)
				}
				continue
			}
		}
		m.RowsRead.Inc(1)
		if column, err := p.fillDefaults(ctx, row); err != nil {
			if err := rejectRow(ctx, sink, p, origin, column, err); err != nil {
				return Tally{}, l.stop(ctx, err)
			}
			continue
		}
		leaf, err := d.route(ctx, p, routers, row)
		if err != nil {
			if err := l.reject(ctx, origin, err); err != nil {
				return Tally{}, l.stop(ctx, err)
			}
			continue
		}
		if err := l.load(ctx, leaf, row, origin); err != nil {
			return Tally{}, l.stop(ctx, err)
		}
	}
	if err := l.finish(ctx); err != nil {
		return Tally{}, l.stop(ctx, err)
	}
	t := l.tally()
	log.VEventf(ctx, 1, "loaded %d rows, rejected %d", t.Completed, t.Rejected)
	sreh.Report(ctx, t.Rejected)
	return t, nil
}

// parseLine splits a whole line and converts every field.
func parseLine(p *plan, split *fieldSplitter, line []byte, row tree.Datums) (column string, err error) {
	if err := checkEncoding(line); err != nil {
		return "", err
	}
	if err := p.checkEmptyLine(line); err != nil {
		return "", err
	}
	fields, _, _, err := split.split(line, 0, 0)
	if err != nil {
		return "", err
	}
	if err := p.checkFieldCount(0, len(fields), false); err != nil {
		return "", err
	}
	return p.convert(fields, 0, row)
}

// route finds the leaf of a row. For ON SEGMENT statements it also checks
// that the row belongs to this segment.
func (d *Direct) route(
	ctx context.Context, p *plan, routers *routerCache, row tree.Datums,
) (*catalog.TableDescriptor, error) {
	leaf, err := p.table.RouteRow(row)
	if err != nil {
		return nil, err
	}
	if !p.opts.OnSegment || d.cfg.Segment == CoordinatorID || leaf.Policy.Kind != catalog.PolicyHash {
		return leaf, nil
	}
	r, err := routers.get(ctx, leaf)
	if err != nil {
		return nil, err
	}
	dest, err := r.Route(row)
	if err != nil {
		return nil, err
	}
	if !dest.Broadcast && dest.Segment != d.cfg.Segment {
		return nil, pgerror.Newf(pgcode.IntegrityConstraintViolation,
			"value of distribution key doesn't belong to segment with ID %d, it belongs to segment with ID %d",
			d.cfg.Segment, dest.Segment)
	}
	return leaf, nil
}

// CopyTo writes every row of the relation held by this node to dst,
// including the header and trailer of the format.
func (d *Direct) CopyTo(ctx context.Context, dst io.Writer) (int64, error) {
	ctx = d.cfg.annotate(ctx, "direct")
	p, err := newPlan(d.stmt, To)
	if err != nil {
		return 0, err
	}
	out := encodeWriter(dst, p.opts.Encoding)
	enc := makeEncoder(p.opts, p.names, p.types, p.forceQuote)
	buf := pgwirebase.MakeWriteBuffer(nil)
	enc.header(&buf)
	n, err := writeRows(ctx, p, d.store, enc, &buf, out, int(frameBufferSize.Get(d.cfg.Settings)))
	if err != nil {
		return n, err
	}
	enc.trailer(&buf)
	if err := buf.FlushTo(out); err != nil {
		return n, err
	}
	d.cfg.Metrics.RowsWritten.Inc(n)
	return n, out.Close()
}

// routerCache holds the router of every leaf seen by a statement.
type routerCache struct {
	sv      *settings.Values
	seed    rowflow.Seed
	routers map[oid.Oid]rowflow.Router
}

func makeRouterCache(sv *settings.Values, seed rowflow.Seed) *routerCache {
	return &routerCache{sv: sv, seed: seed, routers: make(map[oid.Oid]rowflow.Router)}
}

func (c *routerCache) get(ctx context.Context, leaf *catalog.TableDescriptor) (rowflow.Router, error) {
	if r, ok := c.routers[leaf.ID]; ok {
		return r, nil
	}
	r, err := rowflow.MakeRouter(ctx, c.sv, leaf, c.seed)
	if err != nil {
		return nil, err
	}
	c.routers[leaf.ID] = r
	return r, nil
}
