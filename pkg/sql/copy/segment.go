// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"

	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/util/log"
)

type segmentState int

const (
	segmentAwaitHeader segmentState = iota
	segmentStreaming
	segmentDone
)

func (s segmentState) String() string {
	switch s {
	case segmentAwaitHeader:
		return "AWAIT_HEADER"
	case segmentStreaming:
		return "STREAMING"
	case segmentDone:
		return "DONE"
	}
	return "unknown"
}

// Segment is the receiving side of a distributed COPY FROM. It decodes the
// frames sent by the dispatcher, finishes parsing each row and stores it.
type Segment struct {
	cfg   Config
	stmt  *Statement
	store Storage
	state segmentState
}

// NewSegment creates the segment role for the segment in cfg.
func NewSegment(cfg Config, stmt *Statement, store Storage) *Segment {
	cfg.init()
	return &Segment{cfg: cfg, stmt: stmt, store: store}
}

func (s *Segment) transition(ctx context.Context, to segmentState) {
	log.VEventf(ctx, 2, "%s -> %s", s.state, to)
	s.state = to
}

// CopyFrom consumes the frame stream until it ends.
func (s *Segment) CopyFrom(ctx context.Context, frames io.Reader) (Tally, error) {
	ctx = s.cfg.annotate(ctx, "segment")
	p, err := newPlan(s.stmt, From)
	if err != nil {
		return Tally{}, err
	}
	sink, err := s.cfg.newSink(p, localLogMode(p.opts), nil)
	if err != nil {
		return Tally{}, err
	}
	m := s.cfg.Metrics
	m.ActiveLoads.Inc(1)
	defer m.ActiveLoads.Dec(1)

	fr := newFrameReader(frames, p.table)
	first, err := fr.readHeader()
	if err != nil {
		return Tally{}, err
	}
	s.transition(ctx, segmentStreaming)
	log.VEventf(ctx, 1, "receiving protocol v%d frames, parsing from field %d", fr.codec.version, first)

	l := newLoader(s.cfg.Settings, p, s.store, sink, m, s.cfg.FlushSem)
	split := fieldSplitter{opts: p.opts}
	for {
		if err := ctx.Err(); err != nil {
			return Tally{}, err
		}
		kind, rf, ef, err := fr.next()
		if err != nil {
			return Tally{}, err
		}
		if kind == frameEOF {
			break
		}
		if kind == frameError {
			err := sink.HandleForwardedError(ctx, sreh.RejectedRow{
				LineNo:       ef.lineNo,
				ErrMsg:       ef.errMsg,
				RawData:      string(ef.line),
				RawConverted: ef.converted,
			})
			if err != nil {
				return Tally{}, l.stop(ctx, err)
			}
			continue
		}

		leaf, ok := p.table.LeafByID(rf.relID)
		if !ok {
			return Tally{}, protocolErrorf("invalid relation id %d received from QD", rf.relID)
		}
		row := p.newRow()
		for _, v := range rf.values {
			row[v.attnum-1] = v.datum
		}
		origin := rowOrigin{lineNo: rf.lineNo, raw: rf.line, converted: true}
		if !p.opts.Binary() {
			if column, err := parseResidual(p, &split, first, rf, row); err != nil {
				if err := rejectRow(ctx, sink, p, origin, column, err); err != nil {
					return Tally{}, l.stop(ctx, err)
				}
				continue
			}
		}
		if err := l.load(ctx, leaf, row, origin); err != nil {
			return Tally{}, l.stop(ctx, err)
		}
	}
	if err := l.finish(ctx); err != nil {
		return Tally{}, l.stop(ctx, err)
	}
	s.transition(ctx, segmentDone)
	t := l.tally()
	log.VEventf(ctx, 1, "stored %d rows, rejected %d", t.Completed, t.Rejected)
	return t, nil
}

// parseResidual parses the fields the dispatcher left unparsed.
func parseResidual(
	p *plan, split *fieldSplitter, first int, rf *rowFrame, row tree.Datums,
) (column string, err error) {
	var fields []field
	if rf.delimSeenAtEnd && rf.residualOff <= len(rf.line) {
		if fields, _, _, err = split.split(rf.line, rf.residualOff, 0); err != nil {
			return "", err
		}
	}
	if err := p.checkFieldCount(first, len(fields), false); err != nil {
		return "", err
	}
	return p.convert(fields, first, row)
}
