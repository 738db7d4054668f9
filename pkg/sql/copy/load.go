// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/marusama/semaphore"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// loader stores the rows of a COPY FROM on one node. It applies the WHERE
// clause, the insert hooks and the NOT NULL constraints, and sends row
// level failures to the SREH sink.
type loader struct {
	p       *plan
	store   Storage
	sink    *sreh.Sink
	metrics *Metrics
	sem     semaphore.Semaphore
	// buf is nil when rows must be stored one at a time.
	buf       *MultiInsertBuffer
	completed int64
}

func newLoader(
	sv *settings.Values,
	p *plan,
	store Storage,
	sink *sreh.Sink,
	m *Metrics,
	sem semaphore.Semaphore,
) *loader {
	l := &loader{p: p, store: store, sink: sink, metrics: m, sem: sem}
	if multiInsertEnabled.Get(sv) && !p.table.VolatileDefaults() &&
		(p.stmt.Where == nil || !p.stmt.Where.Volatile) {
		l.buf = newMultiInsertBuffer(sv, store, sem, m)
		l.buf.reject = l.reject
		l.buf.stored = l.stored
	}
	return l
}

// batched reports whether rows of leaf may be buffered.
func (l *loader) batched(leaf *catalog.TableDescriptor) bool {
	return l.buf != nil && !leaf.HasBeforeRowTriggers() && !leaf.IsForeign &&
		!l.p.table.HasBeforeRowTriggers() && !l.p.table.IsForeign
}

// load stores a row of leaf. A nil return means the row was stored, queued,
// filtered out or rejected.
func (l *loader) load(
	ctx context.Context, leaf *catalog.TableDescriptor, row tree.Datums, origin rowOrigin,
) error {
	if w := l.p.stmt.Where; w != nil {
		keep, err := w.Eval(ctx, row)
		if err != nil {
			return l.reject(ctx, origin, err)
		}
		if !keep {
			return nil
		}
	}
	if leaf.BeforeInsert != nil {
		var err error
		if row, err = leaf.BeforeInsert(ctx, row); err != nil {
			return l.reject(ctx, origin, err)
		}
		if row == nil {
			return nil
		}
	}
	if err := checkNotNull(leaf, row); err != nil {
		return l.reject(ctx, origin, err)
	}
	if l.batched(leaf) {
		if l.sink != nil {
			// The line buffer is reused by the reader.
			origin.raw = append([]byte(nil), origin.raw...)
		}
		return l.buf.Add(ctx, leaf, row, origin)
	}
	if err := l.insertOne(ctx, leaf, row); err != nil {
		return l.reject(ctx, origin, err)
	}
	return l.stored(ctx, leaf, row)
}

func (l *loader) insertOne(ctx context.Context, leaf *catalog.TableDescriptor, row tree.Datums) error {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer l.sem.Release(1)
	}
	return l.store.Insert(ctx, leaf.ID, []tree.Datums{row})
}

// stored accounts for a row once it is in storage and runs the after
// insert hook.
func (l *loader) stored(ctx context.Context, leaf *catalog.TableDescriptor, row tree.Datums) error {
	l.completed++
	l.sink.RowProcessed()
	l.metrics.RowsInserted.Inc(1)
	if leaf.AfterInsert != nil {
		return leaf.AfterInsert(ctx, row)
	}
	return nil
}

// reject hands a failed row to the sink. Errors that end the statement get
// the position of the row attached.
func (l *loader) reject(ctx context.Context, origin rowOrigin, err error) error {
	return rejectRow(ctx, l.sink, l.p, origin, "", err)
}

func rejectRow(
	ctx context.Context, sink *sreh.Sink, p *plan, origin rowOrigin, column string, err error,
) error {
	bad := sreh.BadRow{
		LineNo:    origin.lineNo,
		Raw:       origin.raw,
		Converted: origin.converted,
		Column:    column,
	}
	rerr := sink.HandleRowError(ctx, bad, err)
	if rerr == nil {
		return nil
	}
	if rerr != err || errors.Is(err, ErrProtocol) {
		return rerr
	}
	if column != "" {
		return errors.WithDetailf(rerr, "COPY %s, line %d, column %s", p.table.Name, origin.lineNo, column)
	}
	return errors.WithDetailf(rerr, "COPY %s, line %d", p.table.Name, origin.lineNo)
}

// finish stores the rows still buffered.
func (l *loader) finish(ctx context.Context) error {
	if l.buf == nil || l.buf.Len() == 0 {
		return nil
	}
	log.VEventf(ctx, 2, "flushing %d buffered rows", l.buf.Len())
	return l.buf.Flush(ctx, nil)
}

// stop ends a load that failed with err. A load ended by its reject limit
// still stores the rows it buffered before the limit was crossed; any other
// failure discards them.
func (l *loader) stop(ctx context.Context, err error) error {
	if !sreh.IsRejectLimit(err) {
		return err
	}
	if ferr := l.finish(ctx); ferr != nil && !sreh.IsRejectLimit(ferr) {
		return errors.CombineErrors(err, ferr)
	}
	return err
}

// tally reports what this node did.
func (l *loader) tally() Tally {
	return Tally{Completed: l.completed, Rejected: l.sink.Rejected()}
}
