// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"github.com/marusama/semaphore"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/storage/memstore"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// rowOrigin is the input line a row was built from.
type rowOrigin struct {
	lineNo    int64
	raw       []byte
	converted bool
}

// insertBuffer holds the pending rows of one relation.
type insertBuffer struct {
	rel     *catalog.TableDescriptor
	rows    []tree.Datums
	origins []rowOrigin
}

// batchRejecter receives a row that could not be stored. It returns nil if
// the row was rejected and the load goes on.
type batchRejecter func(ctx context.Context, origin rowOrigin, err error) error

// MultiInsertBuffer accumulates rows for any number of relations and
// stores them in batches. Limits on the number and size of buffered rows
// apply across all relations; when either is reached every buffer is
// flushed. At most maxBuffers relations keep a buffer, the least recently
// used ones are dropped after a flush.
type MultiInsertBuffer struct {
	store      Storage
	sem        semaphore.Semaphore
	metrics    *Metrics
	maxRows    int64
	maxBytes   int64
	maxBuffers int

	// buffers is ordered from least to most recently used.
	buffers []*insertBuffer
	rows    int64
	bytes   int64

	reject batchRejecter
	// stored is called for every row once it is stored.
	stored func(ctx context.Context, rel *catalog.TableDescriptor, row tree.Datums) error
}

func newMultiInsertBuffer(
	sv *settings.Values, store Storage, sem semaphore.Semaphore, m *Metrics,
) *MultiInsertBuffer {
	return &MultiInsertBuffer{
		store:      store,
		sem:        sem,
		metrics:    m,
		maxRows:    multiInsertMaxRows.Get(sv),
		maxBytes:   multiInsertMaxBytes.Get(sv),
		maxBuffers: int(multiInsertMaxBuffers.Get(sv)),
	}
}

// Add buffers a row of rel, flushing every buffer first if the limits are
// reached.
func (b *MultiInsertBuffer) Add(
	ctx context.Context, rel *catalog.TableDescriptor, row tree.Datums, origin rowOrigin,
) error {
	buf := b.bufferFor(rel)
	buf.rows = append(buf.rows, row)
	buf.origins = append(buf.origins, origin)
	b.rows++
	b.bytes += int64(row.Size())
	if b.full() {
		return b.Flush(ctx, rel)
	}
	return nil
}

func (b *MultiInsertBuffer) full() bool {
	return b.rows >= b.maxRows || b.bytes >= b.maxBytes
}

// bufferFor returns the buffer of rel and marks it most recently used.
func (b *MultiInsertBuffer) bufferFor(rel *catalog.TableDescriptor) *insertBuffer {
	n := len(b.buffers)
	if n > 0 && b.buffers[n-1].rel.ID == rel.ID {
		return b.buffers[n-1]
	}
	for i, buf := range b.buffers {
		if buf.rel.ID == rel.ID {
			copy(b.buffers[i:], b.buffers[i+1:])
			b.buffers[n-1] = buf
			return buf
		}
	}
	buf := &insertBuffer{rel: rel}
	b.buffers = append(b.buffers, buf)
	return buf
}

// Flush stores every buffered row. Afterwards, buffers beyond the limit
// are dropped, oldest first, but never the buffer of current.
func (b *MultiInsertBuffer) Flush(ctx context.Context, current *catalog.TableDescriptor) error {
	for _, buf := range b.buffers {
		if len(buf.rows) == 0 {
			continue
		}
		if err := b.flushBuffer(ctx, buf); err != nil {
			return err
		}
	}
	b.rows, b.bytes = 0, 0
	for len(b.buffers) > b.maxBuffers {
		oldest := b.buffers[0]
		b.buffers = b.buffers[1:]
		if current != nil && oldest.rel.ID == current.ID {
			b.buffers = append(b.buffers, oldest)
		}
	}
	return nil
}

func (b *MultiInsertBuffer) flushBuffer(ctx context.Context, buf *insertBuffer) error {
	rows, origins := buf.rows, buf.origins
	buf.rows, buf.origins = buf.rows[:0:0], buf.origins[:0:0]
	for len(rows) > 0 {
		bad, err := b.insert(ctx, buf.rel.ID, rows)
		if err == nil {
			return b.afterInsert(ctx, buf.rel, rows)
		}
		if bad < 0 || b.reject == nil {
			return err
		}
		// Store the rows before the bad one, reject it and go on with the
		// rest.
		if bad > 0 {
			if _, err := b.insert(ctx, buf.rel.ID, rows[:bad]); err != nil {
				return err
			}
			if err := b.afterInsert(ctx, buf.rel, rows[:bad]); err != nil {
				return err
			}
		}
		if err := b.reject(ctx, origins[bad], err); err != nil {
			return err
		}
		rows, origins = rows[bad+1:], origins[bad+1:]
	}
	return nil
}

// insert stores a batch. When it fails because of one row, the index of
// that row is returned; otherwise the index is -1.
func (b *MultiInsertBuffer) insert(ctx context.Context, rel oid.Oid, rows []tree.Datums) (int, error) {
	if b.sem != nil {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return -1, err
		}
		defer b.sem.Release(1)
	}
	err := b.store.Insert(ctx, rel, rows)
	if err == nil {
		b.metrics.BatchesFlushed.Inc(1)
		log.VEventf(ctx, 3, "stored batch of %d rows into relation %d", len(rows), rel)
		return 0, nil
	}
	var be *memstore.BatchError
	if errors.As(err, &be) {
		return be.Index, be.Err
	}
	return -1, err
}

func (b *MultiInsertBuffer) afterInsert(
	ctx context.Context, rel *catalog.TableDescriptor, rows []tree.Datums,
) error {
	for _, row := range rows {
		if err := b.stored(ctx, rel, row); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of buffered rows.
func (b *MultiInsertBuffer) Len() int64 { return b.rows }
