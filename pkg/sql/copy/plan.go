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
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/metric"
)

// Storage holds the rows of relations.
type Storage interface {
	// Insert stores a batch of rows atomically.
	Insert(ctx context.Context, rel oid.Oid, rows []tree.Datums) error
	// Scan calls fn for every row of rel.
	Scan(ctx context.Context, rel oid.Oid, fn func(tree.Datums) error) error
}

// Statement is a COPY statement bound to its relation.
type Statement struct {
	Table *catalog.TableDescriptor
	// Columns is the column list. Empty means every live column.
	Columns []string
	Options *Options
	// Where filters the rows of COPY FROM.
	Where *Filter
	// FileName names the data in error logs.
	FileName string
}

// Filter is the WHERE clause of COPY FROM.
type Filter struct {
	Eval func(ctx context.Context, row tree.Datums) (bool, error)
	// Volatile filters disable batched inserts.
	Volatile bool
}

// Tally counts the rows of a statement.
type Tally struct {
	// Completed rows were stored, or written by COPY TO.
	Completed int64
	// Rejected rows were skipped by single row error handling.
	Rejected int64
}

func (t *Tally) add(o Tally) {
	t.Completed += o.Completed
	t.Rejected += o.Rejected
}

// plan is a resolved statement.
type plan struct {
	stmt  *Statement
	opts  *Options
	table *catalog.TableDescriptor
	// attnums is the column list; names and types are indexed like it.
	attnums []catalog.ColumnID
	names   []string
	types   []*types.T
	// defaults are the columns outside the list that have a default.
	defaults []catalog.ColumnID

	forceQuote, forceNotNull, forceNull []bool
}

func newPlan(stmt *Statement, dir Direction) (*plan, error) {
	if stmt.Table == nil || stmt.Options == nil {
		return nil, errors.AssertionFailedf("incomplete COPY statement")
	}
	p := &plan{stmt: stmt, opts: stmt.Options, table: stmt.Table}
	if len(stmt.Columns) == 0 {
		p.attnums = stmt.Table.LiveColumns()
	} else {
		seen := make(map[catalog.ColumnID]struct{}, len(stmt.Columns))
		for _, name := range stmt.Columns {
			col, err := stmt.Table.ColumnByName(name)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[col.ID]; ok {
				return nil, pgerror.Newf(pgcode.DuplicateColumn,
					"column %s specified more than once", pq.QuoteIdentifier(name))
			}
			seen[col.ID] = struct{}{}
			p.attnums = append(p.attnums, col.ID)
		}
	}
	inList := make(map[catalog.ColumnID]int, len(p.attnums))
	for i, id := range p.attnums {
		col := stmt.Table.Column(id)
		inList[id] = i
		p.names = append(p.names, col.Name)
		p.types = append(p.types, col.Type)
	}
	if dir == From {
		for _, col := range stmt.Table.Columns {
			if _, ok := inList[col.ID]; !ok && !col.Dropped && col.Default != nil {
				p.defaults = append(p.defaults, col.ID)
			}
		}
	}

	var err error
	mark := func(option string, names []string) []bool {
		if names == nil || err != nil {
			return nil
		}
		flags := make([]bool, len(p.attnums))
		for _, name := range names {
			col, cerr := stmt.Table.ColumnByName(name)
			if cerr != nil {
				err = cerr
				return nil
			}
			i, ok := inList[col.ID]
			if !ok {
				err = pgerror.Newf(pgcode.InvalidColumnReference,
					"%s column %s not referenced by COPY", option, pq.QuoteIdentifier(name))
				return nil
			}
			flags[i] = true
		}
		return flags
	}
	p.forceQuote = mark("FORCE_QUOTE", p.opts.ForceQuote)
	p.forceNotNull = mark("FORCE_NOT_NULL", p.opts.ForceNotNull)
	p.forceNull = mark("FORCE_NULL", p.opts.ForceNull)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// newRow returns a row of the relation with every column NULL.
func (p *plan) newRow() tree.Datums {
	row := make(tree.Datums, len(p.table.Columns))
	for i := range row {
		row[i] = tree.DNull
	}
	return row
}

// checkEmptyLine rejects empty lines when missing fields are filled, as
// they are almost surely not meant as a row of NULLs.
func (p *plan) checkEmptyLine(line []byte) error {
	if len(line) == 0 && p.opts.FillMissing && len(p.attnums) > 1 {
		return pgerror.Newf(pgcode.BadCopyFileFormat,
			"missing data for column %s, found empty data line", pq.QuoteIdentifier(p.names[1]))
	}
	return nil
}

// checkFieldCount validates the number of fields found for the column list
// entries starting at first. n is the number of fields found and more
// reports whether the line has fields beyond them.
func (p *plan) checkFieldCount(first, n int, more bool) error {
	want := len(p.attnums) - first
	switch {
	case n > want || (n == want && more):
		return pgerror.New(pgcode.BadCopyFileFormat, "extra data after last expected column")
	case n < want && !more && !p.opts.FillMissing:
		return pgerror.Newf(pgcode.BadCopyFileFormat,
			"missing data for column %s", pq.QuoteIdentifier(p.names[first+n]))
	}
	return nil
}

// convert parses fields into row. fields[i] belongs to column list entry
// first+i. On error, the name of the offending column is returned.
func (p *plan) convert(fields []field, first int, row tree.Datums) (column string, err error) {
	for i := range fields {
		f := &fields[i]
		idx := first + i
		col := p.attnums[idx]
		s := string(f.val)
		switch {
		case f.null && p.forceNotNull != nil && p.forceNotNull[idx]:
			s = p.opts.Null
		case f.null:
			row[col-1] = tree.DNull
			continue
		case f.quoted && p.forceNull != nil && p.forceNull[idx] && s == p.opts.Null:
			row[col-1] = tree.DNull
			continue
		}
		d, err := tree.ParseDatumText(p.types[idx], s)
		if err != nil {
			return p.names[idx], err
		}
		row[col-1] = d
	}
	return "", nil
}

// fillDefaults evaluates the defaults of the columns outside the list.
func (p *plan) fillDefaults(ctx context.Context, row tree.Datums) (column string, err error) {
	for _, id := range p.defaults {
		col := p.table.Column(id)
		d, err := col.Default.Eval(ctx)
		if err != nil {
			return col.Name, err
		}
		row[id-1] = d
	}
	return "", nil
}

// checkNotNull enforces the NOT NULL constraints of a row about to be
// stored.
func checkNotNull(leaf *catalog.TableDescriptor, row tree.Datums) error {
	for i := range leaf.Columns {
		col := &leaf.Columns[i]
		if !col.Nullable && !col.Dropped && row[i] == tree.DNull {
			return pgerror.Newf(pgcode.NotNullViolation,
				"null value in column %s violates not-null constraint", pq.QuoteIdentifier(col.Name))
		}
	}
	return nil
}

// projection returns the values of the column list, in list order.
func (p *plan) projection(row, out tree.Datums) tree.Datums {
	out = out[:0]
	for _, id := range p.attnums {
		out = append(out, row[id-1])
	}
	return out
}

// countingReader counts the bytes read from the input.
type countingReader struct {
	r io.Reader
	c *metric.Counter
}

func (cr countingReader) Read(b []byte) (int, error) {
	n, err := cr.r.Read(b)
	cr.c.Inc(int64(n))
	return n, err
}

// input reads the rows of COPY FROM in any format.
type input struct {
	p     *plan
	lines *lineReader
	bin   *binaryReader
	vals  tree.Datums
	// started is set once the header, if any, was consumed.
	started bool
}

func newInput(p *plan, src io.Reader, m *Metrics) *input {
	src = countingReader{r: src, c: m.BytesRead}
	in := &input{p: p}
	if p.opts.Binary() {
		in.bin = newBinaryReader(src, p.types)
		in.vals = make(tree.Datums, len(p.attnums))
	} else {
		in.lines = newLineReader(decodeReader(src, p.opts.Encoding), p.opts)
	}
	return in
}

// nextLine returns the next data line of text or CSV input, skipping the
// header line.
func (in *input) nextLine() (line []byte, ok bool, err error) {
	if !in.started {
		in.started = true
		if in.p.opts.Header {
			if _, ok, err := in.lines.next(); !ok || err != nil {
				return nil, ok, err
			}
		}
	}
	return in.lines.next()
}

// nextTuple decodes the next tuple of binary input into row.
func (in *input) nextTuple(row tree.Datums) (ok bool, err error) {
	if !in.started {
		in.started = true
		if err := in.bin.readHeader(); err != nil {
			return false, err
		}
	}
	ok, err = in.bin.next(in.vals)
	if !ok || err != nil {
		return ok, err
	}
	for i, id := range in.p.attnums {
		row[id-1] = in.vals[i]
	}
	return true, nil
}

// lineNo is the number of the line last read.
func (in *input) lineNo() int64 {
	if in.bin != nil {
		return in.bin.row
	}
	return in.lines.lineNo
}
