// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package catalog describes the relation metadata consumed by the COPY
// engine and the cost model: columns, distribution policy, partitions and
// per-row hooks. Descriptors are treated as immutable once validated.
package catalog

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util"
)

// InvalidOid is the zero relation id.
const InvalidOid = oid.Oid(0)

// ColumnID is the 1-based attribute number of a column.
type ColumnID int

// DefaultExpr computes a column's default value.
type DefaultExpr interface {
	// Eval produces the default for one row.
	Eval(ctx context.Context) (tree.Datum, error)
	// Volatile is true if two evaluations may produce different values.
	Volatile() bool
	String() string
}

// ConstDefault is a stable default expression.
type ConstDefault struct {
	Datum tree.Datum
}

// Eval implements DefaultExpr.
func (c ConstDefault) Eval(context.Context) (tree.Datum, error) { return c.Datum, nil }

// Volatile implements DefaultExpr.
func (ConstDefault) Volatile() bool { return false }

func (c ConstDefault) String() string { return c.Datum.String() }

// SequenceDefault hands out increasing integers, like nextval().
type SequenceDefault struct {
	Name string
	next atomic.Int64
}

// NewSequenceDefault returns a sequence whose first value is start.
func NewSequenceDefault(name string, start int64) *SequenceDefault {
	s := &SequenceDefault{Name: name}
	s.next.Store(start)
	return s
}

// Eval implements DefaultExpr.
func (s *SequenceDefault) Eval(context.Context) (tree.Datum, error) {
	return tree.NewDInt(tree.DInt(s.next.Add(1) - 1)), nil
}

// Volatile implements DefaultExpr.
func (*SequenceDefault) Volatile() bool { return true }

func (s *SequenceDefault) String() string { return "nextval('" + s.Name + "')" }

// FuncDefault wraps an arbitrary function.
type FuncDefault struct {
	Name       string
	Fn         func(ctx context.Context) (tree.Datum, error)
	IsVolatile bool
}

// Eval implements DefaultExpr.
func (f FuncDefault) Eval(ctx context.Context) (tree.Datum, error) { return f.Fn(ctx) }

// Volatile implements DefaultExpr.
func (f FuncDefault) Volatile() bool { return f.IsVolatile }

func (f FuncDefault) String() string { return f.Name + "()" }

// Column describes one attribute of a relation.
type Column struct {
	ID       ColumnID
	Name     string
	Type     *types.T
	Nullable bool
	// Default is nil when the column defaults to NULL.
	Default DefaultExpr
	// Dropped columns keep their attribute number but take no input.
	Dropped bool
}

// PolicyKind is the kind of distribution policy of a relation.
type PolicyKind int

const (
	// PolicyEntry relations live only on the coordinator.
	PolicyEntry PolicyKind = iota
	// PolicyHash places each row by a hash of its key columns.
	PolicyHash
	// PolicyReplicated stores every row on every segment.
	PolicyReplicated
	// PolicyRandom places rows without regard to content.
	PolicyRandom
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyEntry:
		return "entry"
	case PolicyHash:
		return "hash"
	case PolicyReplicated:
		return "replicated"
	case PolicyRandom:
		return "random"
	}
	return "unknown"
}

// DistributionPolicy says which segment owns which row.
type DistributionPolicy struct {
	Kind       PolicyKind
	KeyColumns []ColumnID
	// NumSegments is the number of segments the relation is spread over.
	NumSegments int
}

// MakeHashPolicy returns a hash distribution over the given key columns.
func MakeHashPolicy(numSegments int, keys ...ColumnID) DistributionPolicy {
	return DistributionPolicy{Kind: PolicyHash, KeyColumns: keys, NumSegments: numSegments}
}

// IsPartitioned is true for policies that place each row on one segment.
func (p DistributionPolicy) IsPartitioned() bool {
	return p.Kind == PolicyHash || p.Kind == PolicyRandom
}

// KeySet returns the key columns as a set.
func (p DistributionPolicy) KeySet() util.FastIntSet {
	var s util.FastIntSet
	for _, c := range p.KeyColumns {
		s.Add(int(c))
	}
	return s
}

func (p DistributionPolicy) String() string {
	var b strings.Builder
	b.WriteString(p.Kind.String())
	if len(p.KeyColumns) > 0 {
		b.WriteByte('(')
		for i, c := range p.KeyColumns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(c)))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// TableDescriptor describes a relation that can be the target or source of
// COPY.
type TableDescriptor struct {
	ID      oid.Oid
	Name    string
	Columns []Column
	Policy  DistributionPolicy
	// Partitioning is set for partitioned parents; rows are stored in the
	// leaves.
	Partitioning *Partitioning
	// UniqueKey, when set, are columns whose combined values may appear only
	// once. NULLs never conflict.
	UniqueKey []ColumnID

	// BeforeInsert, when set, runs for every row before it is stored. It may
	// return a modified row, or nil to skip the row.
	BeforeInsert func(ctx context.Context, row tree.Datums) (tree.Datums, error)
	// AfterInsert, when set, runs for every stored row.
	AfterInsert func(ctx context.Context, row tree.Datums) error
	// IsForeign relations are stored outside the cluster and take one row at
	// a time.
	IsForeign bool
}

// Validate checks the descriptor for internal consistency and assigns
// attribute numbers to columns that lack one.
func (t *TableDescriptor) Validate() error {
	if t.ID == InvalidOid {
		return errors.AssertionFailedf("relation %s has no id", t.Name)
	}
	if t.Policy.NumSegments < 1 && t.Policy.Kind != PolicyEntry {
		return errors.AssertionFailedf("relation %s spans %d segments", t.Name, t.Policy.NumSegments)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.ID == 0 {
			c.ID = ColumnID(i + 1)
		}
		if c.ID != ColumnID(i+1) {
			return errors.AssertionFailedf("column %s has attribute number %d at position %d", c.Name, c.ID, i+1)
		}
		if c.Type == nil {
			return errors.AssertionFailedf("column %s has no type", c.Name)
		}
		if c.Dropped {
			continue
		}
		if _, ok := seen[c.Name]; ok {
			return pgerror.Newf(pgcode.DuplicateColumn,
				"column %s specified more than once", pq.QuoteIdentifier(c.Name))
		}
		seen[c.Name] = struct{}{}
	}
	for _, k := range t.Policy.KeyColumns {
		if k < 1 || int(k) > len(t.Columns) || t.Columns[k-1].Dropped {
			return errors.AssertionFailedf("distribution key %d is not a column of %s", k, t.Name)
		}
	}
	for _, k := range t.UniqueKey {
		if k < 1 || int(k) > len(t.Columns) || t.Columns[k-1].Dropped {
			return errors.AssertionFailedf("unique key column %d is not a column of %s", k, t.Name)
		}
	}
	if t.Policy.Kind == PolicyHash && len(t.Policy.KeyColumns) == 0 {
		return errors.AssertionFailedf("hash distributed relation %s has no key", t.Name)
	}
	if t.Partitioning != nil {
		return t.Partitioning.validate(t)
	}
	return nil
}

// ColumnByName finds a live column.
func (t *TableDescriptor) ColumnByName(name string) (*Column, error) {
	for i := range t.Columns {
		if c := &t.Columns[i]; !c.Dropped && c.Name == name {
			return c, nil
		}
	}
	return nil, pgerror.Newf(pgcode.UndefinedColumn,
		"column %s of relation %s does not exist", pq.QuoteIdentifier(name), t.QuotedName())
}

// Column returns the column with the given attribute number.
func (t *TableDescriptor) Column(id ColumnID) *Column {
	return &t.Columns[id-1]
}

// LiveColumns returns the attribute numbers of the non-dropped columns.
func (t *TableDescriptor) LiveColumns() []ColumnID {
	ids := make([]ColumnID, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Dropped {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// QuotedName quotes the relation name for messages.
func (t *TableDescriptor) QuotedName() string {
	return pq.QuoteIdentifier(t.Name)
}

// VolatileDefaults reports whether any live column has a volatile default.
func (t *TableDescriptor) VolatileDefaults() bool {
	for _, c := range t.Columns {
		if c.Default != nil && c.Default.Volatile() && !c.Dropped {
			return true
		}
	}
	return false
}

// HasBeforeRowTriggers reports whether rows must be seen one at a time
// before they are stored.
func (t *TableDescriptor) HasBeforeRowTriggers() bool { return t.BeforeInsert != nil }

// Leaves returns the relations rows are physically stored in: the leaves
// of a partitioned table, or the table itself.
func (t *TableDescriptor) Leaves() []*TableDescriptor {
	if t.Partitioning == nil {
		return []*TableDescriptor{t}
	}
	out := make([]*TableDescriptor, len(t.Partitioning.Partitions))
	for i := range t.Partitioning.Partitions {
		out[i] = t.Partitioning.Partitions[i].Table
	}
	return out
}

// LeafByID finds the storage relation with the given id.
func (t *TableDescriptor) LeafByID(id oid.Oid) (*TableDescriptor, bool) {
	for _, leaf := range t.Leaves() {
		if leaf.ID == id {
			return leaf, true
		}
	}
	return nil, false
}
