// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import (
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
)

// Partitioning is a range partitioning of a table on a single key column.
type Partitioning struct {
	KeyColumn  ColumnID
	Partitions []Partition
}

// Partition is one leaf of a range-partitioned table. It holds rows whose
// key k satisfies Lower <= k < Upper. A nil bound is unbounded.
type Partition struct {
	Lower, Upper tree.Datum
	Table        *TableDescriptor
}

// Contains reports whether the key belongs to the partition.
func (p *Partition) Contains(key tree.Datum) bool {
	if key == tree.DNull {
		return false
	}
	if p.Lower != nil && key.Compare(p.Lower) < 0 {
		return false
	}
	if p.Upper != nil && key.Compare(p.Upper) >= 0 {
		return false
	}
	return true
}

func (p *Partitioning) validate(parent *TableDescriptor) error {
	if p.KeyColumn < 1 || int(p.KeyColumn) > len(parent.Columns) {
		return errors.AssertionFailedf("partition key %d is not a column of %s", p.KeyColumn, parent.Name)
	}
	ids := map[oid.Oid]struct{}{parent.ID: {}}
	for i := range p.Partitions {
		leaf := p.Partitions[i].Table
		if leaf == nil {
			return errors.AssertionFailedf("partition %d of %s has no relation", i, parent.Name)
		}
		if len(leaf.Columns) != len(parent.Columns) {
			return errors.AssertionFailedf("partition %s has %d columns, parent %s has %d",
				leaf.Name, len(leaf.Columns), parent.Name, len(parent.Columns))
		}
		if _, ok := ids[leaf.ID]; ok {
			return errors.AssertionFailedf("relation id %d used twice in %s", leaf.ID, parent.Name)
		}
		ids[leaf.ID] = struct{}{}
		if leaf.Partitioning != nil {
			return errors.AssertionFailedf("partition %s is itself partitioned", leaf.Name)
		}
		if err := leaf.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RouteRow finds the leaf relation for a row of the parent. It returns the
// parent itself when the table is not partitioned.
func (t *TableDescriptor) RouteRow(row tree.Datums) (*TableDescriptor, error) {
	if t.Partitioning == nil {
		return t, nil
	}
	key := row[t.Partitioning.KeyColumn-1]
	for i := range t.Partitioning.Partitions {
		if p := &t.Partitioning.Partitions[i]; p.Contains(key) {
			return p.Table, nil
		}
	}
	return nil, pgerror.Newf(pgcode.CheckViolation,
		"no partition of relation %s found for row", pq.QuoteIdentifier(t.Name))
}
