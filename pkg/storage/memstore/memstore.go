// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package memstore is an in-memory row store. Each relation keeps its rows
// in a btree ordered by insertion, with an optional unique index.
package memstore

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
)

// The degree of the row and index btrees.
const btreeDegree = 16

type rowItem struct {
	id  int64
	row tree.Datums
}

var _ btree.Item = &rowItem{}

// Less implements the btree.Item interface.
func (r *rowItem) Less(than btree.Item) bool {
	return r.id < than.(*rowItem).id
}

type keyItem struct {
	key tree.Datums
}

var _ btree.Item = &keyItem{}

// Less implements the btree.Item interface.
func (k *keyItem) Less(than btree.Item) bool {
	return k.key.Compare(than.(*keyItem).key) < 0
}

type table struct {
	desc   *catalog.TableDescriptor
	rows   *btree.BTree
	unique *btree.BTree
	nextID int64
}

// Store holds the rows of any number of relations. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[oid.Oid]*table
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[oid.Oid]*table)}
}

// BatchError reports the row of a batch that could not be inserted. No row
// of the batch is stored when it is returned.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string { return e.Err.Error() }
func (e *BatchError) Cause() error  { return e.Err }
func (e *BatchError) Unwrap() error { return e.Err }

// CreateTable registers a relation. Creating an existing relation is a
// no-op so that every segment of a cluster can do it independently.
func (s *Store) CreateTable(desc *catalog.TableDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, leaf := range desc.Leaves() {
		if _, ok := s.tables[leaf.ID]; ok {
			continue
		}
		t := &table{desc: leaf, rows: btree.New(btreeDegree)}
		if len(leaf.UniqueKey) > 0 {
			t.unique = btree.New(btreeDegree)
		}
		s.tables[leaf.ID] = t
	}
}

func (s *Store) get(rel oid.Oid) (*table, error) {
	t, ok := s.tables[rel]
	if !ok {
		return nil, pgerror.Newf(pgcode.UndefinedTable, "relation with OID %d does not exist", rel)
	}
	return t, nil
}

// uniqueKey extracts the unique key of a row. ok is false when the key has
// a NULL and therefore cannot conflict.
func (t *table) uniqueKey(row tree.Datums) (_ *keyItem, ok bool) {
	key := make(tree.Datums, len(t.desc.UniqueKey))
	for i, c := range t.desc.UniqueKey {
		if row[c-1] == tree.DNull {
			return nil, false
		}
		key[i] = row[c-1]
	}
	return &keyItem{key: key}, true
}

func (t *table) conflictErr(key *keyItem) error {
	err := pgerror.Newf(pgcode.UniqueViolation,
		"duplicate key value violates unique constraint \"%s_key\"", t.desc.Name)
	return errors.WithDetailf(err, "Key %s already exists.", key.key)
}

// Insert stores a batch of rows atomically.
func (s *Store) Insert(ctx context.Context, rel oid.Oid, rows []tree.Datums) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(rel)
	if err != nil {
		return err
	}
	var keys []*keyItem
	if t.unique != nil {
		keys = make([]*keyItem, len(rows))
		batch := btree.New(btreeDegree)
		for i, row := range rows {
			k, ok := t.uniqueKey(row)
			if !ok {
				continue
			}
			if t.unique.Has(k) || batch.ReplaceOrInsert(k) != nil {
				return &BatchError{Index: i, Err: t.conflictErr(k)}
			}
			keys[i] = k
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, row := range rows {
		t.rows.ReplaceOrInsert(&rowItem{id: t.nextID, row: row})
		t.nextID++
		if keys != nil && keys[i] != nil {
			t.unique.ReplaceOrInsert(keys[i])
		}
	}
	return nil
}

// Scan calls fn for each row of the relation in insertion order until fn
// returns an error.
func (s *Store) Scan(ctx context.Context, rel oid.Oid, fn func(tree.Datums) error) error {
	s.mu.RLock()
	t, err := s.get(rel)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	rows := t.rows.Clone()
	s.mu.RUnlock()

	rows.Ascend(func(i btree.Item) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		err = fn(i.(*rowItem).row)
		return err == nil
	})
	return err
}

// Rows returns all rows of a relation.
func (s *Store) Rows(ctx context.Context, rel oid.Oid) ([]tree.Datums, error) {
	var out []tree.Datums
	err := s.Scan(ctx, rel, func(row tree.Datums) error {
		out = append(out, row)
		return nil
	})
	return out, err
}

// Count returns the number of rows in a relation.
func (s *Store) Count(rel oid.Oid) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[rel]; ok {
		return t.rows.Len()
	}
	return 0
}

// Truncate removes every row of a relation.
func (s *Store) Truncate(rel oid.Oid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(rel)
	if err != nil {
		return err
	}
	t.rows.Clear(false)
	if t.unique != nil {
		t.unique.Clear(false)
	}
	return nil
}
