// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import (
	"context"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

func oidOf(i uint32) oid.Oid { return oid.Oid(i) }

func makeTestTable(id uint32, name string) *TableDescriptor {
	return &TableDescriptor{
		ID:   oidOf(id),
		Name: name,
		Columns: []Column{
			{Name: "id", Type: types.Int4},
			{Name: "v", Type: types.String, Nullable: true},
		},
		Policy: MakeHashPolicy(3, 1),
	}
}

func TestValidate(t *testing.T) {
	tab := makeTestTable(100, "t")
	require.NoError(t, tab.Validate())
	require.Equal(t, ColumnID(2), tab.Columns[1].ID)
	require.Equal(t, "hash(1)", tab.Policy.String())
	require.True(t, tab.Policy.KeySet().Contains(1))

	dup := makeTestTable(101, "d")
	dup.Columns[1].Name = "id"
	err := dup.Validate()
	require.EqualError(t, err, `column "id" specified more than once`)
	require.Equal(t, pgcode.DuplicateColumn, pgerror.GetPGCode(err))

	badKey := makeTestTable(102, "k")
	badKey.Policy.KeyColumns = []ColumnID{3}
	require.Error(t, badKey.Validate())

	_, err = tab.ColumnByName("nope")
	require.EqualError(t, err, `column "nope" of relation "t" does not exist`)
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	seq := NewSequenceDefault("s", 10)
	a, err := seq.Eval(ctx)
	require.NoError(t, err)
	b, err := seq.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, "10", a.String())
	require.Equal(t, "11", b.String())
	require.True(t, seq.Volatile())
	require.False(t, ConstDefault{Datum: tree.NewDInt(1)}.Volatile())

	tab := makeTestTable(100, "t")
	require.False(t, tab.VolatileDefaults())
	tab.Columns[1].Default = seq
	require.True(t, tab.VolatileDefaults())
}

func TestRouteRow(t *testing.T) {
	low, high := makeTestTable(201, "p_low"), makeTestTable(202, "p_high")
	parent := makeTestTable(200, "p")
	parent.Partitioning = &Partitioning{
		KeyColumn: 1,
		Partitions: []Partition{
			{Upper: tree.NewDInt(100), Table: low},
			{Lower: tree.NewDInt(100), Upper: tree.NewDInt(200), Table: high},
		},
	}
	require.NoError(t, parent.Validate())
	require.Len(t, parent.Leaves(), 2)

	leaf, err := parent.RouteRow(tree.Datums{tree.NewDInt(5), tree.DNull})
	require.NoError(t, err)
	require.Equal(t, low, leaf)
	leaf, err = parent.RouteRow(tree.Datums{tree.NewDInt(100), tree.DNull})
	require.NoError(t, err)
	require.Equal(t, high, leaf)

	_, err = parent.RouteRow(tree.Datums{tree.NewDInt(200), tree.DNull})
	require.EqualError(t, err, `no partition of relation "p" found for row`)
	require.Equal(t, pgcode.CheckViolation, pgerror.GetPGCode(err))

	_, err = parent.RouteRow(tree.Datums{tree.DNull, tree.DNull})
	require.Error(t, err)

	got, ok := parent.LeafByID(oidOf(202))
	require.True(t, ok)
	require.Equal(t, high, got)
}
