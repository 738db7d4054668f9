// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowflow

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func makeTable(policy catalog.DistributionPolicy) *catalog.TableDescriptor {
	tab := &catalog.TableDescriptor{
		ID:   oid.Oid(100),
		Name: "t",
		Columns: []catalog.Column{
			{Name: "a", Type: types.Int4},
			{Name: "b", Type: types.String, Nullable: true},
			{Name: "c", Type: types.Float, Nullable: true},
		},
		Policy: policy,
	}
	if err := tab.Validate(); err != nil {
		panic(err)
	}
	return tab
}

func TestHashRouter(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	tab := makeTable(catalog.MakeHashPolicy(3, 1, 2))
	r, err := MakeRouter(ctx, nil, tab, Seed{})
	require.NoError(t, err)
	require.Equal(t, 3, r.NumSegments())
	require.Equal(t, []catalog.ColumnID{1, 2}, r.KeyColumns())

	t.Run("deterministic", func(t *testing.T) {
		other, err := MakeRouter(ctx, nil, tab, MakeRandomSeed())
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			row := tree.Datums{tree.NewDInt(tree.DInt(i)), tree.NewDString(fmt.Sprint("k", i)), tree.DNull}
			d1, err := r.Route(row)
			require.NoError(t, err)
			d2, err := other.Route(row)
			require.NoError(t, err)
			require.Equal(t, d1, d2)
			require.False(t, d1.Broadcast)
			require.True(t, d1.Segment >= 0 && d1.Segment < 3)
		}
	})

	t.Run("non-key columns", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			key := tree.Datums{tree.NewDInt(tree.DInt(i)), tree.NewDString("x")}
			d1, err := r.Route(append(key[:2:2], tree.DNull))
			require.NoError(t, err)
			d2, err := r.Route(append(key[:2:2], tree.NewDFloat(tree.DFloat(i))))
			require.NoError(t, err)
			require.Equal(t, d1, d2)
		}
	})

	t.Run("width independent", func(t *testing.T) {
		var b4, b8 []byte
		b4, err := AppendHashKey(b4, types.Int2, tree.NewDInt(7))
		require.NoError(t, err)
		b8, err = AppendHashKey(b8, types.Int, tree.NewDInt(7))
		require.NoError(t, err)
		require.Equal(t, b4, b8)

		negZero, err := AppendHashKey(nil, types.Float, tree.NewDFloat(tree.DFloat(math.Copysign(0, -1))))
		require.NoError(t, err)
		zero, err := AppendHashKey(nil, types.Float, tree.NewDFloat(0))
		require.NoError(t, err)
		require.Equal(t, zero, negZero)

		d1, err := tree.ParseDDecimal("1.50")
		require.NoError(t, err)
		d2, err := tree.ParseDDecimal("1.5")
		require.NoError(t, err)
		k1, err := AppendHashKey(nil, types.Decimal, d1)
		require.NoError(t, err)
		k2, err := AppendHashKey(nil, types.Decimal, d2)
		require.NoError(t, err)
		require.Equal(t, k1, k2)
	})

	t.Run("null", func(t *testing.T) {
		n, err := AppendHashKey(nil, types.String, tree.DNull)
		require.NoError(t, err)
		empty, err := AppendHashKey(nil, types.String, tree.NewDString(""))
		require.NoError(t, err)
		require.NotEqual(t, n, empty)

		d, err := r.Route(tree.Datums{tree.DNull, tree.DNull, tree.DNull})
		require.NoError(t, err)
		require.True(t, d.Segment >= 0 && d.Segment < 3)
	})

	t.Run("distribution", func(t *testing.T) {
		var counts [3]int
		const n = 30000
		for i := 0; i < n; i++ {
			d, err := r.Route(tree.Datums{tree.NewDInt(tree.DInt(i)), tree.DNull, tree.DNull})
			require.NoError(t, err)
			counts[d.Segment]++
		}
		for _, c := range counts {
			require.InDelta(t, n/3, c, n/30, "%v", counts)
		}
	})
}

func TestReduce(t *testing.T) {
	defer leaktest.AfterTest(t)()
	rng := rand.New(rand.NewSource(42))

	for _, m := range []ReductionMethod{ReduceJump, ReduceModulo} {
		t.Run(m.String(), func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				h := rng.Uint64()
				require.Equal(t, 0, m.Reduce(h, 1))
				for n := 2; n < 10; n++ {
					s := m.Reduce(h, n)
					require.True(t, s >= 0 && s < n)
				}
			}
		})
	}

	// Growing the cluster by one segment only moves rows onto the new one.
	for i := 0; i < 1000; i++ {
		h := rng.Uint64()
		for n := 1; n < 16; n++ {
			before, after := ReduceJump.Reduce(h, n), ReduceJump.Reduce(h, n+1)
			if before != after {
				require.Equal(t, n, after)
			}
		}
	}
}

func TestReductionSetting(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	sv := settings.MakeValues()
	ReductionSetting.Override(ctx, sv, int64(ReduceModulo))

	tab := makeTable(catalog.MakeHashPolicy(4, 1))
	r, err := MakeRouter(ctx, sv, tab, Seed{})
	require.NoError(t, err)
	require.Equal(t, ReduceModulo, r.(*hashRouter).reduction)
}

func TestRandomAndMirrorRouters(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	row := tree.Datums{tree.NewDInt(1), tree.DNull, tree.DNull}

	t.Run("replicated", func(t *testing.T) {
		tab := makeTable(catalog.DistributionPolicy{Kind: catalog.PolicyReplicated, NumSegments: 3})
		r, err := MakeRouter(ctx, nil, tab, Seed{})
		require.NoError(t, err)
		d, err := r.Route(row)
		require.NoError(t, err)
		require.True(t, d.Broadcast)
	})

	t.Run("random", func(t *testing.T) {
		tab := makeTable(catalog.DistributionPolicy{Kind: catalog.PolicyRandom, NumSegments: 3})
		seed := Seed{K0: 1, K1: 2}
		route := func() []int {
			r, err := MakeRouter(ctx, nil, tab, seed)
			require.NoError(t, err)
			var out []int
			for i := 0; i < 300; i++ {
				d, err := r.Route(row)
				require.NoError(t, err)
				out = append(out, d.Segment)
			}
			return out
		}
		first := route()
		require.Equal(t, first, route())
		seen := map[int]bool{}
		for _, s := range first {
			seen[s] = true
		}
		require.Len(t, seen, 3)
	})

	t.Run("entry", func(t *testing.T) {
		tab := makeTable(catalog.DistributionPolicy{Kind: catalog.PolicyEntry, NumSegments: 1})
		_, err := MakeRouter(ctx, nil, tab, Seed{})
		require.EqualError(t, err, "relation t with entry policy cannot be routed")
	})
}
