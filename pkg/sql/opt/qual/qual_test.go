// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package qual

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func col(rel, c int) *Var { return &Var{Rel: rel, Col: catalog.ColumnID(c)} }

func TestString(t *testing.T) {
	defer leaktest.AfterTest(t)()
	e := &BoolExpr{Op: Or, Args: []Expr{
		&OpExpr{Op: "=", Args: []Expr{col(1, 2), &Const{Datum: tree.NewDInt(3)}}},
		&NullTest{Arg: col(2, 1), Not: true},
		&ScalarArrayOpExpr{Op: "=", UseOr: true, Scalar: col(1, 1), Array: &ArrayExpr{
			Elems: []Expr{&Param{ID: 1}, &Param{ID: 2}},
		}},
	}}
	require.Equal(t, "(($1.2 = 3) OR $2.1 IS NOT NULL OR $1.1 = ANY(ARRAY[@1, @2]))", e.String())
	require.Equal(t, "NOT f($1.1)", (&BoolExpr{Op: Not, Args: []Expr{
		&FuncExpr{Name: "f", Args: []Expr{col(1, 1)}},
	}}).String())
}

func TestWalkAndRels(t *testing.T) {
	defer leaktest.AfterTest(t)()
	e := &OpExpr{Op: "=", Args: []Expr{
		&FuncExpr{Name: "lower", Args: []Expr{col(3, 1)}},
		&CoerceViaIO{Arg: col(1, 4)},
	}}
	rels := Rels(e)
	require.Equal(t, []int{1, 3}, rels.Ordered())

	var n int
	Walk(e, func(Expr) bool { n++; return true })
	require.Equal(t, 5, n)

	// Returning false prunes the subtree.
	n = 0
	Walk(e, func(e Expr) bool {
		n++
		_, isFunc := e.(*FuncExpr)
		return !isFunc
	})
	require.Equal(t, 4, n)

	require.Equal(t, 2, ArrayLength(&ArrayExpr{Elems: []Expr{col(1, 1), col(1, 2)}}))
	require.Equal(t, 10, ArrayLength(&Param{ID: 1}))
}

func TestNewRestrictInfo(t *testing.T) {
	defer leaktest.AfterTest(t)()

	join := NewRestrictInfo(&OpExpr{Op: "=", Args: []Expr{col(1, 1), col(2, 1)}})
	require.Equal(t, []int{1, 2}, join.Relids.Ordered())
	require.Equal(t, []int{1}, join.LeftRelids.Ordered())
	require.Equal(t, []int{2}, join.RightRelids.Ordered())
	require.False(t, join.Pseudoconstant)

	constant := NewRestrictInfo(&Const{Datum: tree.DBoolFalse})
	require.True(t, constant.Pseudoconstant)

	// A parameter changes between executions.
	param := NewRestrictInfo(&OpExpr{Op: "=", Args: []Expr{&Param{ID: 1}, &Const{Datum: tree.NewDInt(1)}}})
	require.False(t, param.Pseudoconstant)

	require.Len(t, Clauses([]*RestrictInfo{join, constant}), 2)
	require.Nil(t, join.Children())
	require.Equal(t, join.Clause.String(), join.String())
}

func TestEvalCostOnce(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ri := NewRestrictInfo(&NullTest{Arg: col(1, 1)})

	var calls int32
	var wg sync.WaitGroup
	results := make([]Cost, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ri.EvalCost(func() Cost {
				n := atomic.AddInt32(&calls, 1)
				return Cost{Startup: float64(n), PerTuple: 0.0025}
			})
		}(i)
	}
	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, c := range results {
		require.Equal(t, Cost{Startup: 1, PerTuple: 0.0025}, c)
	}

	var sum Cost
	sum.Add(results[0])
	sum.Add(Cost{PerTuple: 1})
	require.Equal(t, Cost{Startup: 1, PerTuple: 1.0025}, sum)
}

func TestHashBucketStatsPerSide(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ri := NewRestrictInfo(&OpExpr{Op: "=", Args: []Expr{col(1, 1), col(2, 1)}})

	calls := 0
	left := func() BucketStats { calls++; return BucketStats{MCVFreq: 0.2, BucketSize: 0.01} }
	right := func() BucketStats { calls++; return BucketStats{BucketSize: 0.5} }

	require.Equal(t, BucketStats{MCVFreq: 0.2, BucketSize: 0.01}, ri.HashBucketStats(true, left))
	require.Equal(t, BucketStats{BucketSize: 0.5}, ri.HashBucketStats(false, right))
	// Cached: a different compute function is not called.
	require.Equal(t, BucketStats{MCVFreq: 0.2, BucketSize: 0.01}, ri.HashBucketStats(true, right))
	require.Equal(t, 2, calls)
}
