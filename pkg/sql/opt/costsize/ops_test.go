// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"math"
	"testing"

	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func smallMemParams() *Params {
	p := DefaultParams()
	p.WorkMem = 64 << 10
	p.SegmentCount = 1
	return p
}

func TestSort(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)

	est := c.Sort(100, 1000, 32, 0, -1)
	require.InDelta(t, 100+0.005*1000*math.Log2(1000), est.StartupCost, 1e-9)
	require.InDelta(t, est.StartupCost+2.5, est.TotalCost, 1e-9)
	require.Equal(t, 1000.0, est.Rows)

	// Fewer than two rows are still compared once.
	require.Equal(t, 0.0, c.Sort(0, 0, 32, 0, -1).Rows)
	require.Greater(t, c.Sort(0, 0, 32, 0, -1).TotalCost, 0.0)

	inMemory := c.Sort(0, 1e5, 100, 0, -1)
	spilled := NewCoster(smallMemParams(), nil).Sort(0, 1e5, 100, 0, -1)
	require.Greater(t, spilled.StartupCost, inMemory.StartupCost)

	bounded := c.Sort(0, 1e5, 100, 0, 10)
	require.Less(t, bounded.StartupCost, inMemory.StartupCost)
	require.Equal(t, inMemory.Rows, bounded.Rows)

	params := DefaultParams()
	params.Enable.Sort = false
	require.GreaterOrEqual(t, NewCoster(params, nil).Sort(0, 10, 8, 0, -1).StartupCost, DisableCost)
}

func TestMergeOrder(t *testing.T) {
	defer leaktest.AfterTest(t)()
	require.Equal(t, float64(minMergeOrder), mergeOrder(64<<10))
	require.Equal(t, 124.0, mergeOrder(32<<20))
	require.Equal(t, float64(maxMergeOrder), mergeOrder(1<<30))
}

func TestAppend(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)
	rel := makeRel(1, 150, 10, 1)

	sub := func(startup, total, rows float64, keys ...string) *Path {
		p := makePath(SeqScanPath, rel)
		p.Pathkeys = keys
		p.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: total, Rows: rows}
		return p
	}

	plain := &AppendNode{Path: *makePath(AppendPath, rel)}
	plain.Subpaths = []*Path{sub(1, 10, 100), sub(5, 20, 50)}
	c.Append(plain)
	require.Equal(t, 1.0, plain.StartupCost)
	require.InDelta(t, 30+0.01*0.5*150, plain.TotalCost, 1e-9)
	require.Equal(t, 150.0, plain.Rows)

	ordered := &AppendNode{Path: *makePath(AppendPath, rel)}
	ordered.Pathkeys = []string{"a"}
	ordered.Subpaths = []*Path{sub(1, 10, 100, "a"), sub(5, 20, 50)}
	c.Append(ordered)
	require.Greater(t, ordered.TotalCost, plain.TotalCost)
	require.Greater(t, ordered.StartupCost, plain.StartupCost)

	empty := &AppendNode{Path: *makePath(AppendPath, rel)}
	c.Append(empty)
	require.Equal(t, CostEstimate{}, empty.CostEstimate)

	parallel := &AppendNode{Path: *makePath(AppendPath, rel), FirstPartial: 2}
	parallel.ParallelWorkers = 2
	parallel.Subpaths = []*Path{sub(1, 10, 100), sub(2, 8, 80), sub(0, 4, 40)}
	c.Append(parallel)
	requireSane(t, "parallel-append", parallel.CostEstimate)
	require.Equal(t, 1.0, parallel.StartupCost)
}

func TestAppendNonpartialCost(t *testing.T) {
	defer leaktest.AfterTest(t)()
	paths := func(costs ...float64) []*Path {
		var out []*Path
		for _, c := range costs {
			out = append(out, &Path{CostEstimate: CostEstimate{TotalCost: c}})
		}
		return out
	}
	testCases := []struct {
		costs    []float64
		numPaths int
		workers  int
		exp      float64
	}{
		{[]float64{10, 8, 5, 3}, 4, 2, 13},
		{[]float64{10, 8, 5, 3}, 4, 8, 10},
		{[]float64{10, 8, 5, 3}, 2, 1, 18},
		{[]float64{10, 8, 5, 3}, 4, 0, 26},
		{[]float64{10}, 0, 2, 0},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.exp, appendNonpartialCost(paths(tc.costs...), tc.numPaths, tc.workers), "%+v", tc)
	}
}

func TestMergeAppend(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)
	est := c.MergeAppend(4, 1, 10, 100)
	require.InDelta(t, 0.04+1, est.StartupCost, 1e-9)
	require.InDelta(t, 0.04+1.5+10, est.TotalCost, 1e-9)
	require.Equal(t, 100.0, est.Rows)
}

func TestMaterial(t *testing.T) {
	defer leaktest.AfterTest(t)()
	est := NewCoster(nil, nil).Material(1, 11, 1000, 32)
	require.Equal(t, 1.0, est.StartupCost)
	require.InDelta(t, 16, est.TotalCost, 1e-9)

	spilled := NewCoster(smallMemParams(), nil).Material(0, 0, 1e5, 32)
	require.InDelta(t, 500+684, spilled.TotalCost, 1e-9)
}

func TestAgg(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)
	costs := &AggCosts{NumAggs: 1, TransCost: QualCost{PerTuple: 0.0025}}

	plain := c.Agg(AggPlain, costs, 0, 1, nil, 0, 100, 1000, 32)
	require.InDelta(t, 102.5, plain.StartupCost, 1e-9)
	require.InDelta(t, 102.51, plain.TotalCost, 1e-9)
	require.Equal(t, 1.0, plain.Rows)

	// Without spilling, sorted and hashed aggregation do the same work; the
	// hashed one returns nothing until it has read all input.
	sorted := c.Agg(AggSorted, costs, 2, 100, nil, 10, 100, 1000, 32)
	hashed := c.Agg(AggHashed, costs, 2, 100, nil, 10, 100, 1000, 32)
	require.Equal(t, sorted.TotalCost, hashed.TotalCost)
	require.Greater(t, hashed.StartupCost, sorted.StartupCost)
	require.Equal(t, 100.0, hashed.Rows)

	fits := c.Agg(AggHashed, nil, 1, 1e5, nil, 0, 1000, 1e6, 100)
	spills := NewCoster(smallMemParams(), nil).Agg(AggHashed, nil, 1, 1e5, nil, 0, 1000, 1e6, 100)
	require.Greater(t, spills.StartupCost, fits.StartupCost)
	require.Greater(t, spills.TotalCost, fits.TotalCost)

	having := []*qual.RestrictInfo{qual.NewRestrictInfo(&qual.NullTest{Arg: col(1, 1)})}
	filtered := c.Agg(AggSorted, costs, 1, 1000, having, 0, 100, 1e4, 32)
	require.Equal(t, 5.0, filtered.Rows)

	params := DefaultParams()
	params.Enable.HashAgg = false
	disabled := NewCoster(params, nil).Agg(AggHashed, costs, 1, 10, nil, 0, 100, 1000, 32)
	require.GreaterOrEqual(t, disabled.StartupCost, DisableCost)
}

func TestHashAggLimits(t *testing.T) {
	defer leaktest.AfterTest(t)()

	require.Equal(t, 24.0+16+16+40+16+16, hashAggEntrySize(1, 40, 0))
	require.Equal(t, 24.0+16+16+40+16+100, hashAggEntrySize(0, 40, 100))

	// Everything fits: no partitions.
	memLimit, ngroups, parts := hashAggLimits(1<<20, 100, 100)
	require.Equal(t, 0.0, parts)
	require.Equal(t, float64(1<<20-BlockSize), memLimit)
	require.Equal(t, math.Floor(memLimit/100), ngroups)

	// Spilling partitions are a power of two within bounds.
	_, _, parts = hashAggLimits(1<<20, 100, 1e7)
	require.GreaterOrEqual(t, parts, float64(hashAggMinPartitions))
	require.LessOrEqual(t, parts, float64(hashAggMaxPartitions))
	require.Equal(t, parts, math.Exp2(math.Round(math.Log2(parts))))
}

func TestTupleSplitWindowGroup(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)

	split := c.TupleSplit(3, 1, 10, 100)
	require.Equal(t, 10.0, split.StartupCost)
	require.InDelta(t, 10.25, split.TotalCost, 1e-9)
	require.Equal(t, 300.0, split.Rows)

	win := c.WindowAgg([]WindowFunc{{Func: &qual.FuncExpr{Name: "rank"}}}, 1, 1, 0, 10, 100)
	require.InDelta(t, 11.75, win.TotalCost, 1e-9)
	require.Equal(t, 100.0, win.Rows)

	filtered := c.WindowAgg([]WindowFunc{{
		Func:   &qual.FuncExpr{Name: "count"},
		Filter: eq(col(1, 1), intConst(1)),
	}}, 1, 1, 0, 10, 100)
	require.Greater(t, filtered.TotalCost, win.TotalCost)

	group := c.Group(2, 10, nil, 1, 11, 100)
	require.Equal(t, 1.0, group.StartupCost)
	require.InDelta(t, 11.5, group.TotalCost, 1e-9)
	require.Equal(t, 10.0, group.Rows)
}

func TestRescan(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)
	path := func(kind PathKind, batches int) *Path {
		p := makePath(kind, makeRel(1, 1000, 10, 1))
		p.NumBatches = batches
		p.CostEstimate = CostEstimate{StartupCost: 5, TotalCost: 25, Rows: 1000}
		return p
	}
	testCases := []struct {
		kind           PathKind
		batches        int
		startup, total float64
	}{
		{SeqScanPath, 0, 5, 25},
		{FunctionScanPath, 0, 0, 20},
		{HashJoinPath, 1, 0, 20},
		{HashJoinPath, 4, 5, 25},
		{CTEScanPath, 0, 0, 10},
		{MaterialPath, 0, 0, 2.5},
		{SortPath, 0, 0, 2.5},
	}
	for _, tc := range testCases {
		startup, total := c.Rescan(path(tc.kind, tc.batches))
		require.Equal(t, tc.startup, startup, "%+v", tc)
		require.InDelta(t, tc.total, total, 1e-9, "%+v", tc)
	}

	// Stored rows that did not fit in memory are read back from disk.
	p := makePath(MaterialPath, makeRel(1, 1e5, 10, 1))
	p.Rows = 1e5
	_, total := NewCoster(smallMemParams(), nil).Rescan(p)
	require.InDelta(t, 250+684, total, 1e-9)
}

func TestShareInputScan(t *testing.T) {
	defer leaktest.AfterTest(t)()
	c := NewCoster(nil, nil)
	p := makePath(ShareInputScanPath, makeRel(1, 1000, 10, 1))

	c.ShareInputScan(p, 100, 1000, 32)
	inMemory := p.TotalCost
	require.Equal(t, p.StartupCost, p.TotalCost)

	NewCoster(smallMemParams(), nil).ShareInputScan(p, 100, 1e5, 32)
	require.Greater(t, p.TotalCost, inMemory)
}
