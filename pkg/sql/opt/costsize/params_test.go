// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func TestParamsFromSettings(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	p := DefaultParams()
	require.Equal(t, 1.0, p.SeqPageCost)
	require.Equal(t, 4.0, p.RandomPageCost)
	require.Equal(t, int64(32<<20), p.WorkMem)
	require.Equal(t, 3, p.SegmentCount)
	require.Equal(t, float64(DefaultEffectiveCacheSize), p.EffectiveCacheSize)
	require.False(t, p.Enable.NestLoop)
	require.False(t, p.Enable.MergeJoin)
	require.True(t, p.Enable.HashJoin)
	require.True(t, p.AdjustOuterJoinSelectivity)

	sv := settings.MakeValues()
	randomPageCost.Override(ctx, sv, 1.5)
	enableNestLoop.Override(ctx, sv, true)
	p = ParamsFromSettings(sv)
	require.Equal(t, 1.5, p.RandomPageCost)
	require.True(t, p.Enable.NestLoop)

	sv = settings.MakeValues()
	require.NoError(t, settings.LoadYAML(ctx, sv, strings.NewReader(`
sql.opt.cost.random_page_cost: 1.1
sql.opt.work_mem: 1MiB
sql.opt.segment_count: 8
sql.opt.enable_mergejoin: true
`)))
	p = ParamsFromSettings(sv)
	require.Equal(t, 1.1, p.RandomPageCost)
	require.Equal(t, int64(1<<20), p.WorkMem)
	require.Equal(t, 8, p.SegmentCount)
	require.True(t, p.Enable.MergeJoin)

	// A bad value leaves every setting alone.
	require.Error(t, settings.LoadYAML(ctx, sv, strings.NewReader(`
sql.opt.segment_count: 4
sql.opt.cost.seq_page_cost: -1
`)))
	require.Equal(t, 8, ParamsFromSettings(sv).SegmentCount)
}

func TestParallelDivisor(t *testing.T) {
	defer leaktest.AfterTest(t)()

	for _, leader := range []bool{false, true} {
		t.Run(fmt.Sprintf("leader=%t", leader), func(t *testing.T) {
			p := DefaultParams()
			p.ParallelLeaderParticipation = leader
			prev := 0.0
			for w := 0; w <= 32; w++ {
				d := p.ParallelDivisor(w)
				require.GreaterOrEqual(t, d, 1.0, "workers=%d", w)
				require.GreaterOrEqual(t, d, prev, "workers=%d", w)
				prev = d
			}
		})
	}

	p := DefaultParams()
	for w, expected := range []float64{1, 1.7, 2.4, 3.1, 4, 5} {
		require.InDelta(t, expected, p.ParallelDivisor(w), 1e-9, "workers=%d", w)
	}
	require.Equal(t, 1.0, p.ParallelDivisor(-1))
}

func TestWorkMem(t *testing.T) {
	defer leaktest.AfterTest(t)()

	p := DefaultParams()
	require.Equal(t, float64(32<<20), p.workMemBytes())
	require.Equal(t, float64(3*32<<20), p.globalWorkMem())

	p.StatementMem = 1 << 20
	require.Equal(t, float64(1<<20), p.workMemBytes())

	p.WorkMem, p.StatementMem = 1024, 0
	require.Equal(t, float64(64<<10), p.workMemBytes())

	p.SegmentCount = 0
	require.Equal(t, float64(64<<10), p.globalWorkMem())
}

func TestTablespacePageCosts(t *testing.T) {
	defer leaktest.AfterTest(t)()

	p := DefaultParams()
	p.Tablespaces = map[string]PageCosts{"fast": {Seq: 0.1, Random: 0.1}}
	c := NewCoster(p, nil)

	seq, random := p.pageCosts("")
	require.Equal(t, []float64{1, 4}, []float64{seq, random})
	seq, random = p.pageCosts("unknown")
	require.Equal(t, []float64{1, 4}, []float64{seq, random})

	slow := makePath(SeqScanPath, makeRel(1, 3000, 300, 3))
	c.SeqScan(slow)
	rel := makeRel(1, 3000, 300, 3)
	rel.Tablespace = "fast"
	fast := makePath(SeqScanPath, rel)
	c.SeqScan(fast)
	require.Less(t, fast.TotalCost, slow.TotalCost)
	require.InDelta(t, slow.TotalCost-90, fast.TotalCost, 1e-9)
}

// TestCosts runs the scenarios of testdata/costs. The settings of a file
// accumulate across its "set" commands.
func TestCosts(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	sv := settings.MakeValues()
	datadriven.RunTest(t, "testdata/costs", func(t *testing.T, d *datadriven.TestData) string {
		c := NewCoster(ParamsFromSettings(sv), nil)
		format := func(est CostEstimate) string {
			return fmt.Sprintf("startup=%.2f total=%.2f rows=%.0f\n", est.StartupCost, est.TotalCost, est.Rows)
		}
		switch d.Cmd {
		case "set":
			if err := settings.LoadYAML(ctx, sv, strings.NewReader(d.Input)); err != nil {
				return fmt.Sprintf("error: %v\n", err)
			}
			return "ok\n"

		case "seqscan":
			var rows, pages, segments int
			d.ScanArgs(t, "rows", &rows)
			d.ScanArgs(t, "pages", &pages)
			d.ScanArgs(t, "segments", &segments)
			p := makePath(SeqScanPath, makeRel(1, float64(rows), uint64(pages), segments))
			c.SeqScan(p)
			return format(p.CostEstimate)

		case "sort":
			var tuples, width int
			limit := -1
			d.ScanArgs(t, "tuples", &tuples)
			d.ScanArgs(t, "width", &width)
			if d.HasArg("limit") {
				d.ScanArgs(t, "limit", &limit)
			}
			return format(c.Sort(0, float64(tuples), width, 0, float64(limit)))

		case "hashtable":
			var tuples, width int
			d.ScanArgs(t, "tuples", &tuples)
			d.ScanArgs(t, "width", &width)
			p := c.Params()
			buckets, batches, skew := chooseHashTableSize(float64(tuples), width, p.HashJoinSkew, p.globalWorkMem())
			return fmt.Sprintf("buckets=%d batches=%d skew_mcvs=%d\n", buckets, batches, skew)
		}
		d.Fatalf(t, "unknown command %s", d.Cmd)
		return ""
	})
}
