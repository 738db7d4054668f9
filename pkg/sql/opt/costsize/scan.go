// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import "github.com/mppdb/mppdb/pkg/sql/opt/qual"

// SeqScan costs a sequential scan of path.Rel.
func (c *Coster) SeqScan(path *Path) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	var startup float64
	if !c.p.Enable.SeqScan {
		startup += DisableCost
	}
	spcSeq, _ := c.p.pageCosts(proj.Tablespace)
	diskRun := spcSeq * proj.Pages

	qp := c.restrictionQualCost(rel, path.Param)
	startup += qp.Startup
	cpuRun := (c.p.CPUTupleCost + qp.PerTuple) * proj.Tuples

	startup += path.Target.Cost.Startup
	cpuRun += path.Target.Cost.PerTuple * rows

	// Only the CPU cost is shared by the workers; the disk is not faster
	// for being read by more processes.
	c.parallelize(path.ParallelWorkers, &cpuRun, &rows)

	path.CostEstimate = CostEstimate{
		StartupCost: startup,
		TotalCost:   startup + cpuRun + diskRun,
		Rows:        rows,
	}
}

// SampleScan costs a TABLESAMPLE scan. The relation's pages and tuples are
// those the sampling method visits. randomAccess is set for methods that
// pick the blocks they read rather than reading all of them in order.
func (c *Coster) SampleScan(path *Path, randomAccess bool) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	spcSeq, spcRandom := c.p.pageCosts(proj.Tablespace)
	pageCost := spcSeq
	if randomAccess {
		pageCost = spcRandom
	}
	run := pageCost * proj.Pages

	qp := c.restrictionQualCost(rel, path.Param)
	startup := qp.Startup
	run += (c.p.CPUTupleCost + qp.PerTuple) * proj.Tuples

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// Gather costs collecting the output of the workers of sub. rows, when
// positive, overrides the row estimate of the relation.
func (c *Coster) Gather(path *Path, sub *Path, rows float64) {
	if rows <= 0 {
		if path.Param != nil {
			rows = path.Param.Rows
		} else {
			rows = path.Rel.Rows
		}
	}
	rows = clampRowEstimate(rows)
	startup := sub.StartupCost + c.p.ParallelSetupCost
	run := sub.TotalCost - sub.StartupCost
	run += c.p.ParallelTupleCost * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// GatherMerge costs collecting the sorted output of the workers of a path
// while preserving its order. inputStartup and inputTotal are the costs of
// the workers' plan, including any sort.
func (c *Coster) GatherMerge(path *Path, inputStartup, inputTotal, rows float64) {
	if rows <= 0 {
		if path.Param != nil {
			rows = path.Param.Rows
		} else {
			rows = path.Rel.Rows
		}
	}
	rows = clampRowEstimate(rows)
	var startup, run float64
	if !c.p.Enable.GatherMerge {
		startup += DisableCost
	}

	// The leader merges one stream per worker plus its own, with a binary
	// heap of that many entries.
	n := float64(path.ParallelWorkers) + 1
	logN := log2(n)
	comparisonCost := 2.0 * c.p.CPUOperatorCost

	startup += comparisonCost * n * logN
	run += rows * comparisonCost * logN
	run += c.p.CPUOperatorCost * rows

	// Waiting for workers to fill their queues makes a gather merge slower
	// per row than a plain gather.
	startup += c.p.ParallelSetupCost
	run += c.p.ParallelTupleCost * rows * 1.05

	path.CostEstimate = CostEstimate{
		StartupCost: startup + inputStartup,
		TotalCost:   startup + run + inputTotal,
		Rows:        rows,
	}
}

// TidScan costs fetching rows by their physical location. tidQuals are the
// clauses that supply the locations.
func (c *Coster) TidScan(path *Path, tidQuals []qual.Expr) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	var ntuples float64
	isCurrentOf := false
	for _, q := range tidQuals {
		if ri, ok := q.(*qual.RestrictInfo); ok {
			q = ri.Clause
		}
		switch t := q.(type) {
		case *qual.ScalarArrayOpExpr:
			ntuples += float64(qual.ArrayLength(t.Array))
		case *qual.CurrentOf:
			isCurrentOf = true
			ntuples++
		default:
			ntuples++
		}
	}

	qp := c.restrictionQualCost(rel, path.Param)

	var startup float64
	if isCurrentOf {
		// The restriction cost of CURRENT OF includes DisableCost so that
		// no other scan is chosen; take it back out here.
		if qp.Startup >= DisableCost {
			startup -= DisableCost
		}
	} else if !c.p.Enable.TidScan {
		startup += DisableCost
	}

	tidQualCost := c.QualEval(tidQuals)
	_, spcRandom := c.p.pageCosts(proj.Tablespace)
	run := spcRandom * ntuples

	// The TID quals are applied by the scan itself rather than checked on
	// each fetched row.
	startup += qp.Startup + tidQualCost.PerTuple
	cpuPerTuple := c.p.CPUTupleCost + qp.PerTuple - tidQualCost.PerTuple
	if cpuPerTuple < 0 {
		cpuPerTuple = 0
	}
	run += cpuPerTuple * ntuples

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// SubqueryScan costs scanning the output of sub, a planned sub-select.
func (c *Coster) SubqueryScan(path *Path, sub *Path) {
	rel := path.Rel
	ns := path.Locus.segments()
	rows := rel.Rows
	if path.Param != nil {
		rows = path.Param.Rows
	}
	rows = clampRowEstimate(rows / ns)

	qp := c.restrictionQualCost(rel, path.Param)
	startup := qp.Startup
	run := (c.p.CPUTupleCost + qp.PerTuple) * clampRowEstimate(rel.Tuples/ns)

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{
		StartupCost: sub.StartupCost + startup,
		TotalCost:   sub.TotalCost + startup + run,
		Rows:        rows,
	}
}

// FunctionScan costs scanning the output of set-returning functions. The
// functions run to completion before the first row is returned.
func (c *Coster) FunctionScan(path *Path, funcs []qual.Expr) {
	rel := path.Rel
	rows := rel.Rows
	if path.Param != nil {
		rows = path.Param.Rows
	}
	rows = clampRowEstimate(rows)

	exprCost := c.QualEval(funcs)
	startup := exprCost.Startup + exprCost.PerTuple

	qp := c.restrictionQualCost(rel, path.Param)
	startup += qp.Startup
	run := (c.p.CPUTupleCost + qp.PerTuple) * clampRowEstimate(rel.Tuples)

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// TableFunctionScan costs a function that consumes the output of sub.
func (c *Coster) TableFunctionScan(path *Path, sub *Path) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	qp := c.restrictionQualCost(rel, path.Param)
	startup := qp.Startup
	run := (c.p.CPUTupleCost + qp.PerTuple) * proj.Tuples

	path.CostEstimate = CostEstimate{
		StartupCost: sub.StartupCost + startup,
		TotalCost:   sub.TotalCost + startup + run,
		Rows:        rows,
	}
}

// ValuesScan costs scanning a VALUES list.
func (c *Coster) ValuesScan(path *Path) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	// One operator evaluation per row, for the VALUES expressions.
	qp := c.restrictionQualCost(rel, path.Param)
	startup := qp.Startup
	cpuPerTuple := c.p.CPUOperatorCost + c.p.CPUTupleCost + qp.PerTuple
	run := cpuPerTuple * proj.Tuples

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// CTEScan costs reading the stored output of a WITH query. The query itself
// is costed elsewhere.
func (c *Coster) CTEScan(path *Path) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	// Reading from the tuplestore costs as much as producing a row.
	qp := c.restrictionQualCost(rel, path.Param)
	startup := qp.Startup
	cpuPerTuple := c.p.CPUTupleCost + c.p.CPUTupleCost + qp.PerTuple
	run := cpuPerTuple * proj.Tuples

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// ResultScan costs a relation without input, e.g. SELECT without FROM.
func (c *Coster) ResultScan(path *Path) {
	rel := path.Rel
	rows := rel.Rows
	if path.Param != nil {
		rows = path.Param.Rows
	}
	rows = clampRowEstimate(rows)
	qp := c.restrictionQualCost(rel, path.Param)
	startup := qp.Startup
	run := (c.p.CPUTupleCost + qp.PerTuple) * clampRowEstimate(rel.Tuples)

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// RecursiveUnion costs WITH RECURSIVE: the non-recursive term once and the
// recursive term for an assumed ten iterations.
func (c *Coster) RecursiveUnion(path *Path, nonRecursive, recursive *Path) {
	startup := nonRecursive.StartupCost
	total := nonRecursive.TotalCost + 10*recursive.TotalCost
	rows := nonRecursive.Rows + 10*recursive.Rows

	// Each row is also stored in the work table.
	total += c.p.CPUTupleCost * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: total, Rows: rows}
	path.Target.Width = nonRecursive.Target.Width
	if recursive.Target.Width > path.Target.Width {
		path.Target.Width = recursive.Target.Width
	}
}

// ShareInputScan costs reading the shared output of a plan fragment that
// several parts of a plan consume. shareCost is the cost of producing the
// output once.
func (c *Coster) ShareInputScan(path *Path, shareCost, tuples float64, width int) {
	cost := shareCost
	pages := pageSize(tuples, width)
	if relationByteSize(tuples, width) > c.p.globalWorkMem() {
		// Spilled: every consumer reads it back from disk.
		cost += c.p.SeqPageCost * pages
	} else {
		cost += c.p.SeqPageCost * pages * 0.2
	}
	cost += c.p.CPUTupleCost * tuples * 0.1

	path.CostEstimate = CostEstimate{StartupCost: cost, TotalCost: cost, Rows: tuples}
}
