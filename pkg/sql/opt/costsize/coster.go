// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package costsize estimates the cost and output size of candidate plan
// paths.
//
// Costs are in arbitrary units where fetching one page sequentially costs
// sql.opt.cost.seq_page_cost. Every path is costed for one segment: scans
// read the per-segment projection of their relation (see ProjectPerSegment)
// and joins divide the row counts of partitioned outputs by the segment
// count. The formulas themselves are those of a single node.
//
// Each cost function fills in the CostEstimate of the path it is given and
// modifies nothing else: statistics, parameter infos and input paths are
// only read. Costs are never negative or infinite, and startup cost never
// exceeds total cost, as long as the statistics they are computed from are
// finite.
package costsize

import (
	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/sql/opt/selectivity"
)

// Coster costs paths under a fixed set of parameters. It holds no mutable
// state and can be used concurrently.
type Coster struct {
	p   *Params
	est selectivity.Estimator

	// totalTablePages is the per-segment size of all tables of the query,
	// which share the page cache.
	totalTablePages float64
}

// NewCoster returns a Coster. A nil estimator uses selectivity.Default
// without statistics.
func NewCoster(p *Params, est selectivity.Estimator) *Coster {
	if p == nil {
		p = DefaultParams()
	}
	if est == nil {
		est = &selectivity.Default{}
	}
	return &Coster{p: p, est: est}
}

// Params returns the parameters of c.
func (c *Coster) Params() *Params { return c.p }

// QualEval estimates the cost of evaluating a list of expressions, e.g. the
// clauses of a WHERE condition.
func (c *Coster) QualEval(quals []qual.Expr) QualCost {
	var total QualCost
	for _, q := range quals {
		c.qualEvalWalk(q, &total)
	}
	return total
}

// QualEvalNode estimates the cost of evaluating a single expression.
func (c *Coster) QualEvalNode(e qual.Expr) QualCost {
	var total QualCost
	c.qualEvalWalk(e, &total)
	return total
}

func (c *Coster) restrictCost(ris []*qual.RestrictInfo) QualCost {
	var total QualCost
	for _, ri := range ris {
		c.qualEvalWalk(ri, &total)
	}
	return total
}

func procost(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

func (c *Coster) qualEvalWalk(e qual.Expr, total *QualCost) {
	if e == nil {
		return
	}
	cpuOp := c.p.CPUOperatorCost
	switch t := e.(type) {
	case *qual.RestrictInfo:
		total.Add(t.EvalCost(func() QualCost {
			var sub QualCost
			if t.OrClause != nil {
				c.qualEvalWalk(t.OrClause, &sub)
			} else {
				c.qualEvalWalk(t.Clause, &sub)
			}
			// A pseudoconstant clause is evaluated once, in a gating Result.
			if t.Pseudoconstant {
				sub.Startup += sub.PerTuple
				sub.PerTuple = 0
			}
			return sub
		}))
		return

	case *qual.FuncExpr:
		total.PerTuple += procost(t.ProCost) * cpuOp

	case *qual.OpExpr:
		total.PerTuple += procost(t.ProCost) * cpuOp

	case *qual.ScalarArrayOpExpr:
		// Assume that half of the elements are compared on average.
		total.PerTuple += procost(t.ProCost) * cpuOp * float64(qual.ArrayLength(t.Array)) * 0.5

	case *qual.CoerceViaIO:
		total.PerTuple += (procost(t.InputProCost) + procost(t.OutputProCost)) * cpuOp

	case *qual.Aggref:
		// Charged by the aggregation node.
		return

	case *qual.CurrentOf:
		// Only a TID scan can evaluate CURRENT OF, and it takes the cost
		// back out.
		total.Startup += DisableCost

	case *qual.SubPlan:
		// The test expression is part of the sub-plan's cost.
		total.Startup += t.StartupCost
		total.PerTuple += t.PerCallCost
		return
	}
	for _, child := range e.Children() {
		c.qualEvalWalk(child, total)
	}
}

// SubPlan fills in the startup and per-call costs of a planned sub-select.
func (c *Coster) SubPlan(sp *qual.SubPlan) {
	var cost QualCost
	if sp.TestExpr != nil {
		cost = c.QualEvalNode(sp.TestExpr)
	}
	plan := sp.Plan
	if sp.UseHashTable {
		// The sub-select runs once to load the hash table.
		cost.Startup += plan.TotalCost + c.p.CPUOperatorCost*plan.Rows
	} else {
		runCost := plan.TotalCost - plan.StartupCost
		switch sp.LinkType {
		case qual.ExistsSubLink:
			// Stops at the first row.
			cost.PerTuple += runCost / clampRowEstimate(plan.Rows)
		case qual.AnySubLink, qual.AllSubLink:
			// Half of the rows are read on average.
			cost.PerTuple += 0.5 * runCost
			cost.PerTuple += 0.5 * plan.Rows * c.p.CPUOperatorCost
		default:
			cost.PerTuple += runCost
		}
		// An uncorrelated sub-select with a materializing top node is
		// started once and rescanned cheaply.
		if !sp.Correlated && plan.MaterializesOutput {
			cost.Startup += plan.StartupCost
		} else {
			cost.PerTuple += plan.StartupCost
		}
	}
	sp.StartupCost = cost.Startup
	sp.PerCallCost = cost.PerTuple
}

// restrictionQualCost is the cost of the clauses a scan of rel checks: the
// restrictions of rel plus, for a parameterized scan, the join clauses it
// enforces.
func (c *Coster) restrictionQualCost(rel *RelationStats, param *ParamInfo) QualCost {
	if param == nil {
		return rel.BaseRestrictCost
	}
	cost := c.restrictCost(param.Clauses)
	cost.Add(rel.BaseRestrictCost)
	return cost
}

// scanRows is the per-segment output row estimate of a scan.
func scanRows(proj PerSegmentProjection, param *ParamInfo) float64 {
	if param != nil {
		return param.projectedRows(proj.NumSegments)
	}
	return clampRowEstimate(proj.Rows)
}

// parallelize divides the CPU cost and row estimate of a parallel path
// among its processes.
func (c *Coster) parallelize(workers int, cpuRunCost, rows *float64) {
	if workers <= 0 {
		return
	}
	divisor := c.p.ParallelDivisor(workers)
	*cpuRunCost /= divisor
	*rows = clampRowEstimate(*rows / divisor)
}
