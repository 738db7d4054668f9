// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"math"

	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/sql/opt/selectivity"
)

// Join costing is split in two phases for each join method. The initial
// phase is cheap and computes a lower bound on the cost from the input
// costs alone; the planner uses it to discard joins that cannot win. The
// final phase, run only on the survivors, adds the cost of evaluating the
// join clauses and fills in the path's CostEstimate. The initial phase
// returns a workspace that the final phase consumes.

// JoinPath is a join of two input paths. Outer and Inner are costed
// already.
type JoinPath struct {
	Path
	JoinType     selectivity.JoinType
	Outer, Inner *Path
	// JoinRestrict are the clauses the join checks, including the merge or
	// hash clauses.
	JoinRestrict []*qual.RestrictInfo
}

// SemiAntiJoinFactors describe how a semi or anti join finds its matches.
type SemiAntiJoinFactors struct {
	// OuterMatchFrac is the fraction of outer rows that have a match.
	OuterMatchFrac float64
	// MatchCount is the average number of matches of an outer row that
	// has any.
	MatchCount float64
}

// JoinExtra is what join costing needs beyond the paths themselves.
type JoinExtra struct {
	SJInfo      *selectivity.SpecialJoinInfo
	SemiFactors SemiAntiJoinFactors
	// InnerUnique is set when every outer row matches at most one inner
	// row, so that the join can stop scanning the inner side at the first
	// match.
	InnerUnique bool
}

// stopsAtFirstMatch is true when the join can move on to the next outer
// row as soon as one match is found.
func stopsAtFirstMatch(jt selectivity.JoinType, extra *JoinExtra) bool {
	switch jt {
	case selectivity.SemiJoin, selectivity.AntiJoin, selectivity.LeftAntiSemiJoinNotIn:
		return true
	}
	return extra != nil && extra.InnerUnique
}

// joinRows is the per-segment row estimate of a join path.
func (c *Coster) joinRows(path *JoinPath) float64 {
	rows := path.Rel.Rows
	if path.Param != nil {
		rows = path.Param.Rows
	}
	rows /= path.Locus.segments()
	if path.ParallelWorkers > 0 {
		rows /= c.p.ParallelDivisor(path.ParallelWorkers)
	}
	return clampRowEstimate(rows)
}

// joinRels returns the relations on the outer and inner sides of a join.
func joinRels(path *JoinPath) (outer, inner *RelationStats) {
	return path.Outer.Rel, path.Inner.Rel
}

// ApproxTupleCount estimates the number of rows a join produces when only
// quals are checked, as an inner join. Merge and hash joins use it for the
// rows their own clauses let through.
func (c *Coster) ApproxTupleCount(path *JoinPath, quals []*qual.RestrictInfo) float64 {
	outerRel, innerRel := joinRels(path)
	sjinfo := &selectivity.SpecialJoinInfo{
		JoinType:  selectivity.InnerJoin,
		LeftRels:  outerRel.relids(),
		RightRels: innerRel.relids(),
	}
	sel := c.est.Selectivity(qual.Clauses(quals), 0, selectivity.InnerJoin, sjinfo)
	return clampRowEstimate(sel * path.Outer.Rows * path.Inner.Rows)
}

// NestPath is a nested loop join.
type NestPath struct {
	JoinPath
	// InnerIndexClauses are the index conditions of the inner path when it
	// is a parameterized index or bitmap heap scan.
	InnerIndexClauses []*qual.RestrictInfo
}

// NestLoopWorkspace is the result of InitialNestLoop.
type NestLoopWorkspace struct {
	StartupCost float64
	TotalCost   float64
	RunCost     float64
	// InnerRunCost and InnerRescanRunCost are left out of RunCost for
	// joins that stop at the first match; the final phase charges the
	// part of them the matches need.
	InnerRunCost       float64
	InnerRescanRunCost float64
}

// InitialNestLoop is the first phase of nested loop costing. The inner
// path is rescanned once per outer row.
func (c *Coster) InitialNestLoop(
	jt selectivity.JoinType, outer, inner *Path, extra *JoinExtra,
) NestLoopWorkspace {
	outerRows := outer.Rows
	innerRescanStartup, innerRescanTotal := c.Rescan(inner)

	startup := outer.StartupCost + inner.StartupCost
	run := outer.TotalCost - outer.StartupCost
	if outerRows > 1 {
		run += (outerRows - 1) * innerRescanStartup
	}
	innerRun := inner.TotalCost - inner.StartupCost
	innerRescanRun := innerRescanTotal - innerRescanStartup

	ws := NestLoopWorkspace{}
	if stopsAtFirstMatch(jt, extra) {
		ws.InnerRunCost = innerRun
		ws.InnerRescanRunCost = innerRescanRun
	} else {
		run += innerRun
		if outerRows > 1 {
			run += (outerRows - 1) * innerRescanRun
		}
	}
	ws.StartupCost = startup
	ws.RunCost = run
	ws.TotalCost = startup + run
	return ws
}

// FinalNestLoop is the second phase of nested loop costing.
func (c *Coster) FinalNestLoop(path *NestPath, ws NestLoopWorkspace, extra *JoinExtra) {
	outerRows := path.Outer.Rows
	innerRows := clampRowEstimate(path.Inner.Rows)
	startup, run := ws.StartupCost, ws.RunCost
	rows := c.joinRows(&path.JoinPath)

	if !c.p.Enable.NestLoop {
		startup += DisableCost
	}

	var ntuples float64
	if stopsAtFirstMatch(path.JoinType, extra) {
		sf := extra.semiFactors()
		matched := math.RoundToEven(outerRows * sf.OuterMatchFrac)
		unmatched := outerRows - matched
		scanFrac := c.innerScanFrac(sf)

		// Matched outer rows stop scanning the inner side early.
		ntuples = matched * innerRows * scanFrac

		if c.hasIndexedJoinQuals(path) {
			// Unmatched outer rows find out through the index that there
			// is no match, at the cost of an index probe.
			run += ws.InnerRunCost * scanFrac
			if matched > 1 {
				run += (matched - 1) * ws.InnerRescanRunCost * scanFrac
			}
			run += unmatched * ws.InnerRescanRunCost / innerRows
		} else {
			// Unmatched outer rows scan the whole inner side.
			ntuples += unmatched * innerRows
			run += ws.InnerRunCost
			if unmatched >= 1 {
				unmatched--
			} else {
				matched--
			}
			if matched > 0 {
				run += matched * ws.InnerRescanRunCost * scanFrac
			}
			if unmatched > 0 {
				run += unmatched * ws.InnerRescanRunCost
			}
		}
	} else {
		ntuples = outerRows * innerRows
	}

	qp := c.restrictCost(path.JoinRestrict)
	startup += qp.Startup
	run += (c.p.CPUTupleCost + qp.PerTuple) * ntuples

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

func (e *JoinExtra) semiFactors() SemiAntiJoinFactors {
	if e == nil {
		return SemiAntiJoinFactors{OuterMatchFrac: 1, MatchCount: 1}
	}
	return e.SemiFactors
}

// innerScanFrac is the fraction of the inner side a matched outer row
// scans before its first match. With m matches spread evenly the first
// one is 1/(m+1) of the way in; the fuzz factor makes that pessimistic.
func (c *Coster) innerScanFrac(sf SemiAntiJoinFactors) float64 {
	return c.p.SemiJoinMatchFuzzFactor / (math.Max(sf.MatchCount, 0) + 1)
}

// hasIndexedJoinQuals is true when the inner side of a nested loop is an
// index scan whose index conditions enforce every join clause of the
// loop, so that an outer row with no match costs a single index probe.
func (c *Coster) hasIndexedJoinQuals(path *NestPath) bool {
	inner := path.Inner
	if inner.Param == nil || len(path.InnerIndexClauses) == 0 {
		return false
	}
	switch inner.Kind {
	case IndexScanPath, IndexOnlyScanPath, BitmapHeapScanPath:
	default:
		return false
	}
	// Any join clause the join itself has to check means that the index
	// does not decide matches on its own.
	if len(path.JoinRestrict) > 0 {
		return false
	}
	innerRels := inner.Rel.relids()
	found := false
	for _, ri := range inner.Param.Clauses {
		if ri.IsMovableTo(innerRels) {
			// A restriction of the inner relation, not a join clause.
			continue
		}
		if !containsClause(path.InnerIndexClauses, ri) {
			return false
		}
		found = true
	}
	return found
}

func containsClause(ris []*qual.RestrictInfo, ri *qual.RestrictInfo) bool {
	for _, r := range ris {
		if r == ri {
			return true
		}
	}
	return false
}

// MergePath is a merge join.
type MergePath struct {
	JoinPath
	// MergeClauses are the equality clauses the inputs are merged on; the
	// first one decides how much of each input is read.
	MergeClauses []*qual.RestrictInfo
	// OuterSortKeys and InnerSortKeys are the orderings each input is
	// sorted into first, empty when it arrives ordered.
	OuterSortKeys []string
	InnerSortKeys []string

	// MaterializeInner is set by FinalMergeJoin when the inner input
	// should be materialized to support backing up over it.
	MaterializeInner bool
}

// MergeJoinWorkspace is the result of InitialMergeJoin.
type MergeJoinWorkspace struct {
	StartupCost float64
	TotalCost   float64
	RunCost     float64
	// InnerRunCost is the cost of reading the inner input once; the final
	// phase scales it by the rescan ratio.
	InnerRunCost float64
	// OuterRows and InnerRows are the rows of each input read before the
	// merge stops; the skip counts are those read before the first join
	// candidate.
	OuterRows, InnerRows         float64
	OuterSkipRows, InnerSkipRows float64
}

// InitialMergeJoin is the first phase of merge join costing. A merge join
// reads each input only up to the end of the key range the other input
// covers, and skips the part below the start of that range.
func (c *Coster) InitialMergeJoin(
	jt selectivity.JoinType,
	mergeClauses []*qual.RestrictInfo,
	outer, inner *Path,
	outerSortKeys, innerSortKeys []string,
) MergeJoinWorkspace {
	outerPathRows := clampRowEstimate(outer.Rows)
	innerPathRows := clampRowEstimate(inner.Rows)

	ms := selectivity.FullMergeScan
	if len(mergeClauses) > 0 && jt != selectivity.FullJoin {
		first := mergeClauses[0]
		ms = c.est.MergeScanSel(first)
		if !first.LeftRelids.Empty() && !first.LeftRelids.SubsetOf(outer.Rel.relids()) {
			ms = selectivity.MergeScanSel{
				LeftStart: ms.RightStart, LeftEnd: ms.RightEnd,
				RightStart: ms.LeftStart, RightEnd: ms.LeftEnd,
			}
		}
		switch jt {
		case selectivity.LeftJoin, selectivity.AntiJoin, selectivity.LeftAntiSemiJoinNotIn:
			// Every outer row is returned.
			ms.LeftStart, ms.LeftEnd = 0, 1
		case selectivity.RightJoin:
			ms.RightStart, ms.RightEnd = 0, 1
		}
	}
	outerStart, outerEnd := ms.LeftStart, ms.LeftEnd
	innerStart, innerEnd := ms.RightStart, ms.RightEnd

	// Round the fractions to whole rows.
	outerSkip := math.RoundToEven(outerPathRows * outerStart)
	innerSkip := math.RoundToEven(innerPathRows * innerStart)
	outerRows := clampRowEstimate(outerPathRows * outerEnd)
	innerRows := clampRowEstimate(innerPathRows * innerEnd)
	if outerRows <= outerSkip {
		outerRows = outerSkip + 1
	}
	if innerRows <= innerSkip {
		innerRows = innerSkip + 1
	}
	outerStart = outerSkip / outerPathRows
	innerStart = innerSkip / innerPathRows
	outerEnd = outerRows / outerPathRows
	innerEnd = innerRows / innerPathRows

	var startup, run float64
	outerStartup, outerTotal := outer.StartupCost, outer.TotalCost
	if len(outerSortKeys) > 0 {
		s := c.Sort(outer.TotalCost, outerPathRows, outer.Target.Width, 0, -1)
		outerStartup, outerTotal = s.StartupCost, s.TotalCost
	}
	startup += outerStartup + (outerTotal-outerStartup)*outerStart
	run += (outerTotal - outerStartup) * (outerEnd - outerStart)

	innerStartup, innerTotal := inner.StartupCost, inner.TotalCost
	if len(innerSortKeys) > 0 {
		s := c.Sort(inner.TotalCost, innerPathRows, inner.Target.Width, 0, -1)
		innerStartup, innerTotal = s.StartupCost, s.TotalCost
	}
	startup += innerStartup + (innerTotal-innerStartup)*innerStart
	innerRun := (innerTotal - innerStartup) * (innerEnd - innerStart)

	return MergeJoinWorkspace{
		StartupCost:   startup,
		TotalCost:     startup + run + innerRun,
		RunCost:       run,
		InnerRunCost:  innerRun,
		OuterRows:     outerRows,
		InnerRows:     innerRows,
		OuterSkipRows: outerSkip,
		InnerSkipRows: innerSkip,
	}
}

// FinalMergeJoin is the second phase of merge join costing. Duplicate
// outer keys make the join back up over inner rows it has already read;
// the rescan ratio charges for re-reading them.
func (c *Coster) FinalMergeJoin(path *MergePath, ws MergeJoinWorkspace, extra *JoinExtra) {
	innerPathRows := clampRowEstimate(path.Inner.Rows)
	startup, run := ws.StartupCost, ws.RunCost
	rows := c.joinRows(&path.JoinPath)

	if !c.p.Enable.MergeJoin {
		startup += DisableCost
	}

	mergeCost := c.restrictCost(path.MergeClauses)
	qp := c.restrictCost(path.JoinRestrict)
	qp.Startup -= mergeCost.Startup
	qp.PerTuple -= mergeCost.PerTuple

	mergeTuples := c.ApproxTupleCount(&path.JoinPath, path.MergeClauses)

	skipMarkRestore := extra != nil && extra.InnerUnique &&
		path.JoinType != selectivity.FullJoin &&
		len(path.MergeClauses) == len(path.JoinRestrict)

	var rescanned float64
	if path.Outer.Kind != UniquePath && !skipMarkRestore {
		rescanned = math.Max(mergeTuples-innerPathRows, 0)
	}
	rescanRatio := 1 + rescanned/ws.InnerRows

	bareInner := ws.InnerRunCost * rescanRatio
	// A materialized inner is read once; backing up reads the stored rows.
	matInner := ws.InnerRunCost + c.p.CPUOperatorCost*ws.InnerRows*rescanRatio

	switch {
	case skipMarkRestore:
		path.MaterializeInner = false
	case c.p.Enable.Material && matInner < bareInner:
		path.MaterializeInner = true
	case len(path.InnerSortKeys) == 0 && !supportsMarkRestore(path.Inner):
		path.MaterializeInner = true
	case c.p.Enable.Material && len(path.InnerSortKeys) > 0 &&
		relationByteSize(innerPathRows, path.Inner.Target.Width) > c.p.workMemBytes():
		// A sort that spills cannot back up cheaply.
		path.MaterializeInner = true
	default:
		path.MaterializeInner = false
	}
	if path.MaterializeInner {
		run += matInner
	} else {
		run += bareInner
	}

	// Merge clauses are checked for every row read, including those
	// skipped before the first candidate.
	startup += mergeCost.Startup
	startup += mergeCost.PerTuple * (ws.OuterSkipRows + ws.InnerSkipRows*rescanRatio)
	run += mergeCost.PerTuple *
		((ws.OuterRows - ws.OuterSkipRows) + (ws.InnerRows-ws.InnerSkipRows)*rescanRatio)

	startup += qp.Startup
	run += (c.p.CPUTupleCost + qp.PerTuple) * mergeTuples

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// supportsMarkRestore is true for the inner inputs a merge join can back
// up over without a material node.
func supportsMarkRestore(p *Path) bool {
	switch p.Kind {
	case IndexScanPath, IndexOnlyScanPath, MaterialPath, SortPath:
		return true
	}
	return false
}
