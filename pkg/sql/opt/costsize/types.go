// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"math"

	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/util"
)

// QualCost is the cost of evaluating an expression list once at startup
// and once per row.
type QualCost = qual.Cost

// RTEKind is the kind of range table entry a relation is.
type RTEKind int

const (
	// RTERelation is a stored table.
	RTERelation RTEKind = iota
	// RTESubquery is a sub-select in FROM.
	RTESubquery
	// RTEFunction is a set-returning function in FROM.
	RTEFunction
	// RTETableFunction is a function taking a sub-select as input.
	RTETableFunction
	// RTEValues is a VALUES list.
	RTEValues
	// RTECTE is a reference to a WITH query.
	RTECTE
	// RTEResult is a relation with no input, e.g. SELECT without FROM.
	RTEResult
	// RTEJoin is the result of joining other relations.
	RTEJoin
)

// RelationStats are the planner's statistics for a relation, a base table
// or the result of a join. Rows, Tuples and Pages cover the whole cluster.
type RelationStats struct {
	// ID is the range table index of a base relation.
	ID   int
	Kind RTEKind
	// Relids are the base relations a join relation covers. A base relation
	// with empty Relids covers itself.
	Relids util.FastIntSet

	// Rows is the estimated row count after restrictions; Tuples the row
	// count of the stored relation.
	Rows   float64
	Tuples float64
	Pages  uint64
	// Width is the average width of an output row in bytes.
	Width           int
	AvgColumnWidths map[catalog.ColumnID]int32

	Policy catalog.DistributionPolicy
	// AllVisibleFrac is the fraction of pages whose rows are all visible,
	// so that an index-only scan does not visit the heap for them.
	AllVisibleFrac  float64
	Tablespace      string
	AppendOptimized bool

	// BaseRestrict are the restriction clauses of a base relation.
	// BaseRestrictCost is their evaluation cost, set with Rows by
	// SetBaserelSizeEstimates.
	BaseRestrict     []*qual.RestrictInfo
	BaseRestrictCost QualCost
}

// relids returns the base relations r covers.
func (r *RelationStats) relids() util.FastIntSet {
	if !r.Relids.Empty() {
		return r.Relids
	}
	var s util.FastIntSet
	s.Add(r.ID)
	return s
}

// NumSegments is the number of segments the relation is spread over; one
// for relations that are not partitioned across segments.
func (r *RelationStats) NumSegments() int {
	if r.Policy.IsPartitioned() && r.Policy.NumSegments > 1 {
		return r.Policy.NumSegments
	}
	return 1
}

// PerSegmentProjection is the share of a relation stored on one segment.
// Every scan formula reads row, tuple and page counts from a projection, so
// the formulas are those of a single node while the costs are those of one
// segment's part of a parallel scan.
//
// A projection is a copy. Nothing computed from it is written back to the
// RelationStats it came from.
type PerSegmentProjection struct {
	ID             int
	Kind           RTEKind
	Rows           float64
	Tuples         float64
	Pages          float64
	AllVisibleFrac float64
	Tablespace     string
	NumSegments    int
}

// ProjectPerSegment derives the per-segment share of rel. Row counts round
// down, so that the shares of all segments never add up to more than the
// relation, and may be zero; pages round up. Callers clamp the rows they
// assign to a path.
func ProjectPerSegment(rel *RelationStats) PerSegmentProjection {
	ns := float64(rel.NumSegments())
	return PerSegmentProjection{
		ID:             rel.ID,
		Kind:           rel.Kind,
		Rows:           math.Floor(finiteRows(rel.Rows) / ns),
		Tuples:         math.Floor(finiteRows(rel.Tuples) / ns),
		Pages:          math.Ceil(float64(rel.Pages) / ns),
		AllVisibleFrac: rel.AllVisibleFrac,
		Tablespace:     rel.Tablespace,
		NumSegments:    rel.NumSegments(),
	}
}

// ParamInfo describes a parameterized path: one that takes values from the
// outer side of a nested loop and applies extra join clauses with them.
type ParamInfo struct {
	Clauses []*qual.RestrictInfo
	// Rows is the row estimate of the parameterized path, cluster-wide.
	Rows float64
}

// projectedRows is the per-segment row estimate of a parameterized path.
func (pi *ParamInfo) projectedRows(ns int) float64 {
	return clampRowEstimate(pi.Rows / float64(ns))
}

// PathTarget is the output of a path: the expressions it computes and the
// cost of computing them.
type PathTarget struct {
	Exprs []qual.Expr
	Cost  QualCost
	Width int
}

// CostEstimate is the result of costing a path.
type CostEstimate struct {
	StartupCost float64
	TotalCost   float64
	Rows        float64
}

// PathKind identifies the executor node a path becomes. Rescan costs and
// some join decisions depend on it.
type PathKind int

const (
	SeqScanPath PathKind = iota
	SampleScanPath
	IndexScanPath
	IndexOnlyScanPath
	BitmapHeapScanPath
	TidScanPath
	SubqueryScanPath
	FunctionScanPath
	TableFunctionScanPath
	ValuesScanPath
	CTEScanPath
	WorkTableScanPath
	ResultScanPath
	ShareInputScanPath
	UniquePath
	MaterialPath
	SortPath
	AppendPath
	MergeAppendPath
	GatherPath
	GatherMergePath
	AggPath
	GroupPath
	WindowAggPath
	NestLoopPath
	MergeJoinPath
	HashJoinPath
	RecursiveUnionPath
)

// LocusKind says how the output of a path is spread over the cluster.
type LocusKind int

const (
	// LocusEntry is on the coordinator.
	LocusEntry LocusKind = iota
	// LocusSingleQE is on a single segment.
	LocusSingleQE
	// LocusGeneral can be produced anywhere.
	LocusGeneral
	// LocusReplicated is a full copy on every segment.
	LocusReplicated
	// LocusHashed is hash distributed on the path's distribution keys.
	LocusHashed
	// LocusHashedOJ is hash distributed, except for NULL-extended rows of
	// an outer join.
	LocusHashedOJ
	// LocusStrewn is spread over the segments in no known way.
	LocusStrewn
)

// Locus is the distribution of a path's output.
type Locus struct {
	Kind        LocusKind
	NumSegments int
}

// IsPartitioned is true when each segment holds a share of the rows.
func (l Locus) IsPartitioned() bool {
	switch l.Kind {
	case LocusHashed, LocusHashedOJ, LocusStrewn:
		return true
	}
	return false
}

func (l Locus) segments() float64 {
	if l.IsPartitioned() && l.NumSegments > 1 {
		return float64(l.NumSegments)
	}
	return 1
}

// Path is a candidate way of producing the rows of a relation. The cost
// functions fill in CostEstimate and nothing else.
type Path struct {
	Kind PathKind
	// Rel is the relation the path produces.
	Rel    *RelationStats
	Param  *ParamInfo
	Target PathTarget
	Locus  Locus

	// ParallelWorkers is the number of workers of a parallel-aware path,
	// zero otherwise.
	ParallelWorkers int
	// Pathkeys is the sort order of the output, outermost key first.
	Pathkeys []string

	// NumBatches is set by hash join costing; a single-batch hash join can
	// be rescanned without rebuilding its table.
	NumBatches int

	CostEstimate
}

// maxRowCount bounds row estimates so that costs computed from them stay
// finite.
const maxRowCount = 1e100

// clampRowEstimate forces a row estimate to be at least one row and an
// integer. NaN becomes one.
func clampRowEstimate(rows float64) float64 {
	if math.IsNaN(rows) || rows <= 1 {
		return 1
	}
	if rows > maxRowCount {
		return maxRowCount
	}
	return math.RoundToEven(rows)
}

// finiteRows sanitizes a row count that is not clamped to one row, such
// as the input of a sort: NaN and negative counts become zero.
func finiteRows(rows float64) float64 {
	if !(rows > 0) {
		return 0
	}
	return math.Min(rows, maxRowCount)
}

// maxAlign rounds a length up to the platform's maximum alignment.
func maxAlign(n int) int {
	return (n + 7) &^ 7
}

// tupleHeaderSize is the size of a heap tuple header, before alignment.
const tupleHeaderSize = 23

// relationByteSize estimates the storage size of rows of a given width.
func relationByteSize(tuples float64, width int) float64 {
	return tuples * float64(maxAlign(width)+maxAlign(tupleHeaderSize))
}

// pageSize estimates the number of pages rows of a given width fill.
func pageSize(tuples float64, width int) float64 {
	return math.Ceil(relationByteSize(tuples, width) / BlockSize)
}

func log2(x float64) float64 {
	return math.Log(x) / 0.693147180559945
}

// pathkeysContained reports whether an ordering on have satisfies one on
// want.
func pathkeysContained(want, have []string) bool {
	if len(want) > len(have) {
		return false
	}
	for i := range want {
		if want[i] != have[i] {
			return false
		}
	}
	return true
}
