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

// IndexInfo describes an index of a base relation. Pages and Tuples cover
// the whole cluster.
type IndexInfo struct {
	Name   string
	Pages  uint64
	Tuples float64
	// TreeHeight is the number of levels above the leaves, or -1 when
	// unknown.
	TreeHeight int
	// Correlation is the correlation between the index order and the
	// physical order of the heap, in [-1, 1].
	Correlation float64
	AM          IndexAM
}

// IndexCostEstimate is what an index access method reports about a scan of
// one of its indexes.
type IndexCostEstimate struct {
	StartupCost float64
	TotalCost   float64
	// Selectivity is the fraction of the heap the index conditions select.
	Selectivity float64
	Correlation float64
	// Pages is the number of index pages the scan reads.
	Pages float64
}

// IndexAM estimates the cost of reading an index. index is a per-segment
// copy of path.Index and may be modified freely.
type IndexAM interface {
	CostEstimate(c *Coster, path *IndexPath, index IndexInfo, loopCount float64) IndexCostEstimate
}

// IndexPath is a scan of a relation through one of its indexes. Kind is
// IndexScanPath or IndexOnlyScanPath.
type IndexPath struct {
	Path
	Index *IndexInfo
	// IndexClauses are the clauses the index conditions are built from.
	IndexClauses []*qual.RestrictInfo

	// IndexTotalCost and IndexSelectivity are set by IndexScan for use by
	// bitmap scans built on the path.
	IndexTotalCost   float64
	IndexSelectivity float64
}

// IndexScan costs an index scan or index-only scan. loopCount is the number
// of times the scan is expected to be repeated, as the inner side of a
// nested loop; repeated scans find more of the heap cached.
func (c *Coster) IndexScan(path *IndexPath, loopCount float64) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	indexOnly := path.Kind == IndexOnlyScanPath
	if loopCount < 1 {
		loopCount = 1
	}

	rows := scanRows(proj, path.Param)
	qpQuals := extractNonIndexConditions(rel.BaseRestrict, path.IndexClauses)
	if path.Param != nil {
		qpQuals = append(qpQuals, extractNonIndexConditions(path.Param.Clauses, path.IndexClauses)...)
	}

	var startup, run, cpuRun float64
	if !c.p.Enable.IndexScan || (indexOnly && !c.p.Enable.IndexOnlyScan) {
		startup += DisableCost
	}

	// The access method sees the share of the index on one segment.
	ns := float64(proj.NumSegments)
	idx := *path.Index
	idx.Pages = uint64(math.Ceil(float64(path.Index.Pages) / ns))
	idx.Tuples = clampRowEstimate(path.Index.Tuples / ns)
	am := idx.AM
	if am == nil {
		am = BtreeAM{}
	}
	est := am.CostEstimate(c, path, idx, loopCount)

	corr := est.Correlation
	if corr >= 0.99 {
		corr = 0.99
	} else if corr <= -0.99 {
		corr = -0.99
	}
	path.IndexTotalCost = est.TotalCost
	path.IndexSelectivity = est.Selectivity

	startup += est.StartupCost
	run += est.TotalCost - est.StartupCost

	tuplesFetched := clampRowEstimate(est.Selectivity * proj.Tuples)
	spcSeq, spcRandom := c.p.pageCosts(proj.Tablespace)

	// minIO assumes a perfectly correlated index, which reads the selected
	// heap pages in order; maxIO a perfectly uncorrelated one, which reads
	// a random heap page per row.
	var minIO, maxIO float64
	var numBlkdirTuples, blkdirCostPerTuple, visimapCostPerTuple float64
	aoIndexOnly := rel.AppendOptimized && indexOnly
	switch {
	case aoIndexOnly:
		// An append-optimized table is read through its block directory
		// rather than page by page.
		numBlkdirTuples, blkdirCostPerTuple, visimapCostPerTuple = c.indexOnlyScanCPUAO(rel, proj)
		numBlkdirPages := math.Ceil(numBlkdirTuples / 7)

		maxIO = spcSeq * est.Pages
		maxIO += spcRandom * math.Min(numBlkdirPages, tuplesFetched)
		maxIO += spcRandom

		minIO = spcSeq * est.Pages * est.Selectivity
		minIO += spcSeq * math.Min(est.Selectivity*numBlkdirPages, tuplesFetched)

	case loopCount > 1:
		// Estimate the pages fetched by all loops together, then pro-rate.
		pagesFetched := c.IndexPagesFetched(tuplesFetched*loopCount, proj.Pages, est.Pages)
		if indexOnly {
			pagesFetched = math.Ceil(pagesFetched * (1 - proj.AllVisibleFrac))
		}
		maxIO = pagesFetched * spcRandom / loopCount

		pagesFetched = math.Ceil(est.Selectivity * proj.Pages)
		pagesFetched = c.IndexPagesFetched(pagesFetched*loopCount, proj.Pages, est.Pages)
		if indexOnly {
			pagesFetched = math.Ceil(pagesFetched * (1 - proj.AllVisibleFrac))
		}
		minIO = pagesFetched * spcRandom / loopCount

	default:
		pagesFetched := c.IndexPagesFetched(tuplesFetched, proj.Pages, est.Pages)
		if indexOnly {
			pagesFetched = math.Ceil(pagesFetched * (1 - proj.AllVisibleFrac))
		}
		maxIO = pagesFetched * spcRandom

		// The first selected page is a random read, the rest sequential.
		pagesFetched = math.Ceil(est.Selectivity * proj.Pages)
		if indexOnly {
			pagesFetched = math.Ceil(pagesFetched * (1 - proj.AllVisibleFrac))
		}
		if pagesFetched > 0 {
			minIO = spcRandom
			if pagesFetched > 1 {
				minIO += (pagesFetched - 1) * spcSeq
			}
		}
	}

	// Interpolate on the square of the correlation.
	csquared := corr * corr
	run += maxIO + csquared*(minIO-maxIO)

	qp := c.restrictCost(qpQuals)
	startup += qp.Startup
	cpuRun += (c.p.CPUTupleCost + qp.PerTuple) * tuplesFetched

	startup += path.Target.Cost.Startup
	cpuRun += path.Target.Cost.PerTuple * rows

	if aoIndexOnly {
		maxBlkdir := blkdirCostPerTuple * tuplesFetched
		minBlkdir := blkdirCostPerTuple * est.Selectivity * numBlkdirTuples
		run += maxBlkdir + csquared*(minBlkdir-maxBlkdir)
		run += visimapCostPerTuple * tuplesFetched
	}

	c.parallelize(path.ParallelWorkers, &cpuRun, &rows)
	run += cpuRun

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// extractNonIndexConditions returns the clauses an index scan checks on
// each fetched row: those not implied by the index conditions.
// Pseudoconstant clauses are checked once, elsewhere.
func extractNonIndexConditions(
	clauses []*qual.RestrictInfo, indexClauses []*qual.RestrictInfo,
) []*qual.RestrictInfo {
	var out []*qual.RestrictInfo
outer:
	for _, ri := range clauses {
		if ri.Pseudoconstant {
			continue
		}
		for _, ic := range indexClauses {
			if ri == ic {
				continue outer
			}
		}
		out = append(out, ri)
	}
	return out
}

// IndexPagesFetched estimates the number of distinct heap pages read when
// fetching tuplesFetched rows from a relation of pages pages in random
// order, with an LRU cache of effective_cache_size pages shared with the
// index. This is the approximation of Mackert and Lohman, "Index Scans
// Using a Finite LRU Buffer: A Validated I/O Model", ACM TODS 14(3), 1989.
//
// With T the heap pages, N the rows fetched and b the cache pages:
//
//	T <= b:  min(2TN/(2T+N), T)
//	T > b:   2TN/(2T+N)              if N <= 2Tb/(2T-b)
//	         b + (N - 2Tb/(2T-b))(T-b)/T  otherwise
func (c *Coster) IndexPagesFetched(tuplesFetched, pages, indexPages float64) float64 {
	t := pages
	if t < 1 {
		t = 1
	}
	// The cache is shared by every table and index of the query in
	// proportion to their size.
	totalPages := math.Max(c.totalTablePages, t) + indexPages
	if totalPages < 1 {
		totalPages = 1
	}
	b := c.p.EffectiveCacheSize * t / totalPages
	if b <= 1 {
		b = 1
	} else {
		b = math.Ceil(b)
	}

	var pagesFetched float64
	if t <= b {
		pagesFetched = (2 * t * tuplesFetched) / (2*t + tuplesFetched)
		if pagesFetched >= t {
			return t
		}
		return math.Ceil(pagesFetched)
	}
	lim := (2 * t * b) / (2*t - b)
	if tuplesFetched <= lim {
		pagesFetched = (2 * t * tuplesFetched) / (2*t + tuplesFetched)
	} else {
		pagesFetched = b + (tuplesFetched-lim)*(t-b)/t
	}
	return math.Ceil(pagesFetched)
}

// WithTotalTablePages returns a copy of c for a query whose tables have
// the given number of pages per segment in total. The page cache is
// assumed to be shared among them.
func (c *Coster) WithTotalTablePages(pages float64) *Coster {
	cp := *c
	cp.totalTablePages = pages
	return &cp
}

// Layout constants of append-optimized tables.
const (
	aoBlockSize       = 32768
	aoMinipageEntries = 161
	// aoTupleOverhead is the per-row metadata of an append-optimized row.
	aoTupleOverhead = 20
	// blkdirLeafTuples is the number of block directory entries that fit in
	// a 90% full leaf page of the block directory index.
	blkdirLeafTuples = 1052
)

// indexOnlyScanCPUAO estimates the block directory lookups an index-only
// scan of an append-optimized table makes: the number of block directory
// entries, the cost of looking one up, and the cost of checking the
// visibility map for a row.
func (c *Coster) indexOnlyScanCPUAO(
	rel *RelationStats, proj PerSegmentProjection,
) (numBlkdirTuples, blkdirCostPerTuple, visimapCostPerTuple float64) {
	cpuOp := c.p.CPUOperatorCost
	width := float64(rel.Width) + aoTupleOverhead
	blocks := width * proj.Tuples / aoBlockSize
	numBlkdirTuples = blocks / aoMinipageEntries

	descent := math.Ceil(log2(math.Max(numBlkdirTuples, 1))) * cpuOp
	leafPages := math.Max(math.Ceil(numBlkdirTuples/blkdirLeafTuples), 1)
	height := math.Ceil(log2(leafPages))
	descent += (height + 1) * 50 * cpuOp

	const blkdirQualCount = 3
	const visimapQualCount = 2
	minipageCost := 12 * c.p.CPUTupleCost
	sysscanSetupFinish := 2 * cpuOp

	blkdirCostPerTuple = descent + minipageCost + cpuOp*blkdirQualCount +
		c.p.CPUTupleCost + c.p.CPUIndexTupleCost + 2*sysscanSetupFinish
	visimapCostPerTuple = cpuOp*visimapQualCount + 2*sysscanSetupFinish
	return numBlkdirTuples, blkdirCostPerTuple, visimapCostPerTuple
}

// BtreeAM is a generic estimator for ordered tree indexes. It prices the
// leaf pages and entries the index conditions select, plus a descent of
// the tree per scan.
type BtreeAM struct{}

var _ IndexAM = BtreeAM{}

// CostEstimate implements the IndexAM interface.
func (BtreeAM) CostEstimate(
	c *Coster, path *IndexPath, index IndexInfo, loopCount float64,
) IndexCostEstimate {
	rel := path.Rel
	clauses := qual.Clauses(path.IndexClauses)
	sel := c.est.Selectivity(clauses, rel.ID, selectivity.InnerJoin, nil)

	// Each element of an = ANY(array) condition is a separate descent.
	numSAScans := 1.0
	for _, ri := range path.IndexClauses {
		if sa, ok := ri.Clause.(*qual.ScalarArrayOpExpr); ok {
			numSAScans *= float64(qual.ArrayLength(sa.Array))
		}
	}

	numIndexTuples := math.RoundToEven(sel * index.Tuples / numSAScans)
	if numIndexTuples > index.Tuples {
		numIndexTuples = index.Tuples
	}
	if numIndexTuples < 1 {
		numIndexTuples = 1
	}

	// The leaf pages a scan visits are the selected share of the index,
	// and never more than the entries it returns.
	numIndexPages := 1.0
	if index.Pages > 1 && index.Tuples > 1 {
		numIndexPages = math.Ceil(sel * float64(index.Pages) / numSAScans)
		numIndexPages = math.Max(math.Min(numIndexPages, numIndexTuples), 1)
	}

	_, spcRandom := c.p.pageCosts(rel.Tablespace)
	var total float64
	if numSAScans > 1 || loopCount > 1 {
		loops := loopCount * numSAScans
		pagesFetched := c.IndexPagesFetched(numIndexPages*loops, float64(index.Pages), float64(index.Pages))
		total = pagesFetched * spcRandom / loops
	} else {
		total = numIndexPages * spcRandom
	}

	// The operators of the index conditions run once per entry visited;
	// their arguments once per scan.
	qualCost := c.restrictCost(path.IndexClauses)
	qualOpCost := c.p.CPUOperatorCost * float64(len(path.IndexClauses))
	qualArgCost := math.Max(qualCost.Startup+qualCost.PerTuple-qualOpCost, 0)
	startup := qualArgCost
	total += qualArgCost
	total += numIndexTuples * numSAScans * (c.p.CPUIndexTupleCost + qualOpCost)

	// Descending the tree: one comparison per level of a binary search over
	// all entries, plus the inner pages visited.
	if index.Tuples > 1 {
		descent := math.Ceil(log2(index.Tuples)) * c.p.CPUOperatorCost
		startup += descent
		total += descent * numSAScans
	}
	height := index.TreeHeight
	if height < 0 {
		height = treeHeight(float64(index.Pages))
	}
	descent := float64(height+1) * 50 * c.p.CPUOperatorCost
	startup += descent
	total += descent * numSAScans

	return IndexCostEstimate{
		StartupCost: startup,
		TotalCost:   total,
		Selectivity: sel,
		Correlation: index.Correlation,
		Pages:       numIndexPages,
	}
}

// treeHeight estimates the number of inner levels of a tree index with the
// given number of pages.
func treeHeight(pages float64) int {
	const fanout = 256
	h := 0
	for n := pages; n > 1; n = math.Ceil(n / fanout) {
		h++
	}
	if h > 0 {
		h--
	}
	return h
}
