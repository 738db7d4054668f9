// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"math"

	"github.com/cockroachdb/errors"
)

// BitmapNode is an input of a bitmap heap scan: an index scan that
// produces a bitmap of row locations, or the intersection or union of
// several.
type BitmapNode interface {
	bitmapNode()
}

func (*IndexPath) bitmapNode()     {}
func (*BitmapAndPath) bitmapNode() {}
func (*BitmapOrPath) bitmapNode()  {}

// BitmapAndPath intersects the bitmaps of its inputs.
type BitmapAndPath struct {
	Quals []BitmapNode
	// Selectivity is set by BitmapAnd.
	Selectivity float64
	CostEstimate
}

// BitmapOrPath unions the bitmaps of its inputs.
type BitmapOrPath struct {
	Quals []BitmapNode
	// Selectivity is set by BitmapOr.
	Selectivity float64
	CostEstimate
}

// BitmapHeapPath fetches the heap rows of a bitmap.
type BitmapHeapPath struct {
	Path
	Bitmap BitmapNode
}

// bitmapManipulationCost is the cost, in operator evaluations, of adding
// one row to a bitmap.
const bitmapManipulationCost = 0.1

// bitmapCombineCost is the cost, in operator evaluations, of combining two
// bitmaps.
const bitmapCombineCost = 100.0

// bitmapTreeNode returns the total cost and selectivity of a bitmap input.
func (c *Coster) bitmapTreeNode(n BitmapNode) (cost, sel float64) {
	switch t := n.(type) {
	case *IndexPath:
		return t.IndexTotalCost + bitmapManipulationCost*c.p.CPUOperatorCost*t.Rows, t.IndexSelectivity
	case *BitmapAndPath:
		return t.TotalCost, t.Selectivity
	case *BitmapOrPath:
		return t.TotalCost, t.Selectivity
	}
	panic(errors.AssertionFailedf("unexpected bitmap node %T", n))
}

// BitmapAnd costs the intersection of bitmaps. The inputs are assumed
// independent.
func (c *Coster) BitmapAnd(path *BitmapAndPath) {
	total, sel := 0.0, 1.0
	for i, q := range path.Quals {
		cost, s := c.bitmapTreeNode(q)
		sel *= s
		total += cost
		if i > 0 {
			total += bitmapCombineCost * c.p.CPUOperatorCost
		}
	}
	path.Selectivity = sel
	path.CostEstimate = CostEstimate{StartupCost: total, TotalCost: total}
}

// BitmapOr costs the union of bitmaps. The inputs are assumed disjoint,
// which overestimates the selectivity. Index scans can add to a shared
// bitmap; other inputs must be combined explicitly.
func (c *Coster) BitmapOr(path *BitmapOrPath) {
	total, sel := 0.0, 0.0
	for i, q := range path.Quals {
		cost, s := c.bitmapTreeNode(q)
		sel += s
		total += cost
		if _, isIndex := q.(*IndexPath); i > 0 && !isIndex {
			total += bitmapCombineCost * c.p.CPUOperatorCost
		}
	}
	path.Selectivity = math.Min(sel, 1)
	path.CostEstimate = CostEstimate{StartupCost: total, TotalCost: total}
}

// BitmapHeapScan costs fetching the rows of a bitmap from the heap.
// loopCount is as for IndexScan.
func (c *Coster) BitmapHeapScan(path *BitmapHeapPath, loopCount float64) {
	rel := path.Rel
	proj := ProjectPerSegment(rel)
	rows := scanRows(proj, path.Param)

	var startup, run float64
	if !c.p.Enable.BitmapScan {
		startup += DisableCost
	}

	pagesFetched, indexTotalCost, tuplesFetched := c.ComputeBitmapPages(rel, path.Bitmap, loopCount)
	startup += indexTotalCost

	// The pages are read in physical order. Reading many of them is
	// nearly sequential, reading a few is random.
	t := math.Max(proj.Pages, 1)
	spcSeq, spcRandom := c.p.pageCosts(proj.Tablespace)
	costPerPage := spcRandom
	if pagesFetched >= 2 {
		costPerPage = spcRandom - (spcRandom-spcSeq)*math.Sqrt(pagesFetched/t)
	}
	run += pagesFetched * costPerPage

	qp := c.restrictionQualCost(rel, path.Param)
	startup += qp.Startup
	cpuRun := (c.p.CPUTupleCost + qp.PerTuple) * tuplesFetched
	c.parallelize(path.ParallelWorkers, &cpuRun, &rows)
	run += cpuRun

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// ComputeBitmapPages estimates, for a bitmap heap scan of rel, the heap
// pages fetched per loop, the cost of building the bitmap and the rows
// fetched. When the bitmap does not fit in work_mem some of its pages are
// lossy, and every row of a lossy page is fetched and rechecked.
func (c *Coster) ComputeBitmapPages(
	rel *RelationStats, bitmap BitmapNode, loopCount float64,
) (pagesFetched, indexTotalCost, tuplesFetched float64) {
	proj := ProjectPerSegment(rel)
	indexTotalCost, sel := c.bitmapTreeNode(bitmap)

	tuplesFetched = clampRowEstimate(sel * proj.Tuples)
	t := math.Max(proj.Pages, 1)

	// Mackert and Lohman without re-reads: a page is read once.
	pagesFetched = (2 * t * tuplesFetched) / (2*t + tuplesFetched)

	// The bitmap holds the pages of one loop at a time.
	heapPages := math.Min(pagesFetched, proj.Pages)
	maxEntries := tbmEntries(c.p.workMemBytes())

	if loopCount > 1 {
		indexPages := math.Ceil(indexpathPages(bitmap) / float64(proj.NumSegments))
		pagesFetched = c.IndexPagesFetched(tuplesFetched*loopCount, proj.Pages, indexPages)
		pagesFetched /= loopCount
	}
	if pagesFetched >= t {
		pagesFetched = t
	} else {
		pagesFetched = math.Ceil(pagesFetched)
	}

	if maxEntries < heapPages {
		// Once memory runs short the bitmap turns pages lossy quickly.
		lossyPages := math.Max(0, heapPages-maxEntries/2)
		exactPages := heapPages - lossyPages
		if lossyPages > 0 {
			tuplesFetched = clampRowEstimate(sel*(exactPages/heapPages)*proj.Tuples +
				(lossyPages/heapPages)*proj.Tuples)
		}
	}
	return pagesFetched, indexTotalCost, tuplesFetched
}

// indexpathPages sums the pages of the indexes a bitmap reads.
func indexpathPages(n BitmapNode) float64 {
	var pages float64
	switch t := n.(type) {
	case *IndexPath:
		pages = float64(t.Index.Pages)
	case *BitmapAndPath:
		for _, q := range t.Quals {
			pages += indexpathPages(q)
		}
	case *BitmapOrPath:
		for _, q := range t.Quals {
			pages += indexpathPages(q)
		}
	}
	return pages
}

// tbmPageEntrySize is the memory a bitmap uses per exact page: the page
// entry plus hash table overhead.
const tbmPageEntrySize = 64

// tbmEntries is the number of exact pages a bitmap of maxBytes holds.
func tbmEntries(maxBytes float64) float64 {
	return math.Max(math.Floor(maxBytes/tbmPageEntrySize), 16)
}
