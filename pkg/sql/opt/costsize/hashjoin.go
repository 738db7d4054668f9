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

// HashPath is a hash join. The inner input is loaded into a hash table and
// the outer input probes it.
type HashPath struct {
	JoinPath
	// HashClauses are the equality clauses the hash table is keyed on.
	HashClauses []*qual.RestrictInfo
	// ParallelHash is set when the workers build one shared hash table from
	// a partial inner path.
	ParallelHash bool
}

// HashJoinWorkspace is the result of InitialHashJoin.
type HashJoinWorkspace struct {
	StartupCost float64
	TotalCost   float64
	RunCost     float64
	NumBuckets  int
	NumBatches  int
	// InnerRowsTotal is the number of rows loaded into the hash table.
	InnerRowsTotal float64
}

// InitialHashJoin is the first phase of hash join costing. Building the
// table costs one hash computation per clause and inner row, plus the
// tuple overhead of inserting it; probing costs one hash computation per
// clause and outer row. An inner input that does not fit in memory is
// split into batches, and both inputs are written to and read back from
// disk once.
func (c *Coster) InitialHashJoin(
	hashClauses []*qual.RestrictInfo, outer, inner *Path, parallelHash bool,
) HashJoinWorkspace {
	numClauses := float64(len(hashClauses))
	outerRows := outer.Rows
	innerRows := inner.Rows
	innerRowsTotal := innerRows

	startup := outer.StartupCost
	run := outer.TotalCost - outer.StartupCost
	startup += inner.TotalCost

	startup += (c.p.CPUOperatorCost*numClauses + c.p.CPUTupleCost) * innerRows
	run += c.p.CPUOperatorCost * numClauses * outerRows

	// A shared table holds the rows of every participant.
	if parallelHash {
		innerRowsTotal *= c.p.ParallelDivisor(inner.ParallelWorkers)
	}

	numBuckets, numBatches, _ := chooseHashTableSize(
		innerRowsTotal, inner.Target.Width, c.p.HashJoinSkew, c.p.globalWorkMem(),
	)

	if numBatches > 1 {
		outerPages := pageSize(outerRows, outer.Target.Width)
		innerPages := pageSize(innerRows, inner.Target.Width)
		startup += c.p.SeqPageCost * innerPages
		run += c.p.SeqPageCost * (innerPages + 2*outerPages)
	}

	return HashJoinWorkspace{
		StartupCost:    startup,
		TotalCost:      startup + run,
		RunCost:        run,
		NumBuckets:     numBuckets,
		NumBatches:     numBatches,
		InnerRowsTotal: innerRowsTotal,
	}
}

// Hash table layout.
const (
	hashJoinTupleOverhead = 16
	hashPointerSize       = 8
	// skewWorkMemPercent is the share of memory reserved for the tuples of
	// the most common outer values.
	skewWorkMemPercent  = 2
	skewBucketOverhead  = 16
	maxAllocSize        = 0x3fffffff
	maxIntHalf          = math.MaxInt32 / 2
	minHashBuckets      = 1024
	hashTuplesPerBucket = 1
)

// chooseHashTableSize sizes the hash table for ntuples rows of the given
// width in memBytes of memory: the number of buckets, the number of batches
// the inner input is split into, and, with useSkew, the number of most
// common values kept in the skew table.
func chooseHashTableSize(
	ntuples float64, width int, useSkew bool, memBytes float64,
) (numBuckets, numBatches, numSkewMCVs int) {
	if !(ntuples > 0) {
		ntuples = 1000
	}
	tupleSize := float64(hashJoinTupleOverhead + maxAlign(minimalTupleHeaderSize) + maxAlign(width))
	innerBytes := ntuples * tupleSize

	tableBytes := memBytes
	if useSkew {
		skewBytes := tableBytes * skewWorkMemPercent / 100
		numSkewMCVs = int(skewBytes / (tupleSize + 8*hashPointerSize + 4 + skewBucketOverhead))
		if numSkewMCVs > 0 {
			tableBytes -= skewBytes
		}
	}

	// The bucket array must stay below the allocation limit, and its size
	// is a power of two.
	maxPointers := math.Min(tableBytes/hashPointerSize, maxAllocSize/hashPointerSize)
	if p := ceilPow2(maxPointers); p != maxPointers {
		maxPointers = p / 2
	}
	maxPointers = math.Min(maxPointers, maxIntHalf)

	dbuckets := math.Min(math.Ceil(ntuples/hashTuplesPerBucket), maxPointers)
	buckets := ceilPow2(math.Max(dbuckets, minHashBuckets))
	batches := 1.0

	if innerBytes+buckets*hashPointerSize > tableBytes {
		// Size the buckets for one batch's worth of rows and split the rest
		// off into batches.
		bucketSize := tupleSize*hashTuplesPerBucket + hashPointerSize
		buckets = ceilPow2(math.Floor(tableBytes / bucketSize))
		buckets = ceilPow2(math.Max(math.Min(buckets, maxPointers), 1))
		bucketBytes := buckets * hashPointerSize
		dbatch := math.Ceil(innerBytes / math.Max(tableBytes-bucketBytes, 1))
		dbatch = math.Min(dbatch, maxPointers)
		batches = 2
		for batches < dbatch {
			batches *= 2
		}
	}
	return int(buckets), int(batches), numSkewMCVs
}

// ceilPow2 rounds x up to a power of two, with a minimum of one.
func ceilPow2(x float64) float64 {
	if x <= 1 {
		return 1
	}
	return math.Exp2(math.Ceil(math.Log2(x)))
}

// FinalHashJoin is the second phase of hash join costing. The cost of a
// probe depends on how many inner rows share the bucket it lands in, which
// in turn depends on the distribution of the inner keys.
func (c *Coster) FinalHashJoin(path *HashPath, ws HashJoinWorkspace, extra *JoinExtra) {
	outerRows := path.Outer.Rows
	innerRows := path.Inner.Rows
	innerRowsTotal := ws.InnerRowsTotal
	startup, run := ws.StartupCost, ws.RunCost
	rows := c.joinRows(&path.JoinPath)

	if !c.p.Enable.HashJoin {
		startup += DisableCost
	}
	path.NumBatches = ws.NumBatches

	virtualBuckets := float64(ws.NumBuckets) * float64(ws.NumBatches)

	var innerBucketSize, innerMCVFreq float64
	innerND, outerND := 1.0, 1.0
	if path.Inner.Kind == UniquePath {
		// Unique keys spread evenly.
		innerBucketSize = 1 / virtualBuckets
		innerMCVFreq = 0
		innerND = innerRows
	} else {
		innerBucketSize, innerMCVFreq = 1, 1
		innerRels := path.Inner.Rel.relids()
		for _, ri := range path.HashClauses {
			op, ok := ri.Clause.(*qual.OpExpr)
			if !ok || len(op.Args) != 2 {
				continue
			}
			innerIsLeft := !ri.LeftRelids.Empty() && ri.LeftRelids.SubsetOf(innerRels)
			innerArg, outerArg := op.Args[1], op.Args[0]
			if innerIsLeft {
				innerArg, outerArg = op.Args[0], op.Args[1]
			}
			bs := ri.HashBucketStats(innerIsLeft, func() qual.BucketStats {
				mcv, size := c.est.HashBucketStats(innerArg, virtualBuckets)
				return qual.BucketStats{MCVFreq: mcv, BucketSize: size}
			})
			bucketSize := bs.BucketSize
			if !c.p.HashJoinChainWalk {
				bucketSize = 1 / virtualBuckets
			}
			// The clause with the smallest buckets decides.
			innerBucketSize = math.Min(innerBucketSize, bucketSize)
			innerMCVFreq = math.Min(innerMCVFreq, bs.MCVFreq)

			ind, _ := c.est.DistinctCount(innerArg)
			ond, _ := c.est.DistinctCount(outerArg)
			innerND = math.Max(innerND, ind)
			outerND = math.Max(outerND, ond)
		}
	}

	// A hash table whose most common value alone overflows memory cannot
	// be split into batches that fit.
	if relationByteSize(clampRowEstimate(innerRows*innerMCVFreq), path.Inner.Target.Width) >
		c.p.workMemBytes() {
		startup += DisableCost
	}

	hashCost := c.restrictCost(path.HashClauses)
	qp := c.restrictCost(path.JoinRestrict)
	qp.Startup -= hashCost.Startup
	qp.PerTuple -= hashCost.PerTuple

	// Probes of outer keys that have no inner rows find an empty bucket.
	nonEmpty := 1.0
	if virtualBuckets > 2*innerND && outerND > 2*innerND {
		nonEmpty = 1 - ((outerND-innerND)/outerND)*((virtualBuckets-innerND)/virtualBuckets)
	}

	var hashJoinTuples float64
	if stopsAtFirstMatch(path.JoinType, extra) {
		sf := extra.semiFactors()
		matched := math.RoundToEven(outerRows * sf.OuterMatchFrac)
		unmatched := outerRows - matched
		scanFrac := c.innerScanFrac(sf)

		startup += hashCost.Startup
		// Matched rows stop early in their bucket.
		run += hashCost.PerTuple * matched * nonEmpty *
			clampRowEstimate(innerRows*innerBucketSize*scanFrac) * 0.5
		// Unmatched rows are assumed to land in mostly empty buckets and
		// compare few hash values.
		run += hashCost.PerTuple * unmatched *
			clampRowEstimate(innerRows/virtualBuckets) * 0.05

		if path.JoinType == selectivity.AntiJoin || path.JoinType == selectivity.LeftAntiSemiJoinNotIn {
			hashJoinTuples = unmatched
		} else {
			hashJoinTuples = matched
		}
	} else {
		// Half of each bucket is compared on average.
		startup += hashCost.Startup
		run += hashCost.PerTuple * outerRows * nonEmpty *
			clampRowEstimate(innerRowsTotal*innerBucketSize) * 0.5
		hashJoinTuples = c.ApproxTupleCount(&path.JoinPath, path.HashClauses)
	}

	startup += qp.Startup
	run += qp.PerTuple*hashJoinTuples + c.p.CPUTupleCost*rows

	startup += path.Target.Cost.Startup
	run += path.Target.Cost.PerTuple * rows

	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}
