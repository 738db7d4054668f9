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

// Sort costs sorting tuples rows of the given width. inputCost is the total
// cost of the input, all of which is paid before the first output row.
// comparisonCost is the cost of a comparison beyond the default operator;
// limitTuples, when positive, bounds the rows that will be read, allowing a
// bounded heap sort.
//
// Sorts that fit in memory cost N log2 N comparisons. Larger sorts write
// sorted runs and merge them, reading and writing every page once per merge
// pass; three quarters of those accesses are taken to be sequential.
func (c *Coster) Sort(
	inputCost, tuples float64, width int, comparisonCost, limitTuples float64,
) CostEstimate {
	tuples = finiteRows(tuples)
	startup := inputCost
	if !c.p.Enable.Sort {
		startup += DisableCost
	}
	rows := tuples
	if tuples < 2 {
		tuples = 2
	}
	inputBytes := relationByteSize(tuples, width)
	sortMemBytes := c.p.globalWorkMem()

	// One comparison for the sort operator itself and one for the tuple
	// comparator around it.
	comparisonCost += 2 * c.p.CPUOperatorCost

	outputTuples, outputBytes := tuples, inputBytes
	if limitTuples > 0 && limitTuples < tuples {
		outputTuples = limitTuples
		outputBytes = relationByteSize(outputTuples, width)
	}

	switch {
	case outputBytes > sortMemBytes:
		npages := math.Ceil(inputBytes / BlockSize)
		nruns := inputBytes / sortMemBytes
		order := mergeOrder(sortMemBytes)
		logRuns := 1.0
		if nruns > order {
			logRuns = math.Ceil(math.Log(nruns) / math.Log(order))
		}
		startup += comparisonCost * tuples * log2(tuples)
		pageAccesses := 2 * npages * logRuns
		startup += pageAccesses * (c.p.SeqPageCost*0.75 + c.p.RandomPageCost*0.25)

	case tuples > 2*outputTuples || inputBytes > sortMemBytes:
		// A bounded heap sort keeps only the top outputTuples rows.
		startup += comparisonCost * tuples * log2(2*outputTuples)

	default:
		startup += comparisonCost * tuples * log2(tuples)
	}

	// Fetching a row from the sorted output.
	run := c.p.CPUOperatorCost * tuples

	return CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: rows}
}

// Merge order limits of an external sort.
const (
	minMergeOrder = 6
	maxMergeOrder = 500
	// mergeBufferSize is the read buffer of one input run.
	mergeBufferSize = BlockSize * 32
	// tapeBufferOverhead is the per-tape memory besides the buffer.
	tapeBufferOverhead = BlockSize
)

// mergeOrder is the number of runs an external sort with memBytes of
// memory merges at once.
func mergeOrder(memBytes float64) float64 {
	order := math.Floor((memBytes - tapeBufferOverhead) / (mergeBufferSize + tapeBufferOverhead))
	return math.Min(math.Max(order, minMergeOrder), maxMergeOrder)
}

// AppendNode is an append path: it concatenates the output of its
// subpaths.
type AppendNode struct {
	Path
	Subpaths []*Path
	// FirstPartial is the index of the first subpath whose work is shared
	// by the workers of a parallel append. Those before it are each run by
	// a single worker and are sorted by decreasing total cost.
	FirstPartial int
	// LimitTuples, when positive, bounds the rows that will be read.
	LimitTuples float64
}

// Append costs an append. A parallel append hands each non-partial subpath
// to one worker and shares the partial ones among all of them.
func (c *Coster) Append(path *AppendNode) {
	var startup, total, rows float64
	if len(path.Subpaths) == 0 {
		path.CostEstimate = CostEstimate{}
		return
	}

	switch {
	case path.ParallelWorkers == 0 && len(path.Pathkeys) == 0:
		startup = path.Subpaths[0].StartupCost
		for _, sub := range path.Subpaths {
			rows += sub.Rows
			total += sub.TotalCost
		}

	case path.ParallelWorkers == 0:
		// An ordered append of inputs that each need sorting.
		for _, sub := range path.Subpaths {
			est := sub.CostEstimate
			if !pathkeysContained(path.Pathkeys, sub.Pathkeys) {
				est = c.Sort(sub.TotalCost, sub.Rows, sub.Target.Width, 0, path.LimitTuples)
			}
			rows += est.Rows
			startup += est.StartupCost
			total += est.TotalCost
		}

	default:
		divisor := c.p.ParallelDivisor(path.ParallelWorkers)
		for i, sub := range path.Subpaths {
			// The first rows come from whichever of the first subpaths the
			// workers start on produces one first.
			if i == 0 {
				startup = sub.StartupCost
			} else if i < path.ParallelWorkers {
				startup = math.Min(startup, sub.StartupCost)
			}
			if i < path.FirstPartial {
				rows += sub.Rows / divisor
			} else {
				subDivisor := c.p.ParallelDivisor(sub.ParallelWorkers)
				rows += sub.Rows * (subDivisor / divisor)
				total += sub.TotalCost
			}
			rows = clampRowEstimate(rows)
		}
		total += appendNonpartialCost(path.Subpaths, path.FirstPartial, path.ParallelWorkers)
	}

	// Appending does no projection or qual checking.
	total += c.p.CPUTupleCost * appendCPUCostMultiplier * rows
	if total < startup {
		total = startup
	}
	path.CostEstimate = CostEstimate{StartupCost: startup, TotalCost: total, Rows: rows}
}

// appendNonpartialCost estimates how long the workers of a parallel append
// take to run the first numPaths subpaths, each of which runs on a single
// worker. Subpaths are handed out in order to whichever worker is free
// first; the answer is the finishing time of the worker that finishes
// last.
func appendNonpartialCost(subpaths []*Path, numPaths, workers int) float64 {
	if numPaths <= 0 {
		return 0
	}
	n := workers
	if n > numPaths {
		n = numPaths
	}
	if n < 1 {
		n = 1
	}
	finish := make([]float64, n)
	for i := 0; i < n; i++ {
		finish[i] = subpaths[i].TotalCost
	}
	for i := n; i < numPaths && i < len(subpaths); i++ {
		minIdx := 0
		for j := range finish {
			if finish[j] < finish[minIdx] {
				minIdx = j
			}
		}
		finish[minIdx] += subpaths[i].TotalCost
	}
	maxCost := finish[0]
	for _, f := range finish[1:] {
		maxCost = math.Max(maxCost, f)
	}
	return maxCost
}

// MergeAppend costs merging n sorted inputs of tuples rows in total, with a
// binary heap of one entry per input. inputStartup and inputTotal are the
// summed costs of the inputs, sorted if need be.
func (c *Coster) MergeAppend(n int, inputStartup, inputTotal, tuples float64) CostEstimate {
	N := math.Max(float64(n), 2)
	logN := log2(N)
	comparisonCost := 2 * c.p.CPUOperatorCost

	startup := comparisonCost * N * logN
	run := tuples * comparisonCost * logN
	run += c.p.CPUTupleCost * appendCPUCostMultiplier * tuples

	return CostEstimate{
		StartupCost: startup + inputStartup,
		TotalCost:   startup + run + inputTotal,
		Rows:        tuples,
	}
}

// Material costs storing the output of its input for rescanning. Writes
// are charged when the input does not fit in memory; the reads back are
// charged by Rescan.
func (c *Coster) Material(inputStartup, inputTotal, tuples float64, width int) CostEstimate {
	tuples = finiteRows(tuples)
	startup := inputStartup
	run := inputTotal - inputStartup
	nbytes := relationByteSize(tuples, width)

	// Storing and fetching a row costs a little more than an operator.
	run += 2 * c.p.CPUOperatorCost * tuples

	if nbytes > c.p.globalWorkMem() {
		run += c.p.SeqPageCost * math.Ceil(nbytes/BlockSize)
	}
	return CostEstimate{StartupCost: startup, TotalCost: startup + run, Rows: tuples}
}

// AggStrategy is the way an aggregation groups its input.
type AggStrategy int

const (
	// AggPlain aggregates all input into one group.
	AggPlain AggStrategy = iota
	// AggSorted groups sorted input.
	AggSorted
	// AggHashed groups in a hash table.
	AggHashed
	// AggMixed computes grouping sets, some sorted and some hashed.
	AggMixed
)

// AggCosts are the costs of the aggregates an aggregation computes.
type AggCosts struct {
	NumAggs int
	// TransCost is paid per input row, FinalCost per group.
	TransCost QualCost
	FinalCost QualCost
	// TransitionSpace is the memory per group of aggregates whose
	// transition state is not a fixed size.
	TransitionSpace float64
}

// Agg costs an aggregation. HAVING quals filter its output.
//
// Sorted and hashed aggregation cost the same CPU; sorted aggregation
// returns rows as it goes, hashed aggregation only once all input is read.
// A hashed aggregation whose groups do not fit in memory spills them to
// disk partitions and reprocesses each.
func (c *Coster) Agg(
	strategy AggStrategy,
	aggCosts *AggCosts,
	numGroupCols int,
	numGroups float64,
	quals []*qual.RestrictInfo,
	inputStartup, inputTotal, inputTuples float64,
	inputWidth int,
) CostEstimate {
	if aggCosts == nil {
		aggCosts = &AggCosts{}
	}
	numGroups = clampRowEstimate(numGroups)
	inputTuples = finiteRows(inputTuples)
	p := c.p
	var startup, total, outputTuples float64

	// The computations of the sorted and hashed cases are phrased alike so
	// that equal costs come out exactly equal.
	switch strategy {
	case AggPlain:
		startup = inputTotal
		startup += aggCosts.TransCost.Startup
		startup += aggCosts.TransCost.PerTuple * inputTuples
		startup += aggCosts.FinalCost.Startup
		startup += aggCosts.FinalCost.PerTuple
		total = startup + p.CPUTupleCost
		outputTuples = 1

	case AggSorted, AggMixed:
		startup = inputStartup
		total = inputTotal
		if strategy == AggMixed && !p.Enable.HashAgg {
			startup += DisableCost
			total += DisableCost
		}
		total += aggCosts.TransCost.Startup
		total += aggCosts.TransCost.PerTuple * inputTuples
		total += p.CPUOperatorCost * float64(numGroupCols) * inputTuples
		total += aggCosts.FinalCost.Startup
		total += aggCosts.FinalCost.PerTuple * numGroups
		total += p.CPUTupleCost * numGroups
		outputTuples = numGroups
		if !p.Enable.GroupAgg {
			startup += DisableCost
			total += DisableCost
		}

	default:
		startup = inputTotal
		if !p.Enable.HashAgg {
			startup += DisableCost
		}
		startup += aggCosts.TransCost.Startup
		startup += aggCosts.TransCost.PerTuple * inputTuples
		// Hashing the grouping columns.
		startup += p.CPUOperatorCost * float64(numGroupCols) * inputTuples
		startup += aggCosts.FinalCost.Startup

		total = startup
		total += aggCosts.FinalCost.PerTuple * numGroups
		// Reading the groups back out of the hash table.
		total += p.CPUTupleCost * numGroups
		outputTuples = numGroups
	}

	if strategy == AggHashed || strategy == AggMixed {
		entrySize := hashAggEntrySize(aggCosts.NumAggs, inputWidth, aggCosts.TransitionSpace)
		memLimit, ngroupsLimit, numPartitions := hashAggLimits(p.workMemBytes(), entrySize, numGroups)

		nbatches := math.Max(numGroups*entrySize/memLimit, numGroups/ngroupsLimit)
		nbatches = math.Max(math.Ceil(nbatches), 1)
		numPartitions = math.Max(numPartitions, 2)

		// Each level of recursion writes every spilled row once and reads
		// it back once.
		depth := math.Ceil(math.Log(nbatches) / math.Log(numPartitions))
		pages := relationByteSize(inputTuples, inputWidth) / BlockSize
		pagesWritten := pages * depth
		pagesRead := pages * depth

		// Writes happen before the first group is returned.
		startup += pagesWritten * p.RandomPageCost
		total += pagesWritten * p.RandomPageCost
		total += pagesRead * p.SeqPageCost
	}

	startup, total, outputTuples = c.having(quals, startup, total, outputTuples)
	return CostEstimate{StartupCost: startup, TotalCost: total, Rows: outputTuples}
}

// having adds the cost and selectivity of HAVING quals.
func (c *Coster) having(
	quals []*qual.RestrictInfo, startup, total, rows float64,
) (float64, float64, float64) {
	if len(quals) == 0 {
		return startup, total, rows
	}
	qc := c.restrictCost(quals)
	startup += qc.Startup
	total += qc.Startup + rows*qc.PerTuple
	sel := c.est.Selectivity(qual.Clauses(quals), 0, selectivity.InnerJoin, nil)
	return startup, total, clampRowEstimate(rows * sel)
}

// Hash aggregation memory layout.
const (
	minimalTupleHeaderSize = 16
	memoryChunkHeaderSize  = 16
	hashEntrySize          = 24
	perGroupStateSize      = 16

	hashAggPartitionFactor = 1.5
	hashAggMinPartitions   = 4
	hashAggMaxPartitions   = 1024
)

// hashAggEntrySize estimates the memory a hash aggregation uses per group.
func hashAggEntrySize(numAggs, width int, transitionSpace float64) float64 {
	tupleChunk := float64(memoryChunkHeaderSize + maxAlign(minimalTupleHeaderSize) + maxAlign(width))
	var perGroupChunk, transitionChunk float64
	if numAggs > 0 {
		perGroupChunk = float64(memoryChunkHeaderSize + numAggs*perGroupStateSize)
	}
	if transitionSpace > 0 {
		transitionChunk = memoryChunkHeaderSize + transitionSpace
	}
	return hashEntrySize + tupleChunk + perGroupChunk + transitionChunk
}

// hashAggLimits decides how a hash aggregation of numGroups groups uses
// memBytes of memory: the memory left for groups once spill buffers are
// set aside, the number of groups that fit, and the number of partitions
// to spill into.
func hashAggLimits(
	memBytes, entrySize, numGroups float64,
) (memLimit, ngroupsLimit, numPartitions float64) {
	if numGroups*entrySize > memBytes {
		numPartitions = hashAggChoosePartitions(memBytes, entrySize, numGroups)
	}
	// One read buffer, plus a write buffer per partition.
	partitionMem := BlockSize + BlockSize*numPartitions
	if memBytes > 4*partitionMem {
		memLimit = memBytes - partitionMem
	} else {
		memLimit = memBytes * 0.75
	}
	ngroupsLimit = 1
	if memLimit > entrySize {
		ngroupsLimit = math.Floor(memLimit / entrySize)
	}
	return memLimit, ngroupsLimit, numPartitions
}

func hashAggChoosePartitions(memBytes, entrySize, numGroups float64) float64 {
	memWanted := hashAggPartitionFactor * numGroups * entrySize
	n := 1 + math.Floor(memWanted/memBytes)
	// Write buffers may use at most a quarter of the memory.
	if limit := math.Floor((memBytes*0.25 - BlockSize) / BlockSize); n > limit {
		n = limit
	}
	n = math.Min(math.Max(n, hashAggMinPartitions), hashAggMaxPartitions)
	// Round up to a power of two.
	return math.Exp2(math.Ceil(math.Log2(n)))
}

// TupleSplit costs splitting each input row into one row per DISTINCT
// aggregate, for aggregations with several DISTINCT arguments.
func (c *Coster) TupleSplit(
	numDQAs int, inputStartup, inputTotal, inputTuples float64,
) CostEstimate {
	startup := inputTotal
	return CostEstimate{
		StartupCost: startup,
		TotalCost:   startup + c.p.CPUOperatorCost*inputTuples,
		Rows:        float64(numDQAs) * inputTuples,
	}
}

// WindowFunc is a window function call.
type WindowFunc struct {
	Func *qual.FuncExpr
	// Filter is the FILTER clause, or nil.
	Filter qual.Expr
}

// WindowAgg costs computing window functions over sorted input. Each
// function is charged once per row with its arguments; functions that read
// many rows of their frame per output row are underestimated.
func (c *Coster) WindowAgg(
	funcs []WindowFunc, numPartCols, numOrderCols int,
	inputStartup, inputTotal, inputTuples float64,
) CostEstimate {
	startup, total := inputStartup, inputTotal
	for _, wf := range funcs {
		args := c.QualEval(wf.Func.Args)
		startup += args.Startup
		perTuple := procost(wf.Func.ProCost)*c.p.CPUOperatorCost + args.PerTuple
		if wf.Filter != nil {
			filter := c.QualEvalNode(wf.Filter)
			startup += filter.Startup
			perTuple += filter.PerTuple
		}
		total += perTuple * inputTuples
	}
	// Comparing partition and order columns to find frame boundaries.
	total += c.p.CPUOperatorCost * float64(numPartCols+numOrderCols) * inputTuples
	total += c.p.CPUTupleCost * inputTuples
	return CostEstimate{StartupCost: startup, TotalCost: total, Rows: inputTuples}
}

// Group costs grouping sorted input without aggregates.
func (c *Coster) Group(
	numGroupCols int, numGroups float64, quals []*qual.RestrictInfo,
	inputStartup, inputTotal, inputTuples float64,
) CostEstimate {
	startup := inputStartup
	total := inputTotal + c.p.CPUOperatorCost*inputTuples*float64(numGroupCols)
	startup, total, rows := c.having(quals, startup, total, numGroups)
	return CostEstimate{StartupCost: startup, TotalCost: total, Rows: rows}
}

// Rescan returns the cost of scanning path again after it has run once, as
// the inner side of a nested loop does.
func (c *Coster) Rescan(path *Path) (startup, total float64) {
	switch path.Kind {
	case FunctionScanPath:
		// The function's output is kept; only reading it again is paid.
		return 0, path.TotalCost - path.StartupCost

	case HashJoinPath:
		// A single-batch hash table is kept.
		if path.NumBatches == 1 {
			return 0, path.TotalCost - path.StartupCost
		}
		return path.StartupCost, path.TotalCost

	case CTEScanPath, WorkTableScanPath:
		run := c.p.CPUTupleCost * path.Rows
		return 0, run + c.spillReadCost(path.Rows, path.Target.Width)

	case MaterialPath, SortPath:
		// Reading back a stored row is cheaper than producing it.
		run := c.p.CPUOperatorCost * path.Rows
		return 0, run + c.spillReadCost(path.Rows, path.Target.Width)
	}
	return path.StartupCost, path.TotalCost
}

// spillReadCost is the cost of reading rows back from disk when they did
// not fit in memory.
func (c *Coster) spillReadCost(rows float64, width int) float64 {
	nbytes := relationByteSize(rows, width)
	if nbytes > c.p.workMemBytes() {
		return c.p.SeqPageCost * math.Ceil(nbytes/BlockSize)
	}
	return 0
}
