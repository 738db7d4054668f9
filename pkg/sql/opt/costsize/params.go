// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"github.com/mppdb/mppdb/pkg/settings"
)

// BlockSize is the size of a heap or index page.
const BlockSize = 8192

// DefaultEffectiveCacheSize is the default of sql.opt.effective_cache_size,
// in pages.
const DefaultEffectiveCacheSize = 524288

// DisableCost is added to the startup cost of paths using a disabled
// operator. It is large enough to lose against any enabled alternative but
// leaves the path usable when there is none.
const DisableCost = 1.0e10

// appendCPUCostMultiplier scales the per-row overhead of an append relative
// to cpu_tuple_cost: an append does no projection or qual evaluation.
const appendCPUCostMultiplier = 0.5

// PageCosts are the costs of reading a page of one tablespace.
type PageCosts struct {
	Seq, Random float64
}

// EnableFlags switch operators on and off. A disabled operator is still
// costed, with DisableCost added.
type EnableFlags struct {
	SeqScan       bool
	IndexScan     bool
	IndexOnlyScan bool
	BitmapScan    bool
	TidScan       bool
	Sort          bool
	HashAgg       bool
	GroupAgg      bool
	NestLoop      bool
	Material      bool
	MergeJoin     bool
	HashJoin      bool
	GatherMerge   bool
}

// Params is a snapshot of the cost constants. A Params is never modified
// once a Coster uses it.
type Params struct {
	SeqPageCost       float64
	RandomPageCost    float64
	CPUTupleCost      float64
	CPUIndexTupleCost float64
	CPUOperatorCost   float64
	ParallelTupleCost float64
	ParallelSetupCost float64

	// EffectiveCacheSize is in pages.
	EffectiveCacheSize float64
	// WorkMem and StatementMem are in bytes, per segment.
	WorkMem      int64
	StatementMem int64
	SegmentCount int

	Enable EnableFlags

	ParallelLeaderParticipation bool
	LeaderContributionFactor    float64
	SemiJoinMatchFuzzFactor     float64
	HashJoinChainWalk           bool
	HashJoinSkew                bool
	// AdjustOuterJoinSelectivity estimates a lone IS [NOT] NULL test on
	// the result of an outer join from the join's own selectivity.
	AdjustOuterJoinSelectivity  bool

	// Tablespaces overrides the page costs of the named tablespaces.
	Tablespaces map[string]PageCosts
}

// DefaultParams returns the built-in defaults of every constant.
func DefaultParams() *Params {
	return ParamsFromSettings(settings.MakeValues())
}

// ParamsFromSettings snapshots the cost constants of sv.
func ParamsFromSettings(sv *settings.Values) *Params {
	return &Params{
		SeqPageCost:       seqPageCost.Get(sv),
		RandomPageCost:    randomPageCost.Get(sv),
		CPUTupleCost:      cpuTupleCost.Get(sv),
		CPUIndexTupleCost: cpuIndexTupleCost.Get(sv),
		CPUOperatorCost:   cpuOperatorCost.Get(sv),
		ParallelTupleCost: parallelTupleCost.Get(sv),
		ParallelSetupCost: parallelSetupCost.Get(sv),

		EffectiveCacheSize: float64(effectiveCacheSize.Get(sv) / BlockSize),
		WorkMem:            workMem.Get(sv),
		StatementMem:       statementMem.Get(sv),
		SegmentCount:       int(segmentCount.Get(sv)),

		Enable: EnableFlags{
			SeqScan:       enableSeqScan.Get(sv),
			IndexScan:     enableIndexScan.Get(sv),
			IndexOnlyScan: enableIndexOnlyScan.Get(sv),
			BitmapScan:    enableBitmapScan.Get(sv),
			TidScan:       enableTidScan.Get(sv),
			Sort:          enableSort.Get(sv),
			HashAgg:       enableHashAgg.Get(sv),
			GroupAgg:      enableGroupAgg.Get(sv),
			NestLoop:      enableNestLoop.Get(sv),
			Material:      enableMaterial.Get(sv),
			MergeJoin:     enableMergeJoin.Get(sv),
			HashJoin:      enableHashJoin.Get(sv),
			GatherMerge:   enableGatherMerge.Get(sv),
		},

		ParallelLeaderParticipation: parallelLeaderParticipation.Get(sv),
		LeaderContributionFactor:    leaderContributionFactor.Get(sv),
		SemiJoinMatchFuzzFactor:     semiJoinMatchFuzzFactor.Get(sv),
		HashJoinChainWalk:           hashJoinChainWalk.Get(sv),
		HashJoinSkew:                hashJoinSkew.Get(sv),
		AdjustOuterJoinSelectivity:  adjustSelectivityForOuterJoins.Get(sv),
	}
}

// pageCosts returns the page costs of a tablespace. The empty name is the
// default tablespace.
func (p *Params) pageCosts(tablespace string) (seq, random float64) {
	if pc, ok := p.Tablespaces[tablespace]; ok && tablespace != "" {
		return pc.Seq, pc.Random
	}
	return p.SeqPageCost, p.RandomPageCost
}

// workMemBytes is the memory one operator may use on one segment.
func (p *Params) workMemBytes() float64 {
	m := p.WorkMem
	if p.StatementMem > 0 && p.StatementMem < m {
		m = p.StatementMem
	}
	if m < 64<<10 {
		m = 64 << 10
	}
	return float64(m)
}

// globalWorkMem is the memory one operator may use across the cluster.
// Sort and material inputs are sized for the whole relation and compare
// against this.
func (p *Params) globalWorkMem() float64 {
	return p.workMemBytes() * float64(p.segments())
}

func (p *Params) segments() int {
	if p.SegmentCount < 1 {
		return 1
	}
	return p.SegmentCount
}

// ParallelDivisor estimates the share of a parallel path's rows each
// process handles: the workers, plus the leader for whatever time it does
// not spend coordinating them.
func (p *Params) ParallelDivisor(workers int) float64 {
	if workers < 0 {
		workers = 0
	}
	divisor := float64(workers)
	if p.ParallelLeaderParticipation {
		if leader := 1 - p.LeaderContributionFactor*float64(workers); leader > 0 {
			divisor += leader
		}
	}
	if divisor < 1 {
		return 1
	}
	return divisor
}
