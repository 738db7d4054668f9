// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import "github.com/mppdb/mppdb/pkg/settings"

var seqPageCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.seq_page_cost",
	"cost of a sequentially fetched disk page",
	1.0,
	settings.NonNegativeFloat,
)

var randomPageCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.random_page_cost",
	"cost of a non-sequentially fetched disk page",
	4.0,
	settings.NonNegativeFloat,
)

var cpuTupleCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.cpu_tuple_cost",
	"cost of processing one row",
	0.01,
	settings.NonNegativeFloat,
)

var cpuIndexTupleCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.cpu_index_tuple_cost",
	"cost of processing one index entry",
	0.005,
	settings.NonNegativeFloat,
)

var cpuOperatorCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.cpu_operator_cost",
	"cost of evaluating one operator or function",
	0.0025,
	settings.NonNegativeFloat,
)

var parallelTupleCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.parallel_tuple_cost",
	"cost of passing one row from a worker to the leader",
	0.1,
	settings.NonNegativeFloat,
)

var parallelSetupCost = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.parallel_setup_cost",
	"cost of starting the workers of a parallel plan",
	1000,
	settings.NonNegativeFloat,
)

var effectiveCacheSize = settings.RegisterByteSizeSetting(
	settings.SessionLevel,
	"sql.opt.effective_cache_size",
	"size of the disk cache available to a single scan",
	DefaultEffectiveCacheSize*BlockSize,
	settings.PositiveInt,
)

var workMem = settings.RegisterByteSizeSetting(
	settings.SessionLevel,
	"sql.opt.work_mem",
	"memory a single sort, hash table or material node may use on each segment before spilling",
	32<<20,
	settings.IntInRange(64<<10, 1<<40),
)

var statementMem = settings.RegisterByteSizeSetting(
	settings.SessionLevel,
	"sql.opt.statement_mem",
	"memory a statement may use on each segment; caps sql.opt.work_mem",
	125<<20,
	settings.IntInRange(64<<10, 1<<40),
)

var segmentCount = settings.RegisterIntSetting(
	settings.ClusterWide,
	"sql.opt.segment_count",
	"number of primary segments the planner assumes",
	3,
	settings.PositiveInt,
)

var enableSeqScan = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_seqscan", "allow sequential scans", true)

var enableIndexScan = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_indexscan", "allow index scans", true)

var enableIndexOnlyScan = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_indexonlyscan", "allow index-only scans", true)

var enableBitmapScan = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_bitmapscan", "allow bitmap heap scans", true)

var enableTidScan = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_tidscan", "allow TID scans", true)

var enableSort = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_sort", "allow explicit sorts", true)

var enableHashAgg = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_hashagg", "allow hashed aggregation", true)

var enableGroupAgg = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_groupagg", "allow sorted aggregation", true)

var enableNestLoop = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_nestloop", "allow nested loop joins", false)

var enableMaterial = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_material", "allow materialization of join inputs", true)

var enableMergeJoin = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_mergejoin", "allow merge joins", false)

var enableHashJoin = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_hashjoin", "allow hash joins", true)

var enableGatherMerge = settings.RegisterBoolSetting(
	settings.SessionLevel, "sql.opt.enable_gathermerge", "allow order-preserving gathers", true)

var parallelLeaderParticipation = settings.RegisterBoolSetting(
	settings.SessionLevel,
	"sql.opt.parallel_leader_participation",
	"whether the leader of a parallel plan also executes it",
	true,
)

var leaderContributionFactor = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.leader_contribution_factor",
	"fraction of a worker's share the leader loses for each worker it coordinates",
	0.3,
	settings.Fraction,
)

var semiJoinMatchFuzzFactor = settings.RegisterFloatSetting(
	settings.SessionLevel,
	"sql.opt.cost.semi_join_match_fuzz_factor",
	"scales the fraction of the inner side a semi or anti join scans before its first match",
	2.0,
	settings.PositiveFloat,
)

var hashJoinChainWalk = settings.RegisterBoolSetting(
	settings.SessionLevel,
	"sql.opt.cost.hashjoin_chainwalk",
	"charge hash join probes for walking skewed bucket chains rather than an even spread",
	true,
)

var hashJoinSkew = settings.RegisterBoolSetting(
	settings.SessionLevel,
	"sql.opt.hashjoin_skew_optimization",
	"reserve part of a hash join's memory for the most common outer values",
	true,
)

var adjustSelectivityForOuterJoins = settings.RegisterBoolSetting(
	settings.SessionLevel,
	"sql.opt.adjust_selectivity_for_outerjoins",
	"estimate IS NULL and IS NOT NULL tests above an outer join from the fraction of unmatched rows",
	true,
)
