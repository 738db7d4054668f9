// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package selectivity estimates the fraction of rows that pass a predicate
// and the number of distinct values of an expression. The cost model
// consumes these estimates; anything that knows more about the data than the
// Default estimator can replace it.
package selectivity

import (
	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/util"
)

// JoinType is the semantic kind of a join.
type JoinType int

const (
	// InnerJoin returns matching pairs.
	InnerJoin JoinType = iota
	// LeftJoin also returns unmatched outer rows.
	LeftJoin
	// FullJoin also returns unmatched rows of both sides.
	FullJoin
	// RightJoin also returns unmatched inner rows.
	RightJoin
	// SemiJoin returns each outer row that has a match, once.
	SemiJoin
	// AntiJoin returns each outer row that has no match.
	AntiJoin
	// LeftAntiSemiJoinNotIn is the anti join implementing NOT IN, where a
	// NULL on the inner side rejects every outer row.
	LeftAntiSemiJoinNotIn
)

var joinTypeNames = [...]string{
	InnerJoin:             "inner",
	LeftJoin:              "left",
	FullJoin:              "full",
	RightJoin:             "right",
	SemiJoin:              "semi",
	AntiJoin:              "anti",
	LeftAntiSemiJoinNotIn: "lasj-notin",
}

func (t JoinType) String() string {
	if int(t) < len(joinTypeNames) {
		return joinTypeNames[t]
	}
	return "unknown"
}

// ParseJoinType is the inverse of JoinType.String.
func ParseJoinType(s string) (JoinType, bool) {
	for t, name := range joinTypeNames {
		if name == s {
			return JoinType(t), true
		}
	}
	return 0, false
}

// IsOuter is true for joins that emit unmatched rows.
func (t JoinType) IsOuter() bool {
	switch t {
	case LeftJoin, FullJoin, RightJoin, AntiJoin, LeftAntiSemiJoinNotIn:
		return true
	}
	return false
}

// SpecialJoinInfo describes a join whose semantics constrain the order in
// which its inputs can be joined.
type SpecialJoinInfo struct {
	JoinType JoinType
	// LeftRels and RightRels are the relations on the syntactic left and
	// right of the join.
	LeftRels  util.FastIntSet
	RightRels util.FastIntSet
}

// Estimator supplies the statistical estimates the cost model needs.
//
// Selectivities are fractions in [0, 1]. Callers multiply them into row
// counts and clamp the product.
type Estimator interface {
	// Selectivity estimates the fraction of rows that satisfy all clauses.
	// When varRel is not zero only columns of that relation are considered
	// to vary; all others are treated as parameters. sjinfo may be nil for
	// restriction clauses.
	Selectivity(clauses []qual.Expr, varRel int, jt JoinType, sjinfo *SpecialJoinInfo) float64

	// DistinctCount estimates the number of distinct values of e. isDefault
	// is set when nothing is known about e.
	DistinctCount(e qual.Expr) (n float64, isDefault bool)

	// HashBucketStats estimates, for a hash table with nbuckets buckets
	// keyed on e, the frequency of the most common value and the fraction
	// of the table in the average bucket probed.
	HashBucketStats(e qual.Expr, nbuckets float64) (mcvFreq, bucketSize float64)

	// MergeScanSel estimates, for a merge join on clause, the fraction of
	// either input that is skipped before the first join candidate and the
	// fraction consumed before the last.
	MergeScanSel(clause qual.Expr) MergeScanSel
}

// MergeScanSel holds the start and end fractions of the left and right
// inputs of a merge join clause.
type MergeScanSel struct {
	LeftStart, LeftEnd   float64
	RightStart, RightEnd float64
}

// FullMergeScan scans both inputs completely.
var FullMergeScan = MergeScanSel{LeftEnd: 1, RightEnd: 1}

// Clamp limits a selectivity to [0, 1]. NaN becomes 0.
func Clamp(s float64) float64 {
	if !(s > 0) {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
