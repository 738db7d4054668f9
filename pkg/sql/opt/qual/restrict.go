// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package qual

import (
	"sync"

	"github.com/mppdb/mppdb/pkg/util"
)

// RestrictInfo wraps a top-level clause of a WHERE or JOIN condition with
// what the planner knows about it. RestrictInfos are shared by every
// candidate path that applies the clause, so the cost of evaluating the
// clause is computed once and kept.
type RestrictInfo struct {
	Clause Expr
	// OrClause, when set, is the form of an OR clause whose arms are
	// themselves RestrictInfos; its cost replaces that of Clause.
	OrClause Expr
	// Pseudoconstant clauses reference no column of the current query
	// level and are evaluated once.
	Pseudoconstant bool
	// PushedDown is set when the clause came from a WHERE above the join it
	// is attached to, rather than from the join's own ON condition.
	PushedDown bool
	// Relids are the relations the clause references; LeftRelids and
	// RightRelids those of either side of a binary operator clause.
	Relids      util.FastIntSet
	LeftRelids  util.FastIntSet
	RightRelids util.FastIntSet

	evalOnce sync.Once
	evalCost Cost

	// Hash bucket statistics of either side of a hash join clause.
	bucketOnce [2]sync.Once
	bucketStat [2]BucketStats
}

// BucketStats describe the values of one side of a hash join clause: the
// frequency of the most common value and the fraction of the hash table in
// the bucket an average probe visits.
type BucketStats struct {
	MCVFreq    float64
	BucketSize float64
}

// NewRestrictInfo wraps clause, deriving the relation sets from the
// clause.
func NewRestrictInfo(clause Expr) *RestrictInfo {
	ri := &RestrictInfo{Clause: clause, Relids: Rels(clause)}
	if op, ok := clause.(*OpExpr); ok && len(op.Args) == 2 {
		ri.LeftRelids = Rels(op.Args[0])
		ri.RightRelids = Rels(op.Args[1])
	}
	ri.Pseudoconstant = ri.Relids.Empty() && !containsVolatile(clause)
	return ri
}

// EvalCost returns the cost of evaluating the clause, calling compute the
// first time only. Concurrent callers all observe the first result.
func (ri *RestrictInfo) EvalCost(compute func() Cost) Cost {
	ri.evalOnce.Do(func() {
		ri.evalCost = compute()
	})
	return ri.evalCost
}

// HashBucketStats returns the bucket statistics of the left or right
// argument of the clause, calling compute the first time only for that
// side.
func (ri *RestrictInfo) HashBucketStats(left bool, compute func() BucketStats) BucketStats {
	i := 1
	if left {
		i = 0
	}
	ri.bucketOnce[i].Do(func() {
		ri.bucketStat[i] = compute()
	})
	return ri.bucketStat[i]
}

// Children implements the Expr interface. The clause is not a child: walks
// over a list of RestrictInfos stop at each RestrictInfo.
func (*RestrictInfo) Children() []Expr { return nil }

func (ri *RestrictInfo) String() string { return ri.Clause.String() }

// Clauses unwraps a list of RestrictInfos.
func Clauses(ris []*RestrictInfo) []Expr {
	out := make([]Expr, len(ris))
	for i, ri := range ris {
		out[i] = ri
	}
	return out
}

// IsMovableTo reports whether ri references only relations of rels.
func (ri *RestrictInfo) IsMovableTo(rels util.FastIntSet) bool {
	return ri.Relids.SubsetOf(rels)
}

// containsVolatile is true for clauses containing sub-selects, parameters
// or CURRENT OF; those cannot be evaluated once up front.
func containsVolatile(e Expr) bool {
	found := false
	Walk(e, func(e Expr) bool {
		switch e.(type) {
		case *SubPlan, *Param, *CurrentOf:
			found = true
		}
		return !found
	})
	return found
}
