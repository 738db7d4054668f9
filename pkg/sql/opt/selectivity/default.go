// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package selectivity

import (
	"math"

	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
)

// Fallback estimates, used when there are no statistics for a column.
const (
	DefaultEqSel       = 0.005
	DefaultIneqSel     = 1.0 / 3.0
	DefaultMatchSel    = 0.005
	DefaultUnknownSel  = 0.005
	DefaultBoolSel     = 0.5
	DefaultFuncSel     = 1.0 / 3.0
	DefaultNumDistinct = 200.0
	// defaultBucketSize is the hash bucket fraction assumed for keys
	// without statistics.
	defaultBucketSize = 0.1
)

// ColumnStats are the statistics of one column.
type ColumnStats struct {
	// Distinct is the number of distinct non-NULL values, or, when
	// negative, minus the ratio of distinct values to rows.
	Distinct float64
	NullFrac float64
	// MCVFreqs are the frequencies of the most common values, highest
	// first.
	MCVFreqs []float64
	// Min and Max bound the numeric values of the column when HasBounds is
	// set.
	Min, Max  float64
	HasBounds bool
}

// RelStats are the statistics of one relation of a query.
type RelStats struct {
	Rows    float64
	Columns map[catalog.ColumnID]ColumnStats
}

// Default estimates selectivities from per-column statistics, using the
// conventional fallback constants for anything it has no statistics for. A
// zero Default knows nothing and answers with fallbacks only.
type Default struct {
	// Rels maps range table indexes to their statistics.
	Rels map[int]*RelStats
}

var _ Estimator = &Default{}

func (d *Default) column(v *qual.Var) (ColumnStats, *RelStats, bool) {
	if d == nil || d.Rels == nil {
		return ColumnStats{}, nil, false
	}
	rs, ok := d.Rels[v.Rel]
	if !ok {
		return ColumnStats{}, nil, false
	}
	cs, ok := rs.Columns[v.Col]
	return cs, rs, ok
}

// Selectivity implements the Estimator interface. Clauses are assumed
// independent.
func (d *Default) Selectivity(
	clauses []qual.Expr, varRel int, jt JoinType, sjinfo *SpecialJoinInfo,
) float64 {
	s := 1.0
	for _, c := range clauses {
		s *= d.clauseSelectivity(c, varRel, jt, sjinfo)
	}
	return Clamp(s)
}

func (d *Default) clauseSelectivity(
	e qual.Expr, varRel int, jt JoinType, sjinfo *SpecialJoinInfo,
) float64 {
	switch t := e.(type) {
	case *qual.RestrictInfo:
		if t.OrClause != nil {
			return d.clauseSelectivity(t.OrClause, varRel, jt, sjinfo)
		}
		return d.clauseSelectivity(t.Clause, varRel, jt, sjinfo)

	case *qual.Const:
		if t.Datum == tree.DNull {
			return 0
		}
		if b, ok := t.Datum.(*tree.DBool); ok {
			if *b {
				return 1
			}
			return 0
		}
		return DefaultBoolSel

	case *qual.BoolExpr:
		switch t.Op {
		case qual.Not:
			return Clamp(1 - d.clauseSelectivity(t.Args[0], varRel, jt, sjinfo))
		case qual.Or:
			s := 0.0
			for _, a := range t.Args {
				s2 := d.clauseSelectivity(a, varRel, jt, sjinfo)
				s = s + s2 - s*s2
			}
			return Clamp(s)
		default:
			s := 1.0
			for _, a := range t.Args {
				s *= d.clauseSelectivity(a, varRel, jt, sjinfo)
			}
			return s
		}

	case *qual.NullTest:
		nullFrac := DefaultUnknownSel
		if v, ok := t.Arg.(*qual.Var); ok {
			if cs, _, ok := d.column(v); ok {
				nullFrac = cs.NullFrac
			}
		}
		if t.Not {
			return Clamp(1 - nullFrac)
		}
		return Clamp(nullFrac)

	case *qual.OpExpr:
		if len(t.Args) != 2 {
			return DefaultBoolSel
		}
		return d.opSelectivity(t.Op, t.Args[0], t.Args[1], varRel, jt, sjinfo)

	case *qual.ScalarArrayOpExpr:
		return d.arraySelectivity(t, varRel, jt, sjinfo)

	case *qual.FuncExpr:
		return DefaultFuncSel

	case *qual.CurrentOf:
		rows := 0.0
		if d != nil {
			if rs, ok := d.Rels[varRel]; ok && varRel != 0 {
				rows = rs.Rows
			} else {
				for _, rs := range d.Rels {
					rows = math.Max(rows, rs.Rows)
				}
			}
		}
		if rows > 1 {
			return 1 / rows
		}
		return 1
	}
	return DefaultBoolSel
}

func (d *Default) opSelectivity(
	op string, left, right qual.Expr, varRel int, jt JoinType, sjinfo *SpecialJoinInfo,
) float64 {
	lv, lok := left.(*qual.Var)
	rv, rok := right.(*qual.Var)
	isJoin := lok && rok && lv.Rel != rv.Rel && (varRel == 0 || (lv.Rel != varRel && rv.Rel != varRel))
	if !isJoin && varRel != 0 {
		// Columns of other relations act as parameters.
		if lok && lv.Rel != varRel {
			lok, lv = false, nil
		}
		if rok && rv.Rel != varRel {
			rok, rv = false, nil
		}
	}

	switch op {
	case "=":
		if isJoin {
			return d.eqJoinSelectivity(lv, rv, jt, sjinfo)
		}
		return d.eqSelectivity(lv, lok, right, rv, rok, left)
	case "<>", "!=":
		s := d.eqSelectivity(lv, lok, right, rv, rok, left)
		nullFrac := 0.0
		if lok {
			if cs, _, ok := d.column(lv); ok {
				nullFrac = cs.NullFrac
			}
		}
		return Clamp(1 - s - nullFrac)
	case "<", "<=", ">", ">=":
		return DefaultIneqSel
	case "~~", "~~*", "LIKE", "ILIKE":
		return DefaultMatchSel
	}
	return DefaultBoolSel
}

// eqSelectivity estimates "var = other" where other does not vary.
func (d *Default) eqSelectivity(
	lv *qual.Var, lok bool, right qual.Expr, rv *qual.Var, rok bool, left qual.Expr,
) float64 {
	v, other := lv, right
	if !lok {
		if !rok {
			return DefaultEqSel
		}
		v, other = rv, left
	}
	if c, ok := other.(*qual.Const); ok && c.Datum == tree.DNull {
		return 0
	}
	cs, rs, ok := d.column(v)
	if !ok {
		return DefaultEqSel
	}
	nd := distinct(cs, rs)
	if nd < 1 {
		nd = 1
	}
	return Clamp((1 - cs.NullFrac) / nd)
}

// eqJoinSelectivity estimates an equality between columns of two
// relations. For semi and anti joins it estimates the fraction of outer rows
// with at least one match.
func (d *Default) eqJoinSelectivity(
	lv, rv *qual.Var, jt JoinType, sjinfo *SpecialJoinInfo,
) float64 {
	nd1, default1 := d.DistinctCount(lv)
	nd2, default2 := d.DistinctCount(rv)
	cs1, _, _ := d.column(lv)
	cs2, _, _ := d.column(rv)

	switch jt {
	case SemiJoin, AntiJoin, LeftAntiSemiJoinNotIn:
		// The outer side is the syntactic left one.
		if sjinfo != nil && sjinfo.RightRels.Contains(lv.Rel) {
			nd1, nd2 = nd2, nd1
			default1, default2 = default2, default1
			cs1 = cs2
		}
		if default1 || default2 {
			return Clamp(0.5 * (1 - cs1.NullFrac))
		}
		if nd1 <= nd2 {
			return Clamp(1 - cs1.NullFrac)
		}
		return Clamp(nd2 / nd1 * (1 - cs1.NullFrac))
	}
	return Clamp((1 - cs1.NullFrac) * (1 - cs2.NullFrac) / math.Max(nd1, nd2))
}

func (d *Default) arraySelectivity(
	e *qual.ScalarArrayOpExpr, varRel int, jt JoinType, sjinfo *SpecialJoinInfo,
) float64 {
	var elems []qual.Expr
	if a, ok := e.Array.(*qual.ArrayExpr); ok {
		elems = a.Elems
	} else {
		for i := 0; i < qual.ArrayLength(e.Array); i++ {
			elems = append(elems, &qual.Param{})
		}
	}
	s := 0.0
	if !e.UseOr {
		s = 1.0
	}
	for _, elem := range elems {
		s2 := d.opSelectivity(e.Op, e.Scalar, elem, varRel, jt, sjinfo)
		if e.UseOr {
			s = s + s2 - s*s2
		} else {
			s *= s2
		}
	}
	return Clamp(s)
}

func distinct(cs ColumnStats, rs *RelStats) float64 {
	if cs.Distinct >= 0 {
		return cs.Distinct
	}
	return -cs.Distinct * rs.Rows
}

// DistinctCount implements the Estimator interface.
func (d *Default) DistinctCount(e qual.Expr) (float64, bool) {
	switch t := e.(type) {
	case *qual.Const:
		return 1, false
	case *qual.Var:
		cs, rs, ok := d.column(t)
		if !ok || cs.Distinct == 0 {
			return DefaultNumDistinct, true
		}
		n := distinct(cs, rs)
		if n < 1 {
			n = 1
		}
		return math.Round(n), false
	}
	return DefaultNumDistinct, true
}

// HashBucketStats implements the Estimator interface.
func (d *Default) HashBucketStats(e qual.Expr, nbuckets float64) (mcvFreq, bucketSize float64) {
	v, ok := e.(*qual.Var)
	if !ok {
		return 0, defaultBucketSize
	}
	cs, rs, ok := d.column(v)
	if !ok {
		return 0, defaultBucketSize
	}
	if len(cs.MCVFreqs) > 0 {
		mcvFreq = cs.MCVFreqs[0]
	}
	nd := distinct(cs, rs)
	if nd < 1 {
		return mcvFreq, defaultBucketSize
	}
	avgFreq := (1 - cs.NullFrac) / nd

	// Only as many distinct values as there are buckets can be told apart.
	if nd > nbuckets {
		bucketSize = 1 / nbuckets
	} else {
		bucketSize = 1 / nd
	}
	// A skewed distribution puts more than the average in some buckets.
	if avgFreq > 0 && mcvFreq > avgFreq {
		bucketSize *= mcvFreq / avgFreq
	}
	if bucketSize < 1e-6 {
		bucketSize = 1e-6
	} else if bucketSize > 1 {
		bucketSize = 1
	}
	return mcvFreq, bucketSize
}

// MergeScanSel implements the Estimator interface. Values are assumed to be
// spread uniformly between the column bounds.
func (d *Default) MergeScanSel(clause qual.Expr) MergeScanSel {
	if ri, ok := clause.(*qual.RestrictInfo); ok {
		clause = ri.Clause
	}
	op, ok := clause.(*qual.OpExpr)
	if !ok || op.Op != "=" || len(op.Args) != 2 {
		return FullMergeScan
	}
	lv, lok := op.Args[0].(*qual.Var)
	rv, rok := op.Args[1].(*qual.Var)
	if !lok || !rok {
		return FullMergeScan
	}
	l, _, lok := d.column(lv)
	r, _, rok := d.column(rv)
	if !lok || !rok || !l.HasBounds || !r.HasBounds {
		return FullMergeScan
	}
	lo := math.Max(l.Min, r.Min)
	hi := math.Min(l.Max, r.Max)
	return MergeScanSel{
		LeftStart:  fractionBelow(l, lo),
		LeftEnd:    fractionBelow(l, hi),
		RightStart: fractionBelow(r, lo),
		RightEnd:   fractionBelow(r, hi),
	}
}

func fractionBelow(cs ColumnStats, v float64) float64 {
	if cs.Max <= cs.Min {
		return 1
	}
	return Clamp((v - cs.Min) / (cs.Max - cs.Min))
}
