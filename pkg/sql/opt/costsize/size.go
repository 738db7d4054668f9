// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package costsize

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/sql/opt/selectivity"
)

// Size estimates are cluster-wide. Paths divide them by the segment count
// of their locus.

// SetBaserelSizeEstimates sets the row estimate of a base relation from
// its stored tuples and restriction clauses, and the cost of evaluating
// those clauses.
func (c *Coster) SetBaserelSizeEstimates(rel *RelationStats) {
	sel := c.est.Selectivity(qual.Clauses(rel.BaseRestrict), rel.ID, selectivity.InnerJoin, nil)
	rel.Rows = clampRowEstimate(rel.Tuples * sel)
	rel.BaseRestrictCost = c.restrictCost(rel.BaseRestrict)
}

// ParameterizedBaserelSize estimates the rows of a scan of rel that also
// applies paramClauses. The result never exceeds the unparameterized
// estimate.
func (c *Coster) ParameterizedBaserelSize(
	rel *RelationStats, paramClauses []*qual.RestrictInfo,
) float64 {
	all := make([]qual.Expr, 0, len(paramClauses)+len(rel.BaseRestrict))
	all = append(all, qual.Clauses(paramClauses)...)
	all = append(all, qual.Clauses(rel.BaseRestrict)...)
	sel := c.est.Selectivity(all, rel.ID, selectivity.InnerJoin, nil)
	return math.Min(clampRowEstimate(rel.Tuples*sel), rel.Rows)
}

// SetJoinrelSizeEstimates sets the row estimate of a join relation.
func (c *Coster) SetJoinrelSizeEstimates(
	rel, outer, inner *RelationStats,
	sjinfo *selectivity.SpecialJoinInfo,
	restrict []*qual.RestrictInfo,
) error {
	rows, err := c.CalcJoinrelSizeEstimate(outer.Rows, inner.Rows, sjinfo, restrict)
	if err != nil {
		return err
	}
	rel.Rows = rows
	return nil
}

// ParameterizedJoinrelSize estimates the rows of a join of two paths, at
// least one of them parameterized. The result never exceeds the estimate
// of the join relation.
func (c *Coster) ParameterizedJoinrelSize(
	rel *RelationStats,
	outer, inner *Path,
	sjinfo *selectivity.SpecialJoinInfo,
	restrict []*qual.RestrictInfo,
) (float64, error) {
	outerRows := outer.Rows * outer.Locus.segments()
	innerRows := inner.Rows * inner.Locus.segments()
	rows, err := c.CalcJoinrelSizeEstimate(outerRows, innerRows, sjinfo, restrict)
	if err != nil {
		return 0, err
	}
	return math.Min(rows, rel.Rows), nil
}

// CalcJoinrelSizeEstimate estimates the rows of a join of inputs with the
// given row counts. For outer joins the clauses of the join's own ON
// condition decide which rows match, and clauses pushed down from above
// filter the result, NULL-extended rows included. Right joins are expected
// to have been turned into left joins and are rejected.
func (c *Coster) CalcJoinrelSizeEstimate(
	outerRows, innerRows float64,
	sjinfo *selectivity.SpecialJoinInfo,
	restrict []*qual.RestrictInfo,
) (float64, error) {
	jt := selectivity.InnerJoin
	if sjinfo != nil {
		jt = sjinfo.JoinType
	}

	var jsel, psel float64
	if jt.IsOuter() {
		var joinQuals, pushed []*qual.RestrictInfo
		for _, ri := range restrict {
			if ri.PushedDown {
				pushed = append(pushed, ri)
			} else {
				joinQuals = append(joinQuals, ri)
			}
		}
		jsel = c.est.Selectivity(qual.Clauses(joinQuals), 0, jt, sjinfo)
		psel = c.est.Selectivity(qual.Clauses(pushed), 0, jt, sjinfo)
		if c.p.AdjustOuterJoinSelectivity && jt != selectivity.FullJoin {
			psel = adjustSelectivityForNullTest(jsel, psel, pushed)
		}
	} else {
		jsel = c.est.Selectivity(qual.Clauses(restrict), 0, jt, sjinfo)
		psel = 1
	}

	var rows float64
	switch jt {
	case selectivity.InnerJoin:
		rows = outerRows * innerRows * jsel
	case selectivity.LeftJoin:
		rows = math.Max(outerRows*innerRows*jsel, outerRows) * psel
	case selectivity.FullJoin:
		rows = math.Max(math.Max(outerRows*innerRows*jsel, outerRows), innerRows) * psel
	case selectivity.SemiJoin:
		rows = outerRows * jsel
	case selectivity.AntiJoin, selectivity.LeftAntiSemiJoinNotIn:
		rows = outerRows * (1 - jsel) * psel
	default:
		return 0, errors.AssertionFailedf("unrecognized join type: %s", jt)
	}

	// A join is rarely as small as its selectivity alone suggests; keep
	// the estimate above the log of the larger input.
	rows = math.Max(rows, log2(math.Max(10, math.Max(outerRows, innerRows))))
	return clampRowEstimate(rows), nil
}

// adjustSelectivityForNullTest estimates a lone IS [NOT] NULL test pushed
// down onto the result of an outer join. Rows without a match have NULLs
// in the columns of the nullable side; their fraction is taken to be one
// minus the selectivity of the join clauses.
func adjustSelectivityForNullTest(jsel, psel float64, pushed []*qual.RestrictInfo) float64 {
	if len(pushed) != 1 {
		return psel
	}
	nt, ok := pushed[0].Clause.(*qual.NullTest)
	if !ok {
		return psel
	}
	if _, ok := nt.Arg.(*qual.Var); !ok {
		return psel
	}
	nullFrac := 1 - jsel
	if nt.Not {
		return selectivity.Clamp((1 - nullFrac) + nullFrac*psel)
	}
	return selectivity.Clamp(nullFrac + (1-nullFrac)*psel)
}

// ComputeSemiAntiJoinFactors estimates how a semi or anti join of outer
// and inner matches its rows. For anti joins that implement an outer join
// only the join's own clauses count.
func (c *Coster) ComputeSemiAntiJoinFactors(
	outer, inner *RelationStats,
	jt selectivity.JoinType,
	sjinfo *selectivity.SpecialJoinInfo,
	restrict []*qual.RestrictInfo,
) SemiAntiJoinFactors {
	joinQuals := restrict
	if jt != selectivity.SemiJoin && sjinfo != nil && sjinfo.JoinType.IsOuter() {
		joinQuals = nil
		for _, ri := range restrict {
			if !ri.PushedDown {
				joinQuals = append(joinQuals, ri)
			}
		}
	}
	selJT := selectivity.SemiJoin
	if jt == selectivity.AntiJoin || jt == selectivity.LeftAntiSemiJoinNotIn {
		selJT = selectivity.AntiJoin
	}
	clauses := qual.Clauses(joinQuals)
	jsel := c.est.Selectivity(clauses, 0, selJT, sjinfo)

	normSJ := &selectivity.SpecialJoinInfo{
		JoinType:  selectivity.InnerJoin,
		LeftRels:  outer.relids(),
		RightRels: inner.relids(),
	}
	nsel := c.est.Selectivity(clauses, 0, selectivity.InnerJoin, normSJ)

	// The inner-join selectivity over the outer match fraction is the
	// average number of matches of a matching row.
	avgMatch := 1.0
	if jsel > 0 {
		avgMatch = math.Max(1, nsel*inner.Rows/jsel)
	}
	return SemiAntiJoinFactors{OuterMatchFrac: jsel, MatchCount: avgMatch}
}
