// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package qual defines the scalar expressions the cost model prices and the
// selectivity estimator judges: predicates, target list entries and the
// arguments of function scans.
package qual

import (
	"fmt"
	"strings"

	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/util"
)

// Cost is the CPU cost of evaluating an expression: Startup is paid once,
// PerTuple once per evaluation.
type Cost struct {
	Startup  float64
	PerTuple float64
}

// Add accumulates other into c.
func (c *Cost) Add(other Cost) {
	c.Startup += other.Startup
	c.PerTuple += other.PerTuple
}

// Expr is a scalar expression node.
type Expr interface {
	fmt.Stringer
	// Children returns the direct subexpressions.
	Children() []Expr
}

// Var references a column of one of the relations of a query. Rel is the
// index of the relation in the query's range table.
type Var struct {
	Rel int
	Col catalog.ColumnID
}

// Const is a constant value.
type Const struct {
	Datum tree.Datum
}

// Param is a value supplied at execution time, e.g. from the outer side of
// a nested loop.
type Param struct {
	ID int
}

// OpExpr applies an operator. ProCost is the cost of the operator's function
// in units of the per-operator CPU cost; zero means one unit.
type OpExpr struct {
	Op      string
	Args    []Expr
	ProCost float64
}

// FuncExpr calls a function. ProCost has the meaning it has in OpExpr.
type FuncExpr struct {
	Name    string
	Args    []Expr
	ProCost float64
}

// BoolOp is the operator of a BoolExpr.
type BoolOp int

const (
	// And is true when all arguments are true.
	And BoolOp = iota
	// Or is true when any argument is true.
	Or
	// Not negates its only argument.
	Not
)

// BoolExpr combines boolean arguments.
type BoolExpr struct {
	Op   BoolOp
	Args []Expr
}

// NullTest is IS NULL, or IS NOT NULL when Not is set.
type NullTest struct {
	Arg Expr
	Not bool
}

// ArrayExpr is an ARRAY[...] constructor.
type ArrayExpr struct {
	Elems []Expr
}

// ScalarArrayOpExpr is "scalar op ANY (array)", or ALL when UseOr is false.
type ScalarArrayOpExpr struct {
	Op      string
	UseOr   bool
	Scalar  Expr
	Array   Expr
	ProCost float64
}

// CoerceViaIO converts a value by printing it with the output function of
// its type and parsing the result with the input function of the target
// type. The procosts are those of the two functions.
type CoerceViaIO struct {
	Arg           Expr
	InputProCost  float64
	OutputProCost float64
}

// Aggref is a call to an aggregate. Its cost is accounted for by the
// aggregation node, not by the expressions referencing it.
type Aggref struct {
	Name string
	Args []Expr
}

// CurrentOf is WHERE CURRENT OF cursor. Only a TID scan can evaluate it.
type CurrentOf struct {
	Cursor string
}

// SubLinkType is the kind of sub-select a SubPlan implements.
type SubLinkType int

const (
	// ExprSubLink is a scalar sub-select.
	ExprSubLink SubLinkType = iota
	// ExistsSubLink is EXISTS (sub-select).
	ExistsSubLink
	// AnySubLink is "x op ANY (sub-select)", including IN.
	AnySubLink
	// AllSubLink is "x op ALL (sub-select)".
	AllSubLink
)

// PlanCost summarizes the plan of a sub-select.
type PlanCost struct {
	StartupCost float64
	TotalCost   float64
	Rows        float64
	// MaterializesOutput is set when the top node of the plan keeps its
	// output, so that rescanning it is cheap.
	MaterializesOutput bool
}

// SubPlan is a planned sub-select. StartupCost and PerCallCost are filled in
// by the cost model once the sub-select is planned.
type SubPlan struct {
	LinkType SubLinkType
	// TestExpr compares the outer value with the sub-select output for ANY
	// and ALL sub-selects.
	TestExpr     Expr
	UseHashTable bool
	// Correlated sub-selects take parameters from the outer query and are
	// re-executed whenever those change.
	Correlated bool
	Plan       PlanCost

	StartupCost float64
	PerCallCost float64
}

// Children implements the Expr interface.
func (*Var) Children() []Expr { return nil }

// Children implements the Expr interface.
func (*Const) Children() []Expr { return nil }

// Children implements the Expr interface.
func (*Param) Children() []Expr { return nil }

// Children implements the Expr interface.
func (e *OpExpr) Children() []Expr { return e.Args }

// Children implements the Expr interface.
func (e *FuncExpr) Children() []Expr { return e.Args }

// Children implements the Expr interface.
func (e *BoolExpr) Children() []Expr { return e.Args }

// Children implements the Expr interface.
func (e *NullTest) Children() []Expr { return []Expr{e.Arg} }

// Children implements the Expr interface.
func (e *ArrayExpr) Children() []Expr { return e.Elems }

// Children implements the Expr interface.
func (e *ScalarArrayOpExpr) Children() []Expr { return []Expr{e.Scalar, e.Array} }

// Children implements the Expr interface.
func (e *CoerceViaIO) Children() []Expr { return []Expr{e.Arg} }

// Children implements the Expr interface.
func (e *Aggref) Children() []Expr { return e.Args }

// Children implements the Expr interface.
func (*CurrentOf) Children() []Expr { return nil }

// Children implements the Expr interface.
func (e *SubPlan) Children() []Expr {
	if e.TestExpr == nil {
		return nil
	}
	return []Expr{e.TestExpr}
}

func (e *Var) String() string   { return fmt.Sprintf("$%d.%d", e.Rel, e.Col) }
func (e *Const) String() string { return e.Datum.String() }
func (e *Param) String() string { return fmt.Sprintf("@%d", e.ID) }

func (e *OpExpr) String() string {
	if len(e.Args) == 1 {
		return fmt.Sprintf("(%s %s)", e.Op, e.Args[0])
	}
	return "(" + joinExprs(e.Args, " "+e.Op+" ") + ")"
}

func (e *FuncExpr) String() string { return e.Name + "(" + joinExprs(e.Args, ", ") + ")" }

func (e *BoolExpr) String() string {
	switch e.Op {
	case Not:
		return fmt.Sprintf("NOT %s", e.Args[0])
	case Or:
		return "(" + joinExprs(e.Args, " OR ") + ")"
	}
	return "(" + joinExprs(e.Args, " AND ") + ")"
}

func (e *NullTest) String() string {
	if e.Not {
		return fmt.Sprintf("%s IS NOT NULL", e.Arg)
	}
	return fmt.Sprintf("%s IS NULL", e.Arg)
}

func (e *ArrayExpr) String() string { return "ARRAY[" + joinExprs(e.Elems, ", ") + "]" }

func (e *ScalarArrayOpExpr) String() string {
	q := "ALL"
	if e.UseOr {
		q = "ANY"
	}
	return fmt.Sprintf("%s %s %s(%s)", e.Scalar, e.Op, q, e.Array)
}

func (e *CoerceViaIO) String() string { return fmt.Sprintf("%s::text", e.Arg) }
func (e *Aggref) String() string      { return e.Name + "(" + joinExprs(e.Args, ", ") + ")" }
func (e *CurrentOf) String() string   { return "CURRENT OF " + e.Cursor }
func (e *SubPlan) String() string     { return "(SubPlan)" }

func joinExprs(exprs []Expr, sep string) string {
	var b strings.Builder
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(e.String())
	}
	return b.String()
}

// Walk calls fn on e and, while fn returns true, on its subexpressions.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// Rels returns the relations whose columns e references.
func Rels(e Expr) util.FastIntSet {
	var rels util.FastIntSet
	Walk(e, func(e Expr) bool {
		if v, ok := e.(*Var); ok {
			rels.Add(v.Rel)
		}
		return true
	})
	return rels
}

// ArrayLength estimates the number of elements of an array-valued
// expression.
func ArrayLength(e Expr) int {
	if a, ok := e.(*ArrayExpr); ok {
		return len(a.Elems)
	}
	return 10
}
