// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/opt/costsize"
	"github.com/mppdb/mppdb/pkg/sql/opt/qual"
	"github.com/mppdb/mppdb/pkg/sql/opt/selectivity"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/util"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"
)

var costCmd = &cobra.Command{
	Use:   "cost <scenario.yaml>",
	Short: "estimate the cost of plan fragments",
	Long: `
Estimate the startup cost, total cost and rows of the plan fragments of a
scenario file. The file describes base relations and the paths to cost:

  tablespaces:
    fast: {seq: 0.1, random: 0.1}
  relations:
  - name: orders
    rows: 1000000
    pages: 12000
    width: 48
    indexes:
    - {name: orders_pkey, pages: 2800, correlation: 1}
  - {name: customers, rows: 50000, pages: 400, width: 64, distribution: replicated}
  paths:
  - {op: seqscan, rel: orders}
  - {op: indexscan, rel: orders, index: orders_pkey, eq: 42}
  - {op: sort, rel: orders, limit: 10}
  - {op: hashjoin, outer: orders, inner: customers, join: left}

Joins are on the first column of each input, which are sequential scans.
The cost constants come from the settings.
`,
	Args: cobra.ExactArgs(1),
	RunE: runCost,
}

var errInvalidScenario = errors.New("invalid cost scenario")

type scenarioIndex struct {
	Name        string  `yaml:"name"`
	Pages       uint64  `yaml:"pages"`
	Height      *int    `yaml:"height"`
	Correlation float64 `yaml:"correlation"`
}

type scenarioRelation struct {
	Name string  `yaml:"name"`
	Rows float64 `yaml:"rows"`
	// Tuples defaults to Rows.
	Tuples       float64         `yaml:"tuples"`
	Pages        uint64          `yaml:"pages"`
	Width        int             `yaml:"width"`
	Segments     int             `yaml:"segments"`
	Distribution string          `yaml:"distribution"`
	Tablespace   string          `yaml:"tablespace"`
	AllVisible   float64         `yaml:"all_visible"`
	AO           bool            `yaml:"append_optimized"`
	Indexes      []scenarioIndex `yaml:"indexes"`
}

type scenarioPath struct {
	Name  string `yaml:"name"`
	Op    string `yaml:"op"`
	Rel   string `yaml:"rel"`
	Index string `yaml:"index"`
	// Eq restricts the first column to a value.
	Eq      *int64  `yaml:"eq"`
	Limit   float64 `yaml:"limit"`
	Workers int     `yaml:"workers"`
	Loops   float64 `yaml:"loops"`
	Outer   string  `yaml:"outer"`
	Inner   string  `yaml:"inner"`
	Join    string  `yaml:"join"`
}

type scenario struct {
	Tablespaces map[string]costsize.PageCosts `yaml:"tablespaces"`
	Relations   []scenarioRelation            `yaml:"relations"`
	Paths       []scenarioPath                `yaml:"paths"`
}

func runCost(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	sc, err := parseScenario(f)
	if err != nil {
		return err
	}
	params := costsize.ParamsFromSettings(cliCtx.sv)
	rows, err := sc.cost(params)
	if err != nil {
		return err
	}
	return printTable(cmd.OutOrStdout(), []string{"path", "startup", "total", "rows"}, rows)
}

func parseScenario(r io.Reader) (*scenario, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var sc scenario
	if err := yaml.UnmarshalStrict(b, &sc); err != nil {
		return nil, errors.Mark(err, errInvalidScenario)
	}
	return &sc, nil
}

// scenarioCoster resolves the relations of a scenario for costing.
type scenarioCoster struct {
	c    *costsize.Coster
	rels map[string]*costsize.RelationStats
	idxs map[string]map[string]*costsize.IndexInfo
}

func (sc *scenario) cost(params *costsize.Params) ([][]string, error) {
	if len(sc.Tablespaces) > 0 {
		params.Tablespaces = sc.Tablespaces
	}
	s := &scenarioCoster{
		c:    costsize.NewCoster(params, nil),
		rels: make(map[string]*costsize.RelationStats),
		idxs: make(map[string]map[string]*costsize.IndexInfo),
	}
	for i := range sc.Relations {
		if err := s.addRelation(i+1, &sc.Relations[i]); err != nil {
			return nil, errors.Mark(err, errInvalidScenario)
		}
	}
	var rows [][]string
	for i := range sc.Paths {
		p := &sc.Paths[i]
		est, err := s.costPath(p)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "path %d", i+1), errInvalidScenario)
		}
		name := p.Name
		if name == "" {
			name = p.describe()
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.2f", est.StartupCost),
			fmt.Sprintf("%.2f", est.TotalCost),
			fmt.Sprintf("%.0f", est.Rows),
		})
	}
	return rows, nil
}

func (p *scenarioPath) describe() string {
	switch p.Op {
	case "nestloop", "mergejoin", "hashjoin":
		jt := p.Join
		if jt == "" {
			jt = "inner"
		}
		return fmt.Sprintf("%s %s (%s, %s)", p.Op, jt, p.Outer, p.Inner)
	case "indexscan", "indexonlyscan":
		return fmt.Sprintf("%s %s using %s", p.Op, p.Rel, p.Index)
	}
	return p.Op + " " + p.Rel
}

func (s *scenarioCoster) addRelation(id int, r *scenarioRelation) error {
	if r.Name == "" {
		return errors.Newf("relation %d has no name", id)
	}
	if _, ok := s.rels[r.Name]; ok {
		return errors.Newf("relation %s defined twice", r.Name)
	}
	segments := r.Segments
	if segments == 0 {
		segments = s.c.Params().SegmentCount
	}
	policy := catalog.DistributionPolicy{NumSegments: segments}
	switch strings.ToLower(r.Distribution) {
	case "", "hash":
		policy.Kind = catalog.PolicyHash
		policy.KeyColumns = []catalog.ColumnID{1}
	case "random":
		policy.Kind = catalog.PolicyRandom
	case "replicated":
		policy.Kind = catalog.PolicyReplicated
	case "entry":
		policy.Kind = catalog.PolicyEntry
	default:
		return errors.Newf("relation %s: unknown distribution %q", r.Name, r.Distribution)
	}
	tuples := r.Tuples
	if tuples == 0 {
		tuples = r.Rows
	}
	s.rels[r.Name] = &costsize.RelationStats{
		ID:              id,
		Kind:            costsize.RTERelation,
		Rows:            r.Rows,
		Tuples:          tuples,
		Pages:           r.Pages,
		Width:           r.Width,
		Policy:          policy,
		AllVisibleFrac:  r.AllVisible,
		Tablespace:      r.Tablespace,
		AppendOptimized: r.AO,
	}
	idxs := make(map[string]*costsize.IndexInfo, len(r.Indexes))
	for _, ix := range r.Indexes {
		height := -1
		if ix.Height != nil {
			height = *ix.Height
		}
		idxs[ix.Name] = &costsize.IndexInfo{
			Name:        ix.Name,
			Pages:       ix.Pages,
			Tuples:      tuples,
			TreeHeight:  height,
			Correlation: ix.Correlation,
			AM:          costsize.BtreeAM{},
		}
	}
	s.idxs[r.Name] = idxs
	return nil
}

func (s *scenarioCoster) relation(name string) (*costsize.RelationStats, error) {
	rel, ok := s.rels[name]
	if !ok {
		return nil, errors.Newf("unknown relation %q", name)
	}
	return rel, nil
}

// firstColumn is column 1 of rel.
func firstColumn(rel *costsize.RelationStats) *qual.Var {
	return &qual.Var{Rel: rel.ID, Col: 1}
}

// scanPath returns a costed sequential scan of rel.
func (s *scenarioCoster) scanPath(rel *costsize.RelationStats, workers int) *costsize.Path {
	p := &costsize.Path{
		Kind:            costsize.SeqScanPath,
		Rel:             rel,
		Target:          costsize.PathTarget{Width: rel.Width},
		Locus:           locusOf(rel),
		ParallelWorkers: workers,
	}
	s.c.SeqScan(p)
	return p
}

func locusOf(rel *costsize.RelationStats) costsize.Locus {
	switch rel.Policy.Kind {
	case catalog.PolicyEntry:
		return costsize.Locus{Kind: costsize.LocusEntry, NumSegments: 1}
	case catalog.PolicyReplicated:
		return costsize.Locus{Kind: costsize.LocusReplicated, NumSegments: rel.Policy.NumSegments}
	case catalog.PolicyRandom:
		return costsize.Locus{Kind: costsize.LocusStrewn, NumSegments: rel.Policy.NumSegments}
	}
	return costsize.Locus{Kind: costsize.LocusHashed, NumSegments: rel.Policy.NumSegments}
}

func (s *scenarioCoster) costPath(p *scenarioPath) (costsize.CostEstimate, error) {
	switch p.Op {
	case "seqscan":
		rel, err := s.relation(p.Rel)
		if err != nil {
			return costsize.CostEstimate{}, err
		}
		return s.scanPath(rel, p.Workers).CostEstimate, nil

	case "indexscan", "indexonlyscan":
		return s.indexScan(p)

	case "sort":
		rel, err := s.relation(p.Rel)
		if err != nil {
			return costsize.CostEstimate{}, err
		}
		in := s.scanPath(rel, 0)
		est := s.c.Sort(in.TotalCost, in.Rows, rel.Width, 0, p.Limit)
		if p.Limit > 0 && p.Limit < est.Rows {
			est.Rows = p.Limit
		}
		return est, nil

	case "nestloop", "mergejoin", "hashjoin":
		return s.join(p)
	}
	return costsize.CostEstimate{}, errors.Newf("unknown op %q", p.Op)
}

func (s *scenarioCoster) indexScan(p *scenarioPath) (costsize.CostEstimate, error) {
	rel, err := s.relation(p.Rel)
	if err != nil {
		return costsize.CostEstimate{}, err
	}
	idx, ok := s.idxs[p.Rel][p.Index]
	if !ok {
		return costsize.CostEstimate{}, errors.Newf("relation %s has no index %q", p.Rel, p.Index)
	}
	// Restrict a copy so that other paths see the relation unrestricted.
	scanRel := *rel
	var clauses []*qual.RestrictInfo
	if p.Eq != nil {
		clause := qual.NewRestrictInfo(&qual.OpExpr{
			Op:   "=",
			Args: []qual.Expr{firstColumn(rel), &qual.Const{Datum: tree.NewDInt(tree.DInt(*p.Eq))}},
		})
		clauses = append(clauses, clause)
		scanRel.BaseRestrict = clauses
		s.c.SetBaserelSizeEstimates(&scanRel)
	}
	kind := costsize.IndexScanPath
	if p.Op == "indexonlyscan" {
		kind = costsize.IndexOnlyScanPath
	}
	path := &costsize.IndexPath{
		Path: costsize.Path{
			Kind:   kind,
			Rel:    &scanRel,
			Target: costsize.PathTarget{Width: rel.Width},
			Locus:  locusOf(rel),
		},
		Index:        idx,
		IndexClauses: clauses,
	}
	s.c.IndexScan(path, p.Loops)
	return path.CostEstimate, nil
}

var joinTypes = map[string]selectivity.JoinType{
	"":      selectivity.InnerJoin,
	"inner": selectivity.InnerJoin,
	"left":  selectivity.LeftJoin,
	"full":  selectivity.FullJoin,
	"semi":  selectivity.SemiJoin,
	"anti":  selectivity.AntiJoin,
	"notin": selectivity.LeftAntiSemiJoinNotIn,
}

func (s *scenarioCoster) join(p *scenarioPath) (costsize.CostEstimate, error) {
	jt, ok := joinTypes[strings.ToLower(p.Join)]
	if !ok {
		return costsize.CostEstimate{}, errors.Newf("unknown join type %q", p.Join)
	}
	outerRel, err := s.relation(p.Outer)
	if err != nil {
		return costsize.CostEstimate{}, err
	}
	innerRel, err := s.relation(p.Inner)
	if err != nil {
		return costsize.CostEstimate{}, err
	}
	if outerRel == innerRel {
		return costsize.CostEstimate{}, errors.New("a relation cannot be joined to itself")
	}
	outer, inner := s.scanPath(outerRel, 0), s.scanPath(innerRel, 0)

	var left, right util.FastIntSet
	left.Add(outerRel.ID)
	right.Add(innerRel.ID)
	sjinfo := &selectivity.SpecialJoinInfo{JoinType: jt, LeftRels: left, RightRels: right}
	clause := qual.NewRestrictInfo(&qual.OpExpr{
		Op: "=", Args: []qual.Expr{firstColumn(outerRel), firstColumn(innerRel)},
	})
	restrict := []*qual.RestrictInfo{clause}

	relids := left.Copy()
	relids.UnionWith(right)
	rel := &costsize.RelationStats{
		Kind:   costsize.RTEJoin,
		Relids: relids,
		Width:  outerRel.Width + innerRel.Width,
		Policy: outerRel.Policy,
	}
	if err := s.c.SetJoinrelSizeEstimates(rel, outerRel, innerRel, sjinfo, restrict); err != nil {
		return costsize.CostEstimate{}, err
	}
	jp := costsize.JoinPath{
		Path: costsize.Path{
			Rel:    rel,
			Target: costsize.PathTarget{Width: rel.Width},
			Locus:  outer.Locus,
		},
		JoinType:     jt,
		Outer:        outer,
		Inner:        inner,
		JoinRestrict: restrict,
	}
	extra := &costsize.JoinExtra{SJInfo: sjinfo}
	if jt == selectivity.SemiJoin || jt == selectivity.AntiJoin || jt == selectivity.LeftAntiSemiJoinNotIn {
		extra.SemiFactors = s.c.ComputeSemiAntiJoinFactors(outerRel, innerRel, jt, sjinfo, restrict)
	}

	switch p.Op {
	case "nestloop":
		jp.Kind = costsize.NestLoopPath
		path := &costsize.NestPath{JoinPath: jp}
		ws := s.c.InitialNestLoop(jt, outer, inner, extra)
		s.c.FinalNestLoop(path, ws, extra)
		return path.CostEstimate, nil
	case "mergejoin":
		jp.Kind = costsize.MergeJoinPath
		keys := []string{"1"}
		path := &costsize.MergePath{
			JoinPath:      jp,
			MergeClauses:  restrict,
			OuterSortKeys: keys,
			InnerSortKeys: keys,
		}
		ws := s.c.InitialMergeJoin(jt, restrict, outer, inner, keys, keys)
		s.c.FinalMergeJoin(path, ws, extra)
		return path.CostEstimate, nil
	default:
		jp.Kind = costsize.HashJoinPath
		path := &costsize.HashPath{JoinPath: jp, HashClauses: restrict}
		ws := s.c.InitialHashJoin(restrict, outer, inner, false)
		s.c.FinalHashJoin(path, ws, extra)
		return path.CostEstimate, nil
	}
}
