// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.
//
// Routers decide which segment owns each row of a distributed relation.
// The placement computed here is the single source of truth for a row: a
// segment never re-evaluates it for rows it receives.

package rowflow

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/dchest/siphash"
	"github.com/google/uuid"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// Cluster-wide hash keys. Changing them changes the placement of every
// stored row.
const (
	hashK0 = 0x5d1ec810febed702
	hashK1 = 0x40fd7fee17262f71
)

// Tags written ahead of each key value so that NULL never collides with a
// real value.
const (
	nullTag  = 0x00
	valueTag = 0x01
)

// ReductionMethod maps a 64-bit hash onto a segment index.
type ReductionMethod int64

const (
	// ReduceJump uses jump consistent hashing.
	ReduceJump ReductionMethod = iota
	// ReduceModulo takes the hash modulo the segment count.
	ReduceModulo
)

// ReductionSetting selects the reduction used to place hashed rows. It must
// be the same at table creation and at load time.
var ReductionSetting = settings.RegisterEnumSetting(
	settings.ClusterWide,
	"sql.distribution.hash_reduction",
	"function that reduces a row hash to a segment index",
	"jump",
	map[int64]string{
		int64(ReduceJump):   "jump",
		int64(ReduceModulo): "modulo",
	},
)

func (m ReductionMethod) String() string {
	if m == ReduceModulo {
		return "modulo"
	}
	return "jump"
}

// Reduce maps h onto [0, numSegments).
func (m ReductionMethod) Reduce(h uint64, numSegments int) int {
	if numSegments <= 1 {
		return 0
	}
	if m == ReduceModulo {
		return int(h % uint64(numSegments))
	}
	return jumpHash(h, numSegments)
}

// jumpHash is the jump consistent hash of Lamping and Veach.
func jumpHash(key uint64, numBuckets int) int {
	var b, j int64 = -1, 0
	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}

// Destination is where a row must be sent.
type Destination struct {
	// Segment is the target segment; it is meaningless when Broadcast is set.
	Segment int
	// Broadcast is set when every segment receives the row.
	Broadcast bool
}

// Router computes the Destination of rows.
type Router interface {
	// Route returns the destination of a row given in table column order.
	Route(row tree.Datums) (Destination, error)
	// KeyColumns are the columns whose values determine the destination.
	KeyColumns() []catalog.ColumnID
	// NumSegments is the number of possible destinations.
	NumSegments() int
}

// Seed makes the random placement of one statement reproducible.
type Seed struct {
	K0, K1 uint64
}

// MakeRandomSeed draws a fresh seed for a statement.
func MakeRandomSeed() Seed {
	u := uuid.New()
	return Seed{
		K0: binary.LittleEndian.Uint64(u[:8]),
		K1: binary.LittleEndian.Uint64(u[8:]),
	}
}

// MakeRouter creates the router for a relation's distribution policy.
func MakeRouter(
	ctx context.Context,
	sv *settings.Values,
	table *catalog.TableDescriptor,
	seed Seed,
) (Router, error) {
	p := table.Policy
	if p.NumSegments < 1 {
		return nil, errors.AssertionFailedf("relation %s has no segments", table.Name)
	}
	switch p.Kind {
	case catalog.PolicyReplicated:
		return &mirrorRouter{numSegments: p.NumSegments}, nil
	case catalog.PolicyHash:
		if len(p.KeyColumns) > 0 {
			hr := &hashRouter{
				hashCols:    p.KeyColumns,
				numSegments: p.NumSegments,
				reduction:   ReductionMethod(ReductionSetting.Get(sv)),
			}
			hr.types = make([]*types.T, len(p.KeyColumns))
			for i, c := range p.KeyColumns {
				hr.types[i] = table.Column(c).Type
			}
			log.VEventf(ctx, 2, "hash router over %s with %d segments", p, p.NumSegments)
			return hr, nil
		}
		fallthrough
	case catalog.PolicyRandom:
		return &randomRouter{seed: seed, numSegments: p.NumSegments}, nil
	}
	return nil, errors.Errorf("relation %s with %s policy cannot be routed", table.Name, p.Kind)
}

type mirrorRouter struct {
	numSegments int
}

var _ Router = &mirrorRouter{}

func (mr *mirrorRouter) Route(tree.Datums) (Destination, error) {
	return Destination{Broadcast: true}, nil
}

func (mr *mirrorRouter) KeyColumns() []catalog.ColumnID { return nil }
func (mr *mirrorRouter) NumSegments() int               { return mr.numSegments }

// randomRouter spreads rows uniformly. The n-th row of a statement always
// lands on the same segment for a given seed.
type randomRouter struct {
	seed        Seed
	numSegments int
	rowIdx      uint64
	buf         [8]byte
}

var _ Router = &randomRouter{}

func (rr *randomRouter) Route(tree.Datums) (Destination, error) {
	binary.LittleEndian.PutUint64(rr.buf[:], rr.rowIdx)
	rr.rowIdx++
	h := siphash.Hash(rr.seed.K0, rr.seed.K1, rr.buf[:])
	return Destination{Segment: int(h % uint64(rr.numSegments))}, nil
}

func (rr *randomRouter) KeyColumns() []catalog.ColumnID { return nil }
func (rr *randomRouter) NumSegments() int               { return rr.numSegments }

type hashRouter struct {
	hashCols    []catalog.ColumnID
	types       []*types.T
	numSegments int
	reduction   ReductionMethod
	buffer      []byte
}

var _ Router = &hashRouter{}

func (hr *hashRouter) KeyColumns() []catalog.ColumnID { return hr.hashCols }
func (hr *hashRouter) NumSegments() int               { return hr.numSegments }

// Route is part of the Router interface.
func (hr *hashRouter) Route(row tree.Datums) (Destination, error) {
	h, err := hr.computeHash(row)
	if err != nil {
		return Destination{}, err
	}
	return Destination{Segment: hr.reduction.Reduce(h, hr.numSegments)}, nil
}

// computeHash hashes the key columns of a row.
func (hr *hashRouter) computeHash(row tree.Datums) (uint64, error) {
	hr.buffer = hr.buffer[:0]
	for i, col := range hr.hashCols {
		if int(col) > len(row) {
			return 0, errors.AssertionFailedf("hash column %d, row with only %d columns", col, len(row))
		}
		var err error
		hr.buffer, err = AppendHashKey(hr.buffer, hr.types[i], row[col-1])
		if err != nil {
			return 0, err
		}
	}
	return siphash.Hash(hashK0, hashK1, hr.buffer), nil
}

// AppendHashKey appends the canonical hashing form of d to b. Values that
// compare equal within a family produce the same bytes regardless of the
// declared width: all integers hash as 8-byte values, -0 hashes as 0 and
// numerics are reduced before hashing.
func AppendHashKey(b []byte, t *types.T, d tree.Datum) ([]byte, error) {
	if d == tree.DNull {
		return append(b, nullTag), nil
	}
	b = append(b, valueTag)
	var payload []byte
	switch v := d.(type) {
	case *tree.DInt:
		payload = binary.BigEndian.AppendUint64(nil, uint64(*v))
	case *tree.DFloat:
		f := float64(*v)
		switch {
		case f == 0:
			f = 0
		case math.IsNaN(f):
			f = math.NaN()
		}
		payload = binary.BigEndian.AppendUint64(nil, math.Float64bits(f))
	case *tree.DDecimal:
		var r apd.Decimal
		r.Reduce(&v.Decimal)
		payload = []byte(r.Text('f'))
	default:
		var err error
		if payload, err = tree.AppendBinary(nil, t, d); err != nil {
			return nil, err
		}
	}
	b = binary.BigEndian.AppendUint32(b, uint32(len(payload)))
	return append(b, payload...), nil
}
