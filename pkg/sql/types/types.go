// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types describes the column types understood by the COPY engine
// and the cost model.
package types

import (
	"strconv"
	"strings"

	"github.com/lib/pq/oid"
)

// Family is the broad category a type belongs to.
type Family int32

// Type families.
const (
	UnknownFamily Family = iota
	BoolFamily
	IntFamily
	FloatFamily
	DecimalFamily
	StringFamily
	BytesFamily
	DateFamily
	TimestampFamily
	TimestampTZFamily
	UuidFamily
	OidFamily
)

var familyNames = [...]string{
	UnknownFamily:     "unknown",
	BoolFamily:        "bool",
	IntFamily:         "int",
	FloatFamily:       "float",
	DecimalFamily:     "decimal",
	StringFamily:      "string",
	BytesFamily:       "bytes",
	DateFamily:        "date",
	TimestampFamily:   "timestamp",
	TimestampTZFamily: "timestamptz",
	UuidFamily:        "uuid",
	OidFamily:         "oid",
}

func (f Family) String() string {
	if f < 0 || int(f) >= len(familyNames) {
		return familyNames[UnknownFamily]
	}
	return familyNames[f]
}

// T is an instance of a column type. Types are immutable and compared by
// pointer for the predefined instances.
type T struct {
	family Family
	// width is the bit width for ints and floats, or the maximum character
	// length for varchar (0 for unbounded).
	width int32
	oid   oid.Oid
	name  string
	// byteLen is the on-disk length: positive for fixed-width types and -1
	// for variable-length ones.
	byteLen int16
	byVal   bool
}

// Predefined types.
var (
	Bool        = &T{family: BoolFamily, oid: oid.T_bool, name: "bool", byteLen: 1, byVal: true}
	Int2        = &T{family: IntFamily, width: 16, oid: oid.T_int2, name: "int2", byteLen: 2, byVal: true}
	Int4        = &T{family: IntFamily, width: 32, oid: oid.T_int4, name: "int4", byteLen: 4, byVal: true}
	Int         = &T{family: IntFamily, width: 64, oid: oid.T_int8, name: "int8", byteLen: 8, byVal: true}
	Float4      = &T{family: FloatFamily, width: 32, oid: oid.T_float4, name: "float4", byteLen: 4, byVal: true}
	Float       = &T{family: FloatFamily, width: 64, oid: oid.T_float8, name: "float8", byteLen: 8, byVal: true}
	Decimal     = &T{family: DecimalFamily, oid: oid.T_numeric, name: "numeric", byteLen: -1}
	String      = &T{family: StringFamily, oid: oid.T_text, name: "text", byteLen: -1}
	VarChar     = &T{family: StringFamily, oid: oid.T_varchar, name: "varchar", byteLen: -1}
	Bytes       = &T{family: BytesFamily, oid: oid.T_bytea, name: "bytea", byteLen: -1}
	Date        = &T{family: DateFamily, oid: oid.T_date, name: "date", byteLen: 4, byVal: true}
	Timestamp   = &T{family: TimestampFamily, oid: oid.T_timestamp, name: "timestamp", byteLen: 8, byVal: true}
	TimestampTZ = &T{family: TimestampTZFamily, oid: oid.T_timestamptz, name: "timestamptz", byteLen: 8, byVal: true}
	Uuid        = &T{family: UuidFamily, oid: oid.T_uuid, name: "uuid", byteLen: 16}
	Oid         = &T{family: OidFamily, oid: oid.T_oid, name: "oid", byteLen: 4, byVal: true}
)

// Scalar lists every predefined type.
var Scalar = []*T{
	Bool, Int2, Int4, Int, Float4, Float, Decimal, String, VarChar, Bytes,
	Date, Timestamp, TimestampTZ, Uuid, Oid,
}

// OidToType maps a type OID to the predefined type.
var OidToType = func() map[oid.Oid]*T {
	m := make(map[oid.Oid]*T, len(Scalar))
	for _, t := range Scalar {
		m[t.oid] = t
	}
	return m
}()

var typeAliases = map[string]*T{
	"boolean":                     Bool,
	"smallint":                    Int2,
	"integer":                     Int4,
	"int":                         Int4,
	"bigint":                      Int,
	"real":                        Float4,
	"double precision":            Float,
	"decimal":                     Decimal,
	"character varying":           VarChar,
	"timestamp without time zone": Timestamp,
	"timestamp with time zone":    TimestampTZ,
}

// TypeForName resolves a type name, including the common SQL aliases.
func TypeForName(name string) (*T, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if t, ok := typeAliases[name]; ok {
		return t, true
	}
	for _, t := range Scalar {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

// MakeVarChar returns a varchar type with the given maximum length.
func MakeVarChar(width int32) *T {
	if width == 0 {
		return VarChar
	}
	t := *VarChar
	t.width = width
	return &t
}

// Family returns the type family.
func (t *T) Family() Family { return t.family }

// Width returns the bit width of ints and floats, or the maximum length
// of a varchar.
func (t *T) Width() int32 { return t.width }

// Oid returns the type's OID.
func (t *T) Oid() oid.Oid { return t.oid }

// Name returns the canonical type name.
func (t *T) Name() string { return t.name }

// ByteLen is the fixed storage length of the type, or -1 if the type is
// variable-length.
func (t *T) ByteLen() int16 { return t.byteLen }

// ByVal reports whether values of the type fit in a machine word.
func (t *T) ByVal() bool { return t.byVal }

// Identical reports whether two types are the same, including width.
func (t *T) Identical(other *T) bool {
	return t.oid == other.oid && t.width == other.width
}

// AvgWidth estimates the average stored width of a value, used by the cost
// model when no statistics exist.
func (t *T) AvgWidth() int32 {
	if t.byteLen > 0 {
		return int32(t.byteLen)
	}
	if t.family == StringFamily && t.width > 0 {
		maxWidth := t.width + 4
		switch {
		case maxWidth <= 32:
			return maxWidth
		case maxWidth < 1000:
			return 32 + (maxWidth-32)/2
		default:
			return 32 + (1000-32)/2
		}
	}
	return 32
}

// SQLString returns the type name as it would appear in SQL.
func (t *T) SQLString() string {
	if t.family == StringFamily && t.oid == oid.T_varchar && t.width > 0 {
		return "varchar(" + strconv.Itoa(int(t.width)) + ")"
	}
	return t.name
}

func (t *T) String() string { return t.SQLString() }
