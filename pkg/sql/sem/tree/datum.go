// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package tree holds the datum representations of column values and their
// text and binary input/output functions.
package tree

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"github.com/mppdb/mppdb/pkg/sql/types"
)

// Datum represents a SQL value.
type Datum interface {
	// ResolvedType provides the type of the datum.
	ResolvedType() *types.T
	// Compare returns -1 if the receiver is less than other, 0 if they are
	// equal and +1 if the receiver is greater. NULL sorts before every
	// other value. Datums of different families are ordered by family.
	Compare(other Datum) int
	// Size returns a lower bound on the total size of the datum in bytes.
	Size() uintptr
	// String returns the text output representation of the datum.
	String() string
}

// Datums is a slice of Datum values.
type Datums []Datum

// Compare compares two rows column by column.
func (d Datums) Compare(other Datums) int {
	for i := range d {
		if i >= len(other) {
			return 1
		}
		if c := d[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	if len(d) < len(other) {
		return -1
	}
	return 0
}

// Size sums the size of every datum.
func (d Datums) Size() uintptr {
	var s uintptr
	for _, v := range d {
		s += v.Size()
	}
	return s
}

func (d Datums) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range d {
		if i > 0 {
			b.WriteString(", ")
		}
		if v == DNull {
			b.WriteString("NULL")
		} else {
			b.WriteString(v.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}

type dNull struct{}

// DNull is the NULL Datum.
var DNull Datum = dNull{}

func (dNull) ResolvedType() *types.T { return nil }
func (dNull) Size() uintptr          { return 0 }
func (dNull) String() string         { return "NULL" }
func (dNull) Compare(other Datum) int {
	if other == DNull {
		return 0
	}
	return -1
}

// compareFamilies orders datums of unrelated types and handles NULL on the
// right-hand side. ok is false when the caller must compare the values.
func compareFamilies(d, other Datum) (c int, ok bool) {
	if other == DNull {
		return 1, true
	}
	lf, rf := d.ResolvedType().Family(), other.ResolvedType().Family()
	if lf < rf {
		return -1, true
	} else if lf > rf {
		return 1, true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64 | string | uint32 | int32](a, b T) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// DBool is the boolean Datum.
type DBool bool

// DBoolTrue and DBoolFalse are the two boolean datums.
var (
	DBoolTrue  = &constDBoolTrue
	DBoolFalse = &constDBoolFalse

	constDBoolTrue  DBool = true
	constDBoolFalse DBool = false
)

// MakeDBool converts its argument to a *DBool, returning either DBoolTrue or
// DBoolFalse.
func MakeDBool(d DBool) *DBool {
	if d {
		return DBoolTrue
	}
	return DBoolFalse
}

func (*DBool) ResolvedType() *types.T { return types.Bool }
func (*DBool) Size() uintptr          { return unsafe.Sizeof(DBool(false)) }
func (d *DBool) String() string {
	if *d {
		return "t"
	}
	return "f"
}
func (d *DBool) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	v := *other.(*DBool)
	switch {
	case !bool(*d) && bool(v):
		return -1
	case bool(*d) && !bool(v):
		return 1
	}
	return 0
}

// DInt is the int Datum.
type DInt int64

// NewDInt is a helper routine to create a *DInt initialized from its argument.
func NewDInt(d DInt) *DInt { return &d }

func (*DInt) ResolvedType() *types.T { return types.Int }
func (*DInt) Size() uintptr          { return unsafe.Sizeof(DInt(0)) }
func (d *DInt) String() string       { return strconv.FormatInt(int64(*d), 10) }
func (d *DInt) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return cmpOrdered(int64(*d), int64(*other.(*DInt)))
}

// DFloat is the float Datum.
type DFloat float64

// NewDFloat is a helper routine to create a *DFloat initialized from its
// argument.
func NewDFloat(d DFloat) *DFloat { return &d }

func (*DFloat) ResolvedType() *types.T { return types.Float }
func (*DFloat) Size() uintptr          { return unsafe.Sizeof(DFloat(0)) }
func (d *DFloat) String() string       { return formatFloat(float64(*d), 64) }
func (d *DFloat) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	l, r := float64(*d), float64(*other.(*DFloat))
	// NaN sorts after every other value, matching Postgres.
	switch ln, rn := math.IsNaN(l), math.IsNaN(r); {
	case ln && rn:
		return 0
	case ln:
		return 1
	case rn:
		return -1
	}
	return cmpOrdered(l, r)
}

func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

// DDecimal is the decimal Datum.
type DDecimal struct {
	apd.Decimal
}

func (*DDecimal) ResolvedType() *types.T { return types.Decimal }
func (d *DDecimal) Size() uintptr {
	return unsafe.Sizeof(*d) + uintptr(d.NumDigits()/2)
}
func (d *DDecimal) String() string {
	if d.Form == apd.NaN {
		return "NaN"
	}
	return d.Decimal.Text('f')
}
func (d *DDecimal) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	o := other.(*DDecimal)
	switch ln, rn := d.Form == apd.NaN, o.Form == apd.NaN; {
	case ln && rn:
		return 0
	case ln:
		return 1
	case rn:
		return -1
	}
	return d.Decimal.Cmp(&o.Decimal)
}

// DString is the string Datum.
type DString string

// NewDString is a helper routine to create a *DString initialized from its
// argument.
func NewDString(d string) *DString {
	r := DString(d)
	return &r
}

func (*DString) ResolvedType() *types.T { return types.String }
func (d *DString) Size() uintptr        { return unsafe.Sizeof(*d) + uintptr(len(*d)) }
func (d *DString) String() string       { return string(*d) }
func (d *DString) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return cmpOrdered(string(*d), string(*other.(*DString)))
}

// DBytes is the bytes Datum. The underlying type is a string because we want
// the immutability, but this may contain arbitrary bytes.
type DBytes string

// NewDBytes is a helper routine to create a *DBytes initialized from its
// argument.
func NewDBytes(d DBytes) *DBytes { return &d }

func (*DBytes) ResolvedType() *types.T { return types.Bytes }
func (d *DBytes) Size() uintptr        { return unsafe.Sizeof(*d) + uintptr(len(*d)) }
func (d *DBytes) String() string {
	const hexDigits = "0123456789abcdef"
	var b strings.Builder
	b.Grow(2 + 2*len(*d))
	b.WriteString(`\x`)
	for i := 0; i < len(*d); i++ {
		c := (*d)[i]
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xf])
	}
	return b.String()
}
func (d *DBytes) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return cmpOrdered(string(*d), string(*other.(*DBytes)))
}

// PGEpoch is the zero point of the on-disk date and timestamp encodings.
var PGEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DDate is the date Datum, stored as days since PGEpoch.
type DDate int32

// NewDDateFromTime returns the date containing t, interpreted in UTC.
func NewDDateFromTime(t time.Time) *DDate {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	d := DDate(day.Sub(PGEpoch) / (24 * time.Hour))
	return &d
}

// Time returns midnight UTC of the date.
func (d *DDate) Time() time.Time {
	return PGEpoch.AddDate(0, 0, int(*d))
}

func (*DDate) ResolvedType() *types.T { return types.Date }
func (*DDate) Size() uintptr          { return unsafe.Sizeof(DDate(0)) }
func (d *DDate) String() string       { return d.Time().Format("2006-01-02") }
func (d *DDate) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return cmpOrdered(int32(*d), int32(*other.(*DDate)))
}

// DTimestamp is the timestamp Datum.
type DTimestamp struct {
	time.Time
}

// MakeDTimestamp creates a DTimestamp rounded to microseconds.
func MakeDTimestamp(t time.Time) *DTimestamp {
	return &DTimestamp{Time: t.Round(time.Microsecond).UTC()}
}

func (*DTimestamp) ResolvedType() *types.T { return types.Timestamp }
func (d *DTimestamp) Size() uintptr        { return unsafe.Sizeof(*d) }
func (d *DTimestamp) String() string {
	return d.Time.Format("2006-01-02 15:04:05.999999")
}
func (d *DTimestamp) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return d.Time.Compare(other.(*DTimestamp).Time)
}

// DTimestampTZ is the timestamp Datum that is rendered with session offset.
// Values are normalized to UTC.
type DTimestampTZ struct {
	time.Time
}

// MakeDTimestampTZ creates a DTimestampTZ rounded to microseconds.
func MakeDTimestampTZ(t time.Time) *DTimestampTZ {
	return &DTimestampTZ{Time: t.Round(time.Microsecond).UTC()}
}

func (*DTimestampTZ) ResolvedType() *types.T { return types.TimestampTZ }
func (d *DTimestampTZ) Size() uintptr        { return unsafe.Sizeof(*d) }
func (d *DTimestampTZ) String() string {
	return d.Time.Format("2006-01-02 15:04:05.999999-07")
}
func (d *DTimestampTZ) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return d.Time.Compare(other.(*DTimestampTZ).Time)
}

// DUuid is the UUID Datum.
type DUuid struct {
	uuid.UUID
}

func (*DUuid) ResolvedType() *types.T { return types.Uuid }
func (d *DUuid) Size() uintptr        { return unsafe.Sizeof(*d) }
func (d *DUuid) String() string       { return d.UUID.String() }
func (d *DUuid) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	o := other.(*DUuid)
	return strings.Compare(string(d.UUID[:]), string(o.UUID[:]))
}

// DOid is the Postgres OID datum.
type DOid uint32

// NewDOid is a helper routine to create a *DOid initialized from its argument.
func NewDOid(d uint32) *DOid {
	r := DOid(d)
	return &r
}

func (*DOid) ResolvedType() *types.T { return types.Oid }
func (*DOid) Size() uintptr          { return unsafe.Sizeof(DOid(0)) }
func (d *DOid) String() string       { return strconv.FormatUint(uint64(*d), 10) }
func (d *DOid) Compare(other Datum) int {
	if c, ok := compareFamilies(d, other); ok {
		return c
	}
	return cmpOrdered(uint32(*d), uint32(*other.(*DOid)))
}
