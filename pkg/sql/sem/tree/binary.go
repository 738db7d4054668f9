// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/types"
)

// Sign bits of the Postgres binary numeric encoding.
const (
	pgNumericPos = 0x0000
	pgNumericNeg = 0x4000
	pgNumericNaN = 0xC000
)

// pgDecimalDigits is the number of decimal digits per base-10000 digit.
const pgDecimalDigits = 4

// AppendBinary appends the Postgres binary send representation of d, a
// non-NULL value of type t, to b.
func AppendBinary(b []byte, t *types.T, d Datum) ([]byte, error) {
	switch v := d.(type) {
	case *DBool:
		if *v {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case *DInt:
		switch t.Width() {
		case 16:
			return binary.BigEndian.AppendUint16(b, uint16(int16(*v))), nil
		case 32:
			return binary.BigEndian.AppendUint32(b, uint32(int32(*v))), nil
		}
		return binary.BigEndian.AppendUint64(b, uint64(*v)), nil
	case *DFloat:
		if t.Width() == 32 {
			return binary.BigEndian.AppendUint32(b, math.Float32bits(float32(*v))), nil
		}
		return binary.BigEndian.AppendUint64(b, math.Float64bits(float64(*v))), nil
	case *DDecimal:
		return appendBinaryDecimal(b, &v.Decimal)
	case *DString:
		return append(b, *v...), nil
	case *DBytes:
		return append(b, *v...), nil
	case *DDate:
		return binary.BigEndian.AppendUint32(b, uint32(int32(*v))), nil
	case *DTimestamp:
		return binary.BigEndian.AppendUint64(b, uint64(timeToPGMicros(v.Time))), nil
	case *DTimestampTZ:
		return binary.BigEndian.AppendUint64(b, uint64(timeToPGMicros(v.Time))), nil
	case *DUuid:
		return append(b, v.UUID[:]...), nil
	case *DOid:
		return binary.BigEndian.AppendUint32(b, uint32(*v)), nil
	}
	return b, errors.AssertionFailedf("unsupported datum %T for binary output", d)
}

func timeToPGMicros(t time.Time) int64 {
	return t.Sub(PGEpoch).Microseconds()
}

func pgMicrosToTime(us int64) time.Time {
	return PGEpoch.Add(time.Duration(us) * time.Microsecond)
}

func appendBinaryDecimal(b []byte, d *apd.Decimal) ([]byte, error) {
	if d.Form == apd.NaN {
		b = binary.BigEndian.AppendUint16(b, 0)
		b = binary.BigEndian.AppendUint16(b, 0)
		b = binary.BigEndian.AppendUint16(b, pgNumericNaN)
		return binary.BigEndian.AppendUint16(b, 0), nil
	}
	if d.Form != apd.Finite {
		return b, pgerror.New(pgcode.FeatureNotSupported, "cannot send infinite numeric value")
	}
	text := d.Text('f')
	sign := uint16(pgNumericPos)
	if strings.HasPrefix(text, "-") {
		sign = pgNumericNeg
		text = text[1:]
	}
	intPart, fracPart, _ := strings.Cut(text, ".")
	intPart = strings.TrimLeft(intPart, "0")
	dscale := len(fracPart)

	// Pad both halves to whole base-10000 digits.
	if r := len(intPart) % pgDecimalDigits; r != 0 {
		intPart = strings.Repeat("0", pgDecimalDigits-r) + intPart
	}
	if r := len(fracPart) % pgDecimalDigits; r != 0 {
		fracPart += strings.Repeat("0", pgDecimalDigits-r)
	}
	all := intPart + fracPart
	digits := make([]int16, 0, len(all)/pgDecimalDigits)
	for i := 0; i < len(all); i += pgDecimalDigits {
		g, _ := strconv.Atoi(all[i : i+pgDecimalDigits])
		digits = append(digits, int16(g))
	}
	weight := len(intPart)/pgDecimalDigits - 1
	for len(digits) > 0 && digits[0] == 0 {
		digits = digits[1:]
		weight--
	}
	for len(digits) > 0 && digits[len(digits)-1] == 0 {
		digits = digits[:len(digits)-1]
	}
	if len(digits) == 0 {
		weight = 0
		sign = pgNumericPos
	}
	b = binary.BigEndian.AppendUint16(b, uint16(len(digits)))
	b = binary.BigEndian.AppendUint16(b, uint16(int16(weight)))
	b = binary.BigEndian.AppendUint16(b, sign)
	b = binary.BigEndian.AppendUint16(b, uint16(dscale))
	for _, dg := range digits {
		b = binary.BigEndian.AppendUint16(b, uint16(dg))
	}
	return b, nil
}

func insufficientBinaryData() error {
	return pgerror.New(pgcode.InvalidBinaryRepresentation, "insufficient data left in message")
}

func incorrectBinaryFormat(t *types.T) error {
	return pgerror.Newf(pgcode.InvalidBinaryRepresentation,
		"incorrect binary data format for type %s", redactSafe(t.Name()))
}

// DecodeBinary decodes b, the Postgres binary receive representation of a
// value of type t.
func DecodeBinary(t *types.T, b []byte) (Datum, error) {
	need := func(n int) error {
		if len(b) < n {
			return insufficientBinaryData()
		}
		if len(b) > n {
			return incorrectBinaryFormat(t)
		}
		return nil
	}
	switch t.Family() {
	case types.BoolFamily:
		if err := need(1); err != nil {
			return nil, err
		}
		return MakeDBool(b[0] != 0), nil
	case types.IntFamily:
		switch t.Width() {
		case 16:
			if err := need(2); err != nil {
				return nil, err
			}
			return NewDInt(DInt(int16(binary.BigEndian.Uint16(b)))), nil
		case 32:
			if err := need(4); err != nil {
				return nil, err
			}
			return NewDInt(DInt(int32(binary.BigEndian.Uint32(b)))), nil
		}
		if err := need(8); err != nil {
			return nil, err
		}
		return NewDInt(DInt(int64(binary.BigEndian.Uint64(b)))), nil
	case types.FloatFamily:
		if t.Width() == 32 {
			if err := need(4); err != nil {
				return nil, err
			}
			return NewDFloat(DFloat(math.Float32frombits(binary.BigEndian.Uint32(b)))), nil
		}
		if err := need(8); err != nil {
			return nil, err
		}
		return NewDFloat(DFloat(math.Float64frombits(binary.BigEndian.Uint64(b)))), nil
	case types.DecimalFamily:
		return decodeBinaryDecimal(b)
	case types.StringFamily:
		return ParseDatumText(t, string(b))
	case types.BytesFamily:
		return NewDBytes(DBytes(b)), nil
	case types.DateFamily:
		if err := need(4); err != nil {
			return nil, err
		}
		d := DDate(int32(binary.BigEndian.Uint32(b)))
		return &d, nil
	case types.TimestampFamily:
		if err := need(8); err != nil {
			return nil, err
		}
		return &DTimestamp{Time: pgMicrosToTime(int64(binary.BigEndian.Uint64(b)))}, nil
	case types.TimestampTZFamily:
		if err := need(8); err != nil {
			return nil, err
		}
		return &DTimestampTZ{Time: pgMicrosToTime(int64(binary.BigEndian.Uint64(b)))}, nil
	case types.UuidFamily:
		if err := need(16); err != nil {
			return nil, err
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return nil, incorrectBinaryFormat(t)
		}
		return &DUuid{UUID: u}, nil
	case types.OidFamily:
		if err := need(4); err != nil {
			return nil, err
		}
		return NewDOid(binary.BigEndian.Uint32(b)), nil
	}
	return nil, errors.AssertionFailedf("unsupported type %s for binary input", t)
}

func decodeBinaryDecimal(b []byte) (Datum, error) {
	if len(b) < 8 {
		return nil, insufficientBinaryData()
	}
	ndigits := int(binary.BigEndian.Uint16(b[0:]))
	weight := int(int16(binary.BigEndian.Uint16(b[2:])))
	sign := binary.BigEndian.Uint16(b[4:])
	dscale := int(binary.BigEndian.Uint16(b[6:]))
	b = b[8:]
	if len(b) != 2*ndigits {
		return nil, incorrectBinaryFormat(types.Decimal)
	}
	switch sign {
	case pgNumericNaN:
		return &DDecimal{Decimal: apd.Decimal{Form: apd.NaN}}, nil
	case pgNumericPos, pgNumericNeg:
	default:
		return nil, pgerror.New(pgcode.InvalidBinaryRepresentation, "invalid sign in external \"numeric\" value")
	}
	digit := func(i int) string {
		if i < 0 || i >= ndigits {
			return "0000"
		}
		v := binary.BigEndian.Uint16(b[2*i:])
		if v >= 10000 {
			return ""
		}
		s := strconv.Itoa(int(v))
		return strings.Repeat("0", pgDecimalDigits-len(s)) + s
	}
	var sb strings.Builder
	if sign == pgNumericNeg {
		sb.WriteByte('-')
	}
	if weight < 0 {
		sb.WriteByte('0')
	}
	for i := 0; i <= weight; i++ {
		g := digit(i)
		if g == "" {
			return nil, pgerror.New(pgcode.InvalidBinaryRepresentation, "invalid digit in external \"numeric\" value")
		}
		sb.WriteString(g)
	}
	if dscale > 0 {
		var frac strings.Builder
		for i := weight + 1; frac.Len() < dscale; i++ {
			g := digit(i)
			if g == "" {
				return nil, pgerror.New(pgcode.InvalidBinaryRepresentation, "invalid digit in external \"numeric\" value")
			}
			frac.WriteString(g)
		}
		sb.WriteByte('.')
		sb.WriteString(frac.String()[:dscale])
	}
	dec, _, err := apd.NewFromString(sb.String())
	if err != nil {
		return nil, errors.WithSecondaryError(incorrectBinaryFormat(types.Decimal), err)
	}
	return &DDecimal{Decimal: *dec}, nil
}
