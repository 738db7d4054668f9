// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"math"
	"strings"
	"testing"

	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

func TestParseDatumText(t *testing.T) {
	testCases := []struct {
		typ    *types.T
		in     string
		out    string
		errMsg string
		code   pgcode.Code
	}{
		{typ: types.Bool, in: "yes", out: "t"},
		{typ: types.Bool, in: " off ", out: "f"},
		{typ: types.Bool, in: "maybe", errMsg: `invalid input syntax for type boolean: "maybe"`, code: pgcode.InvalidTextRepresentation},
		{typ: types.Int4, in: " 42 ", out: "42"},
		{typ: types.Int4, in: "4x", errMsg: `invalid input syntax for type integer: "4x"`, code: pgcode.InvalidTextRepresentation},
		{typ: types.Int4, in: "2147483648", errMsg: `value "2147483648" is out of range for type integer`, code: pgcode.NumericValueOutOfRange},
		{typ: types.Int2, in: "-32769", errMsg: `value "-32769" is out of range for type smallint`, code: pgcode.NumericValueOutOfRange},
		{typ: types.Int, in: "-9223372036854775808", out: "-9223372036854775808"},
		{typ: types.Float, in: "1.5", out: "1.5"},
		{typ: types.Float, in: "-Infinity", out: "-Infinity"},
		{typ: types.Float4, in: "0.5", out: "0.5"},
		{typ: types.Decimal, in: "123.4500", out: "123.4500"},
		{typ: types.Decimal, in: "abc", errMsg: `invalid input syntax for type numeric: "abc"`, code: pgcode.InvalidTextRepresentation},
		{typ: types.String, in: "hello", out: "hello"},
		{typ: types.MakeVarChar(3), in: "ab   ", out: "ab "},
		{typ: types.MakeVarChar(3), in: "abcd", errMsg: "value too long for type character varying(3)", code: pgcode.StringDataRightTruncation},
		{typ: types.Bytes, in: `\x0aff`, out: `\x0aff`},
		{typ: types.Bytes, in: `a\\b\001`, out: `\x615c6201`},
		{typ: types.Bytes, in: `\xzz`, errMsg: `invalid hexadecimal digit: "z"`, code: pgcode.InvalidParameterValue},
		{typ: types.Date, in: "2024-02-29", out: "2024-02-29"},
		{typ: types.Date, in: "yesterday-ish", errMsg: `invalid input syntax for type date: "yesterday-ish"`, code: pgcode.InvalidDatetimeFormat},
		{typ: types.Timestamp, in: "2024-01-02 03:04:05.123456", out: "2024-01-02 03:04:05.123456"},
		{typ: types.TimestampTZ, in: "2024-01-02 03:04:05+02", out: "2024-01-02 01:04:05+00"},
		{typ: types.Uuid, in: "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", out: "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"},
		{typ: types.Oid, in: "16384", out: "16384"},
	}
	for _, tc := range testCases {
		t.Run(tc.typ.Name()+"/"+tc.in, func(t *testing.T) {
			d, err := ParseDatumText(tc.typ, tc.in)
			if tc.errMsg != "" {
				require.EqualError(t, err, tc.errMsg)
				require.Equal(t, tc.code, pgerror.GetPGCode(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.out, d.String())
		})
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	testCases := []struct {
		typ *types.T
		in  string
	}{
		{types.Bool, "t"},
		{types.Int2, "-7"},
		{types.Int4, "2147483647"},
		{types.Int, "-9223372036854775808"},
		{types.Float4, "1.25"},
		{types.Float, "3.141592653589793"},
		{types.Decimal, "0"},
		{types.Decimal, "123.4500"},
		{types.Decimal, "-0.00001"},
		{types.Decimal, "100000000"},
		{types.Decimal, "12345678901234567890.123456789"},
		{types.Decimal, "NaN"},
		{types.String, ""},
		{types.String, strings.Repeat("x", 1<<16)},
		{types.Bytes, `\x00ff10`},
		{types.Date, "1999-12-31"},
		{types.Timestamp, "2038-01-19 03:14:07.999999"},
		{types.TimestampTZ, "1970-01-01 00:00:00+00"},
		{types.Uuid, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"},
		{types.Oid, "4294967295"},
	}
	for _, tc := range testCases {
		name := tc.in
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(tc.typ.Name()+"/"+name, func(t *testing.T) {
			d, err := ParseDatumText(tc.typ, tc.in)
			require.NoError(t, err)
			enc, err := AppendBinary(nil, tc.typ, d)
			require.NoError(t, err)
			dec, err := DecodeBinary(tc.typ, enc)
			require.NoError(t, err)
			require.Equal(t, 0, d.Compare(dec), "%s != %s", d, dec)
			require.Equal(t, d.String(), dec.String())
		})
	}
}

func TestBinaryDecimalLayout(t *testing.T) {
	d, err := ParseDDecimal("123.4500")
	require.NoError(t, err)
	enc, err := AppendBinary(nil, types.Decimal, d)
	require.NoError(t, err)
	// ndigits=2 weight=0 sign=+ dscale=4 digits=[123, 4500]
	require.Equal(t, []byte{0, 2, 0, 0, 0, 0, 0, 4, 0, 123, 0x11, 0x94}, enc)
}

func TestDecodeBinaryErrors(t *testing.T) {
	_, err := DecodeBinary(types.Int4, []byte{0, 1})
	require.EqualError(t, err, "insufficient data left in message")
	require.Equal(t, pgcode.InvalidBinaryRepresentation, pgerror.GetPGCode(err))

	_, err = DecodeBinary(types.Int2, []byte{0, 1, 2})
	require.EqualError(t, err, "incorrect binary data format for type int2")

	_, err = DecodeBinary(types.Decimal, []byte{0, 1, 0, 0, 0x12, 0x34, 0, 0, 0, 1})
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	one, two := NewDInt(1), NewDInt(2)
	require.Equal(t, -1, one.Compare(two))
	require.Equal(t, 1, two.Compare(one))
	require.Equal(t, 0, one.Compare(NewDInt(1)))
	require.Equal(t, 1, one.Compare(DNull))
	require.Equal(t, -1, DNull.Compare(one))
	require.Equal(t, 0, DNull.Compare(DNull))

	nan := NewDFloat(DFloat(math.NaN()))
	require.Equal(t, 1, nan.Compare(NewDFloat(1)))

	require.Equal(t, -1, Datums{one, DNull}.Compare(Datums{one, two}))
	require.Equal(t, "(1, NULL)", Datums{one, DNull}.String())
}
