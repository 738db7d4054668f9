// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/types"
)

// sqlTypeName is the name Postgres uses for a type in input error messages.
func sqlTypeName(t *types.T) string {
	switch t.Family() {
	case types.BoolFamily:
		return "boolean"
	case types.IntFamily:
		switch t.Width() {
		case 16:
			return "smallint"
		case 32:
			return "integer"
		}
		return "bigint"
	case types.FloatFamily:
		if t.Width() == 32 {
			return "real"
		}
		return "double precision"
	case types.TimestampFamily:
		return "timestamp"
	case types.TimestampTZFamily:
		return "timestamp with time zone"
	}
	return t.Name()
}

func makeParseError(s string, t *types.T, err error) error {
	code := pgcode.InvalidTextRepresentation
	switch t.Family() {
	case types.DateFamily, types.TimestampFamily, types.TimestampTZFamily:
		code = pgcode.InvalidDatetimeFormat
	}
	perr := pgerror.Newf(code, "invalid input syntax for type %s: \"%s\"", redactSafe(sqlTypeName(t)), s)
	if err != nil {
		perr = errors.WithSecondaryError(perr, err)
	}
	return perr
}

func makeOutOfRangeError(s string, t *types.T) error {
	return pgerror.Newf(pgcode.NumericValueOutOfRange,
		"value \"%s\" is out of range for type %s", s, redactSafe(sqlTypeName(t)))
}

// ParseDatumText parses s, the text input representation of a value, as a
// datum of type t. Whitespace surrounding numeric, boolean and uuid input is
// ignored, as Postgres does.
func ParseDatumText(t *types.T, s string) (Datum, error) {
	switch t.Family() {
	case types.BoolFamily:
		return ParseDBool(s)
	case types.IntFamily:
		return ParseDInt(t, s)
	case types.FloatFamily:
		return ParseDFloat(t, s)
	case types.DecimalFamily:
		return ParseDDecimal(s)
	case types.StringFamily:
		if t.Width() > 0 && utf8.RuneCountInString(s) > int(t.Width()) {
			trimmed := strings.TrimRight(s, " ")
			if utf8.RuneCountInString(trimmed) > int(t.Width()) {
				return nil, pgerror.Newf(pgcode.StringDataRightTruncation,
					"value too long for type character varying(%d)", t.Width())
			}
			s = string([]rune(s)[:t.Width()])
		}
		return NewDString(s), nil
	case types.BytesFamily:
		return ParseDBytes(s)
	case types.DateFamily:
		return ParseDDate(s)
	case types.TimestampFamily:
		ts, err := parseTimestamp(s, false)
		if err != nil {
			return nil, makeParseError(s, t, err)
		}
		return MakeDTimestamp(ts), nil
	case types.TimestampTZFamily:
		ts, err := parseTimestamp(s, true)
		if err != nil {
			return nil, makeParseError(s, t, err)
		}
		return MakeDTimestampTZ(ts), nil
	case types.UuidFamily:
		u, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, makeParseError(s, t, err)
		}
		return &DUuid{UUID: u}, nil
	case types.OidFamily:
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, makeOutOfRangeError(s, t)
			}
			return nil, makeParseError(s, t, err)
		}
		return NewDOid(uint32(v)), nil
	}
	return nil, errors.AssertionFailedf("unsupported type %s", t)
}

// ParseDBool parses and returns the *DBool Datum value represented by the
// provided string, or an error if parsing is unsuccessful.
func ParseDBool(s string) (*DBool, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "t", "tr", "tru", "true", "y", "ye", "yes", "on", "1":
		return DBoolTrue, nil
	case "f", "fa", "fal", "fals", "false", "n", "no", "of", "off", "0":
		return DBoolFalse, nil
	}
	return nil, makeParseError(s, types.Bool, nil)
}

// ParseDInt parses and returns the *DInt Datum value represented by the
// provided string, checking it against the width of t.
func ParseDInt(t *types.T, s string) (*DInt, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, makeOutOfRangeError(s, t)
		}
		return nil, makeParseError(s, t, err)
	}
	switch t.Width() {
	case 16:
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, makeOutOfRangeError(s, t)
		}
	case 32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, makeOutOfRangeError(s, t)
		}
	}
	return NewDInt(DInt(v)), nil
}

// ParseDFloat parses and returns the *DFloat Datum value represented by the
// provided string.
func ParseDFloat(t *types.T, s string) (*DFloat, error) {
	v := strings.TrimSpace(s)
	switch strings.ToLower(v) {
	case "nan":
		return NewDFloat(DFloat(math.NaN())), nil
	case "infinity", "+infinity", "inf", "+inf":
		return NewDFloat(DFloat(math.Inf(1))), nil
	case "-infinity", "-inf":
		return NewDFloat(DFloat(math.Inf(-1))), nil
	}
	bits := 64
	if t.Width() == 32 {
		bits = 32
	}
	f, err := strconv.ParseFloat(v, bits)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, makeOutOfRangeError(s, t)
		}
		return nil, makeParseError(s, t, err)
	}
	return NewDFloat(DFloat(f)), nil
}

// ParseDDecimal parses and returns the *DDecimal Datum value represented by
// the provided string.
func ParseDDecimal(s string) (*DDecimal, error) {
	v := strings.TrimSpace(s)
	if strings.EqualFold(v, "nan") {
		return &DDecimal{Decimal: apd.Decimal{Form: apd.NaN}}, nil
	}
	dec, _, err := apd.NewFromString(v)
	if err != nil || dec.Form != apd.Finite {
		return nil, makeParseError(s, types.Decimal, err)
	}
	return &DDecimal{Decimal: *dec}, nil
}

// ParseDBytes parses a bytea value in either the hex (\x...) or the escape
// input format.
func ParseDBytes(s string) (*DBytes, error) {
	if strings.HasPrefix(s, `\x`) {
		out := make([]byte, 0, (len(s)-2)/2)
		hex := s[2:]
		for i := 0; i < len(hex); {
			if hex[i] == ' ' || hex[i] == '\t' || hex[i] == '\n' || hex[i] == '\r' {
				i++
				continue
			}
			hi, ok := hexVal(hex[i])
			if !ok {
				return nil, pgerror.Newf(pgcode.InvalidParameterValue,
					"invalid hexadecimal digit: \"%s\"", hex[i:i+1])
			}
			if i+1 >= len(hex) {
				return nil, pgerror.New(pgcode.InvalidParameterValue,
					"invalid hexadecimal data: odd number of digits")
			}
			lo, ok := hexVal(hex[i+1])
			if !ok {
				return nil, pgerror.Newf(pgcode.InvalidParameterValue,
					"invalid hexadecimal digit: \"%s\"", hex[i+1:i+2])
			}
			out = append(out, hi<<4|lo)
			i += 2
		}
		return NewDBytes(DBytes(out)), nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		switch {
		case i+1 < len(s) && s[i+1] == '\\':
			out = append(out, '\\')
			i++
		case i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) && s[i+1] <= '3':
			out = append(out, (s[i+1]-'0')<<6|(s[i+2]-'0')<<3|(s[i+3]-'0'))
			i += 3
		default:
			return nil, makeParseError(s, types.Bytes, nil)
		}
	}
	return NewDBytes(DBytes(out)), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

var dateLayouts = []string{"2006-01-02", "2006-1-2", "20060102", "2006/01/02"}

// ParseDDate parses a date in ISO format.
func ParseDDate(s string) (*DDate, error) {
	v := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return NewDDateFromTime(t), nil
		}
	}
	return nil, makeParseError(s, types.Date, nil)
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

var timestampTZLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999 Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07",
}

// parseTimestamp parses the common ISO 8601 forms. Input without an offset
// is interpreted as UTC; with withTZ false, an offset is ignored.
func parseTimestamp(s string, withTZ bool) (time.Time, error) {
	v := strings.TrimSpace(s)
	for _, layout := range timestampTZLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			if !withTZ {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(),
					t.Second(), t.Nanosecond(), time.UTC), nil
			}
			return t, nil
		}
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, v, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
