// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package copy implements bulk loading and unloading of relations in the
// text, CSV and binary COPY formats. A load runs in one of three roles: the
// dispatcher reads the input, routes every row and streams it to the owning
// segment; a segment finishes parsing the rows it receives and stores them;
// the direct role does everything on one node.
package copy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
)

// Direction is the direction of a COPY statement.
type Direction int

const (
	// From loads data into a relation.
	From Direction = iota
	// To unloads a relation.
	To
)

func (d Direction) String() string {
	if d == To {
		return "TO"
	}
	return "FROM"
}

// Format is the data format of a COPY statement.
type Format int

const (
	// FormatText is the tab separated text format.
	FormatText Format = iota
	// FormatCSV is comma separated values.
	FormatCSV
	// FormatBinary is the PGCOPY binary format.
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatBinary:
		return "binary"
	}
	return "text"
}

// EOLType is the line ending of text and CSV data.
type EOLType int

const (
	// EOLUnknown means the line ending is detected from the first line.
	EOLUnknown EOLType = iota
	// EOLNL is \n.
	EOLNL
	// EOLCR is \r.
	EOLCR
	// EOLCRNL is \r\n.
	EOLCRNL
)

func (e EOLType) String() string {
	switch e {
	case EOLNL:
		return "LF"
	case EOLCR:
		return "CR"
	case EOLCRNL:
		return "CRLF"
	}
	return "unknown"
}

// Option is one element of the option list of a COPY statement as it was
// written, before validation.
type Option struct {
	Name string
	// Value is the argument of the option, if it has one.
	Value    string
	HasValue bool
	// List holds the column names of FORCE_QUOTE, FORCE_NOT_NULL and
	// FORCE_NULL.
	List []string
	// Star is set for FORCE_QUOTE *.
	Star bool
}

// ParseOption parses the command line form of an option: name, name=value,
// name=(a,b,c) or name=*.
func ParseOption(s string) Option {
	name, val, ok := strings.Cut(s, "=")
	o := Option{Name: strings.ToLower(strings.TrimSpace(name))}
	if !ok {
		return o
	}
	o.HasValue = true
	switch {
	case val == "*":
		o.Star = true
	case strings.HasPrefix(val, "(") && strings.HasSuffix(val, ")"):
		for _, c := range strings.Split(val[1:len(val)-1], ",") {
			if c = strings.TrimSpace(c); c != "" {
				o.List = append(o.List, c)
			}
		}
	default:
		o.Value = val
	}
	return o
}

// Options are the validated options of a COPY statement.
type Options struct {
	Format Format
	// Delim separates fields. It is unused when DelimOff is set, in which
	// case each line is a single field.
	Delim    byte
	DelimOff bool
	// Null is the string that represents a NULL value.
	Null   string
	Header bool
	// Quote and Escape are only used in CSV mode, except that Escape is also
	// the text mode escape character unless EscapeOff is set.
	Quote     byte
	Escape    byte
	EscapeOff bool

	ForceQuote    []string
	ForceQuoteAll bool
	ForceNotNull  []string
	ForceNull     []string

	// Encoding is the encoding of the data. nil means UTF8.
	Encoding    *Encoding
	FillMissing bool
	EOL         EOLType
	OnSegment   bool

	// RejectLimit enables single row error handling when positive.
	RejectLimit     int64
	RejectLimitKind sreh.LimitKind
	LogErrors       bool
}

// CSV is a shorthand for the format check.
func (o *Options) CSV() bool { return o.Format == FormatCSV }

// Binary is a shorthand for the format check.
func (o *Options) Binary() bool { return o.Format == FormatBinary }

// SingleRowErrors reports whether rejected rows are isolated.
func (o *Options) SingleRowErrors() bool { return o.RejectLimit > 0 }

func conflictingOptions() error {
	return pgerror.New(pgcode.SyntaxError, "conflicting or redundant options")
}

func getBoolean(o Option) (bool, error) {
	if !o.HasValue {
		return true, nil
	}
	switch strings.ToLower(o.Value) {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0":
		return false, nil
	}
	return false, pgerror.Newf(pgcode.SyntaxError, "%s requires a Boolean value", o.Name)
}

func getString(o Option) (string, error) {
	if !o.HasValue || o.Star || o.List != nil {
		return "", pgerror.Newf(pgcode.SyntaxError, "%s requires a parameter", o.Name)
	}
	return o.Value, nil
}

func getColumnList(o Option) ([]string, error) {
	if o.List != nil {
		return o.List, nil
	}
	if o.HasValue && o.Value != "" {
		var cols []string
		for _, c := range strings.Split(o.Value, ",") {
			cols = append(cols, strings.TrimSpace(c))
		}
		return cols, nil
	}
	return nil, pgerror.Newf(pgcode.InvalidParameterValue,
		"argument to option \"%s\" must be a list of column names", o.Name)
}

// ParseOptions validates the option list of a statement and fills in the
// defaults of the chosen format.
func ParseOptions(dir Direction, raw []Option) (*Options, error) {
	isFrom := dir == From
	o := &Options{}
	var (
		formatSet, headerSet, fillSet, onSegSet, logSet bool
		encodingSet, forceQuoteSet                      bool
		delim, null, quote, escape, eol, limitType      *string
		limit                                           *int64
	)
	for _, opt := range raw {
		switch opt.Name {
		case "format":
			if formatSet {
				return nil, conflictingOptions()
			}
			formatSet = true
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			switch strings.ToLower(v) {
			case "text":
				o.Format = FormatText
			case "csv":
				o.Format = FormatCSV
			case "binary":
				o.Format = FormatBinary
			default:
				return nil, pgerror.Newf(pgcode.InvalidParameterValue, "COPY format \"%s\" not recognized", v)
			}
		case "delimiter":
			if delim != nil {
				return nil, conflictingOptions()
			}
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			delim = &v
		case "null":
			if null != nil {
				return nil, conflictingOptions()
			}
			v := opt.Value
			null = &v
		case "header":
			if headerSet {
				return nil, conflictingOptions()
			}
			headerSet = true
			v, err := getBoolean(opt)
			if err != nil {
				return nil, err
			}
			o.Header = v
		case "quote":
			if quote != nil {
				return nil, conflictingOptions()
			}
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			quote = &v
		case "escape":
			if escape != nil {
				return nil, conflictingOptions()
			}
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			escape = &v
		case "force_quote":
			if forceQuoteSet {
				return nil, conflictingOptions()
			}
			forceQuoteSet = true
			if opt.Star || opt.Value == "*" {
				o.ForceQuoteAll = true
				break
			}
			cols, err := getColumnList(opt)
			if err != nil {
				return nil, err
			}
			o.ForceQuote = cols
		case "force_not_null":
			if o.ForceNotNull != nil {
				return nil, conflictingOptions()
			}
			cols, err := getColumnList(opt)
			if err != nil {
				return nil, err
			}
			o.ForceNotNull = cols
		case "force_null":
			if o.ForceNull != nil {
				return nil, conflictingOptions()
			}
			cols, err := getColumnList(opt)
			if err != nil {
				return nil, err
			}
			o.ForceNull = cols
		case "encoding":
			if encodingSet {
				return nil, conflictingOptions()
			}
			encodingSet = true
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			enc, ok := LookupEncoding(v)
			if !ok {
				return nil, pgerror.Newf(pgcode.InvalidParameterValue,
					"argument to option \"%s\" must be a valid encoding name", opt.Name)
			}
			o.Encoding = enc
		case "fill_missing_fields":
			if fillSet {
				return nil, conflictingOptions()
			}
			fillSet = true
			v, err := getBoolean(opt)
			if err != nil {
				return nil, err
			}
			o.FillMissing = v
		case "newline":
			if eol != nil {
				return nil, conflictingOptions()
			}
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			eol = &v
		case "on_segment":
			if onSegSet {
				return nil, conflictingOptions()
			}
			onSegSet = true
			o.OnSegment = true
		case "segment_reject_limit":
			if limit != nil {
				return nil, conflictingOptions()
			}
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, pgerror.Newf(pgcode.SyntaxError, "invalid segment reject limit \"%s\"", v)
			}
			limit = &n
		case "reject_limit_type":
			if limitType != nil {
				return nil, conflictingOptions()
			}
			v, err := getString(opt)
			if err != nil {
				return nil, err
			}
			limitType = &v
		case "log_errors":
			if logSet {
				return nil, conflictingOptions()
			}
			logSet = true
			v, err := getBoolean(opt)
			if err != nil {
				return nil, err
			}
			o.LogErrors = v
		default:
			return nil, pgerror.Newf(pgcode.SyntaxError, "option \"%s\" not recognized", opt.Name)
		}
	}

	if o.Binary() && delim != nil {
		return nil, pgerror.New(pgcode.SyntaxError, "COPY cannot specify DELIMITER in BINARY mode")
	}
	if o.Binary() && null != nil {
		return nil, pgerror.New(pgcode.SyntaxError, "COPY cannot specify NULL in BINARY mode")
	}

	if delim == nil {
		d := "\t"
		if o.CSV() {
			d = ","
		}
		delim = &d
	}
	o.DelimOff = strings.EqualFold(*delim, "off")
	if null == nil {
		n := `\N`
		if o.CSV() {
			n = ""
		}
		null = &n
	}
	o.Null = *null
	quoteGiven := quote != nil
	if o.CSV() {
		if quote == nil {
			q := `"`
			quote = &q
		}
		if escape == nil {
			escape = quote
		}
	}
	if !o.CSV() && escape == nil {
		e := `\`
		escape = &e
	}

	if strings.ContainsAny(*delim, "\r\n") {
		return nil, pgerror.New(pgcode.InvalidParameterValue,
			"COPY delimiter cannot be newline or carriage return")
	}
	if strings.ContainsAny(o.Null, "\r\n") {
		return nil, pgerror.New(pgcode.InvalidParameterValue,
			"COPY null representation cannot use newline or carriage return")
	}
	if !o.CSV() && !o.DelimOff && *delim != "" &&
		strings.IndexByte(`\.abcdefghijklmnopqrstuvwxyz0123456789`, (*delim)[0]) >= 0 {
		return nil, pgerror.Newf(pgcode.InvalidParameterValue, "COPY delimiter cannot be \"%s\"", *delim)
	}
	if o.Binary() && o.Header {
		return nil, pgerror.New(pgcode.SyntaxError, "COPY cannot specify HEADER in BINARY mode")
	}
	if !o.CSV() && quoteGiven {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY quote available only in CSV mode")
	}
	if o.CSV() && len(*quote) != 1 {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY quote must be a single one-byte character")
	}
	if o.CSV() && !o.DelimOff && *delim != "" && (*delim)[0] == (*quote)[0] {
		return nil, pgerror.New(pgcode.InvalidParameterValue, "COPY delimiter and quote must be different")
	}
	if o.CSV() && len(*escape) != 1 {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY escape in CSV format must be a single character")
	}
	if !o.CSV() && strings.ContainsAny(*escape, "\r\n") {
		return nil, pgerror.New(pgcode.InvalidParameterValue,
			"COPY escape representation in text format cannot use newline or carriage return")
	}
	if !o.CSV() && len(*escape) != 1 && !strings.EqualFold(*escape, "off") {
		return nil, pgerror.New(pgcode.FeatureNotSupported,
			"COPY escape must be a single character, or [OFF/off] to disable escapes")
	}
	if !o.CSV() && forceQuoteSet {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY force quote available only in CSV mode")
	}
	if forceQuoteSet && isFrom {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY force quote only available using COPY TO")
	}
	if !o.CSV() && o.ForceNotNull != nil {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY force not null available only in CSV mode")
	}
	if o.ForceNotNull != nil && !isFrom {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY force not null only available using COPY FROM")
	}
	if !o.CSV() && o.ForceNull != nil {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY force null available only in CSV mode")
	}
	if o.ForceNull != nil && !isFrom {
		return nil, pgerror.New(pgcode.FeatureNotSupported, "COPY force null only available using COPY FROM")
	}
	if !o.DelimOff && *delim != "" && strings.IndexByte(o.Null, (*delim)[0]) >= 0 {
		return nil, pgerror.New(pgcode.FeatureNotSupported,
			"COPY delimiter must not appear in the NULL specification")
	}
	if o.CSV() && strings.IndexByte(o.Null, (*quote)[0]) >= 0 {
		return nil, pgerror.New(pgcode.FeatureNotSupported,
			"CSV quote character must not appear in the NULL specification")
	}
	if !o.DelimOff && (len(*delim) != 1 || (*delim)[0] >= 0x80) {
		return nil, pgerror.New(pgcode.FeatureNotSupported,
			"COPY delimiter must be a single one-byte character, or 'off'")
	}
	if !o.CSV() && strings.Contains(*delim, `\`) {
		return nil, pgerror.New(pgcode.InvalidParameterValue, "COPY delimiter cannot be backslash")
	}
	if o.FillMissing && !isFrom {
		return nil, pgerror.New(pgcode.FeatureNotSupported,
			"fill missing fields only available for data loading, not unloading")
	}
	if eol != nil {
		if !isFrom {
			return nil, pgerror.New(pgcode.FeatureNotSupported,
				"newline currently available for data loading only, not unloading")
		}
		switch strings.ToLower(*eol) {
		case "lf":
			o.EOL = EOLNL
		case "cr":
			o.EOL = EOLCR
		case "crlf":
			o.EOL = EOLCRNL
		default:
			err := pgerror.Newf(pgcode.FeatureNotSupported, "invalid value for NEWLINE \"%s\"", *eol)
			return nil, errors.WithHint(err, "Valid options are: 'LF', 'CRLF' and 'CR'.")
		}
	}
	if !o.DelimOff {
		o.Delim = (*delim)[0]
	}
	if o.CSV() {
		o.Quote = (*quote)[0]
		o.Escape = (*escape)[0]
	} else if strings.EqualFold(*escape, "off") {
		o.EscapeOff = true
	} else {
		o.Escape = (*escape)[0]
	}

	if err := o.parseRejectLimit(dir, limit, limitType); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Options) parseRejectLimit(dir Direction, limit *int64, limitType *string) error {
	if limit == nil {
		if limitType != nil {
			return pgerror.New(pgcode.SyntaxError, "reject limit type requires SEGMENT REJECT LIMIT")
		}
		if o.LogErrors {
			return pgerror.New(pgcode.SyntaxError, "LOG ERRORS requires SEGMENT REJECT LIMIT")
		}
		return nil
	}
	if dir == To {
		return pgerror.New(pgcode.FeatureNotSupported,
			"COPY single row error handling only available using COPY FROM")
	}
	if o.Binary() {
		return pgerror.New(pgcode.FeatureNotSupported,
			"single row error handling is not supported in BINARY mode")
	}
	o.RejectLimitKind = sreh.LimitRows
	if limitType != nil {
		switch strings.ToLower(*limitType) {
		case "rows":
		case "percent":
			o.RejectLimitKind = sreh.LimitPercent
		default:
			return pgerror.Newf(pgcode.SyntaxError, "invalid reject limit type \"%s\"", *limitType)
		}
	}
	if err := sreh.ValidateLimit(*limit, o.RejectLimitKind); err != nil {
		return err
	}
	o.RejectLimit = *limit
	return nil
}

// String renders the options in the form accepted by ParseOption.
func (o *Options) String() string {
	var b strings.Builder
	add := func(format string, args ...interface{}) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, format, args...)
	}
	add("format=%s", o.Format)
	if !o.Binary() {
		if o.DelimOff {
			add("delimiter=off")
		} else {
			add("delimiter=%q", string(o.Delim))
		}
		add("null=%q", o.Null)
	}
	if o.Header {
		add("header")
	}
	if o.CSV() {
		add("quote=%q escape=%q", string(o.Quote), string(o.Escape))
	} else if !o.Binary() {
		if o.EscapeOff {
			add("escape=off")
		} else {
			add("escape=%q", string(o.Escape))
		}
	}
	if o.ForceQuoteAll {
		add("force_quote=*")
	} else if o.ForceQuote != nil {
		add("force_quote=(%s)", strings.Join(o.ForceQuote, ","))
	}
	if o.ForceNotNull != nil {
		add("force_not_null=(%s)", strings.Join(o.ForceNotNull, ","))
	}
	if o.ForceNull != nil {
		add("force_null=(%s)", strings.Join(o.ForceNull, ","))
	}
	if o.Encoding != nil {
		add("encoding=%s", o.Encoding.Name)
	}
	if o.FillMissing {
		add("fill_missing_fields")
	}
	if o.EOL != EOLUnknown {
		add("newline=%s", o.EOL)
	}
	if o.OnSegment {
		add("on_segment")
	}
	if o.SingleRowErrors() {
		add("segment_reject_limit=%d reject_limit_type=%s", o.RejectLimit, o.RejectLimitKind)
		if o.LogErrors {
			add("log_errors")
		}
	}
	return b.String()
}
