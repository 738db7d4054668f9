// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
)

// ErrProtocol marks errors caused by a corrupt data stream or a broken
// dispatch protocol. Such errors are never isolated to a row.
var ErrProtocol = errors.New("COPY stream is corrupt")

func markProtocol(err error) error {
	return errors.Mark(errors.Mark(err, ErrProtocol), sreh.ErrNotIsolatable)
}

func formatErrorf(format string, args ...interface{}) error {
	return markProtocol(pgerror.NewWithDepthf(1, pgcode.BadCopyFileFormat, format, args...))
}

func protocolErrorf(format string, args ...interface{}) error {
	return markProtocol(pgerror.NewWithDepthf(1, pgcode.ProtocolViolation, format, args...))
}

// lineReader splits text and CSV data into lines. Every call to next
// returns one line without its terminator; the reader remembers the line
// ending of the first line and requires the rest of the data to use it.
type lineReader struct {
	r    *bufio.Reader
	csv  bool
	eol  EOLType
	done bool

	// Text mode escape; only meaningful when escapes is set.
	escape  byte
	escapes bool
	// CSV quoting.
	quote, csvEscape byte

	// lineNo is the input line the last returned line ended on. CSV records
	// with quoted newlines span several input lines.
	lineNo int64
	buf    []byte
}

func newLineReader(r io.Reader, opts *Options) *lineReader {
	lr := &lineReader{
		r:   bufio.NewReaderSize(r, 64<<10),
		csv: opts.CSV(),
		eol: opts.EOL,
	}
	if lr.csv {
		lr.quote, lr.csvEscape = opts.Quote, opts.Escape
	} else if !opts.EscapeOff {
		lr.escape, lr.escapes = opts.Escape, true
	}
	return lr
}

// next returns the next line. ok is false once the data is exhausted or
// the end-of-data marker was seen. The returned slice is only valid until
// the following call.
func (lr *lineReader) next() (line []byte, ok bool, err error) {
	if lr.done {
		return nil, false, nil
	}
	lr.buf = lr.buf[:0]
	lr.lineNo++
	inQuote, lastWasEsc := false, false
	for first := true; ; first = false {
		c, err := lr.r.ReadByte()
		if err == io.EOF {
			lr.done = true
			if len(lr.buf) == 0 && !inQuote {
				lr.lineNo--
				return nil, false, nil
			}
			// An open quote is reported when the line is split into fields.
			return lr.buf, true, nil
		} else if err != nil {
			return nil, false, err
		}

		if lr.csv {
			if inQuote && c == lr.csvEscape && lr.csvEscape != lr.quote {
				lastWasEsc = !lastWasEsc
			}
			if c == lr.quote && !lastWasEsc {
				inQuote = !inQuote
			}
			if c != lr.csvEscape || lr.csvEscape == lr.quote {
				lastWasEsc = false
			}
			if inQuote {
				if (c == '\n' && lr.eol != EOLCR) || (c == '\r' && lr.eol == EOLCR) {
					lr.lineNo++
				}
				lr.buf = append(lr.buf, c)
				continue
			}
		}

		switch c {
		case '\r':
			if lr.eol == EOLUnknown || lr.eol == EOLCRNL {
				if lr.peekIs('\n') {
					_, _ = lr.r.ReadByte()
					lr.eol = EOLCRNL
					return lr.buf, true, nil
				}
				if lr.eol == EOLUnknown {
					lr.eol = EOLCR
				}
			}
			if lr.eol == EOLCR {
				return lr.buf, true, nil
			}
			lr.buf = append(lr.buf, c)
			continue
		case '\n':
			if lr.eol == EOLUnknown {
				lr.eol = EOLNL
			}
			if lr.eol == EOLNL {
				return lr.buf, true, nil
			}
			lr.buf = append(lr.buf, c)
			continue
		}

		switch {
		case lr.csv && first && c == '\\':
			end, err := lr.endOfData()
			if err != nil {
				return nil, false, err
			}
			if end {
				return lr.finish()
			}
		case !lr.csv && lr.escapes && c == lr.escape:
			if lr.peekIs('.') {
				end, err := lr.endOfData()
				if err != nil {
					return nil, false, err
				}
				if end {
					return lr.finish()
				}
			}
			if lr.escapedEOL() {
				lr.buf = append(lr.buf, c)
				return lr.buf, true, nil
			}
			// The escaped character is data, even if it is a delimiter or
			// a line ending of a different style.
			lr.buf = append(lr.buf, c)
			if c2, err := lr.r.ReadByte(); err == nil {
				lr.buf = append(lr.buf, c2)
			}
			continue
		}
		lr.buf = append(lr.buf, c)
	}
}

// finish ends the data at a \. marker. Anything before the marker on the
// same line is returned as the last line.
func (lr *lineReader) finish() ([]byte, bool, error) {
	lr.done = true
	if len(lr.buf) == 0 {
		lr.lineNo--
		return nil, false, nil
	}
	return lr.buf, true, nil
}

func (lr *lineReader) peekIs(c byte) bool {
	b, err := lr.r.Peek(1)
	return err == nil && b[0] == c
}

// escapedEOL consumes an escaped line terminator of the established style.
// The escape stays in the line, where it is dropped as a trailing escape.
func (lr *lineReader) escapedEOL() bool {
	b, _ := lr.r.Peek(2)
	switch {
	case len(b) == 0:
		return false
	case lr.eol == EOLNL && b[0] == '\n', lr.eol == EOLCR && b[0] == '\r':
		_, _ = lr.r.Discard(1)
		return true
	case lr.eol == EOLCRNL && len(b) == 2 && b[0] == '\r' && b[1] == '\n':
		_, _ = lr.r.Discard(2)
		return true
	}
	return false
}

// endOfData checks for a \. marker after a consumed backslash. The marker
// must be followed by the line ending in use, or by the end of the input.
// In text mode a malformed marker is an error; in CSV mode it is data and
// nothing is consumed.
func (lr *lineReader) endOfData() (bool, error) {
	b, _ := lr.r.Peek(4)
	if len(b) == 0 || b[0] != '.' {
		return false, nil
	}
	rest := b[1:]
	if len(rest) == 0 {
		_, _ = lr.r.Discard(1)
		return true, nil
	}
	var n int
	var err error
	switch c := rest[0]; {
	case c != '\r' && c != '\n':
		err = formatErrorf("end-of-copy marker corrupt")
	case lr.eol == EOLCRNL:
		switch {
		case c == '\n', len(rest) < 2, rest[1] == '\r':
			err = formatErrorf("end-of-copy marker does not match previous newline style")
		case rest[1] != '\n':
			err = formatErrorf("end-of-copy marker corrupt")
		default:
			n = 3
		}
	case lr.eol == EOLNL && c != '\n', lr.eol == EOLCR && c != '\r':
		err = formatErrorf("end-of-copy marker does not match previous newline style")
	case lr.eol == EOLUnknown && c == '\r' && len(rest) > 1 && rest[1] == '\n':
		n = 3
	default:
		n = 2
	}
	if err != nil {
		if lr.csv {
			return false, nil
		}
		return false, err
	}
	_, _ = lr.r.Discard(n)
	return true, nil
}

// field is one attribute of a line, either a slice of the line or of the
// splitter's scratch buffer once escapes are processed.
type field struct {
	val    []byte
	null   bool
	quoted bool
}

// fieldSplitter breaks lines into fields.
type fieldSplitter struct {
	opts *Options
	// Unescaped values are accumulated here; offsets are turned into slices
	// once the buffer stops growing.
	buf    []byte
	bounds [][2]int
	fields []field
}

// split parses the fields of line starting at offset start. When max is
// positive, parsing stops after max fields. cursor is the offset where
// parsing stopped and atDelim reports whether a delimiter was consumed
// there, that is, whether more fields follow.
func (s *fieldSplitter) split(
	line []byte, start, max int,
) (fields []field, cursor int, atDelim bool, err error) {
	s.buf = s.buf[:0]
	s.bounds = s.bounds[:0]
	s.fields = s.fields[:0]
	pos := start
	for {
		if max > 0 && len(s.fields) == max {
			atDelim = true
			break
		}
		var f field
		var more bool
		if s.opts.CSV() {
			f, pos, more, err = s.csvField(line, pos)
		} else {
			f, pos, more, err = s.textField(line, pos)
		}
		if err != nil {
			return nil, 0, false, err
		}
		s.fields = append(s.fields, f)
		if !more {
			break
		}
	}
	for i := range s.fields {
		if b := s.bounds[i]; b[0] >= 0 {
			s.fields[i].val = s.buf[b[0]:b[1]]
		}
	}
	return s.fields, pos, atDelim, nil
}

func (s *fieldSplitter) textField(line []byte, pos int) (field, int, bool, error) {
	o := s.opts
	start, valStart := pos, len(s.buf)
	more, sawHighEscape := false, false
	for pos < len(line) {
		c := line[pos]
		pos++
		if !o.DelimOff && c == o.Delim {
			more = true
			break
		}
		if !o.EscapeOff && c == o.Escape {
			if pos >= len(line) {
				// A trailing lone escape is dropped.
				break
			}
			c = line[pos]
			pos++
			switch {
			case c >= '0' && c <= '7':
				val := int(c - '0')
				for n := 0; n < 2 && pos < len(line) && line[pos] >= '0' && line[pos] <= '7'; n++ {
					val = val<<3 + int(line[pos]-'0')
					pos++
				}
				c = byte(val & 0xff)
				sawHighEscape = sawHighEscape || c >= 0x80
			case c == 'x':
				if pos < len(line) {
					if v, ok := hexDigit(line[pos]); ok {
						pos++
						val := v
						if pos < len(line) {
							if v2, ok := hexDigit(line[pos]); ok {
								pos++
								val = val<<4 + v2
							}
						}
						c = val
						sawHighEscape = sawHighEscape || c >= 0x80
					}
				}
			case c == 'b':
				c = '\b'
			case c == 'f':
				c = '\f'
			case c == 'n':
				c = '\n'
			case c == 'r':
				c = '\r'
			case c == 't':
				c = '\t'
			case c == 'v':
				c = '\v'
			}
		}
		s.buf = append(s.buf, c)
	}
	rawEnd := pos
	if more {
		rawEnd--
	}
	f := field{null: string(line[start:rawEnd]) == o.Null}
	if f.null {
		s.buf = s.buf[:valStart]
		s.bounds = append(s.bounds, [2]int{-1, -1})
		return f, pos, more, nil
	}
	if sawHighEscape {
		if err := checkEncoding(s.buf[valStart:]); err != nil {
			return field{}, 0, false, err
		}
	}
	s.bounds = append(s.bounds, [2]int{valStart, len(s.buf)})
	return f, pos, more, nil
}

func (s *fieldSplitter) csvField(line []byte, pos int) (field, int, bool, error) {
	o := s.opts
	start, valStart := pos, len(s.buf)
	more, quoted := false, false
scan:
	for pos < len(line) {
		c := line[pos]
		pos++
		switch {
		case !o.DelimOff && c == o.Delim:
			more = true
			break scan
		case c == o.Quote:
			quoted = true
			for {
				if pos >= len(line) {
					return field{}, 0, false, pgerror.New(pgcode.BadCopyFileFormat,
						"unterminated CSV quoted field")
				}
				c = line[pos]
				pos++
				if c == o.Escape && pos < len(line) && (line[pos] == o.Escape || line[pos] == o.Quote) {
					s.buf = append(s.buf, line[pos])
					pos++
					continue
				}
				if c == o.Quote {
					break
				}
				s.buf = append(s.buf, c)
			}
		default:
			s.buf = append(s.buf, c)
		}
	}
	rawEnd := pos
	if more {
		rawEnd--
	}
	f := field{quoted: quoted}
	if !quoted && string(line[start:rawEnd]) == o.Null {
		f.null = true
		s.buf = s.buf[:valStart]
		s.bounds = append(s.bounds, [2]int{-1, -1})
		return f, pos, more, nil
	}
	s.bounds = append(s.bounds, [2]int{valStart, len(s.buf)})
	return f, pos, more, nil
}

func hexDigit(c byte) (byte, bool) {
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
