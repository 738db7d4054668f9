// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"strings"

	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
)

// rowEncoder renders rows in one of the COPY formats. Only the node that
// owns the output writes the header and trailer.
type rowEncoder interface {
	header(b *pgwirebase.WriteBuffer)
	encode(b *pgwirebase.WriteBuffer, row tree.Datums) error
	trailer(b *pgwirebase.WriteBuffer)
}

func makeEncoder(opts *Options, names []string, typs []*types.T, forceQuote []bool) rowEncoder {
	if opts.Binary() {
		return &binaryEncoder{types: typs}
	}
	return &textEncoder{opts: opts, names: names, forceQuote: forceQuote}
}

// textEncoder writes the text and CSV formats. Lines always end with \n.
type textEncoder struct {
	opts       *Options
	names      []string
	forceQuote []bool
}

var _ rowEncoder = &textEncoder{}

func (e *textEncoder) header(b *pgwirebase.WriteBuffer) {
	if !e.opts.Header {
		return
	}
	for i, name := range e.names {
		if i > 0 {
			e.delim(b)
		}
		if e.opts.CSV() {
			e.csvValue(b, name, false)
		} else {
			e.textValue(b, name)
		}
	}
	_ = b.WriteByte('\n')
}

func (e *textEncoder) delim(b *pgwirebase.WriteBuffer) {
	if !e.opts.DelimOff {
		_ = b.WriteByte(e.opts.Delim)
	}
}

func (e *textEncoder) encode(b *pgwirebase.WriteBuffer, row tree.Datums) error {
	for i, d := range row {
		if i > 0 {
			e.delim(b)
		}
		if d == tree.DNull {
			b.WriteString(e.opts.Null)
			continue
		}
		if e.opts.CSV() {
			e.csvValue(b, d.String(), e.opts.ForceQuoteAll || (e.forceQuote != nil && e.forceQuote[i]))
		} else {
			e.textValue(b, d.String())
		}
	}
	return b.WriteByte('\n')
}

func (e *textEncoder) trailer(*pgwirebase.WriteBuffer) {}

func (e *textEncoder) textValue(b *pgwirebase.WriteBuffer, s string) {
	o := e.opts
	if o.EscapeOff {
		b.WriteString(s)
		return
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 {
			var r byte
			switch c {
			case '\b':
				r = 'b'
			case '\f':
				r = 'f'
			case '\n':
				r = 'n'
			case '\r':
				r = 'r'
			case '\t':
				r = 't'
			case '\v':
				r = 'v'
			default:
				if !o.DelimOff && c == o.Delim {
					r = c
				}
			}
			if r != 0 {
				_ = b.WriteByte(o.Escape)
				c = r
			}
		} else if c == o.Escape || (!o.DelimOff && c == o.Delim) {
			_ = b.WriteByte(o.Escape)
		}
		_ = b.WriteByte(c)
	}
}

func (e *textEncoder) csvValue(b *pgwirebase.WriteBuffer, s string, quote bool) {
	o := e.opts
	if !quote && s == o.Null {
		quote = true
	}
	if !quote {
		if len(e.names) == 1 && s == `\.` {
			quote = true
		} else {
			for i := 0; i < len(s); i++ {
				c := s[i]
				if (!o.DelimOff && c == o.Delim) || c == o.Quote || c == '\n' || c == '\r' {
					quote = true
					break
				}
			}
		}
	}
	if !quote {
		b.WriteString(s)
		return
	}
	_ = b.WriteByte(o.Quote)
	if strings.IndexByte(s, o.Quote) < 0 && strings.IndexByte(s, o.Escape) < 0 {
		b.WriteString(s)
	} else {
		for i := 0; i < len(s); i++ {
			if c := s[i]; c == o.Quote || c == o.Escape {
				_ = b.WriteByte(o.Escape)
			}
			_ = b.WriteByte(s[i])
		}
	}
	_ = b.WriteByte(o.Quote)
}
