// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// Encoding is a client encoding the data of a COPY statement may use. The
// server encoding is always UTF8.
type Encoding struct {
	Name string
	enc  encoding.Encoding
}

// encodings maps the normalized Postgres encoding names to their codecs.
// A nil codec means the data is passed through unchanged.
var encodings = map[string]encoding.Encoding{
	"UTF8":      nil,
	"SQLASCII":  nil,
	"LATIN1":    charmap.ISO8859_1,
	"LATIN2":    charmap.ISO8859_2,
	"LATIN3":    charmap.ISO8859_3,
	"LATIN4":    charmap.ISO8859_4,
	"LATIN5":    charmap.ISO8859_9,
	"LATIN6":    charmap.ISO8859_10,
	"LATIN7":    charmap.ISO8859_13,
	"LATIN8":    charmap.ISO8859_14,
	"LATIN9":    charmap.ISO8859_15,
	"LATIN10":   charmap.ISO8859_16,
	"ISO88595":  charmap.ISO8859_5,
	"ISO88596":  charmap.ISO8859_6,
	"ISO88597":  charmap.ISO8859_7,
	"ISO88598":  charmap.ISO8859_8,
	"WIN866":    charmap.CodePage866,
	"WIN874":    charmap.Windows874,
	"WIN1250":   charmap.Windows1250,
	"WIN1251":   charmap.Windows1251,
	"WIN1252":   charmap.Windows1252,
	"WIN1253":   charmap.Windows1253,
	"WIN1254":   charmap.Windows1254,
	"WIN1255":   charmap.Windows1255,
	"WIN1256":   charmap.Windows1256,
	"WIN1257":   charmap.Windows1257,
	"WIN1258":   charmap.Windows1258,
	"KOI8R":     charmap.KOI8R,
	"KOI8U":     charmap.KOI8U,
	"EUCJP":     japanese.EUCJP,
	"SJIS":      japanese.ShiftJIS,
	"EUCKR":     korean.EUCKR,
	"GBK":       simplifiedchinese.GBK,
	"GB18030":   simplifiedchinese.GB18030,
	"BIG5":      traditionalchinese.Big5,
	"ISO2022JP": japanese.ISO2022JP,
}

var encodingAliases = map[string]string{
	"UNICODE":     "UTF8",
	"ISO88591":    "LATIN1",
	"ISO88592":    "LATIN2",
	"ISO88593":    "LATIN3",
	"ISO88594":    "LATIN4",
	"ISO88599":    "LATIN5",
	"ISO885910":   "LATIN6",
	"ISO885913":   "LATIN7",
	"ISO885914":   "LATIN8",
	"ISO885915":   "LATIN9",
	"ISO885916":   "LATIN10",
	"WINDOWS1252": "WIN1252",
	"WINDOWS1251": "WIN1251",
	"SHIFTJIS":    "SJIS",
	"ALT":         "WIN866",
}

// normalizeEncodingName drops everything but letters and digits, the way
// Postgres compares encoding names.
func normalizeEncodingName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// LookupEncoding resolves an encoding name. UTF8 and SQL_ASCII resolve to
// nil, as neither needs conversion.
func LookupEncoding(name string) (*Encoding, bool) {
	n := normalizeEncodingName(name)
	if alias, ok := encodingAliases[n]; ok {
		n = alias
	}
	enc, ok := encodings[n]
	if !ok {
		return nil, false
	}
	if enc == nil {
		return nil, true
	}
	return &Encoding{Name: n, enc: enc}, true
}

// decodeReader converts client encoded input to UTF8.
func decodeReader(r io.Reader, e *Encoding) io.Reader {
	if e == nil {
		return r
	}
	return transform.NewReader(r, e.enc.NewDecoder())
}

// encodeWriter converts UTF8 output to the client encoding. The returned
// closer flushes the transformer and must be called before w is closed.
func encodeWriter(w io.Writer, e *Encoding) io.WriteCloser {
	if e == nil {
		return nopWriteCloser{w}
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(e.enc.NewEncoder()))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// checkEncoding verifies that a line is valid UTF8.
func checkEncoding(line []byte) error {
	if utf8.Valid(line) {
		return nil
	}
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRune(line[i:])
		if r == utf8.RuneError && size <= 1 {
			return pgerror.Newf(pgcode.CharacterNotInRepertoire,
				"invalid byte sequence for encoding \"UTF8\": 0x%02x", line[i])
		}
		i += size
	}
	return nil
}
