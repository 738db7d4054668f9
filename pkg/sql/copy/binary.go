// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
)

// binarySignature starts every file in the binary format.
var binarySignature = []byte("PGCOPY\n\377\r\n\x00")

// The flags bit announcing OIDs in the data, which is not supported.
const binaryFlagOids = 1 << 16

// binaryReader decodes the binary format.
type binaryReader struct {
	r     *bufio.Reader
	rb    pgwirebase.ReadBuffer
	types []*types.T
	done  bool
	// row counts the tuples read so far, for error messages.
	row int64
}

func newBinaryReader(r io.Reader, typs []*types.T) *binaryReader {
	return &binaryReader{r: bufio.NewReaderSize(r, 64<<10), types: typs}
}

func (br *binaryReader) readHeader() error {
	if err := br.rb.ReadFull(br.r, len(binarySignature)); err != nil || !bytes.Equal(br.rb.Msg, binarySignature) {
		return formatErrorf("COPY file signature not recognized")
	}
	flags, err := br.rb.ReadUint32(br.r)
	if err != nil {
		return formatErrorf("invalid COPY file header (missing flags)")
	}
	if flags&binaryFlagOids != 0 {
		return formatErrorf("invalid COPY file header (WITH OIDS)")
	}
	if flags&^0xffff&^binaryFlagOids != 0 {
		return formatErrorf("unrecognized critical flags in COPY file header")
	}
	extLen, err := br.rb.ReadUint32(br.r)
	if err != nil {
		return formatErrorf("invalid COPY file header (missing length)")
	}
	if int32(extLen) < 0 {
		return formatErrorf("invalid COPY file header (wrong length)")
	}
	if n, err := br.r.Discard(int(extLen)); err != nil || n != int(extLen) {
		return formatErrorf("invalid COPY file header (wrong length)")
	}
	return nil
}

// next decodes one tuple into values, in the order of the column list. ok
// is false at the end of the data.
func (br *binaryReader) next(values tree.Datums) (ok bool, err error) {
	if br.done {
		return false, nil
	}
	count, err := br.rb.ReadUint16(br.r)
	if err == io.EOF {
		// The trailer is optional.
		br.done = true
		return false, nil
	} else if err != nil {
		return false, formatErrorf("unexpected EOF in COPY data")
	}
	if int16(count) == -1 {
		br.done = true
		if _, err := br.r.ReadByte(); err == nil {
			return false, formatErrorf("received copy data after EOF marker")
		}
		return false, nil
	}
	br.row++
	if int(int16(count)) != len(br.types) {
		return false, formatErrorf("row field count is %d, expected %d", int16(count), len(br.types))
	}
	for i, typ := range br.types {
		size, err := br.rb.ReadUint32(br.r)
		if err != nil {
			return false, formatErrorf("unexpected EOF in COPY data")
		}
		if int32(size) == -1 {
			values[i] = tree.DNull
			continue
		}
		if int32(size) < -1 {
			return false, formatErrorf("invalid field size")
		}
		if err := br.rb.ReadFull(br.r, int(size)); err != nil {
			return false, formatErrorf("unexpected EOF in COPY data")
		}
		d, err := tree.DecodeBinary(typ, br.rb.Msg)
		if err != nil {
			return false, errors.Wrapf(err, "COPY row %d, field %d", br.row, i+1)
		}
		values[i] = d
	}
	return true, nil
}

// binaryEncoder writes the binary format.
type binaryEncoder struct {
	types   []*types.T
	scratch []byte
}

var _ rowEncoder = &binaryEncoder{}

func (e *binaryEncoder) header(b *pgwirebase.WriteBuffer) {
	_, _ = b.Write(binarySignature)
	b.PutInt32(0)
	b.PutInt32(0)
}

func (e *binaryEncoder) encode(b *pgwirebase.WriteBuffer, row tree.Datums) error {
	b.PutInt16(int16(len(row)))
	for i, d := range row {
		if d == tree.DNull {
			b.PutInt32(-1)
			continue
		}
		var err error
		e.scratch, err = tree.AppendBinary(e.scratch[:0], e.types[i], d)
		if err != nil {
			return err
		}
		b.WriteLengthPrefixedBytes(e.scratch)
	}
	return b.Err()
}

func (e *binaryEncoder) trailer(b *pgwirebase.WriteBuffer) {
	b.PutInt16(-1)
}
