// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
)

// The dispatcher sends each segment a header followed by a stream of
// frames. All integers are big-endian.
//
// Header: the signature, then, from version 2 on, an int16 holding the
// negated version, then the int16 index of the first field the segment
// must parse itself.
//
// Version 1 row frame:
//
//	int64  line number
//	uint32 relation id of the leaf the row is stored in
//	uint32 line length
//	uint32 offset of the unparsed rest of the line
//	bool   whether a delimiter preceded that offset
//	uint16 number of pre-parsed values
//	[]byte the line
//	values: int16 attribute number, then the value slot
//
// Version 1 error frame, for a row the dispatcher rejected:
//
//	int64  -1
//	int64  line number
//	uint32 message length
//	uint32 line length
//	bool   whether the line was converted to UTF8
//	[]byte message
//	[]byte line
//
// Version 2 drops the -1 marker and starts every frame with a tag byte.
// The end of data is the end of the stream.
//
// A value slot is 8 bytes for pass-by-value types, holding the binary
// representation right-aligned; the binary representation for other
// fixed-width types; and an int32 length followed by the binary
// representation for variable-length types.

var frameSignature = []byte("PGCOPY-QD-TO-QE\n\377\r\n")

const (
	rowFramePrefix   = 8 + 4 + 4 + 4 + 1 + 2
	errorFramePrefix = 8 + 8 + 4 + 4 + 1
	slotSize         = 8

	rowFrameTag   = 'R'
	errorFrameTag = 'E'
)

// rowFrame is a row routed to a segment.
type rowFrame struct {
	lineNo int64
	relID  oid.Oid
	line   []byte
	// residualOff is where the segment resumes parsing the line.
	residualOff int
	// delimSeenAtEnd is set when the dispatcher stopped parsing right after
	// a delimiter; otherwise the line has no fields left.
	delimSeenAtEnd bool
	values         []frameValue
}

type frameValue struct {
	attnum catalog.ColumnID
	datum  tree.Datum
}

// errorFrame is a row the dispatcher rejected; the segment logs it.
type errorFrame struct {
	lineNo    int64
	errMsg    string
	line      []byte
	converted bool
}

// frameCodec encodes and decodes frames for one relation. All leaves share
// the column types of the parent.
type frameCodec struct {
	version int
	types   []*types.T
	scratch []byte
}

func makeFrameCodec(version int, table *catalog.TableDescriptor) frameCodec {
	typs := make([]*types.T, len(table.Columns))
	for i := range table.Columns {
		typs[i] = table.Columns[i].Type
	}
	return frameCodec{version: version, types: typs}
}

func (c *frameCodec) encodeHeader(b *pgwirebase.WriteBuffer, firstField int) {
	_, _ = b.Write(frameSignature)
	if c.version >= 2 {
		b.PutInt16(int16(-c.version))
	}
	b.PutInt16(int16(firstField))
}

func (c *frameCodec) encodeRow(b *pgwirebase.WriteBuffer, f *rowFrame) error {
	if c.version >= 2 {
		_ = b.WriteByte(rowFrameTag)
	}
	b.PutInt64(f.lineNo)
	b.PutUint32(uint32(f.relID))
	b.PutUint32(uint32(len(f.line)))
	b.PutUint32(uint32(f.residualOff))
	b.PutBool(f.delimSeenAtEnd)
	b.PutUint16(uint16(len(f.values)))
	_, _ = b.Write(f.line)
	for _, v := range f.values {
		b.PutInt16(int16(v.attnum))
		if err := c.encodeSlot(b, c.types[v.attnum-1], v.datum); err != nil {
			return err
		}
	}
	return b.Err()
}

func (c *frameCodec) encodeSlot(b *pgwirebase.WriteBuffer, t *types.T, d tree.Datum) error {
	var err error
	c.scratch, err = tree.AppendBinary(c.scratch[:0], t, d)
	if err != nil {
		return err
	}
	switch {
	case t.ByVal():
		if len(c.scratch) > slotSize {
			return errors.AssertionFailedf("value of type %s does not fit a slot", t)
		}
		var pad [slotSize]byte
		_, _ = b.Write(pad[:slotSize-len(c.scratch)])
		_, _ = b.Write(c.scratch)
	case t.ByteLen() > 0:
		if len(c.scratch) != int(t.ByteLen()) {
			return errors.AssertionFailedf("value of type %s has %d bytes", t, len(c.scratch))
		}
		_, _ = b.Write(c.scratch)
	default:
		b.WriteLengthPrefixedBytes(c.scratch)
	}
	return nil
}

func (c *frameCodec) encodeError(b *pgwirebase.WriteBuffer, f *errorFrame) {
	if c.version >= 2 {
		_ = b.WriteByte(errorFrameTag)
	} else {
		b.PutInt64(-1)
	}
	b.PutInt64(f.lineNo)
	b.PutUint32(uint32(len(f.errMsg)))
	b.PutUint32(uint32(len(f.line)))
	b.PutBool(f.converted)
	b.WriteString(f.errMsg)
	_, _ = b.Write(f.line)
}

// frameReader decodes the stream a segment receives.
type frameReader struct {
	codec frameCodec
	r     *bufio.Reader
	rb    pgwirebase.ReadBuffer

	row  rowFrame
	errf errorFrame
}

func newFrameReader(r io.Reader, table *catalog.TableDescriptor) *frameReader {
	return &frameReader{
		codec: makeFrameCodec(0, table),
		r:     bufio.NewReaderSize(r, 64<<10),
	}
}

// readHeader validates the header and returns the first field the segment
// parses. The protocol version is taken from the header.
func (fr *frameReader) readHeader() (firstField int, err error) {
	if err := fr.rb.ReadFull(fr.r, len(frameSignature)); err != nil || !bytes.Equal(fr.rb.Msg, frameSignature) {
		return 0, protocolErrorf("QD->QE COPY communication signature not recognized")
	}
	v, err := fr.rb.ReadUint16(fr.r)
	if err != nil {
		return 0, protocolErrorf("invalid QD->QE COPY communication header")
	}
	fr.codec.version = 1
	if n := int16(v); n < 0 {
		fr.codec.version = int(-n)
		if fr.codec.version > 2 {
			return 0, protocolErrorf("unsupported COPY dispatch protocol version %d", fr.codec.version)
		}
		if v, err = fr.rb.ReadUint16(fr.r); err != nil {
			return 0, protocolErrorf("invalid QD->QE COPY communication header")
		}
	}
	firstField = int(int16(v))
	if firstField < 0 || firstField > len(fr.codec.types) {
		return 0, protocolErrorf("invalid first field %d in COPY communication header", firstField)
	}
	return firstField, nil
}

type frameKind int

const (
	frameEOF frameKind = iota
	frameRow
	frameError
)

// next decodes the next frame. The returned frames are reused by the
// following call.
func (fr *frameReader) next() (frameKind, *rowFrame, *errorFrame, error) {
	if fr.codec.version >= 2 {
		tag, err := fr.r.ReadByte()
		if err == io.EOF {
			return frameEOF, nil, nil, nil
		} else if err != nil {
			return 0, nil, nil, err
		}
		switch tag {
		case rowFrameTag:
			if err := fr.rb.ReadFull(fr.r, rowFramePrefix); err != nil {
				return 0, nil, nil, truncated(err)
			}
			return fr.readRow()
		case errorFrameTag:
			if err := fr.rb.ReadFull(fr.r, errorFramePrefix-8); err != nil {
				return 0, nil, nil, truncated(err)
			}
			return fr.readError()
		}
		return 0, nil, nil, protocolErrorf("invalid frame tag %q received from QD", tag)
	}

	if err := fr.rb.ReadFull(fr.r, 8); err == io.EOF {
		return frameEOF, nil, nil, nil
	} else if err != nil {
		return 0, nil, nil, truncated(err)
	}
	if int64(binary.BigEndian.Uint64(fr.rb.Msg)) == -1 {
		if err := fr.rb.ReadFull(fr.r, errorFramePrefix-8); err != nil {
			return 0, nil, nil, truncated(err)
		}
		return fr.readError()
	}
	head := append([]byte(nil), fr.rb.Msg...)
	if err := fr.rb.ReadFull(fr.r, rowFramePrefix-8); err != nil {
		return 0, nil, nil, truncated(err)
	}
	fr.rb.Msg = append(head, fr.rb.Msg...)
	return fr.readRow()
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return protocolErrorf("unexpected EOF in COPY data from QD")
	}
	return err
}

// readRow decodes a row frame whose fixed prefix is in rb.
func (fr *frameReader) readRow() (frameKind, *rowFrame, *errorFrame, error) {
	f := &fr.row
	lineNo, _ := fr.rb.GetUint64()
	relID, _ := fr.rb.GetUint32()
	lineLen, _ := fr.rb.GetUint32()
	residual, _ := fr.rb.GetUint32()
	delim, _ := fr.rb.GetUint8()
	count, err := fr.rb.GetUint16()
	if err != nil {
		return 0, nil, nil, markProtocol(err)
	}
	f.lineNo, f.relID = int64(lineNo), oid.Oid(relID)
	f.residualOff, f.delimSeenAtEnd = int(residual), delim != 0
	if err := fr.rb.ReadFull(fr.r, int(lineLen)); err != nil {
		return 0, nil, nil, truncated(err)
	}
	f.line = append(f.line[:0], fr.rb.Msg...)
	f.values = f.values[:0]
	for i := 0; i < int(count); i++ {
		attnum, err := fr.rb.ReadUint16(fr.r)
		if err != nil {
			return 0, nil, nil, truncated(err)
		}
		id := catalog.ColumnID(int16(attnum))
		if id < 1 || int(id) > len(fr.codec.types) {
			return 0, nil, nil, protocolErrorf("invalid attnum received from QD: %d", id)
		}
		d, err := fr.readSlot(fr.codec.types[id-1])
		if err != nil {
			return 0, nil, nil, err
		}
		f.values = append(f.values, frameValue{attnum: id, datum: d})
	}
	return frameRow, f, nil, nil
}

func (fr *frameReader) readSlot(t *types.T) (tree.Datum, error) {
	var n int
	switch {
	case t.ByVal():
		n = slotSize
	case t.ByteLen() > 0:
		n = int(t.ByteLen())
	default:
		size, err := fr.rb.ReadUint32(fr.r)
		if err != nil {
			return nil, truncated(err)
		}
		n = int(size)
	}
	if err := fr.rb.ReadFull(fr.r, n); err != nil {
		return nil, truncated(err)
	}
	b := fr.rb.Msg
	if t.ByVal() {
		b = b[slotSize-int(t.ByteLen()):]
	}
	d, err := tree.DecodeBinary(t, b)
	if err != nil {
		return nil, markProtocol(err)
	}
	return d, nil
}

// readError decodes an error frame whose prefix, minus the v1 marker, is in
// rb.
func (fr *frameReader) readError() (frameKind, *rowFrame, *errorFrame, error) {
	f := &fr.errf
	lineNo, _ := fr.rb.GetUint64()
	msgLen, _ := fr.rb.GetUint32()
	lineLen, _ := fr.rb.GetUint32()
	converted, err := fr.rb.GetUint8()
	if err != nil {
		return 0, nil, nil, markProtocol(err)
	}
	f.lineNo, f.converted = int64(lineNo), converted != 0
	if err := fr.rb.ReadFull(fr.r, int(msgLen)); err != nil {
		return 0, nil, nil, truncated(err)
	}
	f.errMsg = string(fr.rb.Msg)
	if err := fr.rb.ReadFull(fr.r, int(lineLen)); err != nil {
		return 0, nil, nil, truncated(err)
	}
	f.line = append(f.line[:0], fr.rb.Msg...)
	return frameError, nil, f, nil
}
