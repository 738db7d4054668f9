// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwirebase

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/mppdb/mppdb/pkg/util/metric"
)

// WriteBuffer is a wrapper around bytes.Buffer that provides a convenient
// interface for writing big-endian wire data. The buffer preserves any
// errors it encounters when writing, and will turn all subsequent write
// attempts into no-ops until FlushTo or Reset is called.
type WriteBuffer struct {
	wrapped bytes.Buffer
	err     error

	// Buffer used for temporary storage.
	putbuf [64]byte

	// bytecount counts the number of bytes flushed through every buffer
	// sharing the counter. It may be nil.
	bytecount *metric.Counter
}

// MakeWriteBuffer returns a WriteBuffer that counts flushed bytes in
// bytecount, which may be nil.
func MakeWriteBuffer(bytecount *metric.Counter) WriteBuffer {
	return WriteBuffer{bytecount: bytecount}
}

// Write implements the io.Writer interface.
func (b *WriteBuffer) Write(p []byte) (int, error) {
	b.write(p)
	return len(p), b.err
}

// WriteByte appends a single byte.
func (b *WriteBuffer) WriteByte(c byte) error {
	if b.err == nil {
		b.err = b.wrapped.WriteByte(c)
	}
	return b.err
}

func (b *WriteBuffer) write(p []byte) {
	if b.err == nil {
		_, b.err = b.wrapped.Write(p)
	}
}

// WriteString appends s.
func (b *WriteBuffer) WriteString(s string) {
	if b.err == nil {
		_, b.err = b.wrapped.WriteString(s)
	}
}

// WriteLengthPrefixedBytes writes p with an int32 length prefix.
func (b *WriteBuffer) WriteLengthPrefixedBytes(p []byte) {
	b.PutInt32(int32(len(p)))
	b.write(p)
}

// WriteLengthPrefixedString writes a length-prefixed string. The
// length is encoded as an int32.
func (b *WriteBuffer) WriteLengthPrefixedString(s string) {
	b.PutInt32(int32(len(s)))
	b.WriteString(s)
}

// WriteTerminatedString writes a null-terminated string.
func (b *WriteBuffer) WriteTerminatedString(s string) {
	b.WriteString(s)
	if b.err == nil {
		b.err = b.wrapped.WriteByte(0)
	}
}

// PutBool writes a single byte holding 0 or 1.
func (b *WriteBuffer) PutBool(v bool) {
	if v {
		_ = b.WriteByte(1)
	} else {
		_ = b.WriteByte(0)
	}
}

// PutInt16 writes v in big-endian order.
func (b *WriteBuffer) PutInt16(v int16) {
	if b.err == nil {
		binary.BigEndian.PutUint16(b.putbuf[:], uint16(v))
		_, b.err = b.wrapped.Write(b.putbuf[:2])
	}
}

// PutInt32 writes v in big-endian order.
func (b *WriteBuffer) PutInt32(v int32) {
	if b.err == nil {
		binary.BigEndian.PutUint32(b.putbuf[:], uint32(v))
		_, b.err = b.wrapped.Write(b.putbuf[:4])
	}
}

// PutUint16 writes v in big-endian order.
func (b *WriteBuffer) PutUint16(v uint16) { b.PutInt16(int16(v)) }

// PutUint32 writes v in big-endian order.
func (b *WriteBuffer) PutUint32(v uint32) { b.PutInt32(int32(v)) }

// PutInt64 writes v in big-endian order.
func (b *WriteBuffer) PutInt64(v int64) {
	if b.err == nil {
		binary.BigEndian.PutUint64(b.putbuf[:], uint64(v))
		_, b.err = b.wrapped.Write(b.putbuf[:8])
	}
}

// Len returns the number of buffered bytes.
func (b *WriteBuffer) Len() int { return b.wrapped.Len() }

// Bytes returns the buffered bytes. The slice is only valid until the next
// write or reset.
func (b *WriteBuffer) Bytes() []byte { return b.wrapped.Bytes() }

// Err returns the first error encountered since the last reset.
func (b *WriteBuffer) Err() error { return b.err }

// Reset discards the buffered data and any error.
func (b *WriteBuffer) Reset() {
	b.wrapped.Reset()
	b.err = nil
}

// FlushTo attempts to write the data it has accumulated to the provided
// io.Writer. If the WriteBuffer previously encountered an error since the
// last reset, or if it encounters an error while writing to w, it will
// return an error. The buffer is reset in all cases.
func (b *WriteBuffer) FlushTo(w io.Writer) error {
	defer b.Reset()
	if b.err != nil {
		return b.err
	}
	n, err := w.Write(b.wrapped.Bytes())
	if b.bytecount != nil {
		b.bytecount.Inc(int64(n))
	}
	return err
}

// SetError sets the WriteBuffer's error, if it does not already have one.
func (b *WriteBuffer) SetError(err error) {
	if b.err == nil {
		b.err = err
	}
}
