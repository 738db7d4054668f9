// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgwirebase contains the big-endian buffers and format codes
// shared by the client-facing COPY adapters and the internal row streams.
package pgwirebase

import (
	"encoding/binary"
	"io"

	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
)

// FormatCode represents a pgwire data format.
type FormatCode uint16

const (
	// FormatText is the default, text format.
	FormatText FormatCode = 0
	// FormatBinary is an alternative, binary, encoding.
	FormatBinary FormatCode = 1
)

// ReadBuffer provides a convenient way to read pgwire protocol messages.
type ReadBuffer struct {
	Msg []byte
	tmp [8]byte
}

// ReadFull replaces the contents of the buffer with exactly n bytes read
// from r. A short read reports io.ErrUnexpectedEOF; a read that finds no
// bytes at all reports io.EOF.
func (b *ReadBuffer) ReadFull(r io.Reader, n int) error {
	if cap(b.Msg) >= n {
		b.Msg = b.Msg[:n]
	} else {
		b.Msg = make([]byte, n)
	}
	_, err := io.ReadFull(r, b.Msg)
	return err
}

// Reset sets b.Msg to exactly size, attempting to use spare capacity
// at the end of the existing slice when possible and allocating a new
// slice when necessary.
func (b *ReadBuffer) Reset(size int) {
	if b.Msg != nil {
		b.Msg = b.Msg[len(b.Msg):]
	}
	if cap(b.Msg) >= size {
		b.Msg = b.Msg[:size]
		return
	}
	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	b.Msg = make([]byte, size, allocSize)
}

// GetBytes returns the buffer's contents as a []byte.
func (b *ReadBuffer) GetBytes(n int) ([]byte, error) {
	if n < 0 || len(b.Msg) < n {
		return nil, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := b.Msg[:n]
	b.Msg = b.Msg[n:]
	return v, nil
}

// GetUint8 returns the buffer's contents as a uint8.
func (b *ReadBuffer) GetUint8() (uint8, error) {
	if len(b.Msg) < 1 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := b.Msg[0]
	b.Msg = b.Msg[1:]
	return v, nil
}

// GetUint16 returns the buffer's contents as a uint16.
func (b *ReadBuffer) GetUint16() (uint16, error) {
	if len(b.Msg) < 2 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := binary.BigEndian.Uint16(b.Msg[:2])
	b.Msg = b.Msg[2:]
	return v, nil
}

// GetUint32 returns the buffer's contents as a uint32.
func (b *ReadBuffer) GetUint32() (uint32, error) {
	if len(b.Msg) < 4 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := binary.BigEndian.Uint32(b.Msg[:4])
	b.Msg = b.Msg[4:]
	return v, nil
}

// GetUint64 returns the buffer's contents as a uint64.
func (b *ReadBuffer) GetUint64() (uint64, error) {
	if len(b.Msg) < 8 {
		return 0, NewProtocolViolationErrorf("insufficient data: %d", len(b.Msg))
	}
	v := binary.BigEndian.Uint64(b.Msg[:8])
	b.Msg = b.Msg[8:]
	return v, nil
}

// ReadUint16 reads a big-endian uint16 directly from r.
func (b *ReadBuffer) ReadUint16(r io.Reader) (uint16, error) {
	if _, err := io.ReadFull(r, b.tmp[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.tmp[:2]), nil
}

// ReadUint32 reads a big-endian uint32 directly from r.
func (b *ReadBuffer) ReadUint32(r io.Reader) (uint32, error) {
	if _, err := io.ReadFull(r, b.tmp[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.tmp[:4]), nil
}

// ReadUint64 reads a big-endian uint64 directly from r.
func (b *ReadBuffer) ReadUint64(r io.Reader) (uint64, error) {
	if _, err := io.ReadFull(r, b.tmp[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b.tmp[:8]), nil
}

// NewProtocolViolationErrorf creates a pgwire ProtocolViolationError.
func NewProtocolViolationErrorf(format string, args ...interface{}) error {
	return pgerror.NewWithDepthf(1, pgcode.ProtocolViolation, format, args...)
}
