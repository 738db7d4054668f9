// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgwirebase

import (
	"bytes"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/util/metric"
	"github.com/stretchr/testify/require"
)

func TestWriteReadBuffer(t *testing.T) {
	count := metric.NewCounter(metric.Metadata{Name: "bytes"})
	wb := MakeWriteBuffer(count)
	wb.PutInt16(-1)
	wb.PutUint32(7)
	wb.PutInt64(1 << 40)
	wb.PutBool(true)
	wb.WriteLengthPrefixedString("abc")
	wb.WriteTerminatedString("z")
	require.Equal(t, 2+4+8+1+4+3+2, wb.Len())

	var out bytes.Buffer
	require.NoError(t, wb.FlushTo(&out))
	require.Equal(t, 0, wb.Len())
	require.Equal(t, int64(24), count.Count())

	var rb ReadBuffer
	require.NoError(t, rb.ReadFull(&out, out.Len()))
	v16, err := rb.GetUint16()
	require.NoError(t, err)
	require.Equal(t, int16(-1), int16(v16))
	v32, err := rb.GetUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(7), v32)
	v64, err := rb.GetUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40), v64)
	b, err := rb.GetUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), b)
	n, err := rb.GetUint32()
	require.NoError(t, err)
	s, err := rb.GetBytes(int(n))
	require.NoError(t, err)
	require.Equal(t, "abc", string(s))

	_, err = rb.GetUint64()
	require.Error(t, err)
	require.Equal(t, pgcode.ProtocolViolation, pgerror.GetPGCode(err))
}

func TestWriteBufferStickyError(t *testing.T) {
	wb := MakeWriteBuffer(nil)
	wb.SetError(errors.New("boom"))
	wb.PutInt32(1)
	require.Equal(t, 0, wb.Len())
	require.EqualError(t, wb.FlushTo(io.Discard), "boom")
	require.NoError(t, wb.Err())
}

func TestReadDirect(t *testing.T) {
	var rb ReadBuffer
	r := bytes.NewReader([]byte{0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 3, 9})
	v16, err := rb.ReadUint16(r)
	require.NoError(t, err)
	require.Equal(t, uint16(1), v16)
	v32, err := rb.ReadUint32(r)
	require.NoError(t, err)
	require.Equal(t, uint32(2), v32)
	v64, err := rb.ReadUint64(r)
	require.NoError(t, err)
	require.Equal(t, uint64(3), v64)
	_, err = rb.ReadUint16(r)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
