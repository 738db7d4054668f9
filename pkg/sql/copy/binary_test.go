// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"bytes"
	"testing"

	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgwirebase"
	"github.com/mppdb/mppdb/pkg/sql/sem/tree"
	"github.com/mppdb/mppdb/pkg/sql/types"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func TestBinaryReader(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	typs := []*types.T{types.Int, types.String}
	enc := &binaryEncoder{types: typs}
	// build returns a file with the given rows, an optional trailer and
	// extra bytes.
	build := func(rows []tree.Datums, trailer bool, extra ...byte) []byte {
		buf := pgwirebase.MakeWriteBuffer(nil)
		enc.header(&buf)
		for _, row := range rows {
			require.NoError(t, enc.encode(&buf, row))
		}
		if trailer {
			enc.trailer(&buf)
		}
		_, _ = buf.Write(extra)
		return buf.Bytes()
	}
	rows := []tree.Datums{
		{tree.NewDInt(1), tree.NewDString("one")},
		{tree.NewDInt(-2), tree.DNull},
	}

	readAll := func(data []byte) ([]string, error) {
		br := newBinaryReader(bytes.NewReader(data), typs)
		if err := br.readHeader(); err != nil {
			return nil, err
		}
		var out []string
		vals := make(tree.Datums, len(typs))
		for {
			ok, err := br.next(vals)
			if err != nil {
				return out, err
			}
			if !ok {
				return out, nil
			}
			out = append(out, vals.String())
		}
	}

	t.Run("with trailer", func(t *testing.T) {
		got, err := readAll(build(rows, true))
		require.NoError(t, err)
		require.Equal(t, []string{"(1, one)", "(-2, NULL)"}, got)
	})

	t.Run("without trailer", func(t *testing.T) {
		got, err := readAll(build(rows, false))
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	header := func(flags, extLen uint32, ext ...byte) []byte {
		buf := pgwirebase.MakeWriteBuffer(nil)
		_, _ = buf.Write(binarySignature)
		buf.PutUint32(flags)
		buf.PutUint32(extLen)
		_, _ = buf.Write(ext)
		return buf.Bytes()
	}

	testCases := []struct {
		name  string
		input []byte
		err   string
	}{
		{name: "signature", input: []byte("PGCOPY\n\377\r\n\x01"), err: "COPY file signature not recognized"},
		{name: "missing flags", input: binarySignature, err: "invalid COPY file header (missing flags)"},
		{name: "oids", input: header(binaryFlagOids, 0), err: "invalid COPY file header (WITH OIDS)"},
		{name: "critical flags", input: header(1<<20, 0), err: "unrecognized critical flags in COPY file header"},
		{name: "extension", input: header(0, 4, 'a', 'b'), err: "invalid COPY file header (wrong length)"},
		{name: "field count", input: append(header(0, 0), 0, 3), err: "row field count is 3, expected 2"},
		{name: "truncated", input: append(header(0, 0), 0, 2, 0, 0, 0, 8, 1), err: "unexpected EOF in COPY data"},
		{name: "after trailer", input: build(rows, true, 'x'), err: "received copy data after EOF marker"},
		{name: "field size", input: append(header(0, 0), 0, 2, 0xff, 0xff, 0xff, 0xfe), err: "invalid field size"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readAll(tc.input)
			require.EqualError(t, err, tc.err)
			require.Equal(t, pgcode.BadCopyFileFormat, pgerror.GetPGCode(err))
		})
	}

	t.Run("bad value", func(t *testing.T) {
		data := append(header(0, 0), 0, 2, 0, 0, 0, 3, 1, 2, 3, 0xff, 0xff, 0xff, 0xff)
		_, err := readAll(data)
		require.Error(t, err)
		require.Contains(t, err.Error(), "COPY row 1, field 1")
	})
}
