// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestBackgroundPipe(t *testing.T) {
	ctx := context.Background()

	t.Run("reader sees all bytes", func(t *testing.T) {
		var got []byte
		p := NewBackgroundPipe(ctx, func(ctx context.Context, r io.Reader) error {
			var err error
			got, err = io.ReadAll(r)
			return err
		})
		_, err := p.Write([]byte("hello "))
		require.NoError(t, err)
		_, err = p.Write([]byte("world"))
		require.NoError(t, err)
		require.NoError(t, p.Close())
		require.Equal(t, "hello world", string(got))
	})

	t.Run("reader error fails writer", func(t *testing.T) {
		boom := errors.New("boom")
		p := NewBackgroundPipe(ctx, func(ctx context.Context, r io.Reader) error {
			return boom
		})
		// The reader may exit before or after the first write; the close
		// error is always the reader's error.
		_, _ = p.Write([]byte("x"))
		require.True(t, errors.Is(p.Close(), boom))
	})

	t.Run("abort reaches reader", func(t *testing.T) {
		cause := errors.New("cancelled by peer")
		p := NewBackgroundPipe(ctx, func(ctx context.Context, r io.Reader) error {
			_, err := io.ReadAll(r)
			return err
		})
		err := p.Abort(cause)
		require.True(t, errors.Is(err, cause))
	})
}
