// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// BackgroundPipe is a helper for providing a Writer that is backed by a pipe
// that has a background process reading from it. It *must* be Closed() or
// Aborted().
type BackgroundPipe struct {
	w   *io.PipeWriter
	grp *errgroup.Group
}

// NewBackgroundPipe starts fn on its own goroutine, reading from the pipe
// whose write end is returned. If fn returns early with an error, pending
// and future writes fail with that error.
func NewBackgroundPipe(
	ctx context.Context, fn func(ctx context.Context, pr io.Reader) error,
) *BackgroundPipe {
	pr, pw := io.Pipe()
	grp, gCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		err := fn(gCtx, pr)
		if err != nil {
			closeErr := pr.CloseWithError(err)
			err = errors.CombineErrors(err, closeErr)
		} else {
			err = pr.Close()
		}
		return err
	})
	return &BackgroundPipe{w: pw, grp: grp}
}

// Write writes to the writer.
func (s *BackgroundPipe) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Close closes the writer, signals end of data to the reader and waits for
// it to finish.
func (s *BackgroundPipe) Close() error {
	err := s.w.Close()
	return errors.CombineErrors(err, s.grp.Wait())
}

// Abort closes the writer with cause, so that the reader observes cause
// instead of io.EOF, and waits for the reader to exit. The reader's own
// error, if any, is returned.
func (s *BackgroundPipe) Abort(cause error) error {
	_ = s.w.CloseWithError(cause)
	return s.grp.Wait()
}
