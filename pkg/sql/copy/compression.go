// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
)

// codec compresses the files a COPY statement reads or writes. The codec
// is chosen by the file name extension.
type codec interface {
	newReader(r io.Reader) (io.ReadCloser, error)
	newWriter(w io.Writer) (io.WriteCloser, error)
}

var codecs = map[string]codec{
	".gz":  gzipCodec{},
	".zst": zstdCodec{},
	".lz4": lz4Codec{},
	".sz":  snappyCodec{},
}

// codecForFile returns the codec of a file, or nil if it is not
// compressed.
func codecForFile(name string) codec {
	return codecs[strings.ToLower(filepath.Ext(name))]
}

type gzipCodec struct{}
type zstdCodec struct{}
type lz4Codec struct{}
type snappyCodec struct{}

func (gzipCodec) newReader(r io.Reader) (io.ReadCloser, error) {
	return pgzip.NewReader(r)
}

func (gzipCodec) newWriter(w io.Writer) (io.WriteCloser, error) {
	return pgzip.NewWriter(w), nil
}

type readCloserNoError interface {
	io.Reader
	Close()
}

type noErrorCloser struct {
	readCloserNoError
}

func (c noErrorCloser) Close() error {
	c.readCloserNoError.Close()
	return nil
}

func (zstdCodec) newReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return noErrorCloser{readCloserNoError: d}, nil
}

func (zstdCodec) newWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func (lz4Codec) newReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lz4Codec) newWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (snappyCodec) newReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}

func (snappyCodec) newWriter(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}
