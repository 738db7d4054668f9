// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sreh

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/mppdb/mppdb/pkg/settings"
)

// ErrorLogDir is where file error logs are created when a load asks for
// LOG ERRORS.
var ErrorLogDir = settings.RegisterStringSetting(
	settings.SessionLevel,
	"sql.copy.error_log_dir",
	"directory holding the error logs of COPY statements",
	"errlog",
)

// ErrorLog persists rejected rows.
type ErrorLog interface {
	Append(ctx context.Context, row RejectedRow) error
	Close() error
}

// MemLog keeps rejected rows in memory. It is safe for concurrent use so
// that the segments of a local cluster can share one.
type MemLog struct {
	mu   sync.Mutex
	rows []RejectedRow
}

var _ ErrorLog = &MemLog{}

// Append implements ErrorLog.
func (m *MemLog) Append(_ context.Context, row RejectedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

// Close implements ErrorLog.
func (m *MemLog) Close() error { return nil }

// Rows returns a copy of the logged rows.
func (m *MemLog) Rows() []RejectedRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RejectedRow(nil), m.rows...)
}

// FileLog writes rejected rows as JSON lines. Files whose name ends in
// ".zst" are zstd compressed.
type FileLog struct {
	mu  sync.Mutex
	f   *os.File
	zw  *zstd.Encoder
	w   *bufio.Writer
	enc *json.Encoder
}

var _ ErrorLog = &FileLog{}

// ErrorLogPath returns the path of the error log of a relation on a
// segment.
func ErrorLogPath(sv *settings.Values, relName string, segment int, compress bool) string {
	name := relName + ".seg" + strconv.Itoa(segment) + ".jsonl"
	if compress {
		name += ".zst"
	}
	return filepath.Join(ErrorLogDir.Get(sv), name)
}

// OpenFileLog opens path for appending, creating its directory if needed.
func OpenFileLog(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "creating error log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening error log %s", path)
	}
	l := &FileLog{f: f}
	var w io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		l.zw, err = zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		w = l.zw
	}
	l.w = bufio.NewWriter(w)
	l.enc = json.NewEncoder(l.w)
	return l, nil
}

// Append implements ErrorLog.
func (l *FileLog) Append(_ context.Context, row RejectedRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(row)
}

// Close flushes and closes the file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.w.Flush()
	if l.zw != nil {
		err = errors.CombineErrors(err, l.zw.Close())
	}
	return errors.CombineErrors(err, l.f.Close())
}

// ReadLog reads back every row of a file error log.
func ReadLog(path string) ([]RejectedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	var rows []RejectedRow
	dec := json.NewDecoder(r)
	for {
		var row RejectedRow
		if err := dec.Decode(&row); err == io.EOF {
			return rows, nil
		} else if err != nil {
			return rows, errors.Wrapf(err, "reading error log %s", path)
		}
		rows = append(rows, row)
	}
}
