// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// segIDPlaceholder is replaced by the segment id in the file names of ON
// SEGMENT statements.
const segIDPlaceholder = "<SEGID>"

// stderrTail is how much of a failed program's standard error is reported.
const stderrTail = 1 << 10

// Location is where the data of a COPY statement is read from or written
// to: a file, possibly compressed, or a shell command.
type Location struct {
	Name    string
	Program bool
}

func (l Location) String() string {
	if l.Program {
		return "PROGRAM " + strconv.Quote(l.Name)
	}
	return strconv.Quote(l.Name)
}

// ForSegment substitutes the segment id into the location of an ON SEGMENT
// statement.
func (l Location) ForSegment(segment int) (Location, error) {
	if !strings.Contains(l.Name, segIDPlaceholder) {
		return Location{}, pgerror.Newf(pgcode.InvalidParameterValue,
			"%s is required for file name", segIDPlaceholder)
	}
	l.Name = strings.ReplaceAll(l.Name, segIDPlaceholder, strconv.Itoa(segment))
	return l, nil
}

// OpenSource opens a location for reading.
func OpenSource(ctx context.Context, l Location) (io.ReadCloser, error) {
	if l.Program {
		return startProgram(ctx, l.Name, false)
	}
	f, err := os.Open(l.Name)
	if err != nil {
		return nil, pgerror.Wrapf(err, pgcode.IOError, "could not open file \"%s\" for reading", l.Name)
	}
	c := codecForFile(l.Name)
	if c == nil {
		return f, nil
	}
	r, err := c.newReader(f)
	if err != nil {
		_ = f.Close()
		return nil, pgerror.Wrapf(err, pgcode.IOError, "could not read file \"%s\"", l.Name)
	}
	return &stackedReader{ReadCloser: r, file: f}, nil
}

// OpenSink opens a location for writing. Files are truncated.
func OpenSink(ctx context.Context, l Location) (io.WriteCloser, error) {
	if l.Program {
		return startProgram(ctx, l.Name, true)
	}
	f, err := os.Create(l.Name)
	if err != nil {
		return nil, pgerror.Wrapf(err, pgcode.IOError, "could not open file \"%s\" for writing", l.Name)
	}
	c := codecForFile(l.Name)
	if c == nil {
		return f, nil
	}
	w, err := c.newWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, pgerror.Wrapf(err, pgcode.IOError, "could not write file \"%s\"", l.Name)
	}
	return &stackedWriter{WriteCloser: w, file: f}, nil
}

type stackedReader struct {
	io.ReadCloser
	file *os.File
}

func (s *stackedReader) Close() error {
	return errors.CombineErrors(s.ReadCloser.Close(), s.file.Close())
}

type stackedWriter struct {
	io.WriteCloser
	file *os.File
}

// Close flushes the compressor before the file is closed.
func (s *stackedWriter) Close() error {
	return errors.CombineErrors(s.WriteCloser.Close(), s.file.Close())
}

// program is a shell command whose standard output is read, or whose
// standard input is written, by a COPY statement.
type program struct {
	ctx    context.Context
	cmd    *exec.Cmd
	name   string
	r      io.ReadCloser
	w      io.WriteCloser
	stderr tailBuffer
	sawEOF bool
}

func startProgram(ctx context.Context, name string, write bool) (*program, error) {
	p := &program{ctx: ctx, name: name}
	p.cmd = exec.CommandContext(ctx, "sh", "-c", name)
	p.cmd.Stderr = &p.stderr
	var err error
	if write {
		p.w, err = p.cmd.StdinPipe()
	} else {
		p.r, err = p.cmd.StdoutPipe()
	}
	if err == nil {
		err = p.cmd.Start()
	}
	if err != nil {
		return nil, pgerror.Wrapf(err, pgcode.ExternalRoutineException, "could not execute command \"%s\"", name)
	}
	log.VEventf(ctx, 2, "started program %q, pid %d", name, p.cmd.Process.Pid)
	return p, nil
}

func (p *program) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err == io.EOF {
		p.sawEOF = true
	}
	return n, err
}

func (p *program) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Close waits for the program to exit and reports a failure exit status.
// A reader that stopped before the end of the output does not care how the
// program ended.
func (p *program) Close() error {
	if p.w != nil {
		_ = p.w.Close()
	}
	if p.r != nil && !p.sawEOF {
		_ = p.r.Close()
		_ = p.cmd.Wait()
		return nil
	}
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	if ctxErr := p.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return pgerror.Wrapf(err, pgcode.ExternalRoutineException, "program \"%s\" failed", p.name)
	}
	err = pgerror.Newf(pgcode.ExternalRoutineException, "program \"%s\" failed", p.name)
	err = errors.WithDetailf(err, "child process exited with exit code %d", exitErr.ExitCode())
	if tail := strings.TrimSpace(p.stderr.String()); tail != "" {
		err = errors.WithDetailf(err, "%s", tail)
	}
	return err
}

// tailBuffer keeps the last bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - stderrTail; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
