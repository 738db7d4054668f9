// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package sreh implements single row error handling for bulk loads: a
// malformed input row is counted, optionally logged and skipped instead of
// aborting the whole statement, until a configured reject limit is crossed.
package sreh

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/util/log"
)

// PercentThreshold is the number of processed rows below which a percentage
// reject limit is not evaluated.
var PercentThreshold = settings.RegisterIntSetting(
	settings.SessionLevel,
	"sql.copy.reject_percent_threshold",
	"rows that must be processed before a PERCENT reject limit is checked",
	300,
	settings.PositiveInt,
)

// ErrNotIsolatable marks errors that must abort the statement even when
// their code belongs to a data exception class. Stream corruption is the
// typical example.
var ErrNotIsolatable = errors.New("error cannot be isolated to a single row")

// ErrRejectLimit marks the error that ends a statement whose rejected rows
// crossed the reject limit. The rows stored before it stay stored.
var ErrRejectLimit = errors.New("reject limit exceeded")

// LimitKind says how a reject limit is measured.
type LimitKind int

const (
	// LimitRows is an absolute number of rejected rows.
	LimitRows LimitKind = iota
	// LimitPercent is a percentage of the rows processed so far.
	LimitPercent
)

func (k LimitKind) String() string {
	if k == LimitPercent {
		return "PERCENT"
	}
	return "ROWS"
}

// LogMode says what happens to a rejected row besides being counted.
type LogMode int

const (
	// LogNone only counts rejected rows.
	LogNone LogMode = iota
	// LogLocal writes rejected rows to the sink's error log.
	LogLocal
	// LogForward hands rejected rows to another node that owns the log. The
	// dispatcher uses this so every error is persisted by a segment.
	LogForward
)

// Options configure the sink of one statement.
type Options struct {
	Limit     int64
	LimitKind LimitKind
	LogMode   LogMode
	// RelName and FileName are copied into every logged row.
	RelName  string
	FileName string
}

// RejectedRow is a row that failed to load.
type RejectedRow struct {
	CmdTime  time.Time `json:"cmdtime"`
	RelName  string    `json:"relname"`
	FileName string    `json:"filename,omitempty"`
	LineNo   int64     `json:"linenum"`
	ErrMsg   string    `json:"errmsg"`
	RawData  string    `json:"rawdata"`
	// RawConverted is set when RawData was already converted to the server
	// encoding.
	RawConverted bool `json:"rawconverted,omitempty"`
	Segment      int  `json:"segment"`
}

// BadRow describes the row that caused an error.
type BadRow struct {
	LineNo    int64
	Raw       []byte
	Converted bool
	// Column is the name of the column being parsed when the error occurred,
	// if known.
	Column string
}

// Forwarder delivers rejected rows to the node that logs them.
type Forwarder func(ctx context.Context, row RejectedRow) error

// Sink isolates row level failures of one statement. A nil *Sink is the
// all-or-nothing mode: every error is returned unchanged.
type Sink struct {
	opts      Options
	threshold int64
	log       ErrorLog
	forward   Forwarder
	metrics   *Metrics
	segment   int

	processed int64
	rejected  int64
	lastErr   string
	rejectLog log.EveryN
}

// rejectLogInterval spaces out the log messages about rejected rows.
const rejectLogInterval = 10 * time.Second

// NewSink creates a sink. errLog is required with LogLocal and forward with
// LogForward; metrics may be nil.
func NewSink(
	sv *settings.Values,
	opts Options,
	segment int,
	errLog ErrorLog,
	forward Forwarder,
	metrics *Metrics,
) (*Sink, error) {
	if err := ValidateLimit(opts.Limit, opts.LimitKind); err != nil {
		return nil, err
	}
	switch {
	case opts.LogMode == LogLocal && errLog == nil:
		return nil, errors.AssertionFailedf("error logging requested without an error log")
	case opts.LogMode == LogForward && forward == nil:
		return nil, errors.AssertionFailedf("error forwarding requested without a destination")
	}
	return &Sink{
		opts:      opts,
		threshold: PercentThreshold.Get(sv),
		log:       errLog,
		forward:   forward,
		metrics:   metrics,
		segment:   segment,
		rejectLog: log.Every(rejectLogInterval),
	}, nil
}

// ValidateLimit checks a SEGMENT REJECT LIMIT clause.
func ValidateLimit(limit int64, kind LimitKind) error {
	if kind == LimitPercent {
		if limit < 1 || limit > 100 {
			return pgerror.New(pgcode.InvalidParameterValue,
				"segment reject limit in PERCENT must be between 1 and 100")
		}
		return nil
	}
	if limit < 1 {
		return pgerror.New(pgcode.InvalidParameterValue, "segment reject limit must be greater than 0")
	}
	return nil
}

// Eligible reports whether err is a data content error that may be isolated
// to its row.
func Eligible(err error) bool {
	if err == nil || errors.Is(err, ErrNotIsolatable) {
		return false
	}
	switch pgerror.GetPGCode(err).Class() {
	case pgcode.DataException, pgcode.IntegrityConstraintViolation:
		return true
	}
	return false
}

// RowProcessed records a row that loaded successfully.
func (s *Sink) RowProcessed() {
	if s != nil {
		s.processed++
	}
}

// Processed is the number of rows seen, good or bad.
func (s *Sink) Processed() int64 {
	if s == nil {
		return 0
	}
	return s.processed
}

// Rejected is the number of rows rejected on this node.
func (s *Sink) Rejected() int64 {
	if s == nil {
		return 0
	}
	return s.rejected
}

// Logging reports whether rejected rows are persisted somewhere.
func (s *Sink) Logging() bool {
	return s != nil && s.opts.LogMode != LogNone
}

// HandleRowError decides the fate of a row that failed with err. It returns
// nil when the row was rejected and the caller should move on to the next
// one. Any other return value aborts the statement.
func (s *Sink) HandleRowError(ctx context.Context, row BadRow, err error) error {
	if s == nil || !Eligible(err) {
		return err
	}
	s.processed++
	msg := err.Error()
	if row.Column != "" {
		msg = fmt.Sprintf("%s, column %s", msg, row.Column)
	}
	s.lastErr = msg
	rejected := RejectedRow{
		CmdTime:      time.Now().UTC(),
		RelName:      s.opts.RelName,
		FileName:     s.opts.FileName,
		LineNo:       row.LineNo,
		ErrMsg:       msg,
		RawData:      string(row.Raw),
		RawConverted: row.Converted,
		Segment:      s.segment,
	}
	if err := s.record(ctx, rejected); err != nil {
		return err
	}
	if s.rejectLog.ShouldLog() {
		log.Infof(ctx, "rejected line %d: %s (%s); %d rows rejected so far", row.LineNo,
			redact.Safe(msg), redact.Unsafe(string(row.Raw)), s.rejected)
	}
	return s.checkLimit()
}

// HandleForwardedError logs a row another node already rejected and
// counted. It is used by segments receiving error frames.
func (s *Sink) HandleForwardedError(ctx context.Context, row RejectedRow) error {
	if s == nil {
		return pgerror.New(pgcode.BadCopyFileFormat,
			"received a rejected row without single row error handling")
	}
	s.processed++
	s.lastErr = row.ErrMsg
	if row.RelName == "" {
		row.RelName = s.opts.RelName
	}
	if row.FileName == "" {
		row.FileName = s.opts.FileName
	}
	if row.CmdTime.IsZero() {
		row.CmdTime = time.Now().UTC()
	}
	row.Segment = s.segment
	if err := s.record(ctx, row); err != nil {
		return err
	}
	return s.checkLimit()
}

func (s *Sink) record(ctx context.Context, row RejectedRow) error {
	s.rejected++
	// Forwarded rows are counted by the segment receiving them.
	if s.metrics != nil && s.opts.LogMode != LogForward {
		s.metrics.RowsRejected.Inc(1)
	}
	switch s.opts.LogMode {
	case LogLocal:
		if err := s.log.Append(ctx, row); err != nil {
			return errors.Wrap(err, "writing error log")
		}
		if s.metrics != nil {
			s.metrics.RowsLogged.Inc(1)
		}
	case LogForward:
		if err := s.forward(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// LimitReached reports whether the rejected rows exceed the limit.
func (s *Sink) LimitReached() bool {
	if s == nil {
		return false
	}
	if s.opts.LimitKind == LimitRows {
		return s.rejected > s.opts.Limit
	}
	if s.processed < s.threshold {
		return false
	}
	return s.rejected*100/s.processed > s.opts.Limit
}

func (s *Sink) checkLimit() error {
	if !s.LimitReached() {
		return nil
	}
	err := pgerror.Newf(pgcode.ProgramLimitExceeded,
		"segment reject limit reached, aborting operation: %d rows rejected, limit is %d %s",
		s.rejected, s.opts.Limit, redact.Safe(s.opts.LimitKind))
	err = errors.Mark(err, ErrRejectLimit)
	return errors.WithDetailf(err, "Last error was: %s", s.lastErr)
}

// IsRejectLimit reports whether err ended a statement because of its reject
// limit.
func IsRejectLimit(err error) bool {
	return errors.Is(err, ErrRejectLimit)
}

// Summary reports the rows rejected by the whole statement. total combines
// the counts of every node that rejected rows; it returns an empty string
// when nothing was rejected.
func Summary(total int64) string {
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("found %d data formatting errors (%d or more input rows), rejected related input data",
		total, total)
}

// Report emits the summary of a finished statement.
func Report(ctx context.Context, total int64) {
	if msg := Summary(total); msg != "" {
		log.Infof(ctx, "%s", redact.Safe(msg))
	}
}
