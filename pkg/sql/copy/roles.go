// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"

	"github.com/cockroachdb/logtags"
	"github.com/google/uuid"
	"github.com/marusama/semaphore"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/rowflow"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
)

// CoordinatorID is the segment id of the coordinator.
const CoordinatorID = -1

// Config holds what a role needs besides the statement.
type Config struct {
	Settings *settings.Values
	// Metrics are created when nil.
	Metrics     *Metrics
	SREHMetrics *sreh.Metrics
	// ErrorLog receives the rows rejected on this node when LOG ERRORS is
	// set.
	ErrorLog sreh.ErrorLog
	// FlushSem, if set, bounds the number of stores running at once.
	FlushSem semaphore.Semaphore
	// Seed places rows of randomly distributed relations.
	Seed rowflow.Seed
	// Segment is the id of this node.
	Segment int
	// StatementID tags log messages. One is generated when empty.
	StatementID string
}

func (c *Config) init() {
	if c.Settings == nil {
		c.Settings = settings.MakeValues()
	}
	if c.Metrics == nil {
		c.Metrics = MakeMetrics()
	}
	if c.StatementID == "" {
		c.StatementID = uuid.NewString()[:8]
	}
}

// annotate tags ctx with the statement and the node.
func (c *Config) annotate(ctx context.Context, role string) context.Context {
	ctx = logtags.AddTag(ctx, "copy", c.StatementID)
	if c.Segment != CoordinatorID {
		ctx = logtags.AddTag(ctx, "seg", c.Segment)
	}
	return logtags.AddTag(ctx, "role", role)
}

// newSink creates the SREH sink of a role, or nil when every error is
// fatal.
func (c *Config) newSink(p *plan, mode sreh.LogMode, forward sreh.Forwarder) (*sreh.Sink, error) {
	if !p.opts.SingleRowErrors() {
		return nil, nil
	}
	return sreh.NewSink(c.Settings, sreh.Options{
		Limit:     p.opts.RejectLimit,
		LimitKind: p.opts.RejectLimitKind,
		LogMode:   mode,
		RelName:   p.table.Name,
		FileName:  p.stmt.FileName,
	}, c.Segment, c.ErrorLog, forward, c.SREHMetrics)
}

// localLogMode is the log mode of a node that stores rows.
func localLogMode(opts *Options) sreh.LogMode {
	if opts.LogErrors {
		return sreh.LogLocal
	}
	return sreh.LogNone
}
