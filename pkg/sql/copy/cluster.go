// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/marusama/semaphore"
	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/mppdb/mppdb/pkg/sql/catalog"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/sql/rowflow"
	"github.com/mppdb/mppdb/pkg/sql/sreh"
	"github.com/mppdb/mppdb/pkg/storage/memstore"
	"github.com/mppdb/mppdb/pkg/util"
	"github.com/mppdb/mppdb/pkg/util/log"
	"golang.org/x/sync/errgroup"
)

// LocalCluster runs the coordinator and every segment in one process, each
// with its own store. Segment streams are in-memory pipes.
type LocalCluster struct {
	Settings    *settings.Values
	Metrics     *Metrics
	SREHMetrics *sreh.Metrics
	// ErrorLog is shared by all nodes. It defaults to a MemLog.
	ErrorLog sreh.ErrorLog

	coordinator *memstore.Store
	segments    []*memstore.Store
	sem         semaphore.Semaphore
}

// NewLocalCluster creates a cluster of numSegments segments.
func NewLocalCluster(sv *settings.Values, numSegments int) *LocalCluster {
	if sv == nil {
		sv = settings.MakeValues()
	}
	srehMetrics := sreh.MakeMetrics()
	c := &LocalCluster{
		Settings:    sv,
		Metrics:     MakeMetrics(),
		SREHMetrics: &srehMetrics,
		ErrorLog:    &sreh.MemLog{},
		coordinator: memstore.New(),
		sem:         semaphore.New(int(flushConcurrency.Get(sv))),
	}
	for i := 0; i < numSegments; i++ {
		c.segments = append(c.segments, memstore.New())
	}
	return c
}

// NumSegments is the number of segments.
func (c *LocalCluster) NumSegments() int { return len(c.segments) }

// Coordinator returns the store of the coordinator.
func (c *LocalCluster) Coordinator() *memstore.Store { return c.coordinator }

// Segment returns the store of segment i.
func (c *LocalCluster) Segment(i int) *memstore.Store { return c.segments[i] }

// CreateTable validates a relation and creates it where it lives.
func (c *LocalCluster) CreateTable(desc *catalog.TableDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if desc.Policy.Kind == catalog.PolicyEntry {
		c.coordinator.CreateTable(desc)
		return nil
	}
	if desc.Policy.NumSegments != len(c.segments) {
		return errors.Newf("relation %s spans %d segments but the cluster has %d",
			desc.Name, desc.Policy.NumSegments, len(c.segments))
	}
	for _, s := range c.segments {
		s.CreateTable(desc)
	}
	return nil
}

func (c *LocalCluster) config(segment int, seed rowflow.Seed, stmtID string) Config {
	return Config{
		Settings:    c.Settings,
		Metrics:     c.Metrics,
		SREHMetrics: c.SREHMetrics,
		ErrorLog:    c.ErrorLog,
		FlushSem:    c.sem,
		Seed:        seed,
		Segment:     segment,
		StatementID: stmtID,
	}
}

// statementConfigs returns the configuration of the coordinator and a
// function making the one of a segment, all sharing a statement id and a
// seed.
func (c *LocalCluster) statementConfigs() (Config, func(int) Config) {
	coord := c.config(CoordinatorID, rowflow.MakeRandomSeed(), "")
	coord.init()
	return coord, func(seg int) Config {
		return c.config(seg, coord.Seed, coord.StatementID)
	}
}

// CopyFrom loads src into the relation of stmt. Relations stored on the
// coordinator are loaded directly; others go through a dispatcher.
func (c *LocalCluster) CopyFrom(ctx context.Context, stmt *Statement, src io.Reader) (Tally, error) {
	if stmt.Options.OnSegment {
		return Tally{}, errors.AssertionFailedf("ON SEGMENT statements read per segment locations")
	}
	coord, segCfg := c.statementConfigs()
	if stmt.Table.Policy.Kind == catalog.PolicyEntry {
		return NewDirect(coord, stmt, c.coordinator).CopyFrom(ctx, src)
	}
	conns := make([]SegmentConn, len(c.segments))
	for i, store := range c.segments {
		conns[i] = newLocalConn(ctx, NewSegment(segCfg(i), stmt, store))
	}
	return NewDispatcher(coord, stmt).CopyFrom(ctx, src, conns)
}

// CopyFromSegments runs an ON SEGMENT load: every segment reads its own
// location, derived from loc, and stores the rows that belong to it.
func (c *LocalCluster) CopyFromSegments(ctx context.Context, stmt *Statement, loc Location) (Tally, error) {
	if err := c.checkOnSegment(stmt); err != nil {
		return Tally{}, err
	}
	_, segCfg := c.statementConfigs()
	tallies := make([]Tally, len(c.segments))
	g, gCtx := errgroup.WithContext(ctx)
	for i, store := range c.segments {
		i, store := i, store
		l, err := loc.ForSegment(i)
		if err != nil {
			return Tally{}, err
		}
		g.Go(func() error {
			src, err := OpenSource(gCtx, l)
			if err != nil {
				return err
			}
			t, err := NewDirect(segCfg(i), stmt, store).CopyFrom(gCtx, src)
			tallies[i] = t
			return errors.CombineErrors(err, src.Close())
		})
	}
	if err := g.Wait(); err != nil {
		return Tally{}, err
	}
	var total Tally
	for _, t := range tallies {
		total.add(t)
	}
	if stmt.Table.Policy.Kind == catalog.PolicyReplicated {
		total.Completed /= int64(len(c.segments))
	}
	return total, nil
}

// CopyTo unloads the relation of stmt into dst.
func (c *LocalCluster) CopyTo(ctx context.Context, stmt *Statement, dst io.Writer) (int64, error) {
	if stmt.Options.OnSegment {
		return 0, errors.AssertionFailedf("ON SEGMENT statements write per segment locations")
	}
	coord, segCfg := c.statementConfigs()
	if stmt.Table.Policy.Kind == catalog.PolicyEntry {
		return NewDirect(coord, stmt, c.coordinator).CopyTo(ctx, dst)
	}
	srcs := make([]SegmentSource, len(c.segments))
	for i, store := range c.segments {
		srcs[i] = NewSegment(segCfg(i), stmt, store)
	}
	n, err := NewDispatcher(coord, stmt).CopyTo(ctx, dst, srcs)
	if err == nil {
		c.Metrics.RowsWritten.Inc(n)
	}
	return n, err
}

// CopyToSegments runs an ON SEGMENT unload: every segment writes its rows,
// with the header and trailer of the format, to its own location.
func (c *LocalCluster) CopyToSegments(ctx context.Context, stmt *Statement, loc Location) (int64, error) {
	if err := c.checkOnSegment(stmt); err != nil {
		return 0, err
	}
	_, segCfg := c.statementConfigs()
	counts := make([]int64, len(c.segments))
	g, gCtx := errgroup.WithContext(ctx)
	for i, store := range c.segments {
		i, store := i, store
		l, err := loc.ForSegment(i)
		if err != nil {
			return 0, err
		}
		g.Go(func() error {
			dst, err := OpenSink(gCtx, l)
			if err != nil {
				return err
			}
			n, err := NewDirect(segCfg(i), stmt, store).CopyTo(gCtx, dst)
			counts[i] = n
			return errors.CombineErrors(err, dst.Close())
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (c *LocalCluster) checkOnSegment(stmt *Statement) error {
	if !stmt.Options.OnSegment {
		return errors.AssertionFailedf("statement is not ON SEGMENT")
	}
	if stmt.Table.Policy.Kind == catalog.PolicyEntry {
		return pgerror.Newf(pgcode.FeatureNotSupported,
			"COPY ON SEGMENT is not supported for relation %s stored on the coordinator", stmt.Table.QuotedName())
	}
	return nil
}

// localConn streams frames to a segment running on its own goroutine.
type localConn struct {
	pipe  *util.BackgroundPipe
	seg   int
	tally Tally
}

var _ SegmentConn = &localConn{}

func newLocalConn(ctx context.Context, s *Segment) *localConn {
	c := &localConn{seg: s.cfg.Segment}
	c.pipe = util.NewBackgroundPipe(ctx, func(ctx context.Context, r io.Reader) error {
		t, err := s.CopyFrom(ctx, r)
		c.tally = t
		return err
	})
	return c
}

func (c *localConn) Write(b []byte) (int, error) {
	return c.pipe.Write(b)
}

// Finish implements SegmentConn.
func (c *localConn) Finish(ctx context.Context) (Tally, error) {
	if err := c.pipe.Close(); err != nil {
		return Tally{}, errors.Wrapf(err, "segment %d", c.seg)
	}
	return c.tally, nil
}

// Abort implements SegmentConn.
func (c *localConn) Abort(cause error) {
	if err := c.pipe.Abort(cause); err != nil && !errors.Is(err, cause) {
		log.Warningf(context.Background(), "segment %d: %v", c.seg, err)
	}
}
