// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import "github.com/mppdb/mppdb/pkg/util/metric"

var (
	metaRowsRead = metric.Metadata{
		Name: "copy_rows_read",
		Help: "Number of input rows read by COPY FROM",
	}
	metaBytesRead = metric.Metadata{
		Name: "copy_bytes_read",
		Help: "Number of input bytes read by COPY FROM",
	}
	metaRowsDispatched = metric.Metadata{
		Name: "copy_rows_dispatched",
		Help: "Number of rows the dispatcher sent to segments",
	}
	metaFramesSent = metric.Metadata{
		Name: "copy_frames_sent",
		Help: "Number of row and error frames sent to segments",
	}
	metaBytesDispatched = metric.Metadata{
		Name: "copy_bytes_dispatched",
		Help: "Number of bytes the dispatcher sent to segments",
	}
	metaRowsInserted = metric.Metadata{
		Name: "copy_rows_inserted",
		Help: "Number of rows stored by COPY FROM",
	}
	metaBatchesFlushed = metric.Metadata{
		Name: "copy_batches_flushed",
		Help: "Number of multi-insert batches stored",
	}
	metaRowsWritten = metric.Metadata{
		Name: "copy_rows_written",
		Help: "Number of rows written by COPY TO",
	}
	metaActiveLoads = metric.Metadata{
		Name: "copy_active_statements",
		Help: "Number of COPY statements running",
	}
)

// Metrics are the counters of the COPY engine.
type Metrics struct {
	RowsRead        *metric.Counter
	BytesRead       *metric.Counter
	RowsDispatched  *metric.Counter
	FramesSent      *metric.Counter
	BytesDispatched *metric.Counter
	RowsInserted    *metric.Counter
	BatchesFlushed  *metric.Counter
	RowsWritten     *metric.Counter
	ActiveLoads     *metric.Gauge
}

// MetricStruct implements metric.Struct.
func (Metrics) MetricStruct() {}

// MakeMetrics creates the COPY counters.
func MakeMetrics() *Metrics {
	return &Metrics{
		RowsRead:        metric.NewCounter(metaRowsRead),
		BytesRead:       metric.NewCounter(metaBytesRead),
		RowsDispatched:  metric.NewCounter(metaRowsDispatched),
		FramesSent:      metric.NewCounter(metaFramesSent),
		BytesDispatched: metric.NewCounter(metaBytesDispatched),
		RowsInserted:    metric.NewCounter(metaRowsInserted),
		BatchesFlushed:  metric.NewCounter(metaBatchesFlushed),
		RowsWritten:     metric.NewCounter(metaRowsWritten),
		ActiveLoads:     metric.NewGauge(metaActiveLoads),
	}
}
