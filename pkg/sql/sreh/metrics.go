// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sreh

import "github.com/mppdb/mppdb/pkg/util/metric"

var (
	metaRowsRejected = metric.Metadata{
		Name: "copy_rows_rejected",
		Help: "Number of input rows rejected by single row error handling",
	}
	metaRowsLogged = metric.Metadata{
		Name: "copy_rows_error_logged",
		Help: "Number of rejected rows written to an error log",
	}
)

// Metrics holds the counters of rejected rows.
type Metrics struct {
	RowsRejected *metric.Counter
	RowsLogged   *metric.Counter
}

// MetricStruct implements metric.Struct.
func (Metrics) MetricStruct() {}

// MakeMetrics creates the rejected row counters.
func MakeMetrics() Metrics {
	return Metrics{
		RowsRejected: metric.NewCounter(metaRowsRejected),
		RowsLogged:   metric.NewCounter(metaRowsLogged),
	}
}
