// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import "github.com/mppdb/mppdb/pkg/settings"

var multiInsertEnabled = settings.RegisterBoolSetting(
	settings.SessionLevel,
	"sql.copy.multi_insert.enabled",
	"buffer loaded rows and store them in batches when the relation allows it",
	true,
)

var multiInsertMaxRows = settings.RegisterIntSetting(
	settings.SessionLevel,
	"sql.copy.multi_insert.max_rows",
	"rows buffered across all relations before the buffers are flushed",
	1000,
	settings.PositiveInt,
)

var multiInsertMaxBytes = settings.RegisterByteSizeSetting(
	settings.SessionLevel,
	"sql.copy.multi_insert.max_bytes",
	"size of the rows buffered across all relations before the buffers are flushed",
	64<<10,
	settings.PositiveInt,
)

var multiInsertMaxBuffers = settings.RegisterIntSetting(
	settings.SessionLevel,
	"sql.copy.multi_insert.max_partition_buffers",
	"number of partitions that keep a row buffer at the same time",
	32,
	settings.PositiveInt,
)

// The values of protocolVersion are the wire versions.
var protocolVersion = settings.RegisterEnumSetting(
	settings.ClusterWide,
	"sql.copy.dispatch_protocol_version",
	"version of the protocol the dispatcher speaks to segments",
	"v2",
	map[int64]string{
		1: "v1",
		2: "v2",
	},
)

var frameBufferSize = settings.RegisterByteSizeSetting(
	settings.SessionLevel,
	"sql.copy.frame_buffer_size",
	"bytes of frames buffered per segment before they are sent",
	64<<10,
	settings.PositiveInt,
)

var flushConcurrency = settings.RegisterIntSetting(
	settings.SessionLevel,
	"sql.copy.flush_concurrency",
	"number of segments that may store a batch at the same time in a local cluster",
	4,
	settings.PositiveInt,
)
