// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClass(t *testing.T) {
	testCases := []struct {
		code     Code
		expected Code
	}{
		{InvalidTextRepresentation, DataException},
		{BadCopyFileFormat, DataException},
		{NotNullViolation, IntegrityConstraintViolation},
		{OutOfMemory, InsufficientResources},
		{ProtocolViolation, ConnectionException},
		{MakeCode("bad"), Uncategorized},
	}
	for _, tc := range testCases {
		t.Run(tc.code.String(), func(t *testing.T) {
			require.Equal(t, tc.expected, tc.code.Class())
		})
	}
}
