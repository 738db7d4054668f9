// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgerror

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/stretchr/testify/require"
)

func TestGetPGCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		code pgcode.Code
	}{
		{"plain", errors.New("woo"), pgcode.Uncategorized},
		{"new", New(pgcode.BadCopyFileFormat, "bad"), pgcode.BadCopyFileFormat},
		{"inner wins", Wrapf(New(pgcode.InvalidTextRepresentation, "x"), pgcode.DataException, "ctx"), pgcode.InvalidTextRepresentation},
		{"wrap plain", Wrap(errors.New("x"), pgcode.ProtocolViolation, ""), pgcode.ProtocolViolation},
		{"canceled", errors.Wrap(context.Canceled, "copy"), pgcode.QueryCanceled},
		{"assertion", errors.AssertionFailedf("boom"), pgcode.Internal},
		{"pq", errors.Wrap(&pq.Error{Code: "23505", Message: "dup"}, "ctx"), pgcode.UniqueViolation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, GetPGCode(tc.err))
		})
	}
	require.Equal(t, pgcode.SuccessfulCompletion, GetPGCode(nil))
}

func TestSeverity(t *testing.T) {
	testCases := []struct {
		err              error
		expectedSeverity string
	}{
		{WithSeverity(fmt.Errorf("notice me"), "NOTICE ME"), "NOTICE ME"},
		{WithSeverity(WithSeverity(fmt.Errorf("notice me"), "IGNORE ME"), "NOTICE ME"), "NOTICE ME"},
		{WithSeverity(WithCandidateCode(fmt.Errorf("notice me"), pgcode.FeatureNotSupported), "NOTICE ME"), "NOTICE ME"},
		{New(pgcode.Uncategorized, "i am an error"), "ERROR"},
		{WithCandidateCode(WithSeverity(errors.Newf("i am not an error"), "NOT AN ERROR"), pgcode.System), "NOT AN ERROR"},
		{fmt.Errorf("something else"), "ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			require.Equal(t, tc.expectedSeverity, GetSeverity(tc.err))
		})
	}
}

func TestFlatten(t *testing.T) {
	err := Newf(pgcode.BadCopyFileFormat, "missing data for column %q", "b")
	err = errors.WithHint(err, "check the delimiter")
	err = errors.WithDetail(err, "line 3")
	pgErr := Flatten(err)
	require.Equal(t, "22P04", pgErr.Code)
	require.Equal(t, `missing data for column "b"`, pgErr.Message)
	require.Equal(t, "check the delimiter", pgErr.Hint)
	require.Equal(t, "line 3", pgErr.Detail)
	require.Equal(t, "ERROR", pgErr.Severity)
	require.Equal(t,
		"ERROR: missing data for column \"b\"\nHINT: check the delimiter\nDETAIL: line 3",
		FullError(err))

	internal := Flatten(errors.AssertionFailedf("bad state"))
	require.Equal(t, "XX000", internal.Code)
	require.Equal(t, "internal error: bad state", internal.Message)

	require.Nil(t, Flatten(nil))
}

func TestFullErrorPQ(t *testing.T) {
	err := &pq.Error{Message: "oops", Hint: "retry"}
	require.Equal(t, "pq: oops\nHINT: retry", FullError(err))
}
