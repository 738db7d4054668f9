// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package pgerror

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
)

// InternalErrorPrefix is prepended to the message of errors with code
// pgcode.Internal.
const InternalErrorPrefix = "internal error: "

// Flatten turns any error into a pgerror with fields populated. The
// details from the chain of causes are projected into a single struct,
// which is what gets sent to a client in an ErrorResponse.
//
// Flatten() returns a nil ptr if err was nil to start with.
func Flatten(err error) *Error {
	if err == nil {
		return nil
	}
	resErr := &Error{
		Code:     GetPGCode(err).String(),
		Message:  err.Error(),
		Severity: GetSeverity(err),
	}
	if detail := errors.FlattenDetails(err); detail != "" {
		resErr.Detail = detail
	}
	if hint := errors.FlattenHints(err); hint != "" {
		resErr.Hint = hint
	}
	if resErr.Code == pgcode.Internal.String() &&
		!strings.HasPrefix(resErr.Message, InternalErrorPrefix) {
		resErr.Message = InternalErrorPrefix + resErr.Message
	}
	return resErr
}

// FullError can be used when the hint and/or detail are to be tested.
func FullError(err error) string {
	if s, ok := fullErrorFromPQ(err); ok {
		return s
	}
	pgErr := Flatten(err)
	return formatMsgHintDetail(pgErr.Severity, pgErr.Message, pgErr.Hint, pgErr.Detail)
}

func formatMsgHintDetail(prefix, msg, hint, detail string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(": ")
	b.WriteString(msg)
	if hint != "" {
		b.WriteString("\nHINT: ")
		b.WriteString(hint)
	}
	if detail != "" {
		b.WriteString("\nDETAIL: ")
		b.WriteString(detail)
	}
	return b.String()
}
