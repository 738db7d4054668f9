// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgcode defines the PostgreSQL SQLSTATE error codes used when
// reporting errors to clients.
package pgcode

// Code is a wrapper around a string to ensure that pgcodes don't get
// interchanged with other strings. Code must be used as a value type.
type Code struct {
	code string
}

// MakeCode converts a string into a Code.
func MakeCode(s string) Code {
	return Code{code: s}
}

// String returns the underlying pgcode string.
func (c Code) String() string {
	return c.code
}

// Class returns the class code, which is the first two characters of the
// code followed by "000".
func (c Code) Class() Code {
	if len(c.code) != 5 {
		return Uncategorized
	}
	return MakeCode(c.code[:2] + "000")
}

// PG error codes from: http://www.postgresql.org/docs/current/static/errcodes-appendix.html.
var (
	// Section: Class 00 - Successful Completion
	SuccessfulCompletion = MakeCode("00000")
	// Section: Class 01 - Warning
	Warning = MakeCode("01000")
	// Section: Class 08 - Connection Exception
	ConnectionException = MakeCode("08000")
	ConnectionFailure   = MakeCode("08006")
	ProtocolViolation   = MakeCode("08P01")
	// Section: Class 0A - Feature Not Supported
	FeatureNotSupported = MakeCode("0A000")
	// Section: Class 22 - Data Exception
	DataException                = MakeCode("22000")
	StringDataRightTruncation    = MakeCode("22001")
	CharacterNotInRepertoire     = MakeCode("22021")
	DatetimeFieldOverflow        = MakeCode("22008")
	DivisionByZero               = MakeCode("22012")
	InvalidDatetimeFormat        = MakeCode("22007")
	InvalidParameterValue        = MakeCode("22023")
	InvalidTextRepresentation    = MakeCode("22P02")
	InvalidBinaryRepresentation  = MakeCode("22P03")
	BadCopyFileFormat            = MakeCode("22P04")
	NumericValueOutOfRange       = MakeCode("22003")
	UntranslatableCharacter      = MakeCode("22P05")
	NullValueNotAllowed          = MakeCode("22004")
	InvalidEscapeSequence        = MakeCode("22025")
	InvalidCharacterValueForCast = MakeCode("22018")
	// Section: Class 23 - Integrity Constraint Violation
	IntegrityConstraintViolation = MakeCode("23000")
	NotNullViolation             = MakeCode("23502")
	CheckViolation               = MakeCode("23514")
	UniqueViolation              = MakeCode("23505")
	// Section: Class 25 - Invalid Transaction State
	InvalidTransactionState = MakeCode("25000")
	// Section: Class 38 - External Routine Exception
	ExternalRoutineException = MakeCode("38000")
	// Section: Class 42 - Syntax Error or Access Rule Violation
	SyntaxError            = MakeCode("42601")
	InsufficientPrivilege  = MakeCode("42501")
	UndefinedColumn        = MakeCode("42703")
	UndefinedTable         = MakeCode("42P01")
	DuplicateColumn        = MakeCode("42701")
	WrongObjectType        = MakeCode("42809")
	InvalidColumnReference = MakeCode("42P10")
	// Section: Class 53 - Insufficient Resources
	InsufficientResources = MakeCode("53000")
	DiskFull              = MakeCode("53100")
	OutOfMemory           = MakeCode("53200")
	// Section: Class 54 - Program Limit Exceeded
	ProgramLimitExceeded = MakeCode("54000")
	// Section: Class 57 - Operator Intervention
	OperatorIntervention = MakeCode("57000")
	QueryCanceled        = MakeCode("57014")
	// Section: Class 58 - System Error
	System  = MakeCode("58000")
	IOError = MakeCode("58030")
	// Section: Class XX - Internal Error
	Internal = MakeCode("XX000")

	// Uncategorized is used for errors that flow out to a client when
	// there's no code known yet.
	Uncategorized = MakeCode("XXUUU")
)
