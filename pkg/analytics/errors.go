package analytics

import (
	"errors"
	"fmt"
)

// Error codes reported to API callers
const (
	CodeDSLParseError        = "dsl_parse_error"
	CodeDSLUnknownIntent     = "dsl_unknown_intent"
	CodeDSLTooManyDimensions = "dsl_too_many_dimensions"
	CodeDSLGroupByRequired   = "dsl_group_by_required"
	CodeDSLUnknownField      = "dsl_unknown_field"
	CodeDSLUnknownFilter     = "dsl_unknown_filter_field"
	CodeDSLInvalidFilter     = "dsl_invalid_filter"
	CodeDSLInvalidTimeGrain  = "dsl_invalid_time_grain"
	CodeSQLNotSelect         = "sql_not_select"
	CodeSQLMultiStatement    = "sql_multi_statement"
	CodeSQLDisallowedTable   = "sql_disallowed_table"
	CodeSQLForbiddenKeyword  = "sql_forbidden_keyword"
	CodeSQLTimeout           = "sql_timeout"
	CodeLLMUnavailable       = "llm_unavailable"
	CodeLLMEmpty             = "llm_empty"
)

// Error is a domain failure of the analytics pipeline. It is never retried
// and is reported to the caller as a client error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

// NewError creates a new analytics error
func NewError(code, message, hint string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Hint:    hint,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError extracts an analytics error from an error chain
func AsError(err error) (*Error, bool) {
	var analyticsErr *Error
	if errors.As(err, &analyticsErr) {
		return analyticsErr, true
	}
	return nil, false
}

// ErrorCode returns the code of an analytics error, or an empty string
func ErrorCode(err error) string {
	if analyticsErr, ok := AsError(err); ok {
		return analyticsErr.Code
	}
	return ""
}

func newParseError(message, hint string) *Error {
	return NewError(CodeDSLParseError, message, hint)
}
