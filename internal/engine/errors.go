package engine

import (
	"errors"
	"fmt"

	"github.com/edtacey/jsonmapper/internal/rules"
)

// RuleError describes why one rule did not apply cleanly.
//
// Rule errors are collected in Result.Errors and do not stop the remaining
// rules. The only exception is a sub-child lookup failure whose fallback is
// "error"; Apply then returns the RuleError as its error.
type RuleError struct {
	// Code identifies the error category.
	Code RuleErrorCode `json:"code"`

	// RuleID is the rule's id, or its target path when the id is empty.
	RuleID string `json:"ruleId"`

	// Kind is the rule's transformation kind.
	Kind rules.Kind `json:"kind"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// RuleErrorCode categorizes rule errors.
type RuleErrorCode string

const (
	// ErrCodeCustomFunction indicates a function or condition failed to
	// evaluate. The source value is kept.
	ErrCodeCustomFunction RuleErrorCode = "CUSTOM_FUNCTION"

	// ErrCodeSubChildLookup indicates a sub-child fetch failed and the
	// rule's fallback was applied.
	ErrCodeSubChildLookup RuleErrorCode = "SUBCHILD_LOOKUP"

	// ErrCodeValueMapNotFound indicates the referenced value mapping could
	// not be loaded. The source value passes through.
	ErrCodeValueMapNotFound RuleErrorCode = "VALUE_MAP_NOT_FOUND"

	// ErrCodeLookup indicates the lookup provider failed. The source value
	// passes through.
	ErrCodeLookup RuleErrorCode = "LOOKUP"

	// ErrCodeInvalidOperand indicates an operand of the wrong shape, such
	// as aggregating a non-array.
	ErrCodeInvalidOperand RuleErrorCode = "INVALID_OPERAND"

	// ErrCodeInvalidPath indicates an unparseable path or a write through
	// an array marker.
	ErrCodeInvalidPath RuleErrorCode = "INVALID_PATH"
)

// Error implements the error interface.
func (e *RuleError) Error() string {
	msg := fmt.Sprintf("%s: rule %s (%s): %s", e.Code, e.RuleID, e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuleError) Unwrap() error {
	return e.Err
}

func newRuleError(r rules.MappingRule, code RuleErrorCode, err error, format string, args ...any) *RuleError {
	return &RuleError{
		Code:    code,
		RuleID:  r.Label(),
		Kind:    r.Kind(),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func hasCode(err error, code RuleErrorCode) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCustomFunctionError returns true if the error is a custom function
// failure. Uses errors.As to handle wrapped errors.
func IsCustomFunctionError(err error) bool {
	return hasCode(err, ErrCodeCustomFunction)
}

// IsSubChildLookupError returns true if the error is a sub-child lookup
// failure.
func IsSubChildLookupError(err error) bool {
	return hasCode(err, ErrCodeSubChildLookup)
}

// IsValueMapNotFoundError returns true if the error reports a missing value
// mapping.
func IsValueMapNotFoundError(err error) bool {
	return hasCode(err, ErrCodeValueMapNotFound)
}
