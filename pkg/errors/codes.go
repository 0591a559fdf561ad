package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique identifier for specific error conditions in Brownout.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Configuration: rejected before a run starts
	ErrCodeWorkloadSize   ErrorCode = 1002
	ErrCodeScaleRange     ErrorCode = 1003
	ErrCodeThresholdRange ErrorCode = 1004
	ErrCodePolicyUnknown  ErrorCode = 1005

	// Run
	ErrCodeSyncCancelled  ErrorCode = 2001
	ErrCodePolicyDispatch ErrorCode = 2002
	ErrCodeRunCancelled   ErrorCode = 2003

	// Power-loss producers
	ErrCodeTriggerBind    ErrorCode = 3001
	ErrCodeEmulatorConfig ErrorCode = 3002

	// Results ledger
	ErrCodeLedgerOpen  ErrorCode = 4001
	ErrCodeLedgerWrite ErrorCode = 4002
	ErrCodeLedgerRead  ErrorCode = 4003
)

// BrownoutError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type BrownoutError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *BrownoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *BrownoutError) Unwrap() error {
	return e.Err
}

// New creates a new BrownoutError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &BrownoutError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, op, format string, args ...any) error {
	return New(code, op, fmt.Sprintf(format, args...), nil)
}

// HasCode reports whether any BrownoutError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var be *BrownoutError
		if !stderrors.As(err, &be) {
			return false
		}
		if be.Code == code {
			return true
		}
		err = be.Err
	}
	return false
}

// Personal.AI order the ending
